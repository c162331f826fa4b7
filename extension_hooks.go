package access

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-access/core"
)

// RolePack bundles the permission links a host application grants a
// role at bootstrap.
type RolePack struct {
	Name  string
	Links []core.RolePermissionLink
}

// ScopePack bundles the permission ceiling a named scope should carry.
type ScopePack struct {
	Name  string
	Links []core.ScopePermissionLink
}

type CommandQueryBundleFactory func(service CommandQueryService) (any, error)

// PermissionWriter is the slice of the service the packs apply
// through.
type PermissionWriter interface {
	PutRolePermissions(ctx context.Context, create []core.RolePermissionLink, remove []core.RolePermissionLink) error
	PutScopePermissions(ctx context.Context, create []core.ScopePermissionLink, remove []core.ScopePermissionLink) error
}

// ExtensionHooks lets embedding applications contribute role presets,
// scope presets, and command/query bundles before the service starts
// answering authorization checks.
type ExtensionHooks struct {
	mu sync.RWMutex

	rolePacks  map[string]RolePack
	scopePacks map[string]ScopePack
	bundles    map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		rolePacks:  map[string]RolePack{},
		scopePacks: map[string]ScopePack{},
		bundles:    map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterRolePack(pack RolePack) error {
	if h == nil {
		return fmt.Errorf("access: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("access: role pack name is required")
	}
	if len(pack.Links) == 0 {
		return fmt.Errorf("access: role pack %q has no permission links", name)
	}
	for _, link := range pack.Links {
		if strings.TrimSpace(link.RoleName) == "" || strings.TrimSpace(link.PermissionName) == "" {
			return fmt.Errorf("access: role pack %q has an incomplete link", name)
		}
	}

	normalized := RolePack{
		Name:  name,
		Links: append([]core.RolePermissionLink(nil), pack.Links...),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.rolePacks[name]; exists {
		return fmt.Errorf("access: role pack %q already registered", name)
	}
	h.rolePacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterScopePack(pack ScopePack) error {
	if h == nil {
		return fmt.Errorf("access: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("access: scope pack name is required")
	}
	if len(pack.Links) == 0 {
		return fmt.Errorf("access: scope pack %q has no permission links", name)
	}
	for _, link := range pack.Links {
		if strings.TrimSpace(link.ScopeName) == "" || strings.TrimSpace(link.PermissionName) == "" {
			return fmt.Errorf("access: scope pack %q has an incomplete link", name)
		}
	}

	normalized := ScopePack{
		Name:  name,
		Links: append([]core.ScopePermissionLink(nil), pack.Links...),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.scopePacks[name]; exists {
		return fmt.Errorf("access: scope pack %q already registered", name)
	}
	h.scopePacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(
	name string,
	factory CommandQueryBundleFactory,
) error {
	if h == nil {
		return fmt.Errorf("access: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("access: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("access: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("access: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

// ApplyRolePacks replays every registered role pack through the
// service in pack name order. Re-applying is safe, links upsert.
func (h *ExtensionHooks) ApplyRolePacks(ctx context.Context, writer PermissionWriter) error {
	if h == nil {
		return nil
	}
	if writer == nil {
		return fmt.Errorf("access: permission writer is required")
	}
	for _, pack := range h.RolePacks() {
		if err := writer.PutRolePermissions(ctx, pack.Links, nil); err != nil {
			return fmt.Errorf("access: applying role pack %q: %w", pack.Name, err)
		}
	}
	return nil
}

// ApplyScopePacks replays every registered scope pack in name order.
func (h *ExtensionHooks) ApplyScopePacks(ctx context.Context, writer PermissionWriter) error {
	if h == nil {
		return nil
	}
	if writer == nil {
		return fmt.Errorf("access: permission writer is required")
	}
	for _, pack := range h.ScopePacks() {
		if err := writer.PutScopePermissions(ctx, pack.Links, nil); err != nil {
			return fmt.Errorf("access: applying scope pack %q: %w", pack.Name, err)
		}
	}
	return nil
}

func (h *ExtensionHooks) BuildCommandQueryBundles(
	service CommandQueryService,
) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if service == nil {
		return nil, fmt.Errorf("access: command/query service is required")
	}

	h.mu.RLock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	factories := make(map[string]CommandQueryBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		factories[name] = factory
	}
	h.mu.RUnlock()

	result := make(map[string]any, len(names))
	for _, name := range names {
		bundle, err := factories[name](service)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) RolePacks() []RolePack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.rolePacks))
	for name := range h.rolePacks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]RolePack, 0, len(names))
	for _, name := range names {
		pack := h.rolePacks[name]
		out = append(out, RolePack{
			Name:  pack.Name,
			Links: append([]core.RolePermissionLink(nil), pack.Links...),
		})
	}
	return out
}

func (h *ExtensionHooks) ScopePacks() []ScopePack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.scopePacks))
	for name := range h.scopePacks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]ScopePack, 0, len(names))
	for _, name := range names {
		pack := h.scopePacks[name]
		out = append(out, ScopePack{
			Name:  pack.Name,
			Links: append([]core.ScopePermissionLink(nil), pack.Links...),
		})
	}
	return out
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
