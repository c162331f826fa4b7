package access

import (
	"context"
	"testing"

	"github.com/goliatone/go-access/core"
)

func TestExtensionHooks_RegisterAndApplyRolePacks(t *testing.T) {
	hooks := NewExtensionHooks()

	err := hooks.RegisterRolePack(RolePack{
		Name: "support",
		Links: []core.RolePermissionLink{
			{RoleName: "support", PermissionName: "can get any person"},
			{RoleName: "support", PermissionName: "can list any person"},
		},
	})
	if err != nil {
		t.Fatalf("register role pack: %v", err)
	}
	if err := hooks.RegisterRolePack(RolePack{Name: "support", Links: []core.RolePermissionLink{
		{RoleName: "support", PermissionName: "can get any person"},
	}}); err == nil {
		t.Fatalf("expected duplicate role pack rejection")
	}
	if err := hooks.RegisterRolePack(RolePack{Name: "broken", Links: []core.RolePermissionLink{
		{RoleName: "", PermissionName: "can get any person"},
	}}); err == nil {
		t.Fatalf("expected incomplete link rejection")
	}

	writer := &capturingPermissionWriter{}
	if err := hooks.ApplyRolePacks(context.Background(), writer); err != nil {
		t.Fatalf("apply role packs: %v", err)
	}
	if len(writer.roleLinks) != 2 {
		t.Fatalf("expected 2 role links applied, got %d", len(writer.roleLinks))
	}
}

func TestExtensionHooks_ApplyScopePacks(t *testing.T) {
	hooks := NewExtensionHooks()

	if err := hooks.RegisterScopePack(ScopePack{
		Name: "person-scope",
		Links: []core.ScopePermissionLink{
			{ScopeName: "person", PermissionName: "can get own person"},
		},
	}); err != nil {
		t.Fatalf("register scope pack: %v", err)
	}

	writer := &capturingPermissionWriter{}
	if err := hooks.ApplyScopePacks(context.Background(), writer); err != nil {
		t.Fatalf("apply scope packs: %v", err)
	}
	if len(writer.scopeLinks) != 1 || writer.scopeLinks[0].ScopeName != "person" {
		t.Fatalf("expected scope link applied, got %#v", writer.scopeLinks)
	}

	if err := hooks.ApplyScopePacks(context.Background(), nil); err == nil {
		t.Fatalf("expected nil writer rejection")
	}
}

func TestExtensionHooks_CommandQueryBundles(t *testing.T) {
	hooks := NewExtensionHooks()
	svc := &stubFacadeService{}

	if err := hooks.RegisterCommandQueryBundle("admin", func(service CommandQueryService) (any, error) {
		return NewFacade(service)
	}); err != nil {
		t.Fatalf("register bundle: %v", err)
	}
	if err := hooks.RegisterCommandQueryBundle("admin", func(CommandQueryService) (any, error) {
		return nil, nil
	}); err == nil {
		t.Fatalf("expected duplicate bundle rejection")
	}

	bundles, err := hooks.BuildCommandQueryBundles(svc)
	if err != nil {
		t.Fatalf("build bundles: %v", err)
	}
	facade, ok := bundles["admin"].(*Facade)
	if !ok || facade == nil {
		t.Fatalf("expected facade bundle, got %#v", bundles["admin"])
	}

	names := hooks.BundleNames()
	if len(names) != 1 || names[0] != "admin" {
		t.Fatalf("unexpected bundle names: %v", names)
	}
}

type capturingPermissionWriter struct {
	roleLinks  []core.RolePermissionLink
	scopeLinks []core.ScopePermissionLink
}

func (w *capturingPermissionWriter) PutRolePermissions(_ context.Context, create []core.RolePermissionLink, _ []core.RolePermissionLink) error {
	w.roleLinks = append(w.roleLinks, create...)
	return nil
}

func (w *capturingPermissionWriter) PutScopePermissions(_ context.Context, create []core.ScopePermissionLink, _ []core.ScopePermissionLink) error {
	w.scopeLinks = append(w.scopeLinks, create...)
	return nil
}
