package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-access/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const (
	permissionCacheKeyPrefix = "go-access::permissions::v1"
	adminFlagCacheKeyPrefix  = "go-access::administrative::v1"
)

// CachedAccessStore fronts role and scope reads with a cache. Writes
// pass through and invalidate the keys they may have changed; scope
// permission reads are cached per scope name so delegated grants with
// overlapping scopes share entries.
type CachedAccessStore struct {
	base  core.AccessStore
	cache repositorycache.CacheService
}

func NewCachedAccessStore(base core.AccessStore, cacheService repositorycache.CacheService) (*CachedAccessStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base access store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: access cache service is required")
	}
	return &CachedAccessStore{base: base, cache: cacheService}, nil
}

// PermissionCacheKey returns the deterministic cache key contract for
// permission reads: go-access::permissions::v1::<kind>::<id> with each
// segment URL-path escaped.
func PermissionCacheKey(kind string, id string) string {
	segments := []string{url.PathEscape(kind), url.PathEscape(strings.TrimSpace(id))}
	return strings.Join(append([]string{permissionCacheKeyPrefix}, segments...), "::")
}

func adminFlagCacheKey(kind string, id string) string {
	segments := []string{url.PathEscape(kind), url.PathEscape(strings.TrimSpace(id))}
	return strings.Join(append([]string{adminFlagCacheKeyPrefix}, segments...), "::")
}

func (s *CachedAccessStore) PersonPermissions(ctx context.Context, personID string) (core.PermissionSet, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached access store is not configured")
	}
	names, err := repositorycache.GetOrFetch(ctx, s.cache, PermissionCacheKey("person", personID), func(ctx context.Context) ([]string, error) {
		set, fetchErr := s.base.PersonPermissions(ctx, personID)
		if fetchErr != nil {
			return nil, fetchErr
		}
		return set.Names(), nil
	})
	if err != nil {
		return nil, err
	}
	return core.NewPermissionSet(names...), nil
}

func (s *CachedAccessStore) ClientPermissions(ctx context.Context, clientID string) (core.PermissionSet, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached access store is not configured")
	}
	names, err := repositorycache.GetOrFetch(ctx, s.cache, PermissionCacheKey("client", clientID), func(ctx context.Context) ([]string, error) {
		set, fetchErr := s.base.ClientPermissions(ctx, clientID)
		if fetchErr != nil {
			return nil, fetchErr
		}
		return set.Names(), nil
	})
	if err != nil {
		return nil, err
	}
	return core.NewPermissionSet(names...), nil
}

func (s *CachedAccessStore) ScopePermissions(ctx context.Context, scopeNames []string) (core.PermissionSet, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached access store is not configured")
	}
	merged := core.PermissionSet{}
	for _, scopeName := range scopeNames {
		scopeName = strings.TrimSpace(scopeName)
		if scopeName == "" {
			continue
		}
		names, err := repositorycache.GetOrFetch(ctx, s.cache, PermissionCacheKey("scope", scopeName), func(ctx context.Context) ([]string, error) {
			set, fetchErr := s.base.ScopePermissions(ctx, []string{scopeName})
			if fetchErr != nil {
				return nil, fetchErr
			}
			return set.Names(), nil
		})
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			merged[name] = true
		}
	}
	return merged, nil
}

func (s *CachedAccessStore) PersonIsAdministrative(ctx context.Context, personID string) (bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return false, fmt.Errorf("sqlstore: cached access store is not configured")
	}
	return repositorycache.GetOrFetch(ctx, s.cache, adminFlagCacheKey("person", personID), func(ctx context.Context) (bool, error) {
		return s.base.PersonIsAdministrative(ctx, personID)
	})
}

func (s *CachedAccessStore) ClientIsAdministrative(ctx context.Context, clientID string) (bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return false, fmt.Errorf("sqlstore: cached access store is not configured")
	}
	return repositorycache.GetOrFetch(ctx, s.cache, adminFlagCacheKey("client", clientID), func(ctx context.Context) (bool, error) {
		return s.base.ClientIsAdministrative(ctx, clientID)
	})
}

func (s *CachedAccessStore) AssignPersonRole(ctx context.Context, personID string, roleName string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached access store is not configured")
	}
	if err := s.base.AssignPersonRole(ctx, personID, roleName); err != nil {
		return err
	}
	return s.invalidatePerson(ctx, personID)
}

func (s *CachedAccessStore) RemovePersonRole(ctx context.Context, personID string, roleName string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached access store is not configured")
	}
	if err := s.base.RemovePersonRole(ctx, personID, roleName); err != nil {
		return err
	}
	return s.invalidatePerson(ctx, personID)
}

func (s *CachedAccessStore) AssignClientRole(ctx context.Context, clientID string, roleName string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached access store is not configured")
	}
	if err := s.base.AssignClientRole(ctx, clientID, roleName); err != nil {
		return err
	}
	return s.invalidateClient(ctx, clientID)
}

func (s *CachedAccessStore) RemoveClientRole(ctx context.Context, clientID string, roleName string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached access store is not configured")
	}
	if err := s.base.RemoveClientRole(ctx, clientID, roleName); err != nil {
		return err
	}
	return s.invalidateClient(ctx, clientID)
}

// PutRolePermissions changes what a role grants, which can affect any
// subject holding the role. There is no reverse index from role to
// subject, so role edits fall back to serving stale entries until the
// cache TTL rolls them over.
func (s *CachedAccessStore) PutRolePermissions(ctx context.Context, create []core.RolePermissionLink, remove []core.RolePermissionLink) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached access store is not configured")
	}
	return s.base.PutRolePermissions(ctx, create, remove)
}

func (s *CachedAccessStore) PutScopePermissions(ctx context.Context, create []core.ScopePermissionLink, remove []core.ScopePermissionLink) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached access store is not configured")
	}
	if err := s.base.PutScopePermissions(ctx, create, remove); err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, link := range append(append([]core.ScopePermissionLink{}, create...), remove...) {
		scopeName := strings.TrimSpace(link.ScopeName)
		if scopeName == "" || seen[scopeName] {
			continue
		}
		seen[scopeName] = true
		if err := s.cache.Delete(ctx, PermissionCacheKey("scope", scopeName)); err != nil {
			return err
		}
	}
	return nil
}

func (s *CachedAccessStore) invalidatePerson(ctx context.Context, personID string) error {
	if err := s.cache.Delete(ctx, PermissionCacheKey("person", personID)); err != nil {
		return err
	}
	return s.cache.Delete(ctx, adminFlagCacheKey("person", personID))
}

func (s *CachedAccessStore) invalidateClient(ctx context.Context, clientID string) error {
	if err := s.cache.Delete(ctx, PermissionCacheKey("client", clientID)); err != nil {
		return err
	}
	return s.cache.Delete(ctx, adminFlagCacheKey("client", clientID))
}

var _ core.AccessStore = (*CachedAccessStore)(nil)
