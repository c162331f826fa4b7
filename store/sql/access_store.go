package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-access/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccessStore resolves role and scope memberships straight from the
// join tables. Every read collapses to a single query; the resolver on
// top never sees ids, only permission names.
type AccessStore struct {
	db *bun.DB
}

func NewAccessStore(db *bun.DB) (*AccessStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &AccessStore{db: db}, nil
}

func (s *AccessStore) PersonPermissions(ctx context.Context, personID string) (core.PermissionSet, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: access store is not configured")
	}
	var names []string
	err := s.db.NewSelect().
		Model((*permissionRecord)(nil)).
		Column("pm.name").
		Join("JOIN role_permission AS rp ON rp.permission_id = pm.id").
		Join("JOIN person_role AS pr ON pr.role_id = rp.role_id").
		Where("pr.person_id = ?", strings.TrimSpace(personID)).
		Scan(ctx, &names)
	if err != nil {
		return nil, err
	}
	return core.NewPermissionSet(names...), nil
}

func (s *AccessStore) ClientPermissions(ctx context.Context, clientID string) (core.PermissionSet, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: access store is not configured")
	}
	var names []string
	err := s.db.NewSelect().
		Model((*permissionRecord)(nil)).
		Column("pm.name").
		Join("JOIN role_permission AS rp ON rp.permission_id = pm.id").
		Join("JOIN client_role AS cr ON cr.role_id = rp.role_id").
		Where("cr.client_id = ?", strings.TrimSpace(clientID)).
		Scan(ctx, &names)
	if err != nil {
		return nil, err
	}
	return core.NewPermissionSet(names...), nil
}

func (s *AccessStore) ScopePermissions(ctx context.Context, scopeNames []string) (core.PermissionSet, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: access store is not configured")
	}
	trimmed := make([]string, 0, len(scopeNames))
	for _, name := range scopeNames {
		if name = strings.TrimSpace(name); name != "" {
			trimmed = append(trimmed, name)
		}
	}
	if len(trimmed) == 0 {
		return core.PermissionSet{}, nil
	}

	var names []string
	err := s.db.NewSelect().
		Model((*permissionRecord)(nil)).
		Column("pm.name").
		Join("JOIN scope_permission AS sp ON sp.permission_id = pm.id").
		Join("JOIN scope AS s ON s.id = sp.scope_id").
		Where("s.name IN (?)", bun.In(trimmed)).
		Scan(ctx, &names)
	if err != nil {
		return nil, err
	}
	return core.NewPermissionSet(names...), nil
}

func (s *AccessStore) PersonIsAdministrative(ctx context.Context, personID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: access store is not configured")
	}
	return s.db.NewSelect().
		Model((*personRoleRecord)(nil)).
		Join("JOIN role AS r ON r.id = pr.role_id").
		Where("pr.person_id = ?", strings.TrimSpace(personID)).
		Where("r.is_administrative = ?", true).
		Exists(ctx)
}

func (s *AccessStore) ClientIsAdministrative(ctx context.Context, clientID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: access store is not configured")
	}
	return s.db.NewSelect().
		Model((*clientRoleRecord)(nil)).
		Join("JOIN role AS r ON r.id = cr.role_id").
		Where("cr.client_id = ?", strings.TrimSpace(clientID)).
		Where("r.is_administrative = ?", true).
		Exists(ctx)
}

func (s *AccessStore) AssignPersonRole(ctx context.Context, personID string, roleName string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: access store is not configured")
	}
	trimmedPersonID := strings.TrimSpace(personID)
	if trimmedPersonID == "" {
		return fmt.Errorf("sqlstore: person id is required")
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		roleID, err := s.ensureRole(ctx, tx, roleName)
		if err != nil {
			return err
		}
		_, err = tx.NewInsert().
			Model(&personRoleRecord{PersonID: trimmedPersonID, RoleID: roleID, CreatedAt: time.Now().UTC()}).
			On("CONFLICT DO NOTHING").
			Exec(ctx)
		return err
	})
}

func (s *AccessStore) RemovePersonRole(ctx context.Context, personID string, roleName string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: access store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*personRoleRecord)(nil)).
		Where("person_id = ?", strings.TrimSpace(personID)).
		Where("role_id IN (SELECT id FROM role WHERE name = ?)", strings.TrimSpace(roleName)).
		Exec(ctx)
	return err
}

func (s *AccessStore) AssignClientRole(ctx context.Context, clientID string, roleName string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: access store is not configured")
	}
	trimmedClientID := strings.TrimSpace(clientID)
	if trimmedClientID == "" {
		return fmt.Errorf("sqlstore: client id is required")
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		roleID, err := s.ensureRole(ctx, tx, roleName)
		if err != nil {
			return err
		}
		_, err = tx.NewInsert().
			Model(&clientRoleRecord{ClientID: trimmedClientID, RoleID: roleID, CreatedAt: time.Now().UTC()}).
			On("CONFLICT DO NOTHING").
			Exec(ctx)
		return err
	})
}

func (s *AccessStore) RemoveClientRole(ctx context.Context, clientID string, roleName string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: access store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*clientRoleRecord)(nil)).
		Where("client_id = ?", strings.TrimSpace(clientID)).
		Where("role_id IN (SELECT id FROM role WHERE name = ?)", strings.TrimSpace(roleName)).
		Exec(ctx)
	return err
}

// PutRolePermissions applies additions and removals in one
// transaction. Permission rows are seeded by migration from the closed
// registry, so a missing name is a caller error, never an upsert.
func (s *AccessStore) PutRolePermissions(ctx context.Context, create []core.RolePermissionLink, remove []core.RolePermissionLink) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: access store is not configured")
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, link := range create {
			roleID, err := s.ensureRole(ctx, tx, link.RoleName)
			if err != nil {
				return err
			}
			permissionID, err := s.permissionID(ctx, tx, link.PermissionName)
			if err != nil {
				return err
			}
			if _, err := tx.NewInsert().
				Model(&rolePermissionRecord{RoleID: roleID, PermissionID: permissionID, CreatedAt: time.Now().UTC()}).
				On("CONFLICT DO NOTHING").
				Exec(ctx); err != nil {
				return err
			}
		}
		for _, link := range remove {
			if _, err := tx.NewDelete().
				Model((*rolePermissionRecord)(nil)).
				Where("role_id IN (SELECT id FROM role WHERE name = ?)", strings.TrimSpace(link.RoleName)).
				Where("permission_id IN (SELECT id FROM permission WHERE name = ?)", strings.TrimSpace(link.PermissionName)).
				Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *AccessStore) PutScopePermissions(ctx context.Context, create []core.ScopePermissionLink, remove []core.ScopePermissionLink) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: access store is not configured")
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, link := range create {
			scopeID, err := s.ensureScope(ctx, tx, link.ScopeName)
			if err != nil {
				return err
			}
			permissionID, err := s.permissionID(ctx, tx, link.PermissionName)
			if err != nil {
				return err
			}
			if _, err := tx.NewInsert().
				Model(&scopePermissionRecord{ScopeID: scopeID, PermissionID: permissionID, CreatedAt: time.Now().UTC()}).
				On("CONFLICT DO NOTHING").
				Exec(ctx); err != nil {
				return err
			}
		}
		for _, link := range remove {
			if _, err := tx.NewDelete().
				Model((*scopePermissionRecord)(nil)).
				Where("scope_id IN (SELECT id FROM scope WHERE name = ?)", strings.TrimSpace(link.ScopeName)).
				Where("permission_id IN (SELECT id FROM permission WHERE name = ?)", strings.TrimSpace(link.PermissionName)).
				Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *AccessStore) ensureRole(ctx context.Context, tx bun.Tx, roleName string) (string, error) {
	roleName = strings.TrimSpace(roleName)
	if roleName == "" {
		return "", fmt.Errorf("sqlstore: role name is required")
	}
	var roleID string
	err := tx.NewSelect().
		Model((*roleRecord)(nil)).
		Column("r.id").
		Where("r.name = ?", roleName).
		Limit(1).
		Scan(ctx, &roleID)
	if err == nil && roleID != "" {
		return roleID, nil
	}
	if err != nil && !isNoRows(err) {
		return "", err
	}

	record := &roleRecord{
		ID:        uuid.NewString(),
		Name:      roleName,
		Label:     roleName,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if _, err := tx.NewInsert().
		Model(record).
		On("CONFLICT DO NOTHING").
		Exec(ctx); err != nil {
		return "", err
	}
	// re-read: a concurrent insert may have won the conflict
	if err := tx.NewSelect().
		Model((*roleRecord)(nil)).
		Column("r.id").
		Where("r.name = ?", roleName).
		Limit(1).
		Scan(ctx, &roleID); err != nil {
		return "", err
	}
	return roleID, nil
}

func (s *AccessStore) ensureScope(ctx context.Context, tx bun.Tx, scopeName string) (string, error) {
	scopeName = strings.TrimSpace(scopeName)
	if scopeName == "" {
		return "", fmt.Errorf("sqlstore: scope name is required")
	}
	var scopeID string
	err := tx.NewSelect().
		Model((*scopeRecord)(nil)).
		Column("s.id").
		Where("s.name = ?", scopeName).
		Limit(1).
		Scan(ctx, &scopeID)
	if err == nil && scopeID != "" {
		return scopeID, nil
	}
	if err != nil && !isNoRows(err) {
		return "", err
	}

	record := &scopeRecord{
		ID:        uuid.NewString(),
		Name:      scopeName,
		Label:     scopeName,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := tx.NewInsert().
		Model(record).
		On("CONFLICT DO NOTHING").
		Exec(ctx); err != nil {
		return "", err
	}
	if err := tx.NewSelect().
		Model((*scopeRecord)(nil)).
		Column("s.id").
		Where("s.name = ?", scopeName).
		Limit(1).
		Scan(ctx, &scopeID); err != nil {
		return "", err
	}
	return scopeID, nil
}

func (s *AccessStore) permissionID(ctx context.Context, tx bun.Tx, permissionName string) (string, error) {
	permissionName = strings.TrimSpace(permissionName)
	var permissionID string
	err := tx.NewSelect().
		Model((*permissionRecord)(nil)).
		Column("pm.id").
		Where("pm.name = ?", permissionName).
		Limit(1).
		Scan(ctx, &permissionID)
	if err != nil {
		if isNoRows(err) {
			return "", fmt.Errorf("sqlstore: unknown permission %q", permissionName)
		}
		return "", err
	}
	return permissionID, nil
}
