package core

import (
	"fmt"
	"strings"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionRemove Action = "remove"
	ActionList   Action = "list"
	ActionGet    Action = "get"
)

type Qualifier string

const (
	QualifierNone Qualifier = ""
	QualifierOwn  Qualifier = "own"
	QualifierAny  Qualifier = "any"
)

// The permission vocabulary is a closed set: five actions over a fixed
// roster of entities, with own/any variants only where an entity has an
// owner. Anything outside this table is not a permission name.
var (
	permissionActions = []Action{ActionCreate, ActionUpdate, ActionRemove, ActionList, ActionGet}

	unqualifiedEntities = []string{"permission", "role", "rolePermission"}
	qualifiedEntities   = []string{"person", "client", "personRole", "clientRole"}

	knownPermissions = buildPermissionRegistry()
)

func buildPermissionRegistry() map[string]struct{} {
	registry := map[string]struct{}{}
	for _, action := range permissionActions {
		for _, entity := range unqualifiedEntities {
			registry[joinPermissionWords("can", string(action), entity)] = struct{}{}
		}
		for _, entity := range qualifiedEntities {
			registry[joinPermissionWords("can", string(action), string(QualifierOwn), entity)] = struct{}{}
			registry[joinPermissionWords("can", string(action), string(QualifierAny), entity)] = struct{}{}
		}
	}
	return registry
}

func joinPermissionWords(words ...string) string {
	return strings.Join(words, " ")
}

// PermissionName composes the canonical name for an action over an
// entity. It errs on names outside the closed registry instead of
// fabricating new ones.
func PermissionName(action Action, qualifier Qualifier, entity string) (string, error) {
	var name string
	if qualifier == QualifierNone {
		name = joinPermissionWords("can", string(action), entity)
	} else {
		name = joinPermissionWords("can", string(action), string(qualifier), entity)
	}
	if _, ok := knownPermissions[name]; !ok {
		return "", fmt.Errorf("core: unknown permission %q", name)
	}
	return name, nil
}

func KnownPermission(name string) bool {
	_, ok := knownPermissions[strings.TrimSpace(name)]
	return ok
}

// AllPermissionNames returns the complete registry, in no particular
// order. Migration seeds and tests lean on it.
func AllPermissionNames() []string {
	names := make([]string, 0, len(knownPermissions))
	for name := range knownPermissions {
		names = append(names, name)
	}
	return names
}

// EntityHasOwner reports whether entity distinguishes own from any.
func EntityHasOwner(entity string) bool {
	for _, candidate := range qualifiedEntities {
		if candidate == entity {
			return true
		}
	}
	return false
}
