package core

import (
	"context"
	"fmt"
)

// PermissionResolver answers "may this subject do this to that" by
// combining two derivations: permissions granted through roles and
// permissions exposed through the token's scopes. A scope never adds
// power, it only masks what the roles already grant. Members of an
// administrative role bypass the lookup entirely.
type PermissionResolver struct {
	access AccessStore
}

func NewPermissionResolver(access AccessStore) *PermissionResolver {
	return &PermissionResolver{access: access}
}

func (r *PermissionResolver) IsAdministrative(ctx context.Context, subject SubjectRef) (bool, error) {
	if err := subject.Validate(); err != nil {
		return false, err
	}
	if subject.Kind == SubjectKindPerson {
		return r.access.PersonIsAdministrative(ctx, subject.ID)
	}
	return r.access.ClientIsAdministrative(ctx, subject.ID)
}

// RolePermissions resolves the permissions a subject holds through its
// role assignments alone, before any scope masking.
func (r *PermissionResolver) RolePermissions(ctx context.Context, subject SubjectRef) (PermissionSet, error) {
	if err := subject.Validate(); err != nil {
		return nil, err
	}
	if subject.Kind == SubjectKindPerson {
		return r.access.PersonPermissions(ctx, subject.ID)
	}
	return r.access.ClientPermissions(ctx, subject.ID)
}

// EffectivePermissions intersects role-derived permissions with the
// scope-derived set. The implicit first-party scopes ("person" for
// people, "client" for clients) carry the full role-derived set, so a
// token holding only its implicit scope is not masked at all.
func (r *PermissionResolver) EffectivePermissions(ctx context.Context, subject SubjectRef, scopes []string) (PermissionSet, error) {
	roleDerived, err := r.RolePermissions(ctx, subject)
	if err != nil {
		return nil, err
	}
	delegated := delegatedScopes(subject, scopes)
	if len(delegated) == 0 {
		return roleDerived, nil
	}
	scopeDerived, err := r.access.ScopePermissions(ctx, delegated)
	if err != nil {
		return nil, err
	}
	return roleDerived.Intersect(scopeDerived), nil
}

// Check runs the full decision: administrative bypass first, then the
// own/any permission name lookup against the effective set.
func (r *PermissionResolver) Check(ctx context.Context, req CheckAccessRequest) (AccessDecision, error) {
	if err := req.Subject.Validate(); err != nil {
		return AccessDecision{}, err
	}

	admin, err := r.IsAdministrative(ctx, req.Subject)
	if err != nil {
		return AccessDecision{}, err
	}
	if admin {
		return AccessDecision{Allowed: true, Admin: true, Reason: "administrative role"}, nil
	}

	name, err := requiredPermission(req)
	if err != nil {
		return AccessDecision{}, err
	}

	effective, err := r.EffectivePermissions(ctx, req.Subject, req.Scopes)
	if err != nil {
		return AccessDecision{}, err
	}
	if effective.Has(name) {
		return AccessDecision{Allowed: true, Permission: name}, nil
	}
	return AccessDecision{
		Allowed:    false,
		Permission: name,
		Reason:     fmt.Sprintf("missing permission %q", name),
	}, nil
}

func requiredPermission(req CheckAccessRequest) (string, error) {
	qualifier := QualifierNone
	if EntityHasOwner(req.Entity) {
		qualifier = QualifierAny
		if req.OwnerID != "" && req.OwnerID == req.Subject.ID {
			qualifier = QualifierOwn
		}
	}
	return PermissionName(req.Action, qualifier, req.Entity)
}

// delegatedScopes strips the subject's implicit scope; whatever is
// left was delegated by a third party and participates in masking.
func delegatedScopes(subject SubjectRef, scopes []string) []string {
	implicit := ScopePerson
	if subject.Kind == SubjectKindClient {
		implicit = ScopeClient
	}
	out := []string{}
	for _, scope := range normalizeScopes(scopes) {
		if scope == implicit {
			continue
		}
		out = append(out, scope)
	}
	return out
}
