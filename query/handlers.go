package query

import (
	"context"

	"github.com/goliatone/go-access/core"
)

// IdentityReader resolves the principal behind a subject id or an
// outstanding refresh token.
type IdentityReader interface {
	WhoAmI(ctx context.Context, req core.WhoAmIRequest) (core.Identity, error)
}

type AccessReader interface {
	CheckAccess(ctx context.Context, req core.CheckAccessRequest) (core.AccessDecision, error)
}

type GrantReader interface {
	ListGrants(ctx context.Context, filter core.GrantFilter) (core.GrantPage, error)
}

type PermissionReader interface {
	EffectivePermissions(ctx context.Context, subject core.SubjectRef, scopes []string) (core.PermissionSet, error)
}

type PasswordResetReader interface {
	VerifyPasswordReset(ctx context.Context, token string) (core.PasswordResetRequest, error)
}

type WhoAmIQuery struct {
	reader IdentityReader
}

func NewWhoAmIQuery(reader IdentityReader) *WhoAmIQuery {
	return &WhoAmIQuery{reader: reader}
}

func (q *WhoAmIQuery) Query(ctx context.Context, msg WhoAmIMessage) (core.Identity, error) {
	if q == nil || q.reader == nil {
		return core.Identity{}, queryDependencyError("query: identity reader is required")
	}
	return q.reader.WhoAmI(ctx, msg.Request)
}

type CheckAccessQuery struct {
	reader AccessReader
}

func NewCheckAccessQuery(reader AccessReader) *CheckAccessQuery {
	return &CheckAccessQuery{reader: reader}
}

func (q *CheckAccessQuery) Query(ctx context.Context, msg CheckAccessMessage) (core.AccessDecision, error) {
	if q == nil || q.reader == nil {
		return core.AccessDecision{}, queryDependencyError("query: access reader is required")
	}
	return q.reader.CheckAccess(ctx, msg.Request)
}

type ListGrantsQuery struct {
	reader GrantReader
}

func NewListGrantsQuery(reader GrantReader) *ListGrantsQuery {
	return &ListGrantsQuery{reader: reader}
}

func (q *ListGrantsQuery) Query(ctx context.Context, msg ListGrantsMessage) (core.GrantPage, error) {
	if q == nil || q.reader == nil {
		return core.GrantPage{}, queryDependencyError("query: grant reader is required")
	}
	return q.reader.ListGrants(ctx, msg.Filter)
}

type EffectivePermissionsQuery struct {
	reader PermissionReader
}

func NewEffectivePermissionsQuery(reader PermissionReader) *EffectivePermissionsQuery {
	return &EffectivePermissionsQuery{reader: reader}
}

func (q *EffectivePermissionsQuery) Query(
	ctx context.Context,
	msg EffectivePermissionsMessage,
) (core.PermissionSet, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: permission reader is required")
	}
	return q.reader.EffectivePermissions(ctx, msg.Subject, msg.Scopes)
}

type VerifyPasswordResetQuery struct {
	reader PasswordResetReader
}

func NewVerifyPasswordResetQuery(reader PasswordResetReader) *VerifyPasswordResetQuery {
	return &VerifyPasswordResetQuery{reader: reader}
}

func (q *VerifyPasswordResetQuery) Query(
	ctx context.Context,
	msg VerifyPasswordResetMessage,
) (core.PasswordResetRequest, error) {
	if q == nil || q.reader == nil {
		return core.PasswordResetRequest{}, queryDependencyError("query: password reset reader is required")
	}
	return q.reader.VerifyPasswordReset(ctx, msg.Token)
}
