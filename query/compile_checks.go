package query

import (
	"github.com/goliatone/go-access/core"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Querier[WhoAmIMessage, core.Identity]                          = (*WhoAmIQuery)(nil)
	_ gocmd.Querier[CheckAccessMessage, core.AccessDecision]               = (*CheckAccessQuery)(nil)
	_ gocmd.Querier[ListGrantsMessage, core.GrantPage]                     = (*ListGrantsQuery)(nil)
	_ gocmd.Querier[EffectivePermissionsMessage, core.PermissionSet]       = (*EffectivePermissionsQuery)(nil)
	_ gocmd.Querier[VerifyPasswordResetMessage, core.PasswordResetRequest] = (*VerifyPasswordResetQuery)(nil)
)

// The core service and resolver satisfy the reader slices directly.
var (
	_ IdentityReader      = (*core.Service)(nil)
	_ AccessReader        = (*core.Service)(nil)
	_ GrantReader         = (*core.Service)(nil)
	_ PasswordResetReader = (*core.Service)(nil)
	_ PermissionReader    = (*core.PermissionResolver)(nil)
)
