package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[CreateCodeMessage]            = (*CreateCodeCommand)(nil)
	_ gocmd.Commander[CreateTokenMessage]           = (*CreateTokenCommand)(nil)
	_ gocmd.Commander[RefreshTokenMessage]          = (*RefreshTokenCommand)(nil)
	_ gocmd.Commander[RevokeTokenMessage]           = (*RevokeTokenCommand)(nil)
	_ gocmd.Commander[RevokeTokensMessage]          = (*RevokeTokensCommand)(nil)
	_ gocmd.Commander[RegisterPersonMessage]        = (*RegisterPersonCommand)(nil)
	_ gocmd.Commander[VerifyEmailMessage]           = (*VerifyEmailCommand)(nil)
	_ gocmd.Commander[RegisterClientMessage]        = (*RegisterClientCommand)(nil)
	_ gocmd.Commander[AssignPersonRoleMessage]      = (*AssignPersonRoleCommand)(nil)
	_ gocmd.Commander[RemovePersonRoleMessage]      = (*RemovePersonRoleCommand)(nil)
	_ gocmd.Commander[AssignClientRoleMessage]      = (*AssignClientRoleCommand)(nil)
	_ gocmd.Commander[RemoveClientRoleMessage]      = (*RemoveClientRoleCommand)(nil)
	_ gocmd.Commander[PutRolePermissionsMessage]    = (*PutRolePermissionsCommand)(nil)
	_ gocmd.Commander[PutScopePermissionsMessage]   = (*PutScopePermissionsCommand)(nil)
	_ gocmd.Commander[RequestPasswordResetMessage]  = (*RequestPasswordResetCommand)(nil)
	_ gocmd.Commander[CompletePasswordResetMessage] = (*CompletePasswordResetCommand)(nil)
	_ gocmd.Commander[ReapRevokedGrantsMessage]     = (*ReapRevokedGrantsCommand)(nil)
)
