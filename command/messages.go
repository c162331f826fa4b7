package command

import (
	"strings"

	"github.com/goliatone/go-access/core"
)

const (
	TypeCreateCode            = "access.command.code.create"
	TypeCreateToken           = "access.command.token.create"
	TypeRefreshToken          = "access.command.token.refresh"
	TypeRevokeToken           = "access.command.token.revoke"
	TypeRevokeTokens          = "access.command.token.revoke_many"
	TypeRegisterPerson        = "access.command.person.register"
	TypeVerifyEmail           = "access.command.person.verify_email"
	TypeRegisterClient        = "access.command.client.register"
	TypeAssignPersonRole      = "access.command.person_role.assign"
	TypeRemovePersonRole      = "access.command.person_role.remove"
	TypeAssignClientRole      = "access.command.client_role.assign"
	TypeRemoveClientRole      = "access.command.client_role.remove"
	TypePutRolePermissions    = "access.command.role_permissions.put"
	TypePutScopePermissions   = "access.command.scope_permissions.put"
	TypeRequestPasswordReset  = "access.command.password_reset.request"
	TypeCompletePasswordReset = "access.command.password_reset.complete"
	TypeReapRevokedGrants     = "access.command.grants.reap"
)

type CreateCodeMessage struct {
	Request core.CreateCodeRequest
}

func (CreateCodeMessage) Type() string { return TypeCreateCode }

func (m CreateCodeMessage) Validate() error {
	if strings.TrimSpace(m.Request.ClientID) == "" {
		return commandInvalidInputError("command: client id is required")
	}
	if strings.TrimSpace(m.Request.PersonID) == "" {
		return commandInvalidInputError("command: person id is required")
	}
	if strings.TrimSpace(m.Request.RedirectURL) == "" {
		return commandInvalidInputError("command: redirect url is required")
	}
	return nil
}

type CreateTokenMessage struct {
	Request core.TokenRequest
}

func (CreateTokenMessage) Type() string { return TypeCreateToken }

func (m CreateTokenMessage) Validate() error {
	if strings.TrimSpace(string(m.Request.GrantType)) == "" {
		return commandInvalidInputError("command: grant type is required")
	}
	if strings.TrimSpace(m.Request.ClientID) == "" {
		return commandInvalidInputError("command: client id is required")
	}
	return nil
}

type RefreshTokenMessage struct {
	RefreshToken string
}

func (RefreshTokenMessage) Type() string { return TypeRefreshToken }

func (m RefreshTokenMessage) Validate() error {
	if strings.TrimSpace(m.RefreshToken) == "" {
		return commandInvalidInputError("command: refresh token is required")
	}
	return nil
}

type RevokeTokenMessage struct {
	GrantID      string
	RefreshToken string
}

func (RevokeTokenMessage) Type() string { return TypeRevokeToken }

func (m RevokeTokenMessage) Validate() error {
	if strings.TrimSpace(m.GrantID) == "" && strings.TrimSpace(m.RefreshToken) == "" {
		return commandInvalidInputError("command: grant id or refresh token is required")
	}
	return nil
}

type RevokeTokensMessage struct {
	GrantIDs []string
}

func (RevokeTokensMessage) Type() string { return TypeRevokeTokens }

func (m RevokeTokensMessage) Validate() error {
	if len(m.GrantIDs) == 0 {
		return commandInvalidInputError("command: grant ids are required")
	}
	return nil
}

type RegisterPersonMessage struct {
	Request core.RegisterPersonRequest
}

func (RegisterPersonMessage) Type() string { return TypeRegisterPerson }

func (m RegisterPersonMessage) Validate() error {
	if strings.TrimSpace(m.Request.Username) == "" {
		return commandInvalidInputError("command: username is required")
	}
	if strings.TrimSpace(m.Request.Email) == "" {
		return commandInvalidInputError("command: email is required")
	}
	if m.Request.Password == "" {
		return commandInvalidInputError("command: password is required")
	}
	return nil
}

type VerifyEmailMessage struct {
	VerificationToken string
}

func (VerifyEmailMessage) Type() string { return TypeVerifyEmail }

func (m VerifyEmailMessage) Validate() error {
	if strings.TrimSpace(m.VerificationToken) == "" {
		return commandInvalidInputError("command: verification token is required")
	}
	return nil
}

type RegisterClientMessage struct {
	Request core.RegisterClientRequest
}

func (RegisterClientMessage) Type() string { return TypeRegisterClient }

func (m RegisterClientMessage) Validate() error {
	if strings.TrimSpace(m.Request.Label) == "" {
		return commandInvalidInputError("command: label is required")
	}
	return nil
}

type AssignPersonRoleMessage struct {
	PersonID string
	RoleName string
}

func (AssignPersonRoleMessage) Type() string { return TypeAssignPersonRole }

func (m AssignPersonRoleMessage) Validate() error {
	return validateRoleLink("person", m.PersonID, m.RoleName)
}

type RemovePersonRoleMessage struct {
	PersonID string
	RoleName string
}

func (RemovePersonRoleMessage) Type() string { return TypeRemovePersonRole }

func (m RemovePersonRoleMessage) Validate() error {
	return validateRoleLink("person", m.PersonID, m.RoleName)
}

type AssignClientRoleMessage struct {
	ClientID string
	RoleName string
}

func (AssignClientRoleMessage) Type() string { return TypeAssignClientRole }

func (m AssignClientRoleMessage) Validate() error {
	return validateRoleLink("client", m.ClientID, m.RoleName)
}

type RemoveClientRoleMessage struct {
	ClientID string
	RoleName string
}

func (RemoveClientRoleMessage) Type() string { return TypeRemoveClientRole }

func (m RemoveClientRoleMessage) Validate() error {
	return validateRoleLink("client", m.ClientID, m.RoleName)
}

type PutRolePermissionsMessage struct {
	Create []core.RolePermissionLink
	Remove []core.RolePermissionLink
}

func (PutRolePermissionsMessage) Type() string { return TypePutRolePermissions }

func (m PutRolePermissionsMessage) Validate() error {
	if len(m.Create) == 0 && len(m.Remove) == 0 {
		return commandInvalidInputError("command: at least one link is required")
	}
	return nil
}

type PutScopePermissionsMessage struct {
	Create []core.ScopePermissionLink
	Remove []core.ScopePermissionLink
}

func (PutScopePermissionsMessage) Type() string { return TypePutScopePermissions }

func (m PutScopePermissionsMessage) Validate() error {
	if len(m.Create) == 0 && len(m.Remove) == 0 {
		return commandInvalidInputError("command: at least one link is required")
	}
	return nil
}

type RequestPasswordResetMessage struct {
	Email string
}

func (RequestPasswordResetMessage) Type() string { return TypeRequestPasswordReset }

func (m RequestPasswordResetMessage) Validate() error {
	if strings.TrimSpace(m.Email) == "" {
		return commandInvalidInputError("command: email is required")
	}
	return nil
}

type CompletePasswordResetMessage struct {
	Request core.CompletePasswordResetRequest
}

func (CompletePasswordResetMessage) Type() string { return TypeCompletePasswordReset }

func (m CompletePasswordResetMessage) Validate() error {
	if strings.TrimSpace(m.Request.Token) == "" {
		return commandInvalidInputError("command: reset token is required")
	}
	if m.Request.Password == "" {
		return commandInvalidInputError("command: password is required")
	}
	return nil
}

// ReapRevokedGrantsMessage deletes revoked grants whose revocation
// predates the cutoff. A zero cutoff lets the handler derive it from
// the configured retention window.
type ReapRevokedGrantsMessage struct {
	Cutoff int64
}

func (ReapRevokedGrantsMessage) Type() string { return TypeReapRevokedGrants }

func (ReapRevokedGrantsMessage) Validate() error { return nil }

func validateRoleLink(kind string, subjectID string, roleName string) error {
	if strings.TrimSpace(subjectID) == "" {
		return commandInvalidInputError("command: %s id is required", kind)
	}
	if strings.TrimSpace(roleName) == "" {
		return commandInvalidInputError("command: role name is required")
	}
	return nil
}
