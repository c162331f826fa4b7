package command

import (
	"context"
	"time"

	"github.com/goliatone/go-access/core"
	gocmd "github.com/goliatone/go-command"
)

// MutatingService is the slice of the access service the command
// handlers drive. Reads live in the query package.
type MutatingService interface {
	CreateCode(ctx context.Context, req core.CreateCodeRequest) (core.CreateCodeResult, error)
	CreateToken(ctx context.Context, req core.TokenRequest) (core.TokenResult, error)
	RefreshToken(ctx context.Context, refreshToken string) (core.TokenResult, error)
	RevokeToken(ctx context.Context, in core.RevokeGrantInput) (core.RevokeResult, error)
	RevokeTokens(ctx context.Context, ids []string) (core.RevokeResult, error)
	RegisterPerson(ctx context.Context, req core.RegisterPersonRequest) (core.Person, error)
	VerifyEmail(ctx context.Context, verificationToken string) (core.Person, error)
	RegisterClient(ctx context.Context, req core.RegisterClientRequest) (core.RegisteredClient, error)
	AssignPersonRole(ctx context.Context, personID string, roleName string) error
	RemovePersonRole(ctx context.Context, personID string, roleName string) error
	AssignClientRole(ctx context.Context, clientID string, roleName string) error
	RemoveClientRole(ctx context.Context, clientID string, roleName string) error
	PutRolePermissions(ctx context.Context, create []core.RolePermissionLink, remove []core.RolePermissionLink) error
	PutScopePermissions(ctx context.Context, create []core.ScopePermissionLink, remove []core.ScopePermissionLink) error
	RequestPasswordReset(ctx context.Context, in core.RequestPasswordResetInput) (core.PasswordResetRequest, error)
	CompletePasswordReset(ctx context.Context, req core.CompletePasswordResetRequest) error
	ReapRevokedGrants(ctx context.Context, cutoff time.Time) (int64, error)
	Config() core.Config
}

type CreateCodeCommand struct {
	service MutatingService
}

func NewCreateCodeCommand(service MutatingService) *CreateCodeCommand {
	return &CreateCodeCommand{service: service}
}

func (c *CreateCodeCommand) Execute(ctx context.Context, msg CreateCodeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: code service is required")
	}
	out, err := c.service.CreateCode(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CreateTokenCommand struct {
	service MutatingService
}

func NewCreateTokenCommand(service MutatingService) *CreateTokenCommand {
	return &CreateTokenCommand{service: service}
}

func (c *CreateTokenCommand) Execute(ctx context.Context, msg CreateTokenMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: token service is required")
	}
	out, err := c.service.CreateToken(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RefreshTokenCommand struct {
	service MutatingService
}

func NewRefreshTokenCommand(service MutatingService) *RefreshTokenCommand {
	return &RefreshTokenCommand{service: service}
}

func (c *RefreshTokenCommand) Execute(ctx context.Context, msg RefreshTokenMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: refresh service is required")
	}
	out, err := c.service.RefreshToken(ctx, msg.RefreshToken)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RevokeTokenCommand struct {
	service MutatingService
}

func NewRevokeTokenCommand(service MutatingService) *RevokeTokenCommand {
	return &RevokeTokenCommand{service: service}
}

func (c *RevokeTokenCommand) Execute(ctx context.Context, msg RevokeTokenMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: revoke service is required")
	}
	out, err := c.service.RevokeToken(ctx, core.RevokeGrantInput{
		ID:           msg.GrantID,
		RefreshToken: msg.RefreshToken,
	})
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RevokeTokensCommand struct {
	service MutatingService
}

func NewRevokeTokensCommand(service MutatingService) *RevokeTokensCommand {
	return &RevokeTokensCommand{service: service}
}

func (c *RevokeTokensCommand) Execute(ctx context.Context, msg RevokeTokensMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: revoke service is required")
	}
	out, err := c.service.RevokeTokens(ctx, msg.GrantIDs)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RegisterPersonCommand struct {
	service MutatingService
}

func NewRegisterPersonCommand(service MutatingService) *RegisterPersonCommand {
	return &RegisterPersonCommand{service: service}
}

func (c *RegisterPersonCommand) Execute(ctx context.Context, msg RegisterPersonMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: person service is required")
	}
	out, err := c.service.RegisterPerson(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type VerifyEmailCommand struct {
	service MutatingService
}

func NewVerifyEmailCommand(service MutatingService) *VerifyEmailCommand {
	return &VerifyEmailCommand{service: service}
}

func (c *VerifyEmailCommand) Execute(ctx context.Context, msg VerifyEmailMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: person service is required")
	}
	out, err := c.service.VerifyEmail(ctx, msg.VerificationToken)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RegisterClientCommand struct {
	service MutatingService
}

func NewRegisterClientCommand(service MutatingService) *RegisterClientCommand {
	return &RegisterClientCommand{service: service}
}

func (c *RegisterClientCommand) Execute(ctx context.Context, msg RegisterClientMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: client service is required")
	}
	out, err := c.service.RegisterClient(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type AssignPersonRoleCommand struct {
	service MutatingService
}

func NewAssignPersonRoleCommand(service MutatingService) *AssignPersonRoleCommand {
	return &AssignPersonRoleCommand{service: service}
}

func (c *AssignPersonRoleCommand) Execute(ctx context.Context, msg AssignPersonRoleMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: role service is required")
	}
	return c.service.AssignPersonRole(ctx, msg.PersonID, msg.RoleName)
}

type RemovePersonRoleCommand struct {
	service MutatingService
}

func NewRemovePersonRoleCommand(service MutatingService) *RemovePersonRoleCommand {
	return &RemovePersonRoleCommand{service: service}
}

func (c *RemovePersonRoleCommand) Execute(ctx context.Context, msg RemovePersonRoleMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: role service is required")
	}
	return c.service.RemovePersonRole(ctx, msg.PersonID, msg.RoleName)
}

type AssignClientRoleCommand struct {
	service MutatingService
}

func NewAssignClientRoleCommand(service MutatingService) *AssignClientRoleCommand {
	return &AssignClientRoleCommand{service: service}
}

func (c *AssignClientRoleCommand) Execute(ctx context.Context, msg AssignClientRoleMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: role service is required")
	}
	return c.service.AssignClientRole(ctx, msg.ClientID, msg.RoleName)
}

type RemoveClientRoleCommand struct {
	service MutatingService
}

func NewRemoveClientRoleCommand(service MutatingService) *RemoveClientRoleCommand {
	return &RemoveClientRoleCommand{service: service}
}

func (c *RemoveClientRoleCommand) Execute(ctx context.Context, msg RemoveClientRoleMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: role service is required")
	}
	return c.service.RemoveClientRole(ctx, msg.ClientID, msg.RoleName)
}

type PutRolePermissionsCommand struct {
	service MutatingService
}

func NewPutRolePermissionsCommand(service MutatingService) *PutRolePermissionsCommand {
	return &PutRolePermissionsCommand{service: service}
}

func (c *PutRolePermissionsCommand) Execute(ctx context.Context, msg PutRolePermissionsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: permission service is required")
	}
	return c.service.PutRolePermissions(ctx, msg.Create, msg.Remove)
}

type PutScopePermissionsCommand struct {
	service MutatingService
}

func NewPutScopePermissionsCommand(service MutatingService) *PutScopePermissionsCommand {
	return &PutScopePermissionsCommand{service: service}
}

func (c *PutScopePermissionsCommand) Execute(ctx context.Context, msg PutScopePermissionsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: permission service is required")
	}
	return c.service.PutScopePermissions(ctx, msg.Create, msg.Remove)
}

type RequestPasswordResetCommand struct {
	service MutatingService
}

func NewRequestPasswordResetCommand(service MutatingService) *RequestPasswordResetCommand {
	return &RequestPasswordResetCommand{service: service}
}

func (c *RequestPasswordResetCommand) Execute(ctx context.Context, msg RequestPasswordResetMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: password reset service is required")
	}
	out, err := c.service.RequestPasswordReset(ctx, core.RequestPasswordResetInput{Email: msg.Email})
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CompletePasswordResetCommand struct {
	service MutatingService
}

func NewCompletePasswordResetCommand(service MutatingService) *CompletePasswordResetCommand {
	return &CompletePasswordResetCommand{service: service}
}

func (c *CompletePasswordResetCommand) Execute(ctx context.Context, msg CompletePasswordResetMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: password reset service is required")
	}
	return c.service.CompletePasswordReset(ctx, msg.Request)
}

type ReapRevokedGrantsCommand struct {
	service MutatingService
}

func NewReapRevokedGrantsCommand(service MutatingService) *ReapRevokedGrantsCommand {
	return &ReapRevokedGrantsCommand{service: service}
}

func (c *ReapRevokedGrantsCommand) Execute(ctx context.Context, msg ReapRevokedGrantsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: reaper service is required")
	}
	cutoff := time.Unix(msg.Cutoff, 0).UTC()
	if msg.Cutoff == 0 {
		retention := c.service.Config().Reaper.RetentionDays
		cutoff = time.Now().UTC().AddDate(0, 0, -retention)
	}
	removed, err := c.service.ReapRevokedGrants(ctx, cutoff)
	if err != nil {
		return err
	}
	storeResult(ctx, removed)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
