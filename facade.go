package access

import (
	"fmt"

	accesscommand "github.com/goliatone/go-access/command"
	"github.com/goliatone/go-access/core"
	accessquery "github.com/goliatone/go-access/query"
)

// CommandQueryService is the full surface the facade wires handlers
// around. *core.Service satisfies it.
type CommandQueryService interface {
	accesscommand.MutatingService
	accessquery.IdentityReader
	accessquery.AccessReader
	accessquery.GrantReader
	accessquery.PasswordResetReader
}

type Commands struct {
	CreateCode            *accesscommand.CreateCodeCommand
	CreateToken           *accesscommand.CreateTokenCommand
	RefreshToken          *accesscommand.RefreshTokenCommand
	RevokeToken           *accesscommand.RevokeTokenCommand
	RevokeTokens          *accesscommand.RevokeTokensCommand
	RegisterPerson        *accesscommand.RegisterPersonCommand
	VerifyEmail           *accesscommand.VerifyEmailCommand
	RegisterClient        *accesscommand.RegisterClientCommand
	AssignPersonRole      *accesscommand.AssignPersonRoleCommand
	RemovePersonRole      *accesscommand.RemovePersonRoleCommand
	AssignClientRole      *accesscommand.AssignClientRoleCommand
	RemoveClientRole      *accesscommand.RemoveClientRoleCommand
	PutRolePermissions    *accesscommand.PutRolePermissionsCommand
	PutScopePermissions   *accesscommand.PutScopePermissionsCommand
	RequestPasswordReset  *accesscommand.RequestPasswordResetCommand
	CompletePasswordReset *accesscommand.CompletePasswordResetCommand
	ReapRevokedGrants     *accesscommand.ReapRevokedGrantsCommand
}

type Queries struct {
	WhoAmI               *accessquery.WhoAmIQuery
	CheckAccess          *accessquery.CheckAccessQuery
	ListGrants           *accessquery.ListGrantsQuery
	EffectivePermissions *accessquery.EffectivePermissionsQuery
	VerifyPasswordReset  *accessquery.VerifyPasswordResetQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	permissionReader accessquery.PermissionReader
}

// WithPermissionReader overrides the permission resolution source,
// typically to route effective permission reads through a cache.
func WithPermissionReader(reader accessquery.PermissionReader) FacadeOption {
	return func(options *facadeOptions) {
		options.permissionReader = reader
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("access: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	reader := cfg.permissionReader
	if reader == nil {
		reader = resolvePermissionReader(service)
	}
	if reader == nil {
		return nil, fmt.Errorf("access: permission reader is required")
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		CreateCode:            accesscommand.NewCreateCodeCommand(service),
		CreateToken:           accesscommand.NewCreateTokenCommand(service),
		RefreshToken:          accesscommand.NewRefreshTokenCommand(service),
		RevokeToken:           accesscommand.NewRevokeTokenCommand(service),
		RevokeTokens:          accesscommand.NewRevokeTokensCommand(service),
		RegisterPerson:        accesscommand.NewRegisterPersonCommand(service),
		VerifyEmail:           accesscommand.NewVerifyEmailCommand(service),
		RegisterClient:        accesscommand.NewRegisterClientCommand(service),
		AssignPersonRole:      accesscommand.NewAssignPersonRoleCommand(service),
		RemovePersonRole:      accesscommand.NewRemovePersonRoleCommand(service),
		AssignClientRole:      accesscommand.NewAssignClientRoleCommand(service),
		RemoveClientRole:      accesscommand.NewRemoveClientRoleCommand(service),
		PutRolePermissions:    accesscommand.NewPutRolePermissionsCommand(service),
		PutScopePermissions:   accesscommand.NewPutScopePermissionsCommand(service),
		RequestPasswordReset:  accesscommand.NewRequestPasswordResetCommand(service),
		CompletePasswordReset: accesscommand.NewCompletePasswordResetCommand(service),
		ReapRevokedGrants:     accesscommand.NewReapRevokedGrantsCommand(service),
	}
	facade.queries = Queries{
		WhoAmI:               accessquery.NewWhoAmIQuery(service),
		CheckAccess:          accessquery.NewCheckAccessQuery(service),
		ListGrants:           accessquery.NewListGrantsQuery(service),
		EffectivePermissions: accessquery.NewEffectivePermissionsQuery(reader),
		VerifyPasswordReset:  accessquery.NewVerifyPasswordResetQuery(service),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

func resolvePermissionReader(service CommandQueryService) accessquery.PermissionReader {
	if reader, ok := service.(accessquery.PermissionReader); ok {
		return reader
	}
	provider, ok := service.(interface {
		Resolver() *core.PermissionResolver
	})
	if !ok {
		return nil
	}
	resolver := provider.Resolver()
	if resolver == nil {
		return nil
	}
	return resolver
}
