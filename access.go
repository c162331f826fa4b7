package access

import "github.com/goliatone/go-access/core"

type Config = core.Config

type KeysConfig = core.KeysConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type GrantStore = core.GrantStore
type PersonStore = core.PersonStore
type ClientStore = core.ClientStore
type AccessStore = core.AccessStore
type PasswordResetStore = core.PasswordResetStore
type StoreProvider = core.StoreProvider

type TokenCodec = core.TokenCodec
type CredentialVerifier = core.CredentialVerifier
type PasswordHasher = core.PasswordHasher
type PermissionResolver = core.PermissionResolver
type PermissionSet = core.PermissionSet

type Person = core.Person
type Client = core.Client
type TokenGrant = core.TokenGrant
type SubjectRef = core.SubjectRef
type AccessClaims = core.AccessClaims

type CreateCodeRequest = core.CreateCodeRequest
type TokenRequest = core.TokenRequest
type TokenResult = core.TokenResult
type RevokeGrantInput = core.RevokeGrantInput
type RevokeResult = core.RevokeResult
type WhoAmIRequest = core.WhoAmIRequest
type Identity = core.Identity
type CheckAccessRequest = core.CheckAccessRequest
type AccessDecision = core.AccessDecision
type RegisterPersonRequest = core.RegisterPersonRequest
type RegisterClientRequest = core.RegisterClientRequest
type RegisteredClient = core.RegisteredClient

var (
	WithLogger             = core.WithLogger
	WithLoggerProvider     = core.WithLoggerProvider
	WithMetricsRecorder    = core.WithMetricsRecorder
	WithErrorFactory       = core.WithErrorFactory
	WithErrorMapper        = core.WithErrorMapper
	WithPersistenceClient  = core.WithPersistenceClient
	WithRepositoryFactory  = core.WithRepositoryFactory
	WithConfigProvider     = core.WithConfigProvider
	WithOptionsResolver    = core.WithOptionsResolver
	WithGrantStore         = core.WithGrantStore
	WithPersonStore        = core.WithPersonStore
	WithClientStore        = core.WithClientStore
	WithAccessStore        = core.WithAccessStore
	WithPasswordResetStore = core.WithPasswordResetStore
	WithTokenCodec         = core.WithTokenCodec
	WithCredentialVerifier = core.WithCredentialVerifier
	WithPasswordHasher     = core.WithPasswordHasher
	WithJobEnqueuer        = core.WithJobEnqueuer
	WithPermissionResolver = core.WithPermissionResolver
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
