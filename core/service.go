package core

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service is the access control engine: token grant lifecycle on one
// side, permission resolution on the other. Construct it with
// NewService and the functional options; everything not provided falls
// back to a safe default or stays nil and disables the operations that
// need it.
type Service struct {
	config             Config
	logger             Logger
	loggerProvider     LoggerProvider
	metricsRecorder    MetricsRecorder
	errorFactory       ErrorFactory
	errorMapper        ErrorMapper
	persistenceClient  any
	repositoryFactory  any
	configProvider     ConfigProvider
	optionsResolver    OptionsResolver
	grantStore         GrantStore
	personStore        PersonStore
	clientStore        ClientStore
	accessStore        AccessStore
	passwordResetStore PasswordResetStore
	tokenCodec         TokenCodec
	credentialVerifier CredentialVerifier
	passwordHasher     PasswordHasher
	jobEnqueuer        JobEnqueuer
	resolver           *PermissionResolver
}

type ServiceDependencies struct {
	Logger             Logger
	LoggerProvider     LoggerProvider
	MetricsRecorder    MetricsRecorder
	ErrorFactory       ErrorFactory
	ErrorMapper        ErrorMapper
	PersistenceClient  any
	RepositoryFactory  any
	ConfigProvider     ConfigProvider
	OptionsResolver    OptionsResolver
	GrantStore         GrantStore
	PersonStore        PersonStore
	ClientStore        ClientStore
	AccessStore        AccessStore
	PasswordResetStore PasswordResetStore
	TokenCodec         TokenCodec
	CredentialVerifier CredentialVerifier
	PasswordHasher     PasswordHasher
	JobEnqueuer        JobEnqueuer
	Resolver           *PermissionResolver
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("access", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("access"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.passwordHasher == nil {
		builder.passwordHasher = BcryptHasher{}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if storesMissing(&builder) && builder.repositoryFactory != nil {
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			stores, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			if stores != nil {
				adoptStores(&builder, stores)
			}
		} else if stores, ok := builder.repositoryFactory.(StoreProvider); ok {
			adoptStores(&builder, stores)
		}
	}

	if builder.credentialVerifier == nil && builder.personStore != nil && builder.clientStore != nil {
		builder.credentialVerifier = NewStoreCredentialVerifier(
			builder.personStore,
			builder.clientStore,
			builder.passwordHasher,
		)
	}
	if builder.resolver == nil && builder.accessStore != nil {
		builder.resolver = NewPermissionResolver(builder.accessStore)
	}

	return &Service{
		config:             finalConfig,
		logger:             logger,
		loggerProvider:     provider,
		metricsRecorder:    builder.metricsRecorder,
		errorFactory:       builder.errorFactory,
		errorMapper:        builder.errorMapper,
		persistenceClient:  builder.persistenceClient,
		repositoryFactory:  builder.repositoryFactory,
		configProvider:     builder.configProvider,
		optionsResolver:    builder.optionsResolver,
		grantStore:         builder.grantStore,
		personStore:        builder.personStore,
		clientStore:        builder.clientStore,
		accessStore:        builder.accessStore,
		passwordResetStore: builder.passwordResetStore,
		tokenCodec:         builder.tokenCodec,
		credentialVerifier: builder.credentialVerifier,
		passwordHasher:     builder.passwordHasher,
		jobEnqueuer:        builder.jobEnqueuer,
		resolver:           builder.resolver,
	}, nil
}

func Setup(cfg Config, options ...Option) (*Service, error) {
	return NewService(cfg, options...)
}

func storesMissing(builder *serviceBuilder) bool {
	return builder.grantStore == nil ||
		builder.personStore == nil ||
		builder.clientStore == nil ||
		builder.accessStore == nil ||
		builder.passwordResetStore == nil
}

func adoptStores(builder *serviceBuilder, stores StoreProvider) {
	if builder.grantStore == nil {
		builder.grantStore = stores.GrantStore()
	}
	if builder.personStore == nil {
		builder.personStore = stores.PersonStore()
	}
	if builder.clientStore == nil {
		builder.clientStore = stores.ClientStore()
	}
	if builder.accessStore == nil {
		builder.accessStore = stores.AccessStore()
	}
	if builder.passwordResetStore == nil {
		builder.passwordResetStore = stores.PasswordResetStore()
	}
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Resolver() *PermissionResolver {
	if s == nil {
		return nil
	}
	return s.resolver
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:             s.logger,
		LoggerProvider:     s.loggerProvider,
		MetricsRecorder:    s.metricsRecorder,
		ErrorFactory:       s.errorFactory,
		ErrorMapper:        s.errorMapper,
		PersistenceClient:  s.persistenceClient,
		RepositoryFactory:  s.repositoryFactory,
		ConfigProvider:     s.configProvider,
		OptionsResolver:    s.optionsResolver,
		GrantStore:         s.grantStore,
		PersonStore:        s.personStore,
		ClientStore:        s.clientStore,
		AccessStore:        s.accessStore,
		PasswordResetStore: s.passwordResetStore,
		TokenCodec:         s.tokenCodec,
		CredentialVerifier: s.credentialVerifier,
		PasswordHasher:     s.passwordHasher,
		JobEnqueuer:        s.jobEnqueuer,
		Resolver:           s.resolver,
	}
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}
