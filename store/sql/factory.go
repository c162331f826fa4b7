package sqlstore

import (
	"fmt"

	"github.com/goliatone/go-access/core"
	persistence "github.com/goliatone/go-persistence-bun"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db *bun.DB

	grantStore         *GrantStore
	personStore        *PersonStore
	clientStore        *ClientStore
	accessStore        *AccessStore
	passwordResetStore *PasswordResetStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.grantStore != nil && f.personStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) GrantStore() core.GrantStore {
	if f == nil {
		return nil
	}
	return f.grantStore
}

func (f *RepositoryFactory) PersonStore() core.PersonStore {
	if f == nil {
		return nil
	}
	return f.personStore
}

func (f *RepositoryFactory) ClientStore() core.ClientStore {
	if f == nil {
		return nil
	}
	return f.clientStore
}

func (f *RepositoryFactory) AccessStore() core.AccessStore {
	if f == nil {
		return nil
	}
	return f.accessStore
}

func (f *RepositoryFactory) PasswordResetStore() core.PasswordResetStore {
	if f == nil {
		return nil
	}
	return f.passwordResetStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	grantRepo := repository.NewRepository[*tokenGrantRecord](f.db, tokenGrantHandlers())
	if validator, ok := grantRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid token grant repository wiring: %w", err)
		}
	}

	personRepo := repository.NewRepository[*personRecord](f.db, personHandlers())
	if validator, ok := personRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid person repository wiring: %w", err)
		}
	}

	clientRepo := repository.NewRepository[*clientRecord](f.db, clientHandlers())
	if validator, ok := clientRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid client repository wiring: %w", err)
		}
	}

	f.grantStore = &GrantStore{db: f.db, repo: grantRepo}
	f.personStore = &PersonStore{db: f.db, repo: personRepo}
	f.clientStore = &ClientStore{db: f.db, repo: clientRepo}

	accessStore, err := NewAccessStore(f.db)
	if err != nil {
		return err
	}
	f.accessStore = accessStore

	passwordResetStore, err := NewPasswordResetStore(f.db)
	if err != nil {
		return err
	}
	f.passwordResetStore = passwordResetStore

	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
