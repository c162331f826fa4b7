package access

import (
	"github.com/goliatone/go-access/core"
	"github.com/goliatone/go-access/security"
	sqlstore "github.com/goliatone/go-access/store/sql"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

// SQLStores builds the bun backed store provider over an established
// database handle.
func SQLStores(db *bun.DB) (core.StoreProvider, error) {
	factory, err := sqlstore.NewRepositoryFactoryFromDB(db)
	if err != nil {
		return nil, err
	}
	return factory, nil
}

// SQLStoreFactory exposes the raw factory when a caller needs the
// individual stores rather than the bundled provider.
func SQLStoreFactory(db *bun.DB) (*sqlstore.RepositoryFactory, error) {
	return sqlstore.NewRepositoryFactoryFromDB(db)
}

// CachedAccessStore decorates permission resolution with the shared
// repository cache so hot checks skip the role join entirely.
func CachedAccessStore(base core.AccessStore, cache repositorycache.CacheService) (*sqlstore.CachedAccessStore, error) {
	return sqlstore.NewCachedAccessStore(base, cache)
}

// PEMTokenCodec loads RSA key material from config and returns the
// RS256 codec the engine signs access tokens with.
func PEMTokenCodec(cfg core.KeysConfig) (core.TokenCodec, error) {
	provider, err := security.NewKeyProvider(cfg)
	if err != nil {
		return nil, err
	}
	return provider.TokenCodec()
}

// BcryptHasher returns the default password hasher used for person
// passwords and client secrets.
func BcryptHasher() core.PasswordHasher {
	return core.BcryptHasher{}
}

// StoreCredentialVerifier wires the default credential verifier over
// the person and client stores.
func StoreCredentialVerifier(people core.PersonStore, clients core.ClientStore, hasher core.PasswordHasher) core.CredentialVerifier {
	return core.NewStoreCredentialVerifier(people, clients, hasher)
}
