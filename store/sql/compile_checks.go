package sqlstore

import "github.com/goliatone/go-access/core"

var (
	_ core.GrantStore             = (*GrantStore)(nil)
	_ core.PersonStore            = (*PersonStore)(nil)
	_ core.ClientStore            = (*ClientStore)(nil)
	_ core.AccessStore            = (*AccessStore)(nil)
	_ core.PasswordResetStore     = (*PasswordResetStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
