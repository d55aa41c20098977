package sqlstore

import "github.com/goliatone/go-crosspost/core"

var (
	_ core.LinkStore              = (*LinkStore)(nil)
	_ core.LinkStore              = (*CachedLinkStore)(nil)
	_ core.RequestTokenStore      = (*RequestTokenStore)(nil)
	_ core.ExpiredTokenPurger     = (*RequestTokenStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
