package sqlstore

import "github.com/goliatone/go-unify/core"

var (
	_ core.ConnectionStore        = (*ConnectionStore)(nil)
	_ core.ContactStore           = (*ContactStore)(nil)
	_ core.AttributeStore         = (*AttributeStore)(nil)
	_ core.ValueStore             = (*ValueStore)(nil)
	_ core.SnapshotStore          = (*SnapshotStore)(nil)
	_ core.SyncEventStore         = (*SyncEventStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
