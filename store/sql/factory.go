package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	repository "github.com/goliatone/go-repository-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-unify/core"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db             *bun.DB
	attributeCache repositorycache.CacheService

	connectionStore      *ConnectionStore
	contactStore         *ContactStore
	attributeStore       *AttributeStore
	cachedAttributeStore *CachedAttributeStore
	valueStore           *ValueStore
	snapshotStore        *SnapshotStore
	syncEventStore       *SyncEventStore
	webhookEndpointStore *WebhookEndpointStore
}

type FactoryOption func(*RepositoryFactory)

// WithAttributeCache fronts the attribute store with the cache service, so
// mapping catalogue reads stop hitting the database on every sync.
func WithAttributeCache(cache repositorycache.CacheService) FactoryOption {
	return func(f *RepositoryFactory) {
		if f != nil && cache != nil {
			f.attributeCache = cache
		}
	}
}

func NewRepositoryFactory(opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(factory)
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
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
	if f.connectionStore != nil && f.contactStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) ConnectionStore() core.ConnectionStore {
	if f == nil {
		return nil
	}
	return f.connectionStore
}

func (f *RepositoryFactory) ContactStore() core.ContactStore {
	if f == nil {
		return nil
	}
	return f.contactStore
}

// AttributeStore returns the cached decorator when a cache service was
// configured, otherwise the plain store.
func (f *RepositoryFactory) AttributeStore() core.AttributeStore {
	if f == nil {
		return nil
	}
	if f.cachedAttributeStore != nil {
		return f.cachedAttributeStore
	}
	return f.attributeStore
}

func (f *RepositoryFactory) ValueStore() core.ValueStore {
	if f == nil {
		return nil
	}
	return f.valueStore
}

func (f *RepositoryFactory) SnapshotStore() core.SnapshotStore {
	if f == nil {
		return nil
	}
	return f.snapshotStore
}

func (f *RepositoryFactory) SyncEventStore() core.SyncEventStore {
	if f == nil {
		return nil
	}
	return f.syncEventStore
}

func (f *RepositoryFactory) WebhookEndpointStore() *WebhookEndpointStore {
	if f == nil {
		return nil
	}
	return f.webhookEndpointStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	connectionRepo := repository.NewRepository[*connectionRecord](f.db, connectionHandlers())
	if validator, ok := connectionRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid connection repository wiring: %w", err)
		}
	}

	contactRepo := repository.NewRepository[*contactRecord](f.db, contactHandlers())
	if validator, ok := contactRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid contact repository wiring: %w", err)
		}
	}
	emailRepo := repository.NewRepository[*contactEmailRecord](f.db, contactEmailHandlers())
	if validator, ok := emailRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid contact email repository wiring: %w", err)
		}
	}
	phoneRepo := repository.NewRepository[*contactPhoneRecord](f.db, contactPhoneHandlers())
	if validator, ok := phoneRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid contact phone repository wiring: %w", err)
		}
	}

	attributeRepo := repository.NewRepository[*attributeRecord](f.db, attributeHandlers())
	if validator, ok := attributeRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid attribute repository wiring: %w", err)
		}
	}
	valueRepo := repository.NewRepository[*valueRecord](f.db, valueHandlers())
	if validator, ok := valueRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid attribute value repository wiring: %w", err)
		}
	}
	snapshotRepo := repository.NewRepository[*remoteDataRecord](f.db, remoteDataHandlers())
	if validator, ok := snapshotRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid remote data repository wiring: %w", err)
		}
	}
	syncEventRepo := repository.NewRepository[*syncEventRecord](f.db, syncEventHandlers())
	if validator, ok := syncEventRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid sync event repository wiring: %w", err)
		}
	}

	f.connectionStore = &ConnectionStore{
		db:   f.db,
		repo: connectionRepo,
	}
	f.contactStore = &ContactStore{
		db:     f.db,
		repo:   contactRepo,
		emails: emailRepo,
		phones: phoneRepo,
	}
	f.attributeStore = &AttributeStore{
		db:   f.db,
		repo: attributeRepo,
	}
	if f.attributeCache != nil {
		cached, err := NewCachedAttributeStore(f.attributeStore, f.attributeCache)
		if err != nil {
			return err
		}
		f.cachedAttributeStore = cached
	}
	f.valueStore = &ValueStore{
		db:   f.db,
		repo: valueRepo,
	}
	f.snapshotStore = &SnapshotStore{
		db:   f.db,
		repo: snapshotRepo,
	}
	f.syncEventStore = &SyncEventStore{
		db:   f.db,
		repo: syncEventRepo,
	}
	webhookEndpointStore, err := NewWebhookEndpointStore(f.db)
	if err != nil {
		return err
	}
	f.webhookEndpointStore = webhookEndpointStore

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
