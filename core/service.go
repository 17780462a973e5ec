package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	gologger "github.com/goliatone/go-unify/adapters/gologger"
)

var ErrProviderNotFound = errors.New("core: provider not found")

// ConnectionService owns the provider connection lifecycle: OAuth code
// exchange, sealed token persistence, and refresh.
type ConnectionService struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	secretProvider    SecretProvider
	persistenceClient any
	repositoryFactory RepositoryStoreFactory
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	locker            ConnectionLocker
	refreshScheduler  RefreshBackoffScheduler
	registry          *ProviderRegistry
	connectionStore   ConnectionStore
	syncEventStore    SyncEventStore
	notifier          WebhookNotifier
	stores            StoreProvider
}

// ServiceDependencies exposes the resolved collaborators so downstream
// services (sync orchestrator, command handlers) can share them.
type ServiceDependencies struct {
	Logger           Logger
	LoggerProvider   LoggerProvider
	MetricsRecorder  MetricsRecorder
	ErrorFactory     ErrorFactory
	ErrorMapper      ErrorMapper
	SecretProvider   SecretProvider
	ConfigProvider   ConfigProvider
	OptionsResolver  OptionsResolver
	Locker           ConnectionLocker
	RefreshScheduler RefreshBackoffScheduler
	Registry         *ProviderRegistry
	ConnectionStore  ConnectionStore
	SyncEventStore   SyncEventStore
	Notifier         WebhookNotifier
	Stores           StoreProvider
}

func NewConnectionService(cfg Config, options ...Option) (*ConnectionService, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := gologger.Named("unify", builder.loggerProvider, builder.logger)

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
	if builder.locker == nil {
		builder.locker = NewMemoryConnectionLocker()
	}
	if builder.refreshScheduler == nil {
		builder.refreshScheduler = ExponentialBackoffScheduler{
			Initial: defaultRefreshInitialBackoff,
			Max:     defaultRefreshMaxBackoff,
		}
	}
	if builder.secretProvider == nil {
		return nil, mapBuildError(builder.errorMapper, fmt.Errorf("core: vault secret provider is required, tokens are never persisted in plaintext"))
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

	var stores StoreProvider
	if builder.repositoryFactory != nil {
		built, buildErr := builder.repositoryFactory.BuildStores(builder.persistenceClient)
		if buildErr != nil {
			return nil, mapBuildError(builder.errorMapper, buildErr)
		}
		stores = built
		if stores != nil {
			if builder.connectionStore == nil {
				builder.connectionStore = stores.ConnectionStore()
			}
			if builder.syncEventStore == nil {
				builder.syncEventStore = stores.SyncEventStore()
			}
		}
	}

	return &ConnectionService{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		secretProvider:    builder.secretProvider,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		locker:            builder.locker,
		refreshScheduler:  builder.refreshScheduler,
		registry:          builder.registry,
		connectionStore:   builder.connectionStore,
		syncEventStore:    builder.syncEventStore,
		notifier:          builder.notifier,
		stores:            stores,
	}, nil
}

func Setup(cfg Config, options ...Option) (*ConnectionService, error) {
	return NewConnectionService(cfg, options...)
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

func (s *ConnectionService) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *ConnectionService) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:           s.logger,
		LoggerProvider:   s.loggerProvider,
		MetricsRecorder:  s.metricsRecorder,
		ErrorFactory:     s.errorFactory,
		ErrorMapper:      s.errorMapper,
		SecretProvider:   s.secretProvider,
		ConfigProvider:   s.configProvider,
		OptionsResolver:  s.optionsResolver,
		Locker:           s.locker,
		RefreshScheduler: s.refreshScheduler,
		Registry:         s.registry,
		ConnectionStore:  s.connectionStore,
		SyncEventStore:   s.syncEventStore,
		Notifier:         s.notifier,
		Stores:           s.stores,
	}
}

// HandleCallback exchanges an authorization code and persists the sealed
// grant. The upsert for the (linked user, provider) pair runs under a lock so
// two racing callbacks cannot create duplicate connections.
func (s *ConnectionService) HandleCallback(ctx context.Context, req CallbackRequest) (connection Connection, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"provider_id":    req.ProviderSlug,
		"linked_user_id": req.LinkedUserID,
	}
	defer func() {
		if connection.ID != "" {
			fields["connection_id"] = connection.ID
		}
		s.observeOperation(ctx, startedAt, "handle_callback", err, fields)
	}()

	if err = validateCallbackRequest(req); err != nil {
		err = s.mapError(err)
		return Connection{}, err
	}
	if s.connectionStore == nil {
		err = s.mapError(fmt.Errorf("core: connection store is required"))
		return Connection{}, err
	}

	provider, err := s.resolveProvider(req.ProviderSlug)
	if err != nil {
		return Connection{}, err
	}

	grant, err := provider.ExchangeCode(ctx, req)
	if err != nil {
		err = s.mapError(err)
		return Connection{}, err
	}

	sealedAccess, err := s.seal(ctx, grant.AccessToken)
	if err != nil {
		err = s.mapError(err)
		return Connection{}, err
	}
	// A provider that never rotates refresh tokens returns an empty one;
	// it is stored empty, not null, so re-auth detection stays a string check.
	sealedRefresh := ""
	if strings.TrimSpace(grant.RefreshToken) != "" {
		sealedRefresh, err = s.seal(ctx, grant.RefreshToken)
		if err != nil {
			err = s.mapError(err)
			return Connection{}, err
		}
	}

	unlock := func() {}
	if s.locker != nil {
		key := "callback:" + strings.TrimSpace(req.LinkedUserID) + ":" + strings.TrimSpace(req.ProviderSlug)
		handle, lockErr := s.locker.Acquire(ctx, key, defaultRefreshLockTTL)
		if lockErr != nil {
			err = s.mapError(lockErr)
			return Connection{}, err
		}
		unlock = func() {
			_ = handle.Unlock(ctx)
		}
	}
	defer unlock()

	tokenType := strings.TrimSpace(grant.TokenType)
	if tokenType == "" {
		tokenType = "oauth"
	}
	connection, err = s.connectionStore.Upsert(ctx, UpsertConnectionInput{
		ProviderSlug: req.ProviderSlug,
		LinkedUserID: req.LinkedUserID,
		ProjectID:    req.ProjectID,
		TokenType:    tokenType,
		AccessToken:  sealedAccess,
		RefreshToken: sealedRefresh,
		ExpiresAt:    grant.ExpiresAt,
		AccountURL:   grant.AccountURL,
	})
	if err != nil {
		err = s.mapError(err)
		return Connection{}, err
	}
	return connection, nil
}

// Refresh mints a new access token for one connection under its lock.
func (s *ConnectionService) Refresh(ctx context.Context, connectionID string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"connection_id": connectionID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "refresh", err, fields)
	}()

	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		err = s.mapError(fmt.Errorf("core: connection id is required"))
		return err
	}

	unlock := func() {}
	if s.locker != nil {
		handle, lockErr := s.locker.Acquire(ctx, "refresh:"+connectionID, defaultRefreshLockTTL)
		if lockErr != nil {
			err = s.mapError(lockErr)
			return err
		}
		unlock = func() {
			_ = handle.Unlock(ctx)
		}
	}
	defer unlock()

	err = s.refreshLocked(ctx, connectionID)
	return err
}

// refreshLocked performs the provider refresh; callers hold the lock.
func (s *ConnectionService) refreshLocked(ctx context.Context, connectionID string) error {
	if s == nil || s.connectionStore == nil {
		return s.mapError(fmt.Errorf("core: connection store is required"))
	}
	connection, err := s.connectionStore.Get(ctx, connectionID)
	if err != nil {
		return s.mapError(err)
	}
	if strings.TrimSpace(connection.RefreshToken) == "" {
		return s.mapError(
			s.errorFactory("refresh token missing for connection "+connectionID, goerrors.CategoryAuth).
				WithTextCode(UnifyErrorRefreshTokenMissing).
				WithMetadata(map[string]any{"connection_id": connectionID}),
		)
	}

	provider, err := s.resolveProvider(connection.ProviderSlug)
	if err != nil {
		return err
	}

	refreshToken, err := s.unseal(ctx, connection.RefreshToken)
	if err != nil {
		return s.mapError(err)
	}

	grant, err := provider.RefreshGrant(ctx, RefreshRequest{
		ConnectionID: connectionID,
		RefreshToken: refreshToken,
		AccountURL:   connection.AccountURL,
	})
	if err != nil {
		return s.mapError(err)
	}

	sealedAccess, err := s.seal(ctx, grant.AccessToken)
	if err != nil {
		return s.mapError(err)
	}
	// Rotating providers hand back a new refresh token; the rest keep the
	// original, so only persist a replacement when one arrived.
	sealedRefresh := connection.RefreshToken
	if strings.TrimSpace(grant.RefreshToken) != "" {
		sealedRefresh, err = s.seal(ctx, grant.RefreshToken)
		if err != nil {
			return s.mapError(err)
		}
	}

	if err := s.connectionStore.UpdateTokens(ctx, UpdateTokensInput{
		ConnectionID: connectionID,
		AccessToken:  sealedAccess,
		RefreshToken: sealedRefresh,
		ExpiresAt:    grant.ExpiresAt,
	}); err != nil {
		return s.mapError(err)
	}
	if err := s.connectionStore.UpdateStatus(ctx, connectionID, ConnectionStatusValid, ""); err != nil {
		return s.mapError(err)
	}
	return nil
}

// EnsureFresh returns the connection with a usable access token, refreshing
// first when the stored one is expired.
func (s *ConnectionService) EnsureFresh(ctx context.Context, connectionID string) (Connection, error) {
	if s == nil || s.connectionStore == nil {
		return Connection{}, s.mapError(fmt.Errorf("core: connection store is required"))
	}
	connection, err := s.connectionStore.Get(ctx, connectionID)
	if err != nil {
		return Connection{}, s.mapError(err)
	}
	if !connection.IsExpired(time.Now().UTC()) && connection.Status == ConnectionStatusValid {
		return connection, nil
	}

	_ = s.connectionStore.UpdateStatus(ctx, connectionID, ConnectionStatusExpired, "access token expired")
	if _, err := s.RunRefreshWithRetry(ctx, connectionID, RefreshRunOptions{
		MaxAttempts: s.config.Refresh.MaxAttempts,
		LockTTL:     s.config.Refresh.LockTTL,
	}); err != nil {
		return Connection{}, err
	}
	connection, err = s.connectionStore.Get(ctx, connectionID)
	if err != nil {
		return Connection{}, s.mapError(err)
	}
	return connection, nil
}

func (s *ConnectionService) GetConnection(ctx context.Context, connectionID string) (Connection, error) {
	if s == nil || s.connectionStore == nil {
		return Connection{}, s.mapError(fmt.Errorf("core: connection store is required"))
	}
	connection, err := s.connectionStore.Get(ctx, strings.TrimSpace(connectionID))
	if err != nil {
		return Connection{}, s.mapError(err)
	}
	return connection, nil
}

// FindScoped returns the connection for a (linked user, provider) pair.
func (s *ConnectionService) FindScoped(ctx context.Context, linkedUserID, providerSlug string) (Connection, error) {
	if s == nil || s.connectionStore == nil {
		return Connection{}, s.mapError(fmt.Errorf("core: connection store is required"))
	}
	connection, found, err := s.connectionStore.FindScoped(ctx, strings.TrimSpace(linkedUserID), strings.TrimSpace(providerSlug))
	if err != nil {
		return Connection{}, s.mapError(err)
	}
	if !found {
		return Connection{}, s.mapError(
			s.errorFactory(
				fmt.Sprintf("no %s connection for linked user %s", strings.TrimSpace(providerSlug), strings.TrimSpace(linkedUserID)),
				goerrors.CategoryNotFound,
			).WithTextCode(UnifyErrorConnectionNotFound),
		)
	}
	return connection, nil
}

// UnsealAccessToken decrypts the stored access token for a provider call.
func (s *ConnectionService) UnsealAccessToken(ctx context.Context, connection Connection) (string, error) {
	token, err := s.unseal(ctx, connection.AccessToken)
	if err != nil {
		return "", s.mapError(err)
	}
	return token, nil
}

func (s *ConnectionService) Registry() *ProviderRegistry {
	if s == nil {
		return nil
	}
	return s.registry
}

func (s *ConnectionService) seal(ctx context.Context, plaintext string) (string, error) {
	if s == nil || s.secretProvider == nil {
		return "", fmt.Errorf("core: vault secret provider unavailable, refusing to persist plaintext token")
	}
	sealed, err := s.secretProvider.Encrypt(ctx, []byte(plaintext))
	if err != nil {
		return "", err
	}
	return string(sealed), nil
}

func (s *ConnectionService) unseal(ctx context.Context, ciphertext string) (string, error) {
	if s == nil || s.secretProvider == nil {
		return "", fmt.Errorf("core: vault secret provider unavailable, refusing to read sealed token")
	}
	plain, err := s.secretProvider.Decrypt(ctx, []byte(ciphertext))
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func (s *ConnectionService) resolveProvider(slug string) (Provider, error) {
	if s == nil || s.registry == nil {
		return nil, s.mapError(fmt.Errorf("core: registry unavailable"))
	}
	slug = strings.TrimSpace(slug)
	provider, ok := s.registry.Get(slug)
	if ok {
		return provider, nil
	}
	wrapped := s.errorFactory(
		fmt.Sprintf("provider %q is not registered", slug),
		goerrors.CategoryNotFound,
	).WithTextCode(UnifyErrorProviderNotFound)
	return nil, wrapped.WithMetadata(map[string]any{"provider_id": slug})
}

func (s *ConnectionService) mapError(err error) error {
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

func validateCallbackRequest(req CallbackRequest) error {
	if strings.TrimSpace(req.ProviderSlug) == "" {
		return fmt.Errorf("core: provider slug is required")
	}
	if strings.TrimSpace(req.LinkedUserID) == "" {
		return fmt.Errorf("core: linked user id is required")
	}
	if strings.TrimSpace(req.Code) == "" {
		return fmt.Errorf("core: authorization code is required")
	}
	return nil
}

func copyAnyMap(values map[string]any) map[string]any {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]any, len(values))
	for key, value := range values {
		out[key] = value
	}
	return out
}
