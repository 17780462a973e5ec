package unify

import (
	"github.com/goliatone/go-unify/core"
	"github.com/goliatone/go-unify/security"
)

type Config = core.Config

type Option = core.Option

type ConnectionService = core.ConnectionService

type ServiceDependencies = core.ServiceDependencies
type ConnectionLocker = core.ConnectionLocker
type RefreshBackoffScheduler = core.RefreshBackoffScheduler
type RefreshRunOptions = core.RefreshRunOptions
type RefreshRunResult = core.RefreshRunResult
type ProviderRegistry = core.ProviderRegistry
type Provider = core.Provider
type SecretProvider = core.SecretProvider

type CallbackRequest = core.CallbackRequest
type Connection = core.Connection
type Contact = core.Contact
type StoredContact = core.StoredContact
type FieldMapping = core.FieldMapping

var (
	WithLogger                  = core.WithLogger
	WithLoggerProvider          = core.WithLoggerProvider
	WithMetricsRecorder         = core.WithMetricsRecorder
	WithErrorFactory            = core.WithErrorFactory
	WithErrorMapper             = core.WithErrorMapper
	WithSecretProvider          = core.WithSecretProvider
	WithPersistenceClient       = core.WithPersistenceClient
	WithRepositoryFactory       = core.WithRepositoryFactory
	WithConfigProvider          = core.WithConfigProvider
	WithOptionsResolver         = core.WithOptionsResolver
	WithConnectionLocker        = core.WithConnectionLocker
	WithRefreshBackoffScheduler = core.WithRefreshBackoffScheduler
	WithRegistry                = core.WithRegistry
	WithConnectionStore         = core.WithConnectionStore
	WithSyncEventStore          = core.WithSyncEventStore
	WithWebhookNotifier         = core.WithWebhookNotifier
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// BuildRegistry assembles the immutable provider registry.
func BuildRegistry(providers ...core.Provider) (*core.ProviderRegistry, error) {
	return core.BuildRegistry(providers...)
}

// NewConnectionService builds the connection service, sealing tokens with the
// vault configured under cfg.Vault unless a caller option supplies its own
// secret provider. Construction fails when neither is available.
func NewConnectionService(cfg Config, opts ...Option) (*ConnectionService, error) {
	vaultOpts, err := vaultOptions(cfg.Vault)
	if err != nil {
		return nil, err
	}
	return core.NewConnectionService(cfg, append(vaultOpts, opts...)...)
}

func Setup(cfg Config, opts ...Option) (*ConnectionService, error) {
	return NewConnectionService(cfg, opts...)
}

// NewVaultSecretProvider builds the secret provider cfg describes: an AES-GCM
// app-key vault, wrapped in a failover pair while a key rotation keeps a
// previous key readable.
func NewVaultSecretProvider(cfg core.VaultConfig) (core.SecretProvider, error) {
	primaryOpts := []security.Option{}
	if cfg.KeyID != "" {
		primaryOpts = append(primaryOpts, security.WithKeyID(cfg.KeyID))
	}
	primary, err := security.NewAppKeySecretProviderFromString(cfg.Key, primaryOpts...)
	if err != nil {
		return nil, err
	}
	if cfg.FallbackKey == "" {
		return primary, nil
	}
	fallbackOpts := []security.Option{security.WithKeyID("app-key-previous")}
	if cfg.FallbackKeyID != "" {
		fallbackOpts = []security.Option{security.WithKeyID(cfg.FallbackKeyID)}
	}
	fallback, err := security.NewAppKeySecretProviderFromString(cfg.FallbackKey, fallbackOpts...)
	if err != nil {
		return nil, err
	}
	return security.NewFailoverSecretProvider(primary,
		security.WithFallbackSecretProvider(fallback),
		security.WithSecretProviderFailurePolicy(security.SecretProviderFailurePolicyFallback),
	)
}

func vaultOptions(cfg core.VaultConfig) ([]Option, error) {
	if !cfg.Configured() {
		return nil, nil
	}
	provider, err := NewVaultSecretProvider(cfg)
	if err != nil {
		return nil, err
	}
	return []Option{core.WithSecretProvider(provider)}, nil
}
