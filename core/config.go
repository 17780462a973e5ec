package core

import (
	"fmt"
	"strings"
	"time"
)

// ProviderCredentials holds one provider's OAuth client credentials.
type ProviderCredentials struct {
	ClientID     string `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret string `koanf:"client_secret" mapstructure:"client_secret"`
}

type OAuthConfig struct {
	// CallbackBaseURL is the frontend origin the redirect URI is rebuilt
	// from; the exchange must present the same URI the consent screen saw.
	CallbackBaseURL string                         `koanf:"callback_base_url" mapstructure:"callback_base_url"`
	Providers       map[string]ProviderCredentials `koanf:"providers" mapstructure:"providers"`
}

type RefreshConfig struct {
	LockTTL     time.Duration `koanf:"lock_ttl" mapstructure:"lock_ttl"`
	MaxAttempts int           `koanf:"max_attempts" mapstructure:"max_attempts"`
	BaseDelay   time.Duration `koanf:"base_delay" mapstructure:"base_delay"`
	MaxDelay    time.Duration `koanf:"max_delay" mapstructure:"max_delay"`
}

// VaultConfig carries the application key material the credential vault
// seals provider tokens with. FallbackKey keeps previously sealed tokens
// readable while a rotation is in flight.
type VaultConfig struct {
	Key           string `koanf:"key" mapstructure:"key"`
	KeyID         string `koanf:"key_id" mapstructure:"key_id"`
	FallbackKey   string `koanf:"fallback_key" mapstructure:"fallback_key"`
	FallbackKeyID string `koanf:"fallback_key_id" mapstructure:"fallback_key_id"`
}

func (c VaultConfig) Configured() bool {
	return strings.TrimSpace(c.Key) != ""
}

type WebhookConfig struct {
	MaxAttempts int           `koanf:"max_attempts" mapstructure:"max_attempts"`
	BaseDelay   time.Duration `koanf:"base_delay" mapstructure:"base_delay"`
	Timeout     time.Duration `koanf:"timeout" mapstructure:"timeout"`
}

type Config struct {
	ServiceName string        `koanf:"service_name" mapstructure:"service_name"`
	OAuth       OAuthConfig   `koanf:"oauth" mapstructure:"oauth"`
	Vault       VaultConfig   `koanf:"vault" mapstructure:"vault"`
	Refresh     RefreshConfig `koanf:"refresh" mapstructure:"refresh"`
	Webhook     WebhookConfig `koanf:"webhook" mapstructure:"webhook"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "unify",
		Refresh: RefreshConfig{
			LockTTL:     30 * time.Second,
			MaxAttempts: 3,
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    10 * time.Second,
		},
		Webhook: WebhookConfig{
			MaxAttempts: 5,
			BaseDelay:   time.Second,
			Timeout:     10 * time.Second,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Refresh.MaxAttempts < 1 {
		return fmt.Errorf("core: refresh.max_attempts must be at least 1")
	}
	for slug, creds := range c.OAuth.Providers {
		if strings.TrimSpace(slug) == "" {
			return fmt.Errorf("core: oauth provider slug is required")
		}
		if strings.TrimSpace(creds.ClientID) == "" {
			return fmt.Errorf("core: oauth.%s.client_id is required", slug)
		}
	}
	return nil
}

// RedirectURI rebuilds the redirect URI the frontend used during consent.
func (c OAuthConfig) RedirectURI() string {
	base := strings.TrimRight(strings.TrimSpace(c.CallbackBaseURL), "/")
	return base + "/connections/oauth/callback"
}

// CredentialsFor returns the configured client credentials for a provider.
func (c OAuthConfig) CredentialsFor(slug string) (ProviderCredentials, bool) {
	creds, ok := c.Providers[strings.TrimSpace(slug)]
	return creds, ok
}
