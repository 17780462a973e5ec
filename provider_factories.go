package unify

import (
	"github.com/goliatone/go-unify/core"
	"github.com/goliatone/go-unify/providers/zendesk"
	"github.com/goliatone/go-unify/providers/zoho"
)

func ZendeskProvider(cfg zendesk.Config) (core.Provider, error) {
	return zendesk.New(cfg)
}

func ZohoProvider(cfg zoho.Config) (core.Provider, error) {
	return zoho.New(cfg)
}

// BuildProviders constructs every provider that has credentials in the
// config, ready to hand to BuildRegistry.
func BuildProviders(cfg core.Config) ([]core.Provider, error) {
	redirectURI := cfg.OAuth.RedirectURI()
	providers := []core.Provider{}

	if creds, ok := cfg.OAuth.CredentialsFor(zendesk.Slug); ok {
		provider, err := zendesk.New(zendesk.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURI:  redirectURI,
		})
		if err != nil {
			return nil, err
		}
		providers = append(providers, provider)
	}

	if creds, ok := cfg.OAuth.CredentialsFor(zoho.Slug); ok {
		provider, err := zoho.New(zoho.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURI:  redirectURI,
		})
		if err != nil {
			return nil, err
		}
		providers = append(providers, provider)
	}

	return providers, nil
}
