package core

import (
	"fmt"
	"sort"
	"strings"
)

// ProviderRegistry is an immutable lookup of providers by slug. It is built
// once at startup and passed explicitly to the services that need it; there
// is no registration after construction, so lookups need no locking.
type ProviderRegistry struct {
	providers map[string]Provider
	slugs     []string
}

// BuildRegistry freezes the given providers into a registry. A nil provider,
// an empty slug, or a duplicate slug is a construction error.
func BuildRegistry(providers ...Provider) (*ProviderRegistry, error) {
	byID := make(map[string]Provider, len(providers))
	for _, provider := range providers {
		if provider == nil {
			return nil, fmt.Errorf("core: provider is nil")
		}
		slug := strings.TrimSpace(provider.Slug())
		if slug == "" {
			return nil, fmt.Errorf("core: provider slug is required")
		}
		if _, exists := byID[slug]; exists {
			return nil, fmt.Errorf("core: provider already registered: %s", slug)
		}
		byID[slug] = provider
	}
	slugs := make([]string, 0, len(byID))
	for slug := range byID {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return &ProviderRegistry{providers: byID, slugs: slugs}, nil
}

func (r *ProviderRegistry) Get(slug string) (Provider, bool) {
	if r == nil {
		return nil, false
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, false
	}
	provider, ok := r.providers[slug]
	return provider, ok
}

// Resolve is Get with a NotFound error naming the slug.
func (r *ProviderRegistry) Resolve(slug string) (Provider, error) {
	provider, ok := r.Get(slug)
	if !ok {
		return nil, NewNotFoundError(
			fmt.Sprintf("core: provider not registered: %s", strings.TrimSpace(slug)),
			map[string]any{"provider": strings.TrimSpace(slug)},
		).WithTextCode(UnifyErrorProviderNotFound)
	}
	return provider, nil
}

func (r *ProviderRegistry) List() []Provider {
	if r == nil {
		return nil
	}
	providers := make([]Provider, 0, len(r.slugs))
	for _, slug := range r.slugs {
		providers = append(providers, r.providers[slug])
	}
	return providers
}

func (r *ProviderRegistry) Slugs() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.slugs...)
}
