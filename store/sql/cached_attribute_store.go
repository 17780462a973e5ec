package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-unify/core"
)

const attributeCacheKeyPrefix = "go-unify::attributes::v1"

// CachedAttributeStore fronts attribute reads with a cache. The mapping
// catalogue is read on every sync but changes rarely, so FindBySlug and
// ListMapped are cached and writes invalidate the touched keys.
type CachedAttributeStore struct {
	base  core.AttributeStore
	cache repositorycache.CacheService
}

func NewCachedAttributeStore(
	base core.AttributeStore,
	cacheService repositorycache.CacheService,
) (*CachedAttributeStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base attribute store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: attribute cache service is required")
	}
	return &CachedAttributeStore{base: base, cache: cacheService}, nil
}

// AttributeSlugCacheKey returns the deterministic cache key for slug lookups:
// go-unify::attributes::v1::slug::<slug>::<source>::<linked_user> with each
// segment URL-path escaped.
func AttributeSlugCacheKey(slug, source, linkedUserID string) string {
	return attributeCacheKey("slug", slug, source, linkedUserID)
}

// AttributeMappedCacheKey returns the cache key for mapped-attribute listings:
// go-unify::attributes::v1::mapped::<object_type>::<source>::<linked_user>.
func AttributeMappedCacheKey(objectType, source, linkedUserID string) string {
	return attributeCacheKey("mapped", objectType, source, linkedUserID)
}

func attributeCacheKey(kind string, parts ...string) string {
	segments := make([]string, 0, len(parts)+2)
	segments = append(segments, attributeCacheKeyPrefix, kind)
	for _, part := range parts {
		segments = append(segments, url.PathEscape(strings.TrimSpace(part)))
	}
	return strings.Join(segments, "::")
}

func (s *CachedAttributeStore) Define(ctx context.Context, in core.DefineAttributeInput) (core.Attribute, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Attribute{}, fmt.Errorf("sqlstore: cached attribute store is not configured")
	}
	attribute, err := s.base.Define(ctx, in)
	if err != nil {
		return core.Attribute{}, err
	}
	if err := s.invalidate(ctx, attribute); err != nil {
		return core.Attribute{}, err
	}
	return attribute, nil
}

func (s *CachedAttributeStore) MapToRemote(ctx context.Context, attributeID, remoteID string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached attribute store is not configured")
	}
	if err := s.base.MapToRemote(ctx, attributeID, remoteID); err != nil {
		return err
	}
	// MapToRemote only has the id; the scope segments come from the row.
	return s.invalidateByID(ctx, attributeID)
}

func (s *CachedAttributeStore) FindBySlug(ctx context.Context, slug, source, linkedUserID string) (core.Attribute, bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Attribute{}, false, fmt.Errorf("sqlstore: cached attribute store is not configured")
	}
	type slugResult struct {
		Attribute core.Attribute
		Found     bool
	}
	cacheKey := AttributeSlugCacheKey(slug, source, linkedUserID)
	result, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (slugResult, error) {
		attribute, found, fetchErr := s.base.FindBySlug(ctx, slug, source, linkedUserID)
		if fetchErr != nil {
			return slugResult{}, fetchErr
		}
		return slugResult{Attribute: attribute, Found: found}, nil
	})
	if err != nil {
		return core.Attribute{}, false, err
	}
	return result.Attribute, result.Found, nil
}

func (s *CachedAttributeStore) ListMapped(ctx context.Context, objectType, source, linkedUserID string) ([]core.Attribute, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached attribute store is not configured")
	}
	cacheKey := AttributeMappedCacheKey(objectType, source, linkedUserID)
	attributes, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) ([]core.Attribute, error) {
		fetched, fetchErr := s.base.ListMapped(ctx, objectType, source, linkedUserID)
		if fetchErr != nil {
			return nil, fetchErr
		}
		return append([]core.Attribute(nil), fetched...), nil
	})
	if err != nil {
		return nil, err
	}
	return append([]core.Attribute(nil), attributes...), nil
}

func (s *CachedAttributeStore) invalidate(ctx context.Context, attribute core.Attribute) error {
	keys := []string{
		AttributeSlugCacheKey(attribute.Slug, attribute.Source, attribute.LinkedUserID),
		AttributeMappedCacheKey(attribute.ObjectType, attribute.Source, attribute.LinkedUserID),
	}
	for _, key := range keys {
		if err := s.cache.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (s *CachedAttributeStore) invalidateByID(ctx context.Context, attributeID string) error {
	lookup, ok := s.base.(interface {
		Get(ctx context.Context, id string) (core.Attribute, error)
	})
	if !ok {
		return nil
	}
	attribute, err := lookup.Get(ctx, attributeID)
	if err != nil {
		return nil
	}
	return s.invalidate(ctx, attribute)
}

var _ core.AttributeStore = (*CachedAttributeStore)(nil)
