// Package fieldmap manages the custom field catalogue: user-defined
// attributes, their provider mappings, and the values captured on sync.
package fieldmap

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-unify/core"
)

type Service struct {
	attributes core.AttributeStore
	values     core.ValueStore
	logger     core.Logger
}

type Option func(*Service)

func WithLogger(logger core.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(attributes core.AttributeStore, values core.ValueStore, opts ...Option) (*Service, error) {
	if attributes == nil {
		return nil, fmt.Errorf("fieldmap: attribute store is required")
	}
	if values == nil {
		return nil, fmt.Errorf("fieldmap: value store is required")
	}
	service := &Service{
		attributes: attributes,
		values:     values,
		logger:     glog.Ensure(nil),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(service)
	}
	return service, nil
}

// DefineAttribute declares a custom field in the catalogue.
func (s *Service) DefineAttribute(ctx context.Context, in core.DefineAttributeInput) (core.Attribute, error) {
	if s == nil || s.attributes == nil {
		return core.Attribute{}, fmt.Errorf("fieldmap: service is not configured")
	}
	if strings.TrimSpace(in.Slug) == "" {
		return core.Attribute{}, fmt.Errorf("fieldmap: attribute slug is required")
	}
	if strings.TrimSpace(in.ObjectType) == "" {
		return core.Attribute{}, fmt.Errorf("fieldmap: attribute object type is required")
	}
	return s.attributes.Define(ctx, in)
}

// MapAttribute binds a declared attribute to the provider field it travels
// under.
func (s *Service) MapAttribute(ctx context.Context, attributeID, remoteID string) error {
	if s == nil || s.attributes == nil {
		return fmt.Errorf("fieldmap: service is not configured")
	}
	if strings.TrimSpace(attributeID) == "" {
		return fmt.Errorf("fieldmap: attribute id is required")
	}
	if strings.TrimSpace(remoteID) == "" {
		return fmt.Errorf("fieldmap: remote id is required")
	}
	return s.attributes.MapToRemote(ctx, attributeID, remoteID)
}

// MappingsFor returns the slug to remote key pairs the engine applies during
// desunify and unify for one (object, provider, linked user) triple.
func (s *Service) MappingsFor(ctx context.Context, objectType, providerSlug, linkedUserID string) ([]core.FieldMapping, error) {
	if s == nil || s.attributes == nil {
		return nil, fmt.Errorf("fieldmap: service is not configured")
	}
	attributes, err := s.attributes.ListMapped(ctx, objectType, providerSlug, linkedUserID)
	if err != nil {
		return nil, err
	}
	mappings := make([]core.FieldMapping, 0, len(attributes))
	seen := map[string]struct{}{}
	for _, attribute := range attributes {
		slug := strings.TrimSpace(attribute.Slug)
		remote := strings.TrimSpace(attribute.RemoteID)
		if slug == "" || remote == "" {
			continue
		}
		if _, duplicate := seen[slug]; duplicate {
			continue
		}
		seen[slug] = struct{}{}
		mappings = append(mappings, core.FieldMapping{Slug: slug, RemoteID: remote})
	}
	return mappings, nil
}

// SaveValues persists captured custom field values against an entity. Slugs
// without a catalogue entry are skipped: the catalogue is authoritative for
// which fields exist.
func (s *Service) SaveValues(
	ctx context.Context,
	entityID, source, linkedUserID string,
	values map[string]any,
) error {
	if s == nil || s.attributes == nil || s.values == nil {
		return fmt.Errorf("fieldmap: service is not configured")
	}
	if strings.TrimSpace(entityID) == "" {
		return fmt.Errorf("fieldmap: entity id is required")
	}
	for slug, value := range values {
		attribute, found, err := s.attributes.FindBySlug(ctx, slug, source, linkedUserID)
		if err != nil {
			return err
		}
		if !found {
			s.logger.Debug("fieldmap: skipping unmapped slug", "slug", slug, "source", source)
			continue
		}
		if err := s.values.Save(ctx, core.SaveValueInput{
			AttributeID: attribute.ID,
			EntityID:    entityID,
			Data:        encodeValue(value),
		}); err != nil {
			return err
		}
	}
	return nil
}

// ValuesFor reads the captured values for an entity, keyed by slug.
func (s *Service) ValuesFor(ctx context.Context, entityID string) (map[string]any, error) {
	if s == nil || s.values == nil {
		return nil, fmt.Errorf("fieldmap: service is not configured")
	}
	stored, err := s.values.ListByEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(stored))
	for slug, data := range stored {
		out[slug] = decodeValue(data)
	}
	return out, nil
}

func encodeValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return "null"
	case string:
		return typed
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprint(typed)
		}
		return string(encoded)
	}
}

func decodeValue(data string) any {
	trimmed := strings.TrimSpace(data)
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
		switch decoded.(type) {
		case map[string]any, []any, float64, bool:
			return decoded
		}
	}
	return data
}
