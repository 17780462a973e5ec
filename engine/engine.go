// Package engine converts records between the canonical shape and each
// provider's native one. Mappers are registered per (object type, provider)
// pair at build time; the engine itself is immutable after construction.
package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-unify/core"
)

// ContactMapper translates contacts for one provider. Desunify produces the
// provider-native payload; Unify turns provider-native records back into
// canonical contacts. Custom field mappings ride along in both directions.
type ContactMapper interface {
	Desunify(ctx context.Context, source core.Contact, mappings []core.FieldMapping) (map[string]any, error)
	Unify(ctx context.Context, records []map[string]any, mappings []core.FieldMapping) ([]core.Contact, error)
}

type mapperKey struct {
	objectType   string
	providerSlug string
}

type Registration struct {
	ObjectType   string
	ProviderSlug string
	Mapper       ContactMapper
}

type Engine struct {
	mappers map[mapperKey]ContactMapper
	keys    []mapperKey
}

// Build freezes the registrations into an engine. Duplicate pairs and nil
// mappers are construction errors.
func Build(registrations ...Registration) (*Engine, error) {
	mappers := make(map[mapperKey]ContactMapper, len(registrations))
	for _, registration := range registrations {
		key, err := normalizeKey(registration.ObjectType, registration.ProviderSlug)
		if err != nil {
			return nil, err
		}
		if registration.Mapper == nil {
			return nil, fmt.Errorf("engine: mapper is nil for %s/%s", key.objectType, key.providerSlug)
		}
		if _, exists := mappers[key]; exists {
			return nil, fmt.Errorf("engine: mapper already registered for %s/%s", key.objectType, key.providerSlug)
		}
		mappers[key] = registration.Mapper
	}
	keys := make([]mapperKey, 0, len(mappers))
	for key := range mappers {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].objectType != keys[j].objectType {
			return keys[i].objectType < keys[j].objectType
		}
		return keys[i].providerSlug < keys[j].providerSlug
	})
	return &Engine{mappers: mappers, keys: keys}, nil
}

// Desunify converts one canonical contact into the provider's native payload.
func (e *Engine) Desunify(
	ctx context.Context,
	objectType, providerSlug string,
	source core.Contact,
	mappings []core.FieldMapping,
) (map[string]any, error) {
	mapper, err := e.resolve(objectType, providerSlug)
	if err != nil {
		return nil, err
	}
	payload, err := mapper.Desunify(ctx, source, cloneMappings(mappings))
	if err != nil {
		return nil, wrapMapperError(err, objectType, providerSlug)
	}
	return payload, nil
}

// Unify converts provider-native records into canonical contacts. The input
// may be a single record or a list; conversion is element-wise either way.
func (e *Engine) Unify(
	ctx context.Context,
	objectType, providerSlug string,
	raw any,
	mappings []core.FieldMapping,
) ([]core.Contact, error) {
	mapper, err := e.resolve(objectType, providerSlug)
	if err != nil {
		return nil, err
	}
	records, err := NormalizeRecords(raw)
	if err != nil {
		return nil, wrapMapperError(err, objectType, providerSlug)
	}
	contacts, err := mapper.Unify(ctx, records, cloneMappings(mappings))
	if err != nil {
		return nil, wrapMapperError(err, objectType, providerSlug)
	}
	return contacts, nil
}

func (e *Engine) resolve(objectType, providerSlug string) (ContactMapper, error) {
	if e == nil {
		return nil, core.NewMappingError("engine: engine is nil", nil)
	}
	key, err := normalizeKey(objectType, providerSlug)
	if err != nil {
		return nil, core.NewMappingError(err.Error(), nil)
	}
	mapper, ok := e.mappers[key]
	if !ok {
		return nil, core.NewMappingError(
			fmt.Sprintf("engine: mapper not registered for %s/%s", key.objectType, key.providerSlug),
			map[string]any{"object_type": key.objectType, "provider": key.providerSlug},
		)
	}
	return mapper, nil
}

// Pairs lists the registered (object type, provider) combinations.
func (e *Engine) Pairs() [][2]string {
	if e == nil {
		return nil
	}
	pairs := make([][2]string, 0, len(e.keys))
	for _, key := range e.keys {
		pairs = append(pairs, [2]string{key.objectType, key.providerSlug})
	}
	return pairs
}

// NormalizeRecords accepts a single record or any list shape and returns a
// flat record slice.
func NormalizeRecords(raw any) ([]map[string]any, error) {
	switch typed := raw.(type) {
	case nil:
		return []map[string]any{}, nil
	case map[string]any:
		return []map[string]any{typed}, nil
	case []map[string]any:
		return append([]map[string]any(nil), typed...), nil
	case []any:
		records := make([]map[string]any, 0, len(typed))
		for _, item := range typed {
			record, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("engine: list element is not a record")
			}
			records = append(records, record)
		}
		return records, nil
	default:
		return nil, fmt.Errorf("engine: unsupported record input %T", raw)
	}
}

func normalizeKey(objectType, providerSlug string) (mapperKey, error) {
	object := strings.ToLower(strings.TrimSpace(objectType))
	slug := strings.ToLower(strings.TrimSpace(providerSlug))
	if object == "" {
		return mapperKey{}, fmt.Errorf("engine: object type is required")
	}
	if slug == "" {
		return mapperKey{}, fmt.Errorf("engine: provider slug is required")
	}
	return mapperKey{objectType: object, providerSlug: slug}, nil
}

func wrapMapperError(err error, objectType, providerSlug string) error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return core.NewMappingError(err.Error(), map[string]any{
		"object_type": strings.ToLower(strings.TrimSpace(objectType)),
		"provider":    strings.ToLower(strings.TrimSpace(providerSlug)),
	})
}

func cloneMappings(mappings []core.FieldMapping) []core.FieldMapping {
	if len(mappings) == 0 {
		return nil
	}
	return append([]core.FieldMapping(nil), mappings...)
}
