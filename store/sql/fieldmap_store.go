package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-unify/core"
	"github.com/uptrace/bun"
)

type AttributeStore struct {
	db   *bun.DB
	repo repository.Repository[*attributeRecord]
}

func (s *AttributeStore) Define(ctx context.Context, in core.DefineAttributeInput) (core.Attribute, error) {
	if s == nil || s.repo == nil {
		return core.Attribute{}, fmt.Errorf("sqlstore: attribute store is not configured")
	}
	if strings.TrimSpace(in.Slug) == "" {
		return core.Attribute{}, fmt.Errorf("sqlstore: attribute slug is required")
	}

	existing, found, err := s.FindBySlug(ctx, in.Slug, in.Source, in.LinkedUserID)
	if err != nil {
		return core.Attribute{}, err
	}
	if found {
		return existing, nil
	}

	created, err := s.repo.Create(ctx, newAttributeRecord(in, time.Now().UTC()))
	if err != nil {
		return core.Attribute{}, err
	}
	return created.toDomain(), nil
}

func (s *AttributeStore) Get(ctx context.Context, id string) (core.Attribute, error) {
	if s == nil || s.repo == nil {
		return core.Attribute{}, fmt.Errorf("sqlstore: attribute store is not configured")
	}
	record, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return core.Attribute{}, err
	}
	return record.toDomain(), nil
}

func (s *AttributeStore) MapToRemote(ctx context.Context, attributeID, remoteID string) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: attribute store is not configured")
	}
	trimmedID := strings.TrimSpace(attributeID)
	if trimmedID == "" {
		return fmt.Errorf("sqlstore: attribute id is required")
	}
	record, err := s.repo.GetByID(ctx, trimmedID)
	if err != nil {
		return err
	}
	record.RemoteID = strings.TrimSpace(remoteID)
	record.UpdatedAt = time.Now().UTC()

	_, err = s.repo.Update(ctx, record, repository.UpdateByID(trimmedID))
	return err
}

func (s *AttributeStore) FindBySlug(ctx context.Context, slug, source, linkedUserID string) (core.Attribute, bool, error) {
	if s == nil || s.repo == nil {
		return core.Attribute{}, false, fmt.Errorf("sqlstore: attribute store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("slug", "=", strings.TrimSpace(slug)),
		repository.SelectBy("source", "=", strings.TrimSpace(source)),
		repository.SelectBy("linked_user_id", "=", strings.TrimSpace(linkedUserID)),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return core.Attribute{}, false, err
	}
	if len(records) == 0 {
		return core.Attribute{}, false, nil
	}
	return records[0].toDomain(), true, nil
}

func (s *AttributeStore) ListMapped(ctx context.Context, objectType, source, linkedUserID string) ([]core.Attribute, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: attribute store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("ressource_owner_type", "=", strings.TrimSpace(objectType)),
		repository.SelectBy("source", "=", strings.TrimSpace(source)),
		repository.SelectBy("linked_user_id", "=", strings.TrimSpace(linkedUserID)),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.remote_id != ''")
		}),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Attribute, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

type ValueStore struct {
	db   *bun.DB
	repo repository.Repository[*valueRecord]
}

// Save upserts a captured value keyed by (attribute, entity).
func (s *ValueStore) Save(ctx context.Context, in core.SaveValueInput) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: value store is not configured")
	}
	if strings.TrimSpace(in.AttributeID) == "" {
		return fmt.Errorf("sqlstore: attribute id is required")
	}
	if strings.TrimSpace(in.EntityID) == "" {
		return fmt.Errorf("sqlstore: entity id is required")
	}

	now := time.Now().UTC()
	existing, _, err := s.repo.List(ctx,
		repository.SelectBy("attribute_id", "=", strings.TrimSpace(in.AttributeID)),
		repository.SelectBy("entity_id", "=", strings.TrimSpace(in.EntityID)),
	)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		record := existing[0]
		record.Data = in.Data
		record.UpdatedAt = now
		_, err = s.repo.Update(ctx, record, repository.UpdateByID(record.ID))
		return err
	}

	_, err = s.repo.Create(ctx, &valueRecord{
		AttributeID: strings.TrimSpace(in.AttributeID),
		EntityID:    strings.TrimSpace(in.EntityID),
		Data:        in.Data,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	return err
}

func (s *ValueStore) ListByEntity(ctx context.Context, entityID string) (map[string]string, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: value store is not configured")
	}
	var rows []struct {
		Slug string `bun:"slug"`
		Data string `bun:"data"`
	}
	err := s.db.NewSelect().
		TableExpr("attribute_values AS av").
		ColumnExpr("at.slug AS slug").
		ColumnExpr("av.data AS data").
		Join("JOIN attributes AS at ON at.id = av.attribute_id").
		Where("av.entity_id = ?", strings.TrimSpace(entityID)).
		OrderExpr("av.created_at ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		slug := strings.TrimSpace(row.Slug)
		if slug == "" {
			continue
		}
		if _, taken := out[slug]; taken {
			continue
		}
		out[slug] = row.Data
	}
	return out, nil
}
