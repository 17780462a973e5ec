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

type SnapshotStore struct {
	db   *bun.DB
	repo repository.Repository[*remoteDataRecord]
}

// Upsert stores the provider payload bytes for a stored record, replacing any
// previous snapshot for the same owner. Data is written verbatim.
func (s *SnapshotStore) Upsert(ctx context.Context, ownerID, providerSlug string, data []byte) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: snapshot store is not configured")
	}
	trimmedOwner := strings.TrimSpace(ownerID)
	if trimmedOwner == "" {
		return fmt.Errorf("sqlstore: snapshot owner id is required")
	}

	now := time.Now().UTC()
	existing, _, err := s.repo.List(ctx,
		repository.SelectBy("ressource_owner_id", "=", trimmedOwner),
	)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		record := existing[0]
		record.ProviderSlug = strings.TrimSpace(providerSlug)
		record.Data = append([]byte(nil), data...)
		record.UpdatedAt = now
		_, err = s.repo.Update(ctx, record, repository.UpdateByID(record.ID))
		return err
	}

	_, err = s.repo.Create(ctx, &remoteDataRecord{
		RessourceOwnerID: trimmedOwner,
		ProviderSlug:     strings.TrimSpace(providerSlug),
		Data:             append([]byte(nil), data...),
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	return err
}

func (s *SnapshotStore) Get(ctx context.Context, ownerID string) (core.RemoteSnapshot, bool, error) {
	if s == nil || s.repo == nil {
		return core.RemoteSnapshot{}, false, fmt.Errorf("sqlstore: snapshot store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("ressource_owner_id", "=", strings.TrimSpace(ownerID)),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return core.RemoteSnapshot{}, false, err
	}
	if len(records) == 0 {
		return core.RemoteSnapshot{}, false, nil
	}
	return records[0].toDomain(), true, nil
}
