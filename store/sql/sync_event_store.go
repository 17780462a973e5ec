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

type SyncEventStore struct {
	db   *bun.DB
	repo repository.Repository[*syncEventRecord]
}

func (s *SyncEventStore) Create(ctx context.Context, in core.CreateSyncEventInput) (core.SyncEvent, error) {
	if s == nil || s.repo == nil {
		return core.SyncEvent{}, fmt.Errorf("sqlstore: sync event store is not configured")
	}
	if strings.TrimSpace(in.Type) == "" {
		return core.SyncEvent{}, fmt.Errorf("sqlstore: sync event type is required")
	}
	created, err := s.repo.Create(ctx, newSyncEventRecord(in, time.Now().UTC()))
	if err != nil {
		return core.SyncEvent{}, err
	}
	return created.toDomain(), nil
}

// Close moves an event out of initialized. The transition table rejects
// reopening a closed event.
func (s *SyncEventStore) Close(ctx context.Context, id string, status core.SyncEventStatus, reason string) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: sync event store is not configured")
	}
	trimmedID := strings.TrimSpace(id)
	if trimmedID == "" {
		return fmt.Errorf("sqlstore: sync event id is required")
	}
	record, err := s.repo.GetByID(ctx, trimmedID)
	if err != nil {
		return err
	}
	event := record.toDomain()
	now := time.Now().UTC()
	if err := event.TransitionTo(status, reason, now); err != nil {
		return err
	}
	record.Status = string(event.Status)
	record.Error = event.Error
	record.UpdatedAt = now

	_, err = s.repo.Update(ctx, record, repository.UpdateByID(trimmedID))
	return err
}
