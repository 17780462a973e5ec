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

type ConnectionStore struct {
	db   *bun.DB
	repo repository.Repository[*connectionRecord]
}

func (s *ConnectionStore) Get(ctx context.Context, id string) (core.Connection, error) {
	if s == nil || s.repo == nil {
		return core.Connection{}, fmt.Errorf("sqlstore: connection store is not configured")
	}
	record, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return core.Connection{}, err
	}
	return record.toDomain(), nil
}

func (s *ConnectionStore) FindScoped(ctx context.Context, linkedUserID, providerSlug string) (core.Connection, bool, error) {
	if s == nil || s.repo == nil {
		return core.Connection{}, false, fmt.Errorf("sqlstore: connection store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("linked_user_id", "=", strings.TrimSpace(linkedUserID)),
		repository.SelectBy("provider_slug", "=", strings.TrimSpace(providerSlug)),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.deleted_at IS NULL")
		}),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return core.Connection{}, false, err
	}
	if len(records) == 0 {
		return core.Connection{}, false, nil
	}
	return records[0].toDomain(), true, nil
}

// Upsert finds the (linked user, provider) connection and rewrites its token
// set, or creates it when none exists. Callers serialize per scope with the
// connection locker so the find-then-write pair stays atomic.
func (s *ConnectionStore) Upsert(ctx context.Context, in core.UpsertConnectionInput) (core.Connection, error) {
	if s == nil || s.repo == nil {
		return core.Connection{}, fmt.Errorf("sqlstore: connection store is not configured")
	}
	if strings.TrimSpace(in.ProviderSlug) == "" {
		return core.Connection{}, fmt.Errorf("sqlstore: provider slug is required")
	}
	if strings.TrimSpace(in.LinkedUserID) == "" {
		return core.Connection{}, fmt.Errorf("sqlstore: linked user id is required")
	}

	now := time.Now().UTC()
	existing, found, err := s.FindScoped(ctx, in.LinkedUserID, in.ProviderSlug)
	if err != nil {
		return core.Connection{}, err
	}
	if !found {
		created, err := s.repo.Create(ctx, newConnectionRecord(in, now))
		if err != nil {
			return core.Connection{}, err
		}
		return created.toDomain(), nil
	}

	record, err := s.repo.GetByID(ctx, existing.ID)
	if err != nil {
		return core.Connection{}, err
	}
	record.TokenType = in.TokenType
	record.AccessToken = in.AccessToken
	record.RefreshToken = in.RefreshToken
	record.AccountURL = in.AccountURL
	record.ProjectID = in.ProjectID
	record.Status = string(core.ConnectionStatusValid)
	record.LastError = ""
	record.ExpiresAt = nil
	if !in.ExpiresAt.IsZero() {
		expiresAt := in.ExpiresAt.UTC()
		record.ExpiresAt = &expiresAt
	}
	// Re-auth replaces the grant wholesale, so the row's created_at restarts
	// with the new grant instead of keeping the original connection's.
	record.CreatedAt = now
	record.UpdatedAt = now

	updated, err := s.repo.Update(ctx, record, repository.UpdateByID(existing.ID))
	if err != nil {
		return core.Connection{}, err
	}
	return updated.toDomain(), nil
}

// ListExpiring returns valid connections whose access token expires before
// the cutoff, soonest first. Connections without an expiry never show up.
func (s *ConnectionStore) ListExpiring(ctx context.Context, before time.Time, limit int) ([]core.Connection, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: connection store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("status", "=", string(core.ConnectionStatusValid)),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			q = q.Where("?TableAlias.deleted_at IS NULL").
				Where("?TableAlias.expiration_timestamp IS NOT NULL").
				Where("?TableAlias.expiration_timestamp <= ?", before.UTC())
			if limit > 0 {
				q = q.Limit(limit)
			}
			return q
		}),
		repository.OrderBy("expiration_timestamp ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Connection, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *ConnectionStore) UpdateTokens(ctx context.Context, in core.UpdateTokensInput) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: connection store is not configured")
	}
	trimmedID := strings.TrimSpace(in.ConnectionID)
	if trimmedID == "" {
		return fmt.Errorf("sqlstore: connection id is required")
	}
	record, err := s.repo.GetByID(ctx, trimmedID)
	if err != nil {
		return err
	}
	record.AccessToken = in.AccessToken
	record.RefreshToken = in.RefreshToken
	record.ExpiresAt = nil
	if !in.ExpiresAt.IsZero() {
		expiresAt := in.ExpiresAt.UTC()
		record.ExpiresAt = &expiresAt
	}
	record.UpdatedAt = time.Now().UTC()

	_, err = s.repo.Update(ctx, record, repository.UpdateByID(trimmedID))
	return err
}

func (s *ConnectionStore) UpdateStatus(ctx context.Context, id string, status core.ConnectionStatus, reason string) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: connection store is not configured")
	}
	trimmedID := strings.TrimSpace(id)
	if trimmedID == "" {
		return fmt.Errorf("sqlstore: connection id is required")
	}
	record, err := s.repo.GetByID(ctx, trimmedID)
	if err != nil {
		return err
	}
	record.Status = string(status)
	record.LastError = strings.TrimSpace(reason)
	if status == core.ConnectionStatusValid {
		record.LastError = ""
	}
	record.UpdatedAt = time.Now().UTC()

	_, err = s.repo.Update(ctx, record, repository.UpdateByID(trimmedID))
	return err
}
