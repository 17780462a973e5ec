package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-unify/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ContactStore struct {
	db     *bun.DB
	repo   repository.Repository[*contactRecord]
	emails repository.Repository[*contactEmailRecord]
	phones repository.Repository[*contactPhoneRecord]
}

func (s *ContactStore) Get(ctx context.Context, id string) (core.StoredContact, error) {
	if s == nil || s.repo == nil {
		return core.StoredContact{}, fmt.Errorf("sqlstore: contact store is not configured")
	}
	record, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return core.StoredContact{}, err
	}
	return s.hydrate(ctx, record)
}

func (s *ContactStore) FindByRemote(ctx context.Context, remoteID, remotePlatform, linkedUserID string) (core.StoredContact, bool, error) {
	if s == nil || s.repo == nil {
		return core.StoredContact{}, false, fmt.Errorf("sqlstore: contact store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("remote_id", "=", strings.TrimSpace(remoteID)),
		repository.SelectBy("remote_platform", "=", strings.TrimSpace(remotePlatform)),
		repository.SelectBy("linked_user_id", "=", strings.TrimSpace(linkedUserID)),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.deleted_at IS NULL")
		}),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return core.StoredContact{}, false, err
	}
	if len(records) == 0 {
		return core.StoredContact{}, false, nil
	}
	contact, err := s.hydrate(ctx, records[0])
	if err != nil {
		return core.StoredContact{}, false, err
	}
	return contact, true, nil
}

// Upsert writes the canonical contact keyed by (remote id, platform, linked
// user). Emails and phones reconcile against the existing rows by their
// stable keys, address and number, so re-syncing the same contact updates
// types in place instead of duplicating sub-entities.
func (s *ContactStore) Upsert(ctx context.Context, in core.UpsertContactInput) (core.StoredContact, error) {
	if s == nil || s.repo == nil {
		return core.StoredContact{}, fmt.Errorf("sqlstore: contact store is not configured")
	}
	if strings.TrimSpace(in.RemoteID) == "" {
		return core.StoredContact{}, fmt.Errorf("sqlstore: remote id is required")
	}
	if strings.TrimSpace(in.RemotePlatform) == "" {
		return core.StoredContact{}, fmt.Errorf("sqlstore: remote platform is required")
	}
	if strings.TrimSpace(in.LinkedUserID) == "" {
		return core.StoredContact{}, fmt.Errorf("sqlstore: linked user id is required")
	}

	now := time.Now().UTC()
	existing, found, err := s.FindByRemote(ctx, in.RemoteID, in.RemotePlatform, in.LinkedUserID)
	if err != nil {
		return core.StoredContact{}, err
	}

	var record *contactRecord
	if !found {
		record, err = s.repo.Create(ctx, newContactRecord(in, now))
		if err != nil {
			return core.StoredContact{}, err
		}
	} else {
		record, err = s.repo.GetByID(ctx, existing.ID)
		if err != nil {
			return core.StoredContact{}, err
		}
		record.FirstName = in.Contact.FirstName
		record.LastName = in.Contact.LastName
		record.UpdatedAt = now
		record, err = s.repo.Update(ctx, record, repository.UpdateByID(existing.ID))
		if err != nil {
			return core.StoredContact{}, err
		}
	}

	if err := s.reconcileEmails(ctx, record.ID, in.Contact.Emails, now); err != nil {
		return core.StoredContact{}, err
	}
	if err := s.reconcilePhones(ctx, record.ID, in.Contact.Phones, now); err != nil {
		return core.StoredContact{}, err
	}
	return s.hydrate(ctx, record)
}

func (s *ContactStore) List(ctx context.Context, filter core.ContactFilter) ([]core.StoredContact, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: contact store is not configured")
	}
	criteria := []repository.SelectCriteria{
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			q = q.Where("?TableAlias.deleted_at IS NULL")
			if filter.Limit > 0 {
				q = q.Limit(filter.Limit)
			}
			if filter.Offset > 0 {
				q = q.Offset(filter.Offset)
			}
			return q
		}),
		repository.OrderBy("created_at ASC"),
	}
	if strings.TrimSpace(filter.LinkedUserID) != "" {
		criteria = append(criteria, repository.SelectBy("linked_user_id", "=", strings.TrimSpace(filter.LinkedUserID)))
	}
	if strings.TrimSpace(filter.RemotePlatform) != "" {
		criteria = append(criteria, repository.SelectBy("remote_platform", "=", strings.TrimSpace(filter.RemotePlatform)))
	}

	records, _, err := s.repo.List(ctx, criteria...)
	if err != nil {
		return nil, err
	}
	out := make([]core.StoredContact, 0, len(records))
	for _, record := range records {
		contact, err := s.hydrate(ctx, record)
		if err != nil {
			return nil, err
		}
		out = append(out, contact)
	}
	return out, nil
}

func (s *ContactStore) hydrate(ctx context.Context, record *contactRecord) (core.StoredContact, error) {
	if record == nil {
		return core.StoredContact{}, fmt.Errorf("sqlstore: contact record is nil")
	}
	emails, _, err := s.emails.List(ctx,
		repository.SelectBy("contact_id", "=", record.ID),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return core.StoredContact{}, err
	}
	phones, _, err := s.phones.List(ctx,
		repository.SelectBy("contact_id", "=", record.ID),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return core.StoredContact{}, err
	}
	return record.toDomain(emails, phones), nil
}

func (s *ContactStore) reconcileEmails(ctx context.Context, contactID string, emails []core.ContactEmail, now time.Time) error {
	existing, _, err := s.emails.List(ctx,
		repository.SelectBy("contact_id", "=", contactID),
	)
	if err != nil {
		return err
	}
	byAddress := make(map[string]*contactEmailRecord, len(existing))
	for _, record := range existing {
		byAddress[normalizeKey(record.Address)] = record
	}

	wanted := map[string]struct{}{}
	for _, email := range emails {
		key := normalizeKey(email.Address)
		if key == "" {
			continue
		}
		if _, dup := wanted[key]; dup {
			continue
		}
		wanted[key] = struct{}{}
		if current, ok := byAddress[key]; ok {
			if current.Type == email.Type {
				continue
			}
			current.Type = email.Type
			current.UpdatedAt = now
			if _, err := s.emails.Update(ctx, current, repository.UpdateByID(current.ID)); err != nil {
				return err
			}
			continue
		}
		if _, err := s.emails.Create(ctx, &contactEmailRecord{
			ID:        uuid.NewString(),
			ContactID: contactID,
			Address:   strings.TrimSpace(email.Address),
			Type:      email.Type,
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return err
		}
	}

	for key, record := range byAddress {
		if _, keep := wanted[key]; keep {
			continue
		}
		if _, err := s.db.NewDelete().
			Model((*contactEmailRecord)(nil)).
			Where("id = ?", record.ID).
			Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *ContactStore) reconcilePhones(ctx context.Context, contactID string, phones []core.ContactPhone, now time.Time) error {
	existing, _, err := s.phones.List(ctx,
		repository.SelectBy("contact_id", "=", contactID),
	)
	if err != nil {
		return err
	}
	byNumber := make(map[string]*contactPhoneRecord, len(existing))
	for _, record := range existing {
		byNumber[normalizeKey(record.Number)] = record
	}

	wanted := map[string]struct{}{}
	for _, phone := range phones {
		key := normalizeKey(phone.Number)
		if key == "" {
			continue
		}
		if _, dup := wanted[key]; dup {
			continue
		}
		wanted[key] = struct{}{}
		if current, ok := byNumber[key]; ok {
			if current.Type == phone.Type {
				continue
			}
			current.Type = phone.Type
			current.UpdatedAt = now
			if _, err := s.phones.Update(ctx, current, repository.UpdateByID(current.ID)); err != nil {
				return err
			}
			continue
		}
		if _, err := s.phones.Create(ctx, &contactPhoneRecord{
			ID:        uuid.NewString(),
			ContactID: contactID,
			Number:    strings.TrimSpace(phone.Number),
			Type:      phone.Type,
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return err
		}
	}

	for key, record := range byNumber {
		if _, keep := wanted[key]; keep {
			continue
		}
		if _, err := s.db.NewDelete().
			Model((*contactPhoneRecord)(nil)).
			Where("id = ?", record.ID).
			Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func normalizeKey(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
