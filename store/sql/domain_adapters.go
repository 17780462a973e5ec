package sqlstore

import (
	"time"

	"github.com/goliatone/go-unify/core"
)

func newConnectionRecord(in core.UpsertConnectionInput, now time.Time) *connectionRecord {
	record := &connectionRecord{
		ProviderSlug: in.ProviderSlug,
		LinkedUserID: in.LinkedUserID,
		ProjectID:    in.ProjectID,
		TokenType:    in.TokenType,
		AccessToken:  in.AccessToken,
		RefreshToken: in.RefreshToken,
		AccountURL:   in.AccountURL,
		Status:       string(core.ConnectionStatusValid),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if !in.ExpiresAt.IsZero() {
		expiresAt := in.ExpiresAt.UTC()
		record.ExpiresAt = &expiresAt
	}
	return record
}

func (r *connectionRecord) toDomain() core.Connection {
	if r == nil {
		return core.Connection{}
	}
	connection := core.Connection{
		ID:           r.ID,
		ProviderSlug: r.ProviderSlug,
		LinkedUserID: r.LinkedUserID,
		ProjectID:    r.ProjectID,
		TokenType:    r.TokenType,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		AccountURL:   r.AccountURL,
		Status:       core.ConnectionStatus(r.Status),
		LastError:    r.LastError,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.ExpiresAt != nil {
		connection.ExpiresAt = *r.ExpiresAt
	}
	return connection
}

func newContactRecord(in core.UpsertContactInput, now time.Time) *contactRecord {
	return &contactRecord{
		FirstName:      in.Contact.FirstName,
		LastName:       in.Contact.LastName,
		RemoteID:       in.RemoteID,
		RemotePlatform: in.RemotePlatform,
		LinkedUserID:   in.LinkedUserID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (r *contactRecord) toDomain(emails []*contactEmailRecord, phones []*contactPhoneRecord) core.StoredContact {
	if r == nil {
		return core.StoredContact{}
	}
	stored := core.StoredContact{
		ID:             r.ID,
		RemoteID:       r.RemoteID,
		RemotePlatform: r.RemotePlatform,
		LinkedUserID:   r.LinkedUserID,
		Contact: core.Contact{
			FirstName: r.FirstName,
			LastName:  r.LastName,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	for _, email := range emails {
		if email == nil {
			continue
		}
		stored.Contact.Emails = append(stored.Contact.Emails, core.ContactEmail{
			Address: email.Address,
			Type:    email.Type,
		})
	}
	for _, phone := range phones {
		if phone == nil {
			continue
		}
		stored.Contact.Phones = append(stored.Contact.Phones, core.ContactPhone{
			Number: phone.Number,
			Type:   phone.Type,
		})
	}
	return stored
}

func newAttributeRecord(in core.DefineAttributeInput, now time.Time) *attributeRecord {
	return &attributeRecord{
		Slug:         in.Slug,
		Description:  in.Description,
		DataType:     in.DataType,
		ObjectType:   in.ObjectType,
		Source:       in.Source,
		LinkedUserID: in.LinkedUserID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (r *attributeRecord) toDomain() core.Attribute {
	if r == nil {
		return core.Attribute{}
	}
	return core.Attribute{
		ID:           r.ID,
		Slug:         r.Slug,
		Description:  r.Description,
		DataType:     r.DataType,
		ObjectType:   r.ObjectType,
		Source:       r.Source,
		LinkedUserID: r.LinkedUserID,
		RemoteID:     r.RemoteID,
		CreatedAt:    r.CreatedAt,
	}
}

func (r *remoteDataRecord) toDomain() core.RemoteSnapshot {
	if r == nil {
		return core.RemoteSnapshot{}
	}
	return core.RemoteSnapshot{
		ID:               r.ID,
		RessourceOwnerID: r.RessourceOwnerID,
		ProviderSlug:     r.ProviderSlug,
		Data:             append([]byte(nil), r.Data...),
		CreatedAt:        r.CreatedAt,
	}
}

func newSyncEventRecord(in core.CreateSyncEventInput, now time.Time) *syncEventRecord {
	return &syncEventRecord{
		Type:         in.Type,
		Status:       string(core.SyncEventStatusInitialized),
		Method:       in.Method,
		URL:          in.URL,
		Direction:    in.Direction,
		ProviderSlug: in.ProviderSlug,
		LinkedUserID: in.LinkedUserID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (r *syncEventRecord) toDomain() core.SyncEvent {
	if r == nil {
		return core.SyncEvent{}
	}
	return core.SyncEvent{
		ID:           r.ID,
		Type:         r.Type,
		Status:       core.SyncEventStatus(r.Status),
		Method:       r.Method,
		URL:          r.URL,
		Direction:    r.Direction,
		ProviderSlug: r.ProviderSlug,
		LinkedUserID: r.LinkedUserID,
		Error:        r.Error,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}
