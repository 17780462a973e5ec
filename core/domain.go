package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidConnectionStatusTransition = errors.New("core: invalid connection status transition")
	ErrInvalidSyncEventStatusTransition  = errors.New("core: invalid sync event status transition")
)

type ConnectionStatus string

const (
	ConnectionStatusValid   ConnectionStatus = "valid"
	ConnectionStatusExpired ConnectionStatus = "expired"
	ConnectionStatusError   ConnectionStatus = "error"
)

// Connection is a linked user's authorization against one provider. Token
// fields hold vault ciphertext, never plaintext.
type Connection struct {
	ID           string
	ProviderSlug string
	LinkedUserID string
	ProjectID    string
	TokenType    string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	AccountURL   string
	Status       ConnectionStatus
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (c *Connection) TransitionTo(status ConnectionStatus, reason string, now time.Time) error {
	if c == nil {
		return nil
	}
	if c.Status == status {
		c.UpdatedAt = now
		if strings.TrimSpace(reason) != "" {
			c.LastError = strings.TrimSpace(reason)
		}
		return nil
	}
	if !connectionTransitionAllowed(c.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidConnectionStatusTransition, c.Status, status)
	}
	c.Status = status
	c.UpdatedAt = now
	if strings.TrimSpace(reason) != "" {
		c.LastError = strings.TrimSpace(reason)
	}
	if status == ConnectionStatusValid {
		c.LastError = ""
	}
	return nil
}

func connectionTransitionAllowed(current, next ConnectionStatus) bool {
	allowed := map[ConnectionStatus]map[ConnectionStatus]struct{}{
		ConnectionStatusValid: {
			ConnectionStatusExpired: {},
			ConnectionStatusError:   {},
		},
		ConnectionStatusExpired: {
			ConnectionStatusValid: {},
			ConnectionStatusError: {},
		},
		ConnectionStatusError: {
			ConnectionStatusValid: {},
		},
	}
	_, ok := allowed[current][next]
	return ok
}

// IsExpired reports whether the access token is past its expiry. Connections
// without an expiry never expire.
func (c *Connection) IsExpired(now time.Time) bool {
	if c == nil || c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(c.ExpiresAt)
}

type SyncEventStatus string

const (
	SyncEventStatusInitialized SyncEventStatus = "initialized"
	SyncEventStatusSuccess     SyncEventStatus = "success"
	SyncEventStatusFail        SyncEventStatus = "fail"
)

// SyncEvent is the audit record opened before each provider write and closed
// with the outcome.
type SyncEvent struct {
	ID           string
	Type         string
	Status       SyncEventStatus
	Method       string
	URL          string
	Direction    string
	ProviderSlug string
	LinkedUserID string
	Error        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (e *SyncEvent) TransitionTo(status SyncEventStatus, reason string, now time.Time) error {
	if e == nil {
		return nil
	}
	if e.Status == status {
		e.UpdatedAt = now
		return nil
	}
	if !syncEventTransitionAllowed(e.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidSyncEventStatusTransition, e.Status, status)
	}
	e.Status = status
	e.UpdatedAt = now
	if strings.TrimSpace(reason) != "" {
		e.Error = strings.TrimSpace(reason)
	}
	return nil
}

func syncEventTransitionAllowed(current, next SyncEventStatus) bool {
	allowed := map[SyncEventStatus]map[SyncEventStatus]struct{}{
		SyncEventStatusInitialized: {
			SyncEventStatusSuccess: {},
			SyncEventStatusFail:    {},
		},
	}
	_, ok := allowed[current][next]
	return ok
}

// ContactEmail is a canonical email sub-entity. Address is the stable
// reconciliation key during upserts.
type ContactEmail struct {
	Address string
	Type    string
}

// ContactPhone is a canonical phone sub-entity keyed by number.
type ContactPhone struct {
	Number string
	Type   string
}

// Contact is the provider-independent contact shape the unification engine
// produces and consumes.
type Contact struct {
	FirstName     string
	LastName      string
	Emails        []ContactEmail
	Phones        []ContactPhone
	FieldMappings map[string]any
}

// StoredContact is a persisted canonical contact with its remote identity.
type StoredContact struct {
	ID             string
	RemoteID       string
	RemotePlatform string
	LinkedUserID   string
	Contact        Contact
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FieldMapping pairs a canonical attribute slug with the provider field key
// it travels under for one linked user.
type FieldMapping struct {
	Slug     string
	RemoteID string
}

// Attribute is a user-defined custom field declared in the catalogue.
type Attribute struct {
	ID           string
	Slug         string
	Description  string
	DataType     string
	ObjectType   string
	Source       string
	LinkedUserID string
	RemoteID     string
	CreatedAt    time.Time
}

// RemoteSnapshot keeps the provider's raw payload bytes for a stored record.
// The bytes are opaque: persisted exactly as received, never re-marshaled.
type RemoteSnapshot struct {
	ID               string
	RessourceOwnerID string
	ProviderSlug     string
	Data             []byte
	CreatedAt        time.Time
}
