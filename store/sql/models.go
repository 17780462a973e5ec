package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type connectionRecord struct {
	bun.BaseModel `bun:"table:connections,alias:cn"`

	ID           string     `bun:"id,pk"`
	ProviderSlug string     `bun:"provider_slug,notnull"`
	LinkedUserID string     `bun:"linked_user_id,notnull"`
	ProjectID    string     `bun:"project_id"`
	TokenType    string     `bun:"token_type,notnull"`
	AccessToken  string     `bun:"access_token,notnull"`
	RefreshToken string     `bun:"refresh_token"`
	ExpiresAt    *time.Time `bun:"expiration_timestamp,nullzero"`
	AccountURL   string     `bun:"account_url"`
	Status       string     `bun:"status,notnull"`
	LastError    string     `bun:"last_error"`
	CreatedAt    time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	DeletedAt    *time.Time `bun:"deleted_at,soft_delete"`
}

type contactRecord struct {
	bun.BaseModel `bun:"table:crm_contacts,alias:cc"`

	ID             string     `bun:"id,pk"`
	FirstName      string     `bun:"first_name"`
	LastName       string     `bun:"last_name"`
	RemoteID       string     `bun:"remote_id,notnull"`
	RemotePlatform string     `bun:"remote_platform,notnull"`
	LinkedUserID   string     `bun:"linked_user_id,notnull"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	DeletedAt      *time.Time `bun:"deleted_at,soft_delete"`
}

type contactEmailRecord struct {
	bun.BaseModel `bun:"table:crm_contact_email_addresses,alias:cce"`

	ID        string    `bun:"id,pk"`
	ContactID string    `bun:"contact_id,notnull"`
	Address   string    `bun:"email_address,notnull"`
	Type      string    `bun:"email_address_type"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type contactPhoneRecord struct {
	bun.BaseModel `bun:"table:crm_contact_phone_numbers,alias:ccp"`

	ID        string    `bun:"id,pk"`
	ContactID string    `bun:"contact_id,notnull"`
	Number    string    `bun:"phone_number,notnull"`
	Type      string    `bun:"phone_type"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type attributeRecord struct {
	bun.BaseModel `bun:"table:attributes,alias:at"`

	ID           string    `bun:"id,pk"`
	Slug         string    `bun:"slug,notnull"`
	Description  string    `bun:"description"`
	DataType     string    `bun:"data_type,notnull"`
	ObjectType   string    `bun:"ressource_owner_type,notnull"`
	Source       string    `bun:"source,notnull"`
	LinkedUserID string    `bun:"linked_user_id,notnull"`
	RemoteID     string    `bun:"remote_id"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type valueRecord struct {
	bun.BaseModel `bun:"table:attribute_values,alias:av"`

	ID          string    `bun:"id,pk"`
	AttributeID string    `bun:"attribute_id,notnull"`
	EntityID    string    `bun:"entity_id,notnull"`
	Data        string    `bun:"data,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// remoteDataRecord keeps provider payload bytes verbatim; the column is a
// blob on purpose so nothing re-encodes the provider's JSON.
type remoteDataRecord struct {
	bun.BaseModel `bun:"table:remote_data,alias:rd"`

	ID               string    `bun:"id,pk"`
	RessourceOwnerID string    `bun:"ressource_owner_id,notnull"`
	ProviderSlug     string    `bun:"provider_slug,notnull"`
	Data             []byte    `bun:"data,notnull"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type syncEventRecord struct {
	bun.BaseModel `bun:"table:sync_events,alias:sev"`

	ID           string    `bun:"id,pk"`
	Type         string    `bun:"type,notnull"`
	Status       string    `bun:"status,notnull"`
	Method       string    `bun:"method,notnull"`
	URL          string    `bun:"url,notnull"`
	Direction    string    `bun:"direction,notnull"`
	ProviderSlug string    `bun:"provider_slug,notnull"`
	LinkedUserID string    `bun:"linked_user_id,notnull"`
	Error        string    `bun:"error"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type webhookEndpointRecord struct {
	bun.BaseModel `bun:"table:webhook_endpoints,alias:we"`

	ID        string     `bun:"id,pk"`
	URL       string     `bun:"url,notnull"`
	Secret    string     `bun:"secret,notnull"`
	Scope     string     `bun:"scope,notnull"`
	ProjectID string     `bun:"project_id"`
	Active    bool       `bun:"active,notnull"`
	CreatedAt time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	DeletedAt *time.Time `bun:"deleted_at,soft_delete"`
}
