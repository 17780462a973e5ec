package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// CallbackRequest carries the OAuth authorization-code callback for one
// provider and linked user. Location is provider specific (Zoho datacenter).
type CallbackRequest struct {
	ProviderSlug string
	LinkedUserID string
	ProjectID    string
	Code         string
	Location     string
	Metadata     map[string]any
}

// TokenGrant is the plaintext outcome of a code exchange or refresh before
// the vault seals it.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time
	AccountURL   string
	Metadata     map[string]any
}

// RefreshRequest asks a provider to mint a new access token. RefreshToken is
// plaintext, already unsealed by the caller. AccountURL is the host pinned at
// callback time for providers with regional endpoints.
type RefreshRequest struct {
	ConnectionID string
	RefreshToken string
	AccountURL   string
}

// CreateRecordRequest is a provider-native write: the payload desunified for
// the provider, plus the unsealed access token to authorize it.
type CreateRecordRequest struct {
	ObjectType  string
	AccessToken string
	AccountURL  string
	Payload     map[string]any
}

// CreateRecordResponse carries the provider-native record back, plus the raw
// response bytes exactly as received for snapshot storage.
type CreateRecordResponse struct {
	Record     map[string]any
	Raw        []byte
	StatusCode int
}

// ListRecordsRequest pages provider-native records for a pull sync.
type ListRecordsRequest struct {
	ObjectType  string
	AccessToken string
	AccountURL  string
	PageToken   string
	PageSize    int
}

type ListRecordsResponse struct {
	Records       []map[string]any
	Raw           []byte
	NextPageToken string
}

// Provider bundles a third-party CRM's connection endpoints and record API.
type Provider interface {
	Slug() string
	AuthKind() string

	ExchangeCode(ctx context.Context, req CallbackRequest) (TokenGrant, error)
	RefreshGrant(ctx context.Context, req RefreshRequest) (TokenGrant, error)

	CreateRecord(ctx context.Context, req CreateRecordRequest) (CreateRecordResponse, error)
	ListRecords(ctx context.Context, req ListRecordsRequest) (ListRecordsResponse, error)
}

// UpsertConnectionInput captures everything HandleCallback persists. Token
// fields are vault ciphertext.
type UpsertConnectionInput struct {
	ProviderSlug string
	LinkedUserID string
	ProjectID    string
	TokenType    string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	AccountURL   string
}

type UpdateTokensInput struct {
	ConnectionID string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

type ConnectionStore interface {
	Get(ctx context.Context, id string) (Connection, error)
	FindScoped(ctx context.Context, linkedUserID, providerSlug string) (Connection, bool, error)
	Upsert(ctx context.Context, in UpsertConnectionInput) (Connection, error)
	UpdateTokens(ctx context.Context, in UpdateTokensInput) error
	UpdateStatus(ctx context.Context, id string, status ConnectionStatus, reason string) error
}

type UpsertContactInput struct {
	RemoteID       string
	RemotePlatform string
	LinkedUserID   string
	Contact        Contact
}

type ContactFilter struct {
	LinkedUserID   string
	RemotePlatform string
	Limit          int
	Offset         int
}

type ContactStore interface {
	Get(ctx context.Context, id string) (StoredContact, error)
	FindByRemote(ctx context.Context, remoteID, remotePlatform, linkedUserID string) (StoredContact, bool, error)
	Upsert(ctx context.Context, in UpsertContactInput) (StoredContact, error)
	List(ctx context.Context, filter ContactFilter) ([]StoredContact, error)
}

type DefineAttributeInput struct {
	Slug         string
	Description  string
	DataType     string
	ObjectType   string
	Source       string
	LinkedUserID string
}

type AttributeStore interface {
	Define(ctx context.Context, in DefineAttributeInput) (Attribute, error)
	MapToRemote(ctx context.Context, attributeID, remoteID string) error
	FindBySlug(ctx context.Context, slug, source, linkedUserID string) (Attribute, bool, error)
	ListMapped(ctx context.Context, objectType, source, linkedUserID string) ([]Attribute, error)
}

type SaveValueInput struct {
	AttributeID string
	EntityID    string
	Data        string
}

type ValueStore interface {
	Save(ctx context.Context, in SaveValueInput) error
	// ListByEntity returns captured values keyed by attribute slug.
	ListByEntity(ctx context.Context, entityID string) (map[string]string, error)
}

type SnapshotStore interface {
	Upsert(ctx context.Context, ownerID, providerSlug string, data []byte) error
	Get(ctx context.Context, ownerID string) (RemoteSnapshot, bool, error)
}

type CreateSyncEventInput struct {
	Type         string
	Method       string
	URL          string
	Direction    string
	ProviderSlug string
	LinkedUserID string
}

type SyncEventStore interface {
	Create(ctx context.Context, in CreateSyncEventInput) (SyncEvent, error)
	Close(ctx context.Context, id string, status SyncEventStatus, reason string) error
}

// StoreProvider hands out the persistence surfaces a wired service needs.
type StoreProvider interface {
	ConnectionStore() ConnectionStore
	ContactStore() ContactStore
	AttributeStore() AttributeStore
	ValueStore() ValueStore
	SnapshotStore() SnapshotStore
	SyncEventStore() SyncEventStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

// WebhookNotifier fans a closed sync event out to subscribed endpoints.
// eventID is the audit sync event the payload was produced under. Sync paths
// treat delivery as best effort.
type WebhookNotifier interface {
	Notify(ctx context.Context, eventType, projectID, eventID string, payload []byte) error
}
