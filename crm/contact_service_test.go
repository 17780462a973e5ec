package crm

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/goliatone/go-unify/core"
	"github.com/goliatone/go-unify/engine"
	"github.com/goliatone/go-unify/fieldmap"
	"github.com/goliatone/go-unify/providers/zendesk"
)

type fakeProvider struct {
	mu            sync.Mutex
	slug          string
	createRecord  map[string]any
	createRaw     []byte
	createErr     error
	seenPayloads  []map[string]any
	refreshGrants int
}

func (p *fakeProvider) Slug() string     { return p.slug }
func (p *fakeProvider) AuthKind() string { return "oauth2" }

func (p *fakeProvider) ExchangeCode(context.Context, core.CallbackRequest) (core.TokenGrant, error) {
	return core.TokenGrant{}, fmt.Errorf("%s: exchange not scripted", p.slug)
}

func (p *fakeProvider) RefreshGrant(context.Context, core.RefreshRequest) (core.TokenGrant, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshGrants++
	return core.TokenGrant{AccessToken: "access-fresh"}, nil
}

func (p *fakeProvider) CreateRecord(_ context.Context, req core.CreateRecordRequest) (core.CreateRecordResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return core.CreateRecordResponse{}, p.createErr
	}
	p.seenPayloads = append(p.seenPayloads, req.Payload)
	return core.CreateRecordResponse{Record: p.createRecord, Raw: p.createRaw, StatusCode: 200}, nil
}

func (p *fakeProvider) ListRecords(context.Context, core.ListRecordsRequest) (core.ListRecordsResponse, error) {
	return core.ListRecordsResponse{}, fmt.Errorf("%s: list not scripted", p.slug)
}

type fakeConnectionStore struct {
	mu          sync.Mutex
	connections map[string]core.Connection
}

func (s *fakeConnectionStore) Get(_ context.Context, id string) (core.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.connections[id]
	if !ok {
		return core.Connection{}, core.NewNotFoundError("connection not found", nil)
	}
	return conn, nil
}

func (s *fakeConnectionStore) FindScoped(_ context.Context, linkedUserID, providerSlug string) (core.Connection, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.connections {
		if conn.LinkedUserID == linkedUserID && conn.ProviderSlug == providerSlug {
			return conn, true, nil
		}
	}
	return core.Connection{}, false, nil
}

func (s *fakeConnectionStore) Upsert(_ context.Context, in core.UpsertConnectionInput) (core.Connection, error) {
	return core.Connection{}, fmt.Errorf("upsert not scripted")
}

func (s *fakeConnectionStore) UpdateTokens(_ context.Context, in core.UpdateTokensInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn := s.connections[in.ConnectionID]
	conn.AccessToken = in.AccessToken
	conn.RefreshToken = in.RefreshToken
	s.connections[in.ConnectionID] = conn
	return nil
}

func (s *fakeConnectionStore) UpdateStatus(_ context.Context, id string, status core.ConnectionStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn := s.connections[id]
	conn.Status = status
	conn.LastError = reason
	s.connections[id] = conn
	return nil
}

type stubVault struct{}

func (stubVault) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	return []byte("sealed:" + string(plaintext)), nil
}

func (stubVault) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	text := string(ciphertext)
	if !strings.HasPrefix(text, "sealed:") {
		return nil, fmt.Errorf("security: invalid ciphertext envelope prefix")
	}
	return []byte(strings.TrimPrefix(text, "sealed:")), nil
}

type fakeContactStore struct {
	mu       sync.Mutex
	contacts map[string]core.StoredContact
	upserts  []core.UpsertContactInput
}

func newFakeContactStore() *fakeContactStore {
	return &fakeContactStore{contacts: map[string]core.StoredContact{}}
}

func (s *fakeContactStore) Get(_ context.Context, id string) (core.StoredContact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	contact, ok := s.contacts[id]
	if !ok {
		return core.StoredContact{}, core.NewNotFoundError("contact not found", nil).
			WithTextCode(core.UnifyErrorContactNotFound)
	}
	return contact, nil
}

func (s *fakeContactStore) FindByRemote(_ context.Context, remoteID, remotePlatform, linkedUserID string) (core.StoredContact, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, contact := range s.contacts {
		if contact.RemoteID == remoteID && contact.RemotePlatform == remotePlatform && contact.LinkedUserID == linkedUserID {
			return contact, true, nil
		}
	}
	return core.StoredContact{}, false, nil
}

func (s *fakeContactStore) Upsert(_ context.Context, in core.UpsertContactInput) (core.StoredContact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts = append(s.upserts, in)
	for id, contact := range s.contacts {
		if contact.RemoteID == in.RemoteID && contact.RemotePlatform == in.RemotePlatform && contact.LinkedUserID == in.LinkedUserID {
			contact.Contact = in.Contact
			s.contacts[id] = contact
			return contact, nil
		}
	}
	stored := core.StoredContact{
		ID:             fmt.Sprintf("contact-%d", len(s.contacts)+1),
		RemoteID:       in.RemoteID,
		RemotePlatform: in.RemotePlatform,
		LinkedUserID:   in.LinkedUserID,
		Contact:        in.Contact,
	}
	s.contacts[stored.ID] = stored
	return stored, nil
}

func (s *fakeContactStore) List(_ context.Context, filter core.ContactFilter) ([]core.StoredContact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.StoredContact
	for _, contact := range s.contacts {
		if filter.LinkedUserID != "" && contact.LinkedUserID != filter.LinkedUserID {
			continue
		}
		out = append(out, contact)
	}
	return out, nil
}

type fakeSnapshotStore struct {
	mu        sync.Mutex
	snapshots map[string]core.RemoteSnapshot
}

func newFakeSnapshotStore() *fakeSnapshotStore {
	return &fakeSnapshotStore{snapshots: map[string]core.RemoteSnapshot{}}
}

func (s *fakeSnapshotStore) Upsert(_ context.Context, ownerID, providerSlug string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[ownerID] = core.RemoteSnapshot{
		RessourceOwnerID: ownerID,
		ProviderSlug:     providerSlug,
		Data:             append([]byte(nil), data...),
	}
	return nil
}

func (s *fakeSnapshotStore) Get(_ context.Context, ownerID string) (core.RemoteSnapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot, ok := s.snapshots[ownerID]
	return snapshot, ok, nil
}

type fakeSyncEventStore struct {
	mu      sync.Mutex
	created []core.SyncEvent
	closed  map[string]core.SyncEventStatus
	reasons map[string]string
}

func newFakeSyncEventStore() *fakeSyncEventStore {
	return &fakeSyncEventStore{closed: map[string]core.SyncEventStatus{}, reasons: map[string]string{}}
}

func (s *fakeSyncEventStore) Create(_ context.Context, in core.CreateSyncEventInput) (core.SyncEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event := core.SyncEvent{
		ID:           fmt.Sprintf("event-%d", len(s.created)+1),
		Type:         in.Type,
		ProviderSlug: in.ProviderSlug,
		LinkedUserID: in.LinkedUserID,
		Status:       core.SyncEventStatusInitialized,
	}
	s.created = append(s.created, event)
	return event, nil
}

func (s *fakeSyncEventStore) Close(_ context.Context, id string, status core.SyncEventStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed[id] = status
	s.reasons[id] = reason
	return nil
}

type fakeAttributeStore struct {
	attributes []core.Attribute
}

func (s *fakeAttributeStore) Define(_ context.Context, in core.DefineAttributeInput) (core.Attribute, error) {
	attribute := core.Attribute{ID: "attr-" + in.Slug, Slug: in.Slug, ObjectType: in.ObjectType, Source: in.Source, LinkedUserID: in.LinkedUserID}
	s.attributes = append(s.attributes, attribute)
	return attribute, nil
}

func (s *fakeAttributeStore) MapToRemote(_ context.Context, attributeID, remoteID string) error {
	for index, attribute := range s.attributes {
		if attribute.ID == attributeID {
			s.attributes[index].RemoteID = remoteID
		}
	}
	return nil
}

func (s *fakeAttributeStore) FindBySlug(_ context.Context, slug, source, linkedUserID string) (core.Attribute, bool, error) {
	for _, attribute := range s.attributes {
		if attribute.Slug == slug && attribute.Source == source && attribute.LinkedUserID == linkedUserID {
			return attribute, true, nil
		}
	}
	return core.Attribute{}, false, nil
}

func (s *fakeAttributeStore) ListMapped(_ context.Context, objectType, source, linkedUserID string) ([]core.Attribute, error) {
	var out []core.Attribute
	for _, attribute := range s.attributes {
		if attribute.ObjectType == objectType && attribute.Source == source &&
			attribute.LinkedUserID == linkedUserID && attribute.RemoteID != "" {
			out = append(out, attribute)
		}
	}
	return out, nil
}

type fakeValueStore struct {
	mu     sync.Mutex
	values map[string]map[string]string
}

func newFakeValueStore() *fakeValueStore {
	return &fakeValueStore{values: map[string]map[string]string{}}
}

func (s *fakeValueStore) Save(_ context.Context, in core.SaveValueInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	slug := strings.TrimPrefix(in.AttributeID, "attr-")
	if s.values[in.EntityID] == nil {
		s.values[in.EntityID] = map[string]string{}
	}
	s.values[in.EntityID][slug] = in.Data
	return nil
}

func (s *fakeValueStore) ListByEntity(_ context.Context, entityID string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]string{}
	for slug, data := range s.values[entityID] {
		out[slug] = data
	}
	return out, nil
}

type fakeStoreProvider struct {
	connections *fakeConnectionStore
	contacts    *fakeContactStore
	attributes  *fakeAttributeStore
	values      *fakeValueStore
	snapshots   *fakeSnapshotStore
	events      *fakeSyncEventStore
}

func (p *fakeStoreProvider) ConnectionStore() core.ConnectionStore { return p.connections }
func (p *fakeStoreProvider) ContactStore() core.ContactStore       { return p.contacts }
func (p *fakeStoreProvider) AttributeStore() core.AttributeStore   { return p.attributes }
func (p *fakeStoreProvider) ValueStore() core.ValueStore           { return p.values }
func (p *fakeStoreProvider) SnapshotStore() core.SnapshotStore     { return p.snapshots }
func (p *fakeStoreProvider) SyncEventStore() core.SyncEventStore   { return p.events }

type recordingNotifier struct {
	mu       sync.Mutex
	events   []string
	eventIDs []string
	payloads [][]byte
}

func (n *recordingNotifier) Notify(_ context.Context, eventType, _ string, eventID string, payload []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, eventType)
	n.eventIDs = append(n.eventIDs, eventID)
	n.payloads = append(n.payloads, append([]byte(nil), payload...))
	return nil
}

type contactFixture struct {
	service   *ContactService
	provider  *fakeProvider
	stores    *fakeStoreProvider
	notifier  *recordingNotifier
	fieldsSvc *fieldmap.Service
}

func newContactFixture(t *testing.T) *contactFixture {
	t.Helper()

	provider := &fakeProvider{
		slug: "zendesk",
		createRecord: map[string]any{
			"id":         float64(42),
			"first_name": "Jane",
			"last_name":  "Doe",
			"email":      "jane@example.com",
			"custom_fields": map[string]any{
				"custom_field_77": "lasagna",
			},
		},
		createRaw: []byte(`{"data":{"id":42,"first_name":"Jane"}}`),
	}
	registry, err := core.BuildRegistry(provider)
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}

	stores := &fakeStoreProvider{
		connections: &fakeConnectionStore{connections: map[string]core.Connection{
			"conn-1": {
				ID:           "conn-1",
				ProviderSlug: "zendesk",
				LinkedUserID: "user-1",
				AccessToken:  "sealed:access-1",
				RefreshToken: "sealed:refresh-1",
				Status:       core.ConnectionStatusValid,
			},
		}},
		contacts:   newFakeContactStore(),
		attributes: &fakeAttributeStore{},
		values:     newFakeValueStore(),
		snapshots:  newFakeSnapshotStore(),
		events:     newFakeSyncEventStore(),
	}

	connections, err := core.NewConnectionService(core.Config{},
		core.WithRegistry(registry),
		core.WithConnectionStore(stores.connections),
		core.WithSecretProvider(stubVault{}),
	)
	if err != nil {
		t.Fatalf("new connection service: %v", err)
	}

	built, err := engine.Build(engine.Registration{
		ObjectType:   "contact",
		ProviderSlug: "zendesk",
		Mapper:       zendesk.NewContactMapper(),
	})
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}

	fieldsSvc, err := fieldmap.NewService(stores.attributes, stores.values)
	if err != nil {
		t.Fatalf("new fieldmap service: %v", err)
	}

	notifier := &recordingNotifier{}
	service, err := NewContactService(connections, built, fieldsSvc, stores,
		WithWebhookNotifier(notifier),
	)
	if err != nil {
		t.Fatalf("new contact service: %v", err)
	}

	return &contactFixture{
		service:   service,
		provider:  provider,
		stores:    stores,
		notifier:  notifier,
		fieldsSvc: fieldsSvc,
	}
}

func (f *contactFixture) defineMappedAttribute(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	attribute, err := f.fieldsSvc.DefineAttribute(ctx, core.DefineAttributeInput{
		Slug:         "fav_dish",
		ObjectType:   "contact",
		Source:       "zendesk",
		LinkedUserID: "user-1",
	})
	if err != nil {
		t.Fatalf("define attribute: %v", err)
	}
	if err := f.fieldsSvc.MapAttribute(ctx, attribute.ID, "custom_field_77"); err != nil {
		t.Fatalf("map attribute: %v", err)
	}
}

func TestAddContact_PushesUnifiesAndPersists(t *testing.T) {
	fixture := newContactFixture(t)
	fixture.defineMappedAttribute(t)

	result, err := fixture.service.AddContact(context.Background(), AddContactRequest{
		LinkedUserID: "user-1",
		ProviderSlug: "zendesk",
		ProjectID:    "project-1",
		Contact: core.Contact{
			FirstName:     "Jane",
			LastName:      "Doe",
			Emails:        []core.ContactEmail{{Address: "jane@example.com", Type: "work"}},
			FieldMappings: map[string]any{"fav_dish": "lasagna"},
		},
		IncludeRemoteData: true,
	})
	if err != nil {
		t.Fatalf("add contact: %v", err)
	}

	if len(fixture.provider.seenPayloads) != 1 {
		t.Fatalf("expected one provider call, got %d", len(fixture.provider.seenPayloads))
	}
	payload := fixture.provider.seenPayloads[0]
	if payload["first_name"] != "Jane" {
		t.Fatalf("expected desunified payload, got %v", payload)
	}
	custom, _ := payload["custom_fields"].(map[string]any)
	if custom["custom_field_77"] != "lasagna" {
		t.Fatalf("expected custom field in payload, got %v", payload)
	}

	if result.Contact.RemoteID != "42" {
		t.Fatalf("expected remote id from provider response, got %q", result.Contact.RemoteID)
	}
	if result.Contact.Contact.FirstName != "Jane" {
		t.Fatalf("expected unified contact, got %+v", result.Contact.Contact)
	}
	if result.FieldValues["fav_dish"] != "lasagna" {
		t.Fatalf("expected captured field value, got %v", result.FieldValues)
	}
	if !bytes.Equal(result.Remote, fixture.provider.createRaw) {
		t.Fatalf("expected raw snapshot in result, got %q", result.Remote)
	}

	events := fixture.stores.events
	if len(events.created) != 1 {
		t.Fatalf("expected one sync event, got %d", len(events.created))
	}
	if events.closed[events.created[0].ID] != core.SyncEventStatusSuccess {
		t.Fatalf("expected sync event closed as success, got %v", events.closed)
	}

	if len(fixture.notifier.events) != 1 || fixture.notifier.events[0] != "crm.contact.created" {
		t.Fatalf("expected webhook notification, got %v", fixture.notifier.events)
	}
	if fixture.notifier.eventIDs[0] != events.created[0].ID {
		t.Fatalf("expected notification tagged with audit event %s, got %q",
			events.created[0].ID, fixture.notifier.eventIDs[0])
	}
}

func TestAddContact_OmitsRemoteDataByDefault(t *testing.T) {
	fixture := newContactFixture(t)

	result, err := fixture.service.AddContact(context.Background(), AddContactRequest{
		LinkedUserID: "user-1",
		ProviderSlug: "zendesk",
		Contact:      core.Contact{FirstName: "Jane"},
	})
	if err != nil {
		t.Fatalf("add contact: %v", err)
	}
	if result.Remote != nil {
		t.Fatalf("expected no remote payload without the flag, got %q", result.Remote)
	}
	if len(fixture.stores.snapshots.snapshots) != 0 {
		t.Fatalf("expected no stored snapshot without the flag, got %d", len(fixture.stores.snapshots.snapshots))
	}
}

func TestAddContact_ValidatesRequest(t *testing.T) {
	fixture := newContactFixture(t)

	_, err := fixture.service.AddContact(context.Background(), AddContactRequest{
		LinkedUserID: "user-1",
		ProviderSlug: "zendesk",
	})
	if err == nil {
		t.Fatalf("expected contact name error")
	}
	if len(fixture.stores.events.created) != 0 {
		t.Fatalf("expected no sync event for invalid request")
	}
	if len(fixture.provider.seenPayloads) != 0 {
		t.Fatalf("expected no provider call for invalid request")
	}
}

func TestAddContact_ProviderFailureClosesEventAsFail(t *testing.T) {
	fixture := newContactFixture(t)
	fixture.provider.createErr = core.NewProviderAPIError("zendesk", "create_contact", 502, []byte("upstream down"))

	_, err := fixture.service.AddContact(context.Background(), AddContactRequest{
		LinkedUserID: "user-1",
		ProviderSlug: "zendesk",
		Contact:      core.Contact{FirstName: "Jane"},
	})
	if err == nil {
		t.Fatalf("expected provider error")
	}

	events := fixture.stores.events
	if len(events.created) != 1 {
		t.Fatalf("expected sync event, got %d", len(events.created))
	}
	eventID := events.created[0].ID
	if events.closed[eventID] != core.SyncEventStatusFail {
		t.Fatalf("expected event closed as fail, got %v", events.closed[eventID])
	}
	if events.reasons[eventID] == "" {
		t.Fatalf("expected failure reason on closed event")
	}
	if len(fixture.notifier.events) != 0 {
		t.Fatalf("expected no webhook on failure")
	}
}

func TestAddContact_ResponseWithoutRemoteIDFails(t *testing.T) {
	fixture := newContactFixture(t)
	fixture.provider.createRecord = map[string]any{"first_name": "Jane"}

	_, err := fixture.service.AddContact(context.Background(), AddContactRequest{
		LinkedUserID: "user-1",
		ProviderSlug: "zendesk",
		Contact:      core.Contact{FirstName: "Jane"},
	})
	if err == nil {
		t.Fatalf("expected missing remote id error")
	}
	if len(fixture.stores.contacts.upserts) != 0 {
		t.Fatalf("expected no contact persisted without a remote id")
	}
}

func TestAddContact_IsIdempotentByRemoteIdentity(t *testing.T) {
	fixture := newContactFixture(t)
	ctx := context.Background()
	req := AddContactRequest{
		LinkedUserID: "user-1",
		ProviderSlug: "zendesk",
		Contact:      core.Contact{FirstName: "Jane"},
	}

	first, err := fixture.service.AddContact(ctx, req)
	if err != nil {
		t.Fatalf("first add: %v", err)
	}
	second, err := fixture.service.AddContact(ctx, req)
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if first.Contact.ID != second.Contact.ID {
		t.Fatalf("expected same stored contact for same remote id, got %s and %s",
			first.Contact.ID, second.Contact.ID)
	}
	if len(fixture.stores.contacts.contacts) != 1 {
		t.Fatalf("expected one stored contact, got %d", len(fixture.stores.contacts.contacts))
	}
}

func TestBatchAddContacts_TagsResultsInInputOrder(t *testing.T) {
	fixture := newContactFixture(t)

	results := fixture.service.BatchAddContacts(context.Background(), []AddContactRequest{
		{LinkedUserID: "user-1", ProviderSlug: "zendesk", Contact: core.Contact{FirstName: "Jane"}},
		{LinkedUserID: "user-1", ProviderSlug: "zendesk"},
		{LinkedUserID: "user-1", ProviderSlug: "zendesk", Contact: core.Contact{FirstName: "John"}},
	})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for index, result := range results {
		if result.Index != index {
			t.Fatalf("expected result %d to keep its index, got %d", index, result.Index)
		}
	}
	if results[0].Err != nil || results[0].Contact == nil {
		t.Fatalf("expected first item to succeed, got %v", results[0].Err)
	}
	if results[1].Err == nil {
		t.Fatalf("expected second item to fail validation")
	}
	if results[2].Err != nil {
		t.Fatalf("expected third item to succeed despite sibling failure, got %v", results[2].Err)
	}
}

func TestGetContacts_ListsPersistedContacts(t *testing.T) {
	fixture := newContactFixture(t)
	ctx := context.Background()

	if _, err := fixture.service.AddContact(ctx, AddContactRequest{
		LinkedUserID:      "user-1",
		ProviderSlug:      "zendesk",
		Contact:           core.Contact{FirstName: "Jane"},
		IncludeRemoteData: true,
	}); err != nil {
		t.Fatalf("seed contact: %v", err)
	}

	results, err := fixture.service.GetContacts(ctx, ListContactsRequest{LinkedUserID: "user-1"})
	if err != nil {
		t.Fatalf("get contacts: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 contact, got %d", len(results))
	}
	if results[0].Remote != nil {
		t.Fatalf("expected remote omitted without IncludeRemote")
	}

	withRemote, err := fixture.service.GetContacts(ctx, ListContactsRequest{LinkedUserID: "user-1", IncludeRemote: true})
	if err != nil {
		t.Fatalf("get contacts with remote: %v", err)
	}
	if len(withRemote) != 1 || withRemote[0].Remote == nil {
		t.Fatalf("expected raw snapshot with IncludeRemote")
	}
}

func TestExtractRemoteID(t *testing.T) {
	if id, err := extractRemoteID(map[string]any{"id": "remote-1"}); err != nil || id != "remote-1" {
		t.Fatalf("expected string id, got %q %v", id, err)
	}
	if id, err := extractRemoteID(map[string]any{"id": float64(42)}); err != nil || id != "42" {
		t.Fatalf("expected numeric id, got %q %v", id, err)
	}
	if id, err := extractRemoteID(map[string]any{"contact_id": "c-7"}); err != nil || id != "c-7" {
		t.Fatalf("expected fallback key, got %q %v", id, err)
	}
	if _, err := extractRemoteID(map[string]any{"name": "Jane"}); err == nil {
		t.Fatalf("expected missing remote id error")
	}
}
