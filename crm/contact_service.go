// Package crm orchestrates contact synchronization across providers: it
// desunifies canonical contacts, calls the provider, unifies the response,
// and persists the result idempotently by remote identity.
package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-unify/core"
	"github.com/goliatone/go-unify/engine"
	"github.com/goliatone/go-unify/fieldmap"
)

const (
	objectTypeContact       = "contact"
	eventTypeContactCreated = "crm.contact.created"
)

// remoteIDKeys are the provider response keys checked, in order, for the
// record's remote identifier.
var remoteIDKeys = []string{"id", "contact_id"}

type ContactService struct {
	connections *core.ConnectionService
	engine      *engine.Engine
	fields      *fieldmap.Service
	contacts    core.ContactStore
	snapshots   core.SnapshotStore
	events      core.SyncEventStore
	notifier    core.WebhookNotifier
	logger      core.Logger
	metrics     core.MetricsRecorder
	errorMapper core.ErrorMapper
}

type Option func(*ContactService)

func WithLogger(logger core.Logger) Option {
	return func(s *ContactService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(s *ContactService) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

func WithWebhookNotifier(notifier core.WebhookNotifier) Option {
	return func(s *ContactService) {
		s.notifier = notifier
	}
}

func WithErrorMapper(mapper core.ErrorMapper) Option {
	return func(s *ContactService) {
		if mapper != nil {
			s.errorMapper = mapper
		}
	}
}

func NewContactService(
	connections *core.ConnectionService,
	eng *engine.Engine,
	fields *fieldmap.Service,
	stores core.StoreProvider,
	opts ...Option,
) (*ContactService, error) {
	if connections == nil {
		return nil, fmt.Errorf("crm: connection service is required")
	}
	if eng == nil {
		return nil, fmt.Errorf("crm: unification engine is required")
	}
	if fields == nil {
		return nil, fmt.Errorf("crm: field mapping service is required")
	}
	if stores == nil {
		return nil, fmt.Errorf("crm: store provider is required")
	}

	deps := connections.Dependencies()
	service := &ContactService{
		connections: connections,
		engine:      eng,
		fields:      fields,
		contacts:    stores.ContactStore(),
		snapshots:   stores.SnapshotStore(),
		events:      stores.SyncEventStore(),
		notifier:    deps.Notifier,
		logger:      glog.Ensure(deps.Logger),
		metrics:     deps.MetricsRecorder,
		errorMapper: deps.ErrorMapper,
	}
	if service.contacts == nil {
		return nil, fmt.Errorf("crm: contact store is required")
	}
	if service.events == nil {
		return nil, fmt.Errorf("crm: sync event store is required")
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(service)
	}
	return service, nil
}

type AddContactRequest struct {
	LinkedUserID string
	ProviderSlug string
	ProjectID    string
	Contact      core.Contact
	// IncludeRemoteData keeps the provider's raw response: the snapshot is
	// stored and the result carries the remote bytes. Off by default.
	IncludeRemoteData bool
}

// ContactResult is a persisted canonical contact with its captured custom
// field values and, when requested, the raw provider snapshot.
type ContactResult struct {
	Contact     core.StoredContact
	FieldValues map[string]any
	Remote      []byte
}

// AddContact pushes one canonical contact to the provider and persists the
// unified result. The whole operation is audited through a sync event that
// closes as success or fail.
func (s *ContactService) AddContact(ctx context.Context, req AddContactRequest) (result *ContactResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"provider_id":    req.ProviderSlug,
		"linked_user_id": req.LinkedUserID,
		"object_type":    objectTypeContact,
	}
	defer func() {
		s.observe(ctx, startedAt, "add_contact", err, fields)
	}()

	if err = validateAddContactRequest(req); err != nil {
		err = s.mapError(err)
		return nil, err
	}

	event, eventErr := s.events.Create(ctx, core.CreateSyncEventInput{
		Type:         eventTypeContactCreated,
		Method:       http.MethodPost,
		URL:          "/crm/contact",
		Direction:    "0",
		ProviderSlug: req.ProviderSlug,
		LinkedUserID: req.LinkedUserID,
	})
	if eventErr != nil {
		err = s.mapError(eventErr)
		return nil, err
	}
	defer func() {
		status := core.SyncEventStatusSuccess
		reason := ""
		if err != nil {
			status = core.SyncEventStatusFail
			reason = err.Error()
		}
		_ = s.events.Close(ctx, event.ID, status, reason)
	}()

	connection, err := s.connections.FindScoped(ctx, req.LinkedUserID, req.ProviderSlug)
	if err != nil {
		return nil, err
	}

	mappings, err := s.fields.MappingsFor(ctx, objectTypeContact, req.ProviderSlug, req.LinkedUserID)
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}

	payload, err := s.engine.Desunify(ctx, objectTypeContact, req.ProviderSlug, req.Contact, mappings)
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}

	connection, err = s.connections.EnsureFresh(ctx, connection.ID)
	if err != nil {
		return nil, err
	}
	accessToken, err := s.connections.UnsealAccessToken(ctx, connection)
	if err != nil {
		return nil, err
	}
	provider, err := s.connections.Registry().Resolve(req.ProviderSlug)
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}

	response, err := provider.CreateRecord(ctx, core.CreateRecordRequest{
		ObjectType:  objectTypeContact,
		AccessToken: accessToken,
		AccountURL:  connection.AccountURL,
		Payload:     payload,
	})
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}

	unified, err := s.engine.Unify(ctx, objectTypeContact, req.ProviderSlug, response.Record, mappings)
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}
	if len(unified) == 0 {
		err = s.mapError(core.NewMappingError(
			"crm: provider response unified to no contacts",
			map[string]any{"provider": req.ProviderSlug},
		))
		return nil, err
	}
	canonical := unified[0]

	remoteID, err := extractRemoteID(response.Record)
	if err != nil {
		err = s.mapError(core.NewMappingError(err.Error(), map[string]any{"provider": req.ProviderSlug}))
		return nil, err
	}

	stored, err := s.contacts.Upsert(ctx, core.UpsertContactInput{
		RemoteID:       remoteID,
		RemotePlatform: req.ProviderSlug,
		LinkedUserID:   req.LinkedUserID,
		Contact:        canonical,
	})
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}
	fields["connection_id"] = connection.ID

	if len(canonical.FieldMappings) > 0 {
		if saveErr := s.fields.SaveValues(ctx, stored.ID, req.ProviderSlug, req.LinkedUserID, canonical.FieldMappings); saveErr != nil {
			err = s.mapError(saveErr)
			return nil, err
		}
	}
	if req.IncludeRemoteData && s.snapshots != nil && len(response.Raw) > 0 {
		if snapErr := s.snapshots.Upsert(ctx, stored.ID, req.ProviderSlug, response.Raw); snapErr != nil {
			err = s.mapError(snapErr)
			return nil, err
		}
	}

	result, err = s.GetContact(ctx, stored.ID, req.IncludeRemoteData)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, req.ProjectID, event.ID, result)
	return result, nil
}

// BatchItemResult tags one batch element with its outcome; Index refers to
// the position in the request slice.
type BatchItemResult struct {
	Index   int
	Contact *ContactResult
	Err     error
}

// BatchAddContacts pushes each contact concurrently. Results come back in
// input order, each carrying its own error; one failure never aborts the
// rest of the batch.
func (s *ContactService) BatchAddContacts(ctx context.Context, reqs []AddContactRequest) []BatchItemResult {
	results := make([]BatchItemResult, len(reqs))
	var wg sync.WaitGroup
	for index, req := range reqs {
		wg.Add(1)
		go func(index int, req AddContactRequest) {
			defer wg.Done()
			contact, err := s.AddContact(ctx, req)
			results[index] = BatchItemResult{Index: index, Contact: contact, Err: err}
		}(index, req)
	}
	wg.Wait()
	return results
}

// GetContact reads one persisted contact with its custom field values.
func (s *ContactService) GetContact(ctx context.Context, id string, includeRemote bool) (*ContactResult, error) {
	if s == nil || s.contacts == nil {
		return nil, s.mapError(fmt.Errorf("crm: contact store is required"))
	}
	stored, err := s.contacts.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, s.mapError(err)
	}
	result := &ContactResult{Contact: stored}

	values, err := s.fields.ValuesFor(ctx, stored.ID)
	if err != nil {
		return nil, s.mapError(err)
	}
	if len(values) > 0 {
		result.FieldValues = values
	}

	if includeRemote && s.snapshots != nil {
		snapshot, found, snapErr := s.snapshots.Get(ctx, stored.ID)
		if snapErr != nil {
			return nil, s.mapError(snapErr)
		}
		if found {
			result.Remote = snapshot.Data
		}
	}
	return result, nil
}

type ListContactsRequest struct {
	LinkedUserID  string
	ProviderSlug  string
	IncludeRemote bool
	Limit         int
	Offset        int
}

// GetContacts lists persisted contacts for a linked user.
func (s *ContactService) GetContacts(ctx context.Context, req ListContactsRequest) ([]*ContactResult, error) {
	if s == nil || s.contacts == nil {
		return nil, s.mapError(fmt.Errorf("crm: contact store is required"))
	}
	stored, err := s.contacts.List(ctx, core.ContactFilter{
		LinkedUserID:   strings.TrimSpace(req.LinkedUserID),
		RemotePlatform: strings.TrimSpace(req.ProviderSlug),
		Limit:          req.Limit,
		Offset:         req.Offset,
	})
	if err != nil {
		return nil, s.mapError(err)
	}

	results := make([]*ContactResult, 0, len(stored))
	for _, contact := range stored {
		result, resultErr := s.GetContact(ctx, contact.ID, req.IncludeRemote)
		if resultErr != nil {
			return nil, resultErr
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *ContactService) notify(ctx context.Context, projectID, eventID string, result *ContactResult) {
	if s == nil || s.notifier == nil || result == nil {
		return
	}
	payload, err := json.Marshal(result.Contact)
	if err != nil {
		s.logger.Error("crm: encode webhook payload failed", "error", err.Error())
		return
	}
	if err := s.notifier.Notify(ctx, eventTypeContactCreated, projectID, eventID, payload); err != nil {
		s.logger.Error("crm: webhook notify failed",
			"error", err.Error(),
			"event_type", eventTypeContactCreated,
			"event_id", eventID,
		)
	}
}

func (s *ContactService) observe(ctx context.Context, startedAt time.Time, operation string, err error, fields map[string]any) {
	if s == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}

	contextFields := make(map[string]any, len(fields)+3)
	for key, value := range fields {
		contextFields[key] = value
	}
	contextFields["event_type"] = operation
	contextFields["status"] = status
	contextFields["duration_ms"] = time.Since(startedAt).Milliseconds()
	if err != nil {
		contextFields["error"] = err.Error()
	}

	tags := map[string]string{
		"operation": operation,
		"status":    status,
	}
	for _, key := range []string{"provider_id", "linked_user_id", "object_type"} {
		if value := strings.TrimSpace(fmt.Sprint(contextFields[key])); value != "" && value != "<nil>" {
			tags[key] = value
		}
	}
	if s.metrics != nil {
		s.metrics.IncCounter(ctx, "unify."+operation+".total", 1, tags)
		s.metrics.ObserveHistogram(ctx, "unify."+operation+".duration_ms", float64(time.Since(startedAt).Milliseconds()), tags)
	}

	logger := s.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	args := make([]any, 0, len(contextFields)*2)
	for key, value := range contextFields {
		args = append(args, key, value)
	}
	if err != nil {
		logger.Error(operation+" failed", args...)
		return
	}
	logger.Info(operation+" succeeded", args...)
}

func (s *ContactService) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func validateAddContactRequest(req AddContactRequest) error {
	if strings.TrimSpace(req.LinkedUserID) == "" {
		return fmt.Errorf("crm: linked user id is required")
	}
	if strings.TrimSpace(req.ProviderSlug) == "" {
		return fmt.Errorf("crm: provider slug is required")
	}
	if strings.TrimSpace(req.Contact.FirstName) == "" && strings.TrimSpace(req.Contact.LastName) == "" {
		return fmt.Errorf("crm: contact name is required")
	}
	return nil
}

// extractRemoteID reads the provider's identifier for the new record.
func extractRemoteID(record map[string]any) (string, error) {
	for _, key := range remoteIDKeys {
		value, ok := record[key]
		if !ok || value == nil {
			continue
		}
		switch typed := value.(type) {
		case string:
			if trimmed := strings.TrimSpace(typed); trimmed != "" {
				return trimmed, nil
			}
		case float64:
			return strconv.FormatFloat(typed, 'f', -1, 64), nil
		case int:
			return strconv.Itoa(typed), nil
		case int64:
			return strconv.FormatInt(typed, 10), nil
		case json.Number:
			return typed.String(), nil
		}
	}
	return "", fmt.Errorf("crm: provider response carries no remote id (checked %s)", strings.Join(remoteIDKeys, ", "))
}
