package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-unify/webhooks"
	"github.com/uptrace/bun"
)

type WebhookEndpointStore struct {
	db   *bun.DB
	repo repository.Repository[*webhookEndpointRecord]
}

func NewWebhookEndpointStore(db *bun.DB) (*WebhookEndpointStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*webhookEndpointRecord](db, webhookEndpointHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid webhook endpoint repository wiring: %w", err)
		}
	}
	return &WebhookEndpointStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *WebhookEndpointStore) Register(ctx context.Context, in webhooks.RegisterEndpointInput) (webhooks.Endpoint, error) {
	if s == nil || s.repo == nil {
		return webhooks.Endpoint{}, fmt.Errorf("sqlstore: webhook endpoint store is not configured")
	}
	if strings.TrimSpace(in.URL) == "" {
		return webhooks.Endpoint{}, fmt.Errorf("sqlstore: endpoint url is required")
	}
	scope := strings.TrimSpace(in.Scope)
	if scope == "" {
		scope = "*"
	}
	now := time.Now().UTC()
	created, err := s.repo.Create(ctx, &webhookEndpointRecord{
		URL:       strings.TrimSpace(in.URL),
		Secret:    in.Secret,
		Scope:     scope,
		ProjectID: strings.TrimSpace(in.ProjectID),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return webhooks.Endpoint{}, err
	}
	return created.toEndpoint(), nil
}

// ListActive returns active endpoints for a project. Scope filtering happens
// in the notifier; the store only narrows by project and active flag.
func (s *WebhookEndpointStore) ListActive(ctx context.Context, eventType, projectID string) ([]webhooks.Endpoint, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: webhook endpoint store is not configured")
	}
	criteria := []repository.SelectCriteria{
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.deleted_at IS NULL").Where("?TableAlias.active = ?", true)
		}),
		repository.OrderBy("created_at ASC"),
	}
	if strings.TrimSpace(projectID) != "" {
		criteria = append(criteria, repository.SelectBy("project_id", "=", strings.TrimSpace(projectID)))
	}
	records, _, err := s.repo.List(ctx, criteria...)
	if err != nil {
		return nil, err
	}
	out := make([]webhooks.Endpoint, 0, len(records))
	for _, record := range records {
		out = append(out, record.toEndpoint())
	}
	return out, nil
}

func (s *WebhookEndpointStore) Deactivate(ctx context.Context, id string) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: webhook endpoint store is not configured")
	}
	trimmedID := strings.TrimSpace(id)
	if trimmedID == "" {
		return fmt.Errorf("sqlstore: endpoint id is required")
	}
	record, err := s.repo.GetByID(ctx, trimmedID)
	if err != nil {
		return err
	}
	record.Active = false
	record.UpdatedAt = time.Now().UTC()

	_, err = s.repo.Update(ctx, record, repository.UpdateByID(trimmedID))
	return err
}

func (r *webhookEndpointRecord) toEndpoint() webhooks.Endpoint {
	if r == nil {
		return webhooks.Endpoint{}
	}
	return webhooks.Endpoint{
		ID:        r.ID,
		URL:       r.URL,
		Secret:    r.Secret,
		Scope:     r.Scope,
		ProjectID: r.ProjectID,
		Active:    r.Active,
	}
}

var _ webhooks.EndpointStore = (*WebhookEndpointStore)(nil)
