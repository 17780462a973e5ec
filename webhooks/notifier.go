package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

const (
	signatureHeader = "X-Unify-Signature-256"
	eventHeader     = "X-Unify-Event"
	eventIDHeader   = "X-Unify-Event-Id"
)

// Endpoint is a registered outbound webhook target. Scope is a comma
// separated list of event types, with "*" matching everything.
type Endpoint struct {
	ID        string
	URL       string
	Secret    string
	Scope     string
	ProjectID string
	Active    bool
}

type RegisterEndpointInput struct {
	URL       string
	Secret    string
	Scope     string
	ProjectID string
}

type EndpointStore interface {
	Register(ctx context.Context, in RegisterEndpointInput) (Endpoint, error)
	ListActive(ctx context.Context, eventType, projectID string) ([]Endpoint, error)
}

type RetryPolicy interface {
	NextDelay(attempt int) time.Duration
}

type ExponentialRetryPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

func (p ExponentialRetryPolicy) NextDelay(attempt int) time.Duration {
	initial := p.Initial
	if initial <= 0 {
		initial = time.Second
	}
	maximum := p.Max
	if maximum <= 0 {
		maximum = 30 * time.Second
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}

// Notifier fans closed sync events out to every registered endpoint whose
// scope matches. Delivery is at-least-once per endpoint with bounded retries;
// one endpoint failing does not stop the others.
type Notifier struct {
	endpoints   EndpointStore
	client      *http.Client
	retryPolicy RetryPolicy
	maxAttempts int
	timeout     time.Duration
	logger      glog.Logger
}

type NotifierOption func(*Notifier)

func WithHTTPClient(client *http.Client) NotifierOption {
	return func(n *Notifier) {
		if client != nil {
			n.client = client
		}
	}
}

func WithRetryPolicy(policy RetryPolicy) NotifierOption {
	return func(n *Notifier) {
		if policy != nil {
			n.retryPolicy = policy
		}
	}
}

func WithMaxAttempts(attempts int) NotifierOption {
	return func(n *Notifier) {
		if attempts > 0 {
			n.maxAttempts = attempts
		}
	}
}

func WithTimeout(timeout time.Duration) NotifierOption {
	return func(n *Notifier) {
		if timeout > 0 {
			n.timeout = timeout
		}
	}
}

func WithLogger(logger glog.Logger) NotifierOption {
	return func(n *Notifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

func NewNotifier(endpoints EndpointStore, opts ...NotifierOption) (*Notifier, error) {
	if endpoints == nil {
		return nil, fmt.Errorf("webhooks: endpoint store is required")
	}
	notifier := &Notifier{
		endpoints:   endpoints,
		client:      &http.Client{},
		retryPolicy: ExponentialRetryPolicy{},
		maxAttempts: 5,
		timeout:     10 * time.Second,
		logger:      glog.Ensure(nil),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(notifier)
	}
	return notifier, nil
}

// Notify delivers one audited event. eventID is the sync event that closed;
// consumers correlate deliveries with it through the X-Unify-Event-Id header.
func (n *Notifier) Notify(ctx context.Context, eventType, projectID, eventID string, payload []byte) error {
	if n == nil || n.endpoints == nil {
		return fmt.Errorf("webhooks: notifier is not configured")
	}
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return fmt.Errorf("webhooks: event type is required")
	}

	endpoints, err := n.endpoints.ListActive(ctx, eventType, strings.TrimSpace(projectID))
	if err != nil {
		return err
	}

	eventID = strings.TrimSpace(eventID)
	var firstErr error
	for _, endpoint := range endpoints {
		if !ScopeMatches(endpoint.Scope, eventType) {
			continue
		}
		if err := n.deliver(ctx, endpoint, eventType, eventID, payload); err != nil {
			n.logger.Error("webhooks: delivery failed",
				"endpoint_id", endpoint.ID,
				"event_type", eventType,
				"event_id", eventID,
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (n *Notifier) deliver(ctx context.Context, endpoint Endpoint, eventType, eventID string, payload []byte) error {
	var lastErr error
	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := n.retryPolicy.NextDelay(attempt - 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if lastErr = n.post(ctx, endpoint, eventType, eventID, payload); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("webhooks: endpoint %s exhausted %d attempts: %w", endpoint.ID, n.maxAttempts, lastErr)
}

func (n *Notifier) post(ctx context.Context, endpoint Endpoint, eventType, eventID string, payload []byte) error {
	requestCtx := ctx
	if n.timeout > 0 {
		var cancel context.CancelFunc
		requestCtx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	request, err := http.NewRequestWithContext(requestCtx, http.MethodPost, endpoint.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set(eventHeader, eventType)
	if eventID != "" {
		request.Header.Set(eventIDHeader, eventID)
	}
	if endpoint.Secret != "" {
		request.Header.Set(signatureHeader, Sign(endpoint.Secret, payload))
	}

	response, err := n.client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()
	io.Copy(io.Discard, io.LimitReader(response.Body, 4096))

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("webhooks: endpoint returned status %d", response.StatusCode)
	}
	return nil
}

// Sign computes the hex HMAC-SHA256 tag consumers verify deliveries with.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// ScopeMatches reports whether an endpoint's scope covers an event type.
func ScopeMatches(scope, eventType string) bool {
	scope = strings.TrimSpace(scope)
	if scope == "" || scope == "*" {
		return true
	}
	for _, entry := range strings.Split(scope, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "*" || strings.EqualFold(entry, eventType) {
			return true
		}
	}
	return false
}
