package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type scriptedProvider struct {
	testProvider

	mu           sync.Mutex
	exchangeGrant TokenGrant
	exchangeErr   error
	refreshGrant  TokenGrant
	refreshErrs   []error
	refreshCalls  int
	seenRefresh   []string
}

func (p *scriptedProvider) ExchangeCode(_ context.Context, _ CallbackRequest) (TokenGrant, error) {
	if p.exchangeErr != nil {
		return TokenGrant{}, p.exchangeErr
	}
	return p.exchangeGrant, nil
}

func (p *scriptedProvider) RefreshGrant(_ context.Context, req RefreshRequest) (TokenGrant, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seenRefresh = append(p.seenRefresh, req.RefreshToken)
	call := p.refreshCalls
	p.refreshCalls++
	if call < len(p.refreshErrs) && p.refreshErrs[call] != nil {
		return TokenGrant{}, p.refreshErrs[call]
	}
	return p.refreshGrant, nil
}

type memoryConnectionStore struct {
	mu          sync.Mutex
	connections map[string]Connection
	upserts     []UpsertConnectionInput
	statuses    []string
}

func newMemoryConnectionStore(seed ...Connection) *memoryConnectionStore {
	store := &memoryConnectionStore{connections: map[string]Connection{}}
	for _, conn := range seed {
		store.connections[conn.ID] = conn
	}
	return store
}

func (s *memoryConnectionStore) Get(_ context.Context, id string) (Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.connections[strings.TrimSpace(id)]
	if !ok {
		return Connection{}, NewNotFoundError("connection not found: "+id, nil)
	}
	return conn, nil
}

func (s *memoryConnectionStore) FindScoped(_ context.Context, linkedUserID, providerSlug string) (Connection, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.connections {
		if conn.LinkedUserID == linkedUserID && conn.ProviderSlug == providerSlug {
			return conn, true, nil
		}
	}
	return Connection{}, false, nil
}

func (s *memoryConnectionStore) Upsert(_ context.Context, in UpsertConnectionInput) (Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts = append(s.upserts, in)
	for id, conn := range s.connections {
		if conn.LinkedUserID == in.LinkedUserID && conn.ProviderSlug == in.ProviderSlug {
			conn.TokenType = in.TokenType
			conn.AccessToken = in.AccessToken
			conn.RefreshToken = in.RefreshToken
			conn.ExpiresAt = in.ExpiresAt
			conn.AccountURL = in.AccountURL
			conn.Status = ConnectionStatusValid
			conn.LastError = ""
			s.connections[id] = conn
			return conn, nil
		}
	}
	conn := Connection{
		ID:           fmt.Sprintf("conn-%d", len(s.connections)+1),
		ProviderSlug: in.ProviderSlug,
		LinkedUserID: in.LinkedUserID,
		ProjectID:    in.ProjectID,
		TokenType:    in.TokenType,
		AccessToken:  in.AccessToken,
		RefreshToken: in.RefreshToken,
		ExpiresAt:    in.ExpiresAt,
		AccountURL:   in.AccountURL,
		Status:       ConnectionStatusValid,
	}
	s.connections[conn.ID] = conn
	return conn, nil
}

func (s *memoryConnectionStore) UpdateTokens(_ context.Context, in UpdateTokensInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.connections[in.ConnectionID]
	if !ok {
		return NewNotFoundError("connection not found: "+in.ConnectionID, nil)
	}
	conn.AccessToken = in.AccessToken
	conn.RefreshToken = in.RefreshToken
	conn.ExpiresAt = in.ExpiresAt
	s.connections[in.ConnectionID] = conn
	return nil
}

func (s *memoryConnectionStore) UpdateStatus(_ context.Context, id string, status ConnectionStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.connections[id]
	if !ok {
		return NewNotFoundError("connection not found: "+id, nil)
	}
	conn.Status = status
	conn.LastError = reason
	s.connections[id] = conn
	s.statuses = append(s.statuses, string(status))
	return nil
}

// prefixVault fakes the secret provider with a visible seal marker.
type prefixVault struct{}

func (prefixVault) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	return append([]byte("sealed:"), plaintext...), nil
}

func (prefixVault) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	payload := string(ciphertext)
	if !strings.HasPrefix(payload, "sealed:") {
		return nil, fmt.Errorf("security: invalid ciphertext envelope prefix")
	}
	return []byte(strings.TrimPrefix(payload, "sealed:")), nil
}

func newTestService(t *testing.T, store ConnectionStore, providers ...Provider) *ConnectionService {
	t.Helper()
	registry, err := BuildRegistry(providers...)
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	svc, err := NewConnectionService(Config{},
		WithRegistry(registry),
		WithConnectionStore(store),
		WithSecretProvider(prefixVault{}),
	)
	if err != nil {
		t.Fatalf("new connection service: %v", err)
	}
	return svc
}

func TestHandleCallback_SealsTokensAndUpserts(t *testing.T) {
	expiresAt := time.Now().UTC().Add(time.Hour)
	provider := &scriptedProvider{
		testProvider: testProvider{slug: "zendesk"},
		exchangeGrant: TokenGrant{
			AccessToken:  "access-plain",
			RefreshToken: "refresh-plain",
			ExpiresAt:    expiresAt,
			AccountURL:   "https://accounts.example.com",
		},
	}
	store := newMemoryConnectionStore()
	svc := newTestService(t, store, provider)

	connection, err := svc.HandleCallback(context.Background(), CallbackRequest{
		ProviderSlug: "zendesk",
		LinkedUserID: "user-1",
		ProjectID:    "project-1",
		Code:         "auth-code",
	})
	if err != nil {
		t.Fatalf("handle callback: %v", err)
	}
	if connection.ID == "" {
		t.Fatalf("expected persisted connection id")
	}

	if len(store.upserts) != 1 {
		t.Fatalf("expected one upsert, got %d", len(store.upserts))
	}
	upsert := store.upserts[0]
	if upsert.AccessToken != "sealed:access-plain" {
		t.Fatalf("expected sealed access token, got %q", upsert.AccessToken)
	}
	if upsert.RefreshToken != "sealed:refresh-plain" {
		t.Fatalf("expected sealed refresh token, got %q", upsert.RefreshToken)
	}
	if upsert.TokenType != "oauth" {
		t.Fatalf("expected default token type, got %q", upsert.TokenType)
	}
	if !upsert.ExpiresAt.Equal(expiresAt) {
		t.Fatalf("expected grant expiry to persist")
	}
}

func TestHandleCallback_NonRotatingProviderStoresEmptyRefreshToken(t *testing.T) {
	provider := &scriptedProvider{
		testProvider:  testProvider{slug: "zendesk"},
		exchangeGrant: TokenGrant{AccessToken: "access-plain"},
	}
	store := newMemoryConnectionStore()
	svc := newTestService(t, store, provider)

	if _, err := svc.HandleCallback(context.Background(), CallbackRequest{
		ProviderSlug: "zendesk",
		LinkedUserID: "user-1",
		Code:         "auth-code",
	}); err != nil {
		t.Fatalf("handle callback: %v", err)
	}
	if store.upserts[0].RefreshToken != "" {
		t.Fatalf("expected empty refresh token, got %q", store.upserts[0].RefreshToken)
	}
}

func TestHandleCallback_ValidatesRequest(t *testing.T) {
	provider := &scriptedProvider{testProvider: testProvider{slug: "zendesk"}}
	svc := newTestService(t, newMemoryConnectionStore(), provider)

	_, err := svc.HandleCallback(context.Background(), CallbackRequest{
		ProviderSlug: "zendesk",
		LinkedUserID: "user-1",
	})
	if err == nil {
		t.Fatalf("expected missing code error")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.TextCode != UnifyErrorBadInput {
		t.Fatalf("expected bad input code, got %v", err)
	}
}

func TestHandleCallback_UnknownProvider(t *testing.T) {
	provider := &scriptedProvider{testProvider: testProvider{slug: "zendesk"}}
	svc := newTestService(t, newMemoryConnectionStore(), provider)

	_, err := svc.HandleCallback(context.Background(), CallbackRequest{
		ProviderSlug: "hubspot",
		LinkedUserID: "user-1",
		Code:         "auth-code",
	})
	if err == nil {
		t.Fatalf("expected provider not found error")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.TextCode != UnifyErrorProviderNotFound {
		t.Fatalf("expected provider not found code, got %v", err)
	}
}

func TestRefresh_RotatingProviderReplacesRefreshToken(t *testing.T) {
	provider := &scriptedProvider{
		testProvider: testProvider{slug: "zendesk"},
		refreshGrant: TokenGrant{AccessToken: "access-2", RefreshToken: "refresh-2"},
	}
	store := newMemoryConnectionStore(Connection{
		ID:           "conn-1",
		ProviderSlug: "zendesk",
		LinkedUserID: "user-1",
		AccessToken:  "sealed:access-1",
		RefreshToken: "sealed:refresh-1",
		Status:       ConnectionStatusValid,
	})
	svc := newTestService(t, store, provider)

	if err := svc.Refresh(context.Background(), "conn-1"); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if len(provider.seenRefresh) != 1 || provider.seenRefresh[0] != "refresh-1" {
		t.Fatalf("expected provider to receive unsealed refresh token, got %v", provider.seenRefresh)
	}
	conn, err := store.Get(context.Background(), "conn-1")
	if err != nil {
		t.Fatalf("get connection: %v", err)
	}
	if conn.AccessToken != "sealed:access-2" {
		t.Fatalf("expected rotated access token, got %q", conn.AccessToken)
	}
	if conn.RefreshToken != "sealed:refresh-2" {
		t.Fatalf("expected rotated refresh token, got %q", conn.RefreshToken)
	}
	if conn.Status != ConnectionStatusValid {
		t.Fatalf("expected valid status, got %q", conn.Status)
	}
}

func TestRefresh_NonRotatingProviderKeepsStoredRefreshToken(t *testing.T) {
	provider := &scriptedProvider{
		testProvider: testProvider{slug: "zoho"},
		refreshGrant: TokenGrant{AccessToken: "access-2"},
	}
	store := newMemoryConnectionStore(Connection{
		ID:           "conn-1",
		ProviderSlug: "zoho",
		LinkedUserID: "user-1",
		AccessToken:  "sealed:access-1",
		RefreshToken: "sealed:refresh-1",
		Status:       ConnectionStatusValid,
	})
	svc := newTestService(t, store, provider)

	if err := svc.Refresh(context.Background(), "conn-1"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	conn, _ := store.Get(context.Background(), "conn-1")
	if conn.RefreshToken != "sealed:refresh-1" {
		t.Fatalf("expected original refresh token kept, got %q", conn.RefreshToken)
	}
	if conn.AccessToken != "sealed:access-2" {
		t.Fatalf("expected new access token, got %q", conn.AccessToken)
	}
}

func TestRefresh_MissingRefreshTokenIsUnrecoverable(t *testing.T) {
	provider := &scriptedProvider{testProvider: testProvider{slug: "zendesk"}}
	store := newMemoryConnectionStore(Connection{
		ID:           "conn-1",
		ProviderSlug: "zendesk",
		LinkedUserID: "user-1",
		AccessToken:  "sealed:access-1",
		Status:       ConnectionStatusValid,
	})
	svc := newTestService(t, store, provider)

	err := svc.Refresh(context.Background(), "conn-1")
	if err == nil {
		t.Fatalf("expected missing refresh token error")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.TextCode != UnifyErrorRefreshTokenMissing {
		t.Fatalf("expected refresh token missing code, got %v", err)
	}
}

func TestEnsureFresh_RefreshesExpiredConnection(t *testing.T) {
	provider := &scriptedProvider{
		testProvider: testProvider{slug: "zendesk"},
		refreshGrant: TokenGrant{
			AccessToken: "access-2",
			ExpiresAt:   time.Now().UTC().Add(time.Hour),
		},
	}
	store := newMemoryConnectionStore(Connection{
		ID:           "conn-1",
		ProviderSlug: "zendesk",
		LinkedUserID: "user-1",
		AccessToken:  "sealed:access-1",
		RefreshToken: "sealed:refresh-1",
		ExpiresAt:    time.Now().UTC().Add(-time.Minute),
		Status:       ConnectionStatusValid,
	})
	svc := newTestService(t, store, provider)

	conn, err := svc.EnsureFresh(context.Background(), "conn-1")
	if err != nil {
		t.Fatalf("ensure fresh: %v", err)
	}
	if conn.AccessToken != "sealed:access-2" {
		t.Fatalf("expected refreshed access token, got %q", conn.AccessToken)
	}
	if provider.refreshCalls != 1 {
		t.Fatalf("expected one refresh call, got %d", provider.refreshCalls)
	}
}

func TestEnsureFresh_SkipsRefreshWhenTokenIsUsable(t *testing.T) {
	provider := &scriptedProvider{testProvider: testProvider{slug: "zendesk"}}
	store := newMemoryConnectionStore(Connection{
		ID:           "conn-1",
		ProviderSlug: "zendesk",
		LinkedUserID: "user-1",
		AccessToken:  "sealed:access-1",
		ExpiresAt:    time.Now().UTC().Add(time.Hour),
		Status:       ConnectionStatusValid,
	})
	svc := newTestService(t, store, provider)

	if _, err := svc.EnsureFresh(context.Background(), "conn-1"); err != nil {
		t.Fatalf("ensure fresh: %v", err)
	}
	if provider.refreshCalls != 0 {
		t.Fatalf("expected no refresh calls, got %d", provider.refreshCalls)
	}
}

func TestFindScoped_NotFound(t *testing.T) {
	provider := &scriptedProvider{testProvider: testProvider{slug: "zendesk"}}
	svc := newTestService(t, newMemoryConnectionStore(), provider)

	_, err := svc.FindScoped(context.Background(), "user-1", "zendesk")
	if err == nil {
		t.Fatalf("expected not found error")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.TextCode != UnifyErrorConnectionNotFound {
		t.Fatalf("expected connection not found code, got %v", err)
	}
}

func TestUnsealAccessToken(t *testing.T) {
	provider := &scriptedProvider{testProvider: testProvider{slug: "zendesk"}}
	svc := newTestService(t, newMemoryConnectionStore(), provider)

	token, err := svc.UnsealAccessToken(context.Background(), Connection{AccessToken: "sealed:access-1"})
	if err != nil {
		t.Fatalf("unseal: %v", err)
	}
	if token != "access-1" {
		t.Fatalf("expected plaintext token, got %q", token)
	}
}
