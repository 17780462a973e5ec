package core

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

type testProvider struct {
	slug string
}

func (p testProvider) Slug() string     { return p.slug }
func (p testProvider) AuthKind() string { return "oauth2" }

func (p testProvider) ExchangeCode(context.Context, CallbackRequest) (TokenGrant, error) {
	return TokenGrant{}, nil
}

func (p testProvider) RefreshGrant(context.Context, RefreshRequest) (TokenGrant, error) {
	return TokenGrant{}, nil
}

func (p testProvider) CreateRecord(context.Context, CreateRecordRequest) (CreateRecordResponse, error) {
	return CreateRecordResponse{}, nil
}

func (p testProvider) ListRecords(context.Context, ListRecordsRequest) (ListRecordsResponse, error) {
	return ListRecordsResponse{}, nil
}

func TestBuildRegistry_ListDeterministicOrder(t *testing.T) {
	registry, err := BuildRegistry(
		testProvider{slug: "zoho"},
		testProvider{slug: "attio"},
		testProvider{slug: "zendesk"},
	)
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}

	got := registry.Slugs()
	want := []string{"attio", "zendesk", "zoho"}
	if len(got) != len(want) {
		t.Fatalf("expected %d slugs, got %d", len(want), len(got))
	}
	for idx := range want {
		if got[idx] != want[idx] {
			t.Fatalf("expected slug %q at %d, got %q", want[idx], idx, got[idx])
		}
	}

	listed := registry.List()
	for idx, provider := range listed {
		if provider.Slug() != want[idx] {
			t.Fatalf("List order mismatch at %d: %q", idx, provider.Slug())
		}
	}
}

func TestBuildRegistry_RejectsDuplicatesAndBlanks(t *testing.T) {
	if _, err := BuildRegistry(testProvider{slug: "zoho"}, testProvider{slug: "zoho"}); err == nil {
		t.Fatalf("expected duplicate slug error")
	}
	if _, err := BuildRegistry(testProvider{slug: "  "}); err == nil {
		t.Fatalf("expected blank slug error")
	}
	if _, err := BuildRegistry(nil); err == nil {
		t.Fatalf("expected nil provider error")
	}
}

func TestProviderRegistry_Resolve(t *testing.T) {
	registry, err := BuildRegistry(testProvider{slug: "zendesk"})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}

	provider, err := registry.Resolve("zendesk")
	if err != nil {
		t.Fatalf("resolve known provider: %v", err)
	}
	if provider.Slug() != "zendesk" {
		t.Fatalf("expected zendesk, got %q", provider.Slug())
	}

	_, err = registry.Resolve("hubspot")
	if err == nil {
		t.Fatalf("expected not-found error")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected structured error, got %T", err)
	}
	if richErr.TextCode != UnifyErrorProviderNotFound {
		t.Fatalf("expected %s, got %q", UnifyErrorProviderNotFound, richErr.TextCode)
	}
}

func TestProviderRegistry_GetTrimsSlug(t *testing.T) {
	registry, err := BuildRegistry(testProvider{slug: "zoho"})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	if _, ok := registry.Get("  zoho  "); !ok {
		t.Fatalf("expected trimmed lookup to match")
	}
	if _, ok := registry.Get(""); ok {
		t.Fatalf("expected empty slug to miss")
	}
}
