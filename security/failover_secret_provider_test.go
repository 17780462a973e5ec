package security

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

type failingSecretProvider struct {
	err error
}

func (p failingSecretProvider) Encrypt(context.Context, []byte) ([]byte, error) {
	return nil, p.err
}

func (p failingSecretProvider) Decrypt(context.Context, []byte) ([]byte, error) {
	return nil, p.err
}

func TestFailoverSecretProvider_RequiresPrimary(t *testing.T) {
	if _, err := NewFailoverSecretProvider(nil); err == nil {
		t.Fatalf("expected primary provider error")
	}
}

func TestFailoverSecretProvider_FallbackPolicyRequiresFallback(t *testing.T) {
	primary, err := NewAppKeySecretProviderFromString("primary-key")
	if err != nil {
		t.Fatalf("primary: %v", err)
	}
	_, err = NewFailoverSecretProvider(primary,
		WithSecretProviderFailurePolicy(SecretProviderFailurePolicyFallback))
	if err == nil {
		t.Fatalf("expected missing fallback error")
	}
}

func TestFailoverSecretProvider_PrimaryServesRoundTrip(t *testing.T) {
	primary, err := NewAppKeySecretProviderFromString("primary-key")
	if err != nil {
		t.Fatalf("primary: %v", err)
	}
	provider, err := NewFailoverSecretProvider(primary)
	if err != nil {
		t.Fatalf("new failover provider: %v", err)
	}

	ciphertext, err := provider.Encrypt(context.Background(), []byte("token-1"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	plain, err := provider.Decrypt(context.Background(), ciphertext)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if string(plain) != "token-1" {
		t.Fatalf("expected round trip, got %q", plain)
	}

	keyID, version := provider.Metadata()
	if keyID != "app-key" || version != 1 {
		t.Fatalf("expected primary key metadata, got %s:%d", keyID, version)
	}
}

func TestFailoverSecretProvider_StrictPolicyNeverFallsBack(t *testing.T) {
	fallback, err := NewAppKeySecretProviderFromString("previous-key",
		WithKeyID("app-key-previous"))
	if err != nil {
		t.Fatalf("fallback: %v", err)
	}
	legacyCiphertext, err := fallback.Encrypt(context.Background(), []byte("token-1"))
	if err != nil {
		t.Fatalf("seal with fallback key: %v", err)
	}

	primary, err := NewAppKeySecretProviderFromString("primary-key")
	if err != nil {
		t.Fatalf("primary: %v", err)
	}
	provider, err := NewFailoverSecretProvider(primary,
		WithFallbackSecretProvider(fallback))
	if err != nil {
		t.Fatalf("new failover provider: %v", err)
	}

	_, err = provider.Decrypt(context.Background(), legacyCiphertext)
	if err == nil {
		t.Fatalf("expected strict policy to refuse the fallback key")
	}
	if !strings.Contains(err.Error(), string(SecretProviderFailurePolicyStrict)) {
		t.Fatalf("expected policy in error, got %v", err)
	}
}

func TestFailoverSecretProvider_FallbackDecryptsPreviousKey(t *testing.T) {
	fallback, err := NewAppKeySecretProviderFromString("previous-key",
		WithKeyID("app-key-previous"), WithVersion(2))
	if err != nil {
		t.Fatalf("fallback: %v", err)
	}
	legacyCiphertext, err := fallback.Encrypt(context.Background(), []byte("token-1"))
	if err != nil {
		t.Fatalf("seal with fallback key: %v", err)
	}

	primary, err := NewAppKeySecretProviderFromString("primary-key")
	if err != nil {
		t.Fatalf("primary: %v", err)
	}
	var diagnostics []SecretProviderDiagnostic
	provider, err := NewFailoverSecretProvider(primary,
		WithFallbackSecretProvider(fallback),
		WithSecretProviderFailurePolicy(SecretProviderFailurePolicyFallback),
		WithSecretProviderDiagnostics(func(event SecretProviderDiagnostic) {
			diagnostics = append(diagnostics, event)
		}),
	)
	if err != nil {
		t.Fatalf("new failover provider: %v", err)
	}

	plain, err := provider.Decrypt(context.Background(), legacyCiphertext)
	if err != nil {
		t.Fatalf("decrypt legacy ciphertext: %v", err)
	}
	if string(plain) != "token-1" {
		t.Fatalf("expected fallback decrypt, got %q", plain)
	}

	if len(diagnostics) != 2 {
		t.Fatalf("expected primary_failed then fallback_succeeded, got %d events", len(diagnostics))
	}
	if diagnostics[0].Outcome != "primary_failed" || diagnostics[1].Outcome != "fallback_succeeded" {
		t.Fatalf("unexpected diagnostic outcomes: %+v", diagnostics)
	}
	if diagnostics[0].Operation != "decrypt" || diagnostics[0].Error == "" {
		t.Fatalf("expected decrypt failure detail, got %+v", diagnostics[0])
	}
	if diagnostics[0].Primary != "app-key:1" || diagnostics[0].Fallback != "app-key-previous:2" {
		t.Fatalf("expected key labels, got %+v", diagnostics[0])
	}
}

func TestFailoverSecretProvider_EncryptFallsBackWhenPrimaryFails(t *testing.T) {
	fallback, err := NewAppKeySecretProviderFromString("previous-key",
		WithKeyID("app-key-previous"))
	if err != nil {
		t.Fatalf("fallback: %v", err)
	}
	provider, err := NewFailoverSecretProvider(
		failingSecretProvider{err: fmt.Errorf("primary unavailable")},
		WithFallbackSecretProvider(fallback),
		WithSecretProviderFailurePolicy(SecretProviderFailurePolicyFallback),
	)
	if err != nil {
		t.Fatalf("new failover provider: %v", err)
	}

	ciphertext, err := provider.Encrypt(context.Background(), []byte("token-1"))
	if err != nil {
		t.Fatalf("encrypt via fallback: %v", err)
	}
	plain, err := fallback.Decrypt(context.Background(), ciphertext)
	if err != nil || string(plain) != "token-1" {
		t.Fatalf("expected fallback-sealed ciphertext, got %q err=%v", plain, err)
	}

	keyID, version := provider.Metadata()
	if keyID != "app-key-previous" || version != 1 {
		t.Fatalf("expected fallback metadata after fallback encrypt, got %s:%d", keyID, version)
	}
}
