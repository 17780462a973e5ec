package security

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-unify/core"
)

type SecretProviderFailurePolicy string

const (
	SecretProviderFailurePolicyStrict   SecretProviderFailurePolicy = "strict_fail"
	SecretProviderFailurePolicyFallback SecretProviderFailurePolicy = "fallback_allowed"
)

// SecretProviderDiagnostic is emitted whenever the primary key fails, so
// operators can watch a rotation drain instead of grepping logs.
type SecretProviderDiagnostic struct {
	Operation string
	Policy    SecretProviderFailurePolicy
	Outcome   string
	Primary   string
	Fallback  string
	Error     string
}

type SecretProviderDiagnosticHook func(event SecretProviderDiagnostic)

type FailoverOption func(*FailoverSecretProvider)

// FailoverSecretProvider pairs the active vault key with the previous one
// during a rotation. New writes always use the primary; reads that fail under
// the primary retry against the fallback when the policy allows it.
type FailoverSecretProvider struct {
	primary  core.SecretProvider
	fallback core.SecretProvider
	policy   SecretProviderFailurePolicy
	onEvent  SecretProviderDiagnosticHook

	mu          sync.RWMutex
	lastKeyID   string
	lastVersion int
}

func NewFailoverSecretProvider(primary core.SecretProvider, opts ...FailoverOption) (*FailoverSecretProvider, error) {
	if primary == nil {
		return nil, fmt.Errorf("security: primary secret provider is required")
	}
	provider := &FailoverSecretProvider{
		primary: primary,
		policy:  SecretProviderFailurePolicyStrict,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(provider)
	}
	provider.policy = normalizeFailurePolicy(provider.policy)
	if provider.policy == SecretProviderFailurePolicyFallback && provider.fallback == nil {
		return nil, fmt.Errorf("security: fallback policy requires a configured fallback secret provider")
	}
	provider.noteKey(provider.primary)
	return provider, nil
}

func WithFallbackSecretProvider(fallback core.SecretProvider) FailoverOption {
	return func(p *FailoverSecretProvider) {
		if p != nil {
			p.fallback = fallback
		}
	}
}

func WithSecretProviderFailurePolicy(policy SecretProviderFailurePolicy) FailoverOption {
	return func(p *FailoverSecretProvider) {
		if p != nil {
			p.policy = normalizeFailurePolicy(policy)
		}
	}
}

func WithSecretProviderDiagnostics(hook SecretProviderDiagnosticHook) FailoverOption {
	return func(p *FailoverSecretProvider) {
		if p != nil {
			p.onEvent = hook
		}
	}
}

func (p *FailoverSecretProvider) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("security: secret provider is nil")
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("security: plaintext is required")
	}
	out, err := p.attempt(ctx, "encrypt", plaintext, core.SecretProvider.Encrypt)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *FailoverSecretProvider) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("security: secret provider is nil")
	}
	if len(ciphertext) == 0 {
		return nil, fmt.Errorf("security: ciphertext is required")
	}
	return p.attempt(ctx, "decrypt", ciphertext, core.SecretProvider.Decrypt)
}

func (p *FailoverSecretProvider) attempt(
	ctx context.Context,
	operation string,
	input []byte,
	call func(core.SecretProvider, context.Context, []byte) ([]byte, error),
) ([]byte, error) {
	out, primaryErr := call(p.primary, ctx, input)
	if primaryErr == nil {
		if operation == "encrypt" {
			p.noteKey(p.primary)
		}
		return out, nil
	}
	p.emit(operation, "primary_failed", primaryErr)
	if p.policy != SecretProviderFailurePolicyFallback || p.fallback == nil {
		return nil, fmt.Errorf("security: primary %s failed with %s policy: %w", operation, p.policy, primaryErr)
	}
	out, fallbackErr := call(p.fallback, ctx, input)
	if fallbackErr != nil {
		p.emit(operation, "fallback_failed", fallbackErr)
		return nil, fmt.Errorf("security: primary %s failed: %v; fallback %s failed: %w",
			operation, primaryErr, operation, fallbackErr)
	}
	if operation == "encrypt" {
		p.noteKey(p.fallback)
	}
	p.emit(operation, "fallback_succeeded", primaryErr)
	return out, nil
}

// Metadata reports the key id and version of the last successful encryption,
// falling back to whichever configured provider can describe itself.
func (p *FailoverSecretProvider) Metadata() (string, int) {
	if p == nil {
		return "", 0
	}
	p.mu.RLock()
	keyID, version := p.lastKeyID, p.lastVersion
	p.mu.RUnlock()
	if keyID != "" && version > 0 {
		return keyID, version
	}
	if keyID, version, ok := keyMetadata(p.primary); ok {
		return keyID, version
	}
	if keyID, version, ok := keyMetadata(p.fallback); ok {
		return keyID, version
	}
	return "", 0
}

func (p *FailoverSecretProvider) emit(operation, outcome string, err error) {
	if p == nil || p.onEvent == nil {
		return
	}
	message := ""
	if err != nil {
		message = err.Error()
	}
	p.onEvent(SecretProviderDiagnostic{
		Operation: operation,
		Policy:    p.policy,
		Outcome:   outcome,
		Primary:   keyLabel(p.primary),
		Fallback:  keyLabel(p.fallback),
		Error:     message,
	})
}

func (p *FailoverSecretProvider) noteKey(provider core.SecretProvider) {
	keyID, version, ok := keyMetadata(provider)
	if !ok {
		return
	}
	p.mu.Lock()
	p.lastKeyID, p.lastVersion = keyID, version
	p.mu.Unlock()
}

func normalizeFailurePolicy(policy SecretProviderFailurePolicy) SecretProviderFailurePolicy {
	if SecretProviderFailurePolicy(strings.ToLower(strings.TrimSpace(string(policy)))) == SecretProviderFailurePolicyFallback {
		return SecretProviderFailurePolicyFallback
	}
	return SecretProviderFailurePolicyStrict
}

func keyMetadata(provider core.SecretProvider) (string, int, bool) {
	described, ok := provider.(interface {
		KeyID() string
		Version() int
	})
	if !ok {
		return "", 0, false
	}
	keyID := strings.TrimSpace(described.KeyID())
	version := described.Version()
	if keyID == "" || version <= 0 {
		return "", 0, false
	}
	return keyID, version, true
}

func keyLabel(provider core.SecretProvider) string {
	if provider == nil {
		return ""
	}
	if keyID, version, ok := keyMetadata(provider); ok {
		return fmt.Sprintf("%s:%d", keyID, version)
	}
	return "unlabeled"
}

var _ core.SecretProvider = (*FailoverSecretProvider)(nil)
