package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	UnifyErrorBadInput            = "UNIFY_BAD_INPUT"
	UnifyErrorProviderNotFound    = "UNIFY_PROVIDER_NOT_FOUND"
	UnifyErrorConnectionNotFound  = "UNIFY_CONNECTION_NOT_FOUND"
	UnifyErrorContactNotFound     = "UNIFY_CONTACT_NOT_FOUND"
	UnifyErrorLocationNotFound    = "UNIFY_LOCATION_NOT_FOUND"
	UnifyErrorRefreshTokenMissing = "UNIFY_REFRESH_TOKEN_MISSING"
	UnifyErrorRefreshLocked       = "UNIFY_REFRESH_LOCKED"
	UnifyErrorProviderAPI         = "UNIFY_PROVIDER_API_ERROR"
	UnifyErrorMapping             = "UNIFY_MAPPING_ERROR"
	UnifyErrorPersistence         = "UNIFY_PERSISTENCE_ERROR"
	UnifyErrorVault               = "UNIFY_VAULT_ERROR"
	UnifyErrorInternal            = "UNIFY_INTERNAL_ERROR"
)

// NewNotFoundError reports a missing registry entry, connection, or record.
func NewNotFoundError(message string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, goerrors.CategoryNotFound).
		WithTextCode(UnifyErrorConnectionNotFound)
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return ensureUnifyErrorEnvelope(err)
}

// NewProviderAPIError wraps a non-2xx upstream response. The upstream status
// and a body snippet travel in the error metadata so callers can inspect the
// provider's own failure without re-issuing the call.
func NewProviderAPIError(provider, operation string, status int, body []byte) *goerrors.Error {
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 512 {
		snippet = snippet[:512]
	}
	return ensureUnifyErrorEnvelope(
		goerrors.New(provider+" "+operation+" request failed", goerrors.CategoryExternal).
			WithTextCode(UnifyErrorProviderAPI).
			WithMetadata(map[string]any{
				"provider":        provider,
				"operation":       operation,
				"upstream_status": status,
				"upstream_body":   snippet,
			}),
	)
}

// NewMappingError reports a unification failure: unregistered mapper pair,
// malformed provider payload, missing remote identifier.
func NewMappingError(message string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, goerrors.CategoryBadInput).
		WithTextCode(UnifyErrorMapping)
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return ensureUnifyErrorEnvelope(err)
}

// NewPersistenceError wraps a store failure without leaking driver details
// into the message.
func NewPersistenceError(operation string, cause error) *goerrors.Error {
	return ensureUnifyErrorEnvelope(
		goerrors.Wrap(cause, goerrors.CategoryInternal, "persistence operation failed: "+operation).
			WithTextCode(UnifyErrorPersistence),
	)
}

func unifyErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureUnifyErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "provider") && strings.Contains(msg, "not registered"):
		return newUnifyError(err.Error(), goerrors.CategoryNotFound, UnifyErrorProviderNotFound)
	case strings.Contains(msg, "mapper") && strings.Contains(msg, "not registered"):
		return newUnifyError(err.Error(), goerrors.CategoryBadInput, UnifyErrorMapping)
	case strings.Contains(msg, "refresh token"):
		return newUnifyError(err.Error(), goerrors.CategoryAuth, UnifyErrorRefreshTokenMissing)
	case strings.Contains(msg, "lock already held"), strings.Contains(msg, "refresh lock"):
		return newUnifyError(err.Error(), goerrors.CategoryConflict, UnifyErrorRefreshLocked)
	case strings.Contains(msg, "decrypt"), strings.Contains(msg, "envelope"):
		return newUnifyError(err.Error(), goerrors.CategoryInternal, UnifyErrorVault)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newUnifyError(err.Error(), goerrors.CategoryBadInput, UnifyErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureUnifyErrorEnvelope(mapped)
}

func newUnifyError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureUnifyErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureUnifyErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = unifyHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultUnifyTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultUnifyTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return UnifyErrorBadInput
	case goerrors.CategoryNotFound:
		return UnifyErrorConnectionNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return UnifyErrorRefreshTokenMissing
	case goerrors.CategoryConflict:
		return UnifyErrorRefreshLocked
	case goerrors.CategoryExternal:
		return UnifyErrorProviderAPI
	default:
		return UnifyErrorInternal
	}
}

func unifyHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
