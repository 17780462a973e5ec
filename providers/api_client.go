package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-unify/core"
)

const maxRecordResponseBodyBytes = int64(4 << 20)

// APIRequest is a JSON call against a provider's record API. Body, when set,
// is marshaled as the request payload.
type APIRequest struct {
	Method      string
	URL         string
	AccessToken string
	AuthScheme  string
	Body        any
	Timeout     time.Duration
}

// APIResponse keeps the raw bytes exactly as received alongside the decoded
// object; raw is what snapshot storage persists.
type APIResponse struct {
	StatusCode int
	Raw        []byte
	Decoded    map[string]any
}

// DoJSON issues one provider API call. Non-2xx responses surface as provider
// API errors carrying the upstream status and body.
func DoJSON(ctx context.Context, httpClient *http.Client, providerSlug, operation string, req APIRequest) (APIResponse, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if strings.TrimSpace(req.URL) == "" {
		return APIResponse{}, fmt.Errorf("providers: request url is required")
	}

	var payload io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return APIResponse{}, fmt.Errorf("providers: encode request payload: %w", err)
		}
		payload = bytes.NewReader(encoded)
	}

	requestCtx := ctx
	cancel := func() {}
	if req.Timeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, req.Timeout)
	}
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, req.Method, req.URL, payload)
	if err != nil {
		return APIResponse{}, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(req.AccessToken) != "" {
		scheme := strings.TrimSpace(req.AuthScheme)
		if scheme == "" {
			scheme = "Bearer"
		}
		httpReq.Header.Set("Authorization", scheme+" "+strings.TrimSpace(req.AccessToken))
	}

	response, err := httpClient.Do(httpReq)
	if err != nil {
		return APIResponse{}, fmt.Errorf("providers: %s %s request failed: %w", providerSlug, operation, err)
	}
	defer response.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(response.Body, maxRecordResponseBodyBytes+1))
	if readErr != nil {
		return APIResponse{}, fmt.Errorf("providers: read %s response: %w", operation, readErr)
	}
	if int64(len(raw)) > maxRecordResponseBodyBytes {
		return APIResponse{}, fmt.Errorf("providers: %s response exceeds %d bytes", operation, maxRecordResponseBodyBytes)
	}

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return APIResponse{}, core.NewProviderAPIError(providerSlug, operation, response.StatusCode, raw)
	}

	decoded := map[string]any{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return APIResponse{}, core.NewMappingError(
				fmt.Sprintf("providers: decode %s %s response", providerSlug, operation),
				map[string]any{"provider": providerSlug, "operation": operation},
			)
		}
	}

	return APIResponse{
		StatusCode: response.StatusCode,
		Raw:        raw,
		Decoded:    decoded,
	}, nil
}
