package zendesk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-unify/core"
	"github.com/goliatone/go-unify/providers"
)

const (
	Slug = "zendesk"

	defaultBaseURL  = "https://api.getbase.com"
	tokenPath       = "/oauth2/token"
	contactsPath    = "/v2/contacts"
	defaultPageSize = 25
)

// Config wires the Zendesk Sell provider. The token endpoint authenticates
// with HTTP basic auth and rotates the refresh token on every refresh.
type Config struct {
	ClientID       string
	ClientSecret   string
	RedirectURI    string
	BaseURL        string
	RequestTimeout time.Duration
	HTTPClient     *http.Client
}

type Provider struct {
	cfg         Config
	baseURL     string
	tokenClient *providers.TokenClient
	httpClient  *http.Client
}

func New(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, fmt.Errorf("zendesk: client id is required")
	}
	if strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, fmt.Errorf("zendesk: client secret is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	tokenClient, err := providers.NewTokenClient(providers.TokenClientConfig{
		Provider:       Slug,
		ClientID:       cfg.ClientID,
		ClientSecret:   cfg.ClientSecret,
		RequestTimeout: cfg.RequestTimeout,
		HTTPClient:     cfg.HTTPClient,
	})
	if err != nil {
		return nil, err
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Provider{
		cfg:         cfg,
		baseURL:     baseURL,
		tokenClient: tokenClient,
		httpClient:  httpClient,
	}, nil
}

func (p *Provider) Slug() string {
	return Slug
}

func (*Provider) AuthKind() string {
	return "oauth2"
}

func (p *Provider) ExchangeCode(ctx context.Context, req core.CallbackRequest) (core.TokenGrant, error) {
	if p == nil {
		return core.TokenGrant{}, fmt.Errorf("zendesk: provider is nil")
	}
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("redirect_uri", p.cfg.RedirectURI)
	form.Set("code", req.Code)

	payload, err := p.tokenClient.Exchange(ctx, p.baseURL+tokenPath, form)
	if err != nil {
		return core.TokenGrant{}, err
	}
	return core.TokenGrant{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		TokenType:    providers.NormalizeTokenType(payload.TokenType),
		ExpiresAt:    providers.ResolveExpiresAt(time.Now().UTC(), payload.ExpiresIn),
	}, nil
}

func (p *Provider) RefreshGrant(ctx context.Context, req core.RefreshRequest) (core.TokenGrant, error) {
	if p == nil {
		return core.TokenGrant{}, fmt.Errorf("zendesk: provider is nil")
	}
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", req.RefreshToken)

	payload, err := p.tokenClient.Exchange(ctx, p.baseURL+tokenPath, form)
	if err != nil {
		return core.TokenGrant{}, err
	}
	// Sell rotates refresh tokens; the new one replaces the stored one.
	return core.TokenGrant{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		TokenType:    providers.NormalizeTokenType(payload.TokenType),
		ExpiresAt:    providers.ResolveExpiresAt(time.Now().UTC(), payload.ExpiresIn),
	}, nil
}

func (p *Provider) CreateRecord(ctx context.Context, req core.CreateRecordRequest) (core.CreateRecordResponse, error) {
	if p == nil {
		return core.CreateRecordResponse{}, fmt.Errorf("zendesk: provider is nil")
	}
	if !strings.EqualFold(strings.TrimSpace(req.ObjectType), "contact") {
		return core.CreateRecordResponse{}, core.NewMappingError(
			fmt.Sprintf("zendesk: unsupported object type %q", req.ObjectType),
			map[string]any{"provider": Slug, "object_type": req.ObjectType},
		)
	}

	response, err := providers.DoJSON(ctx, p.httpClient, Slug, "create_contact", providers.APIRequest{
		Method:      http.MethodPost,
		URL:         p.baseURL + contactsPath,
		AccessToken: req.AccessToken,
		Body:        map[string]any{"data": req.Payload},
		Timeout:     p.cfg.RequestTimeout,
	})
	if err != nil {
		return core.CreateRecordResponse{}, err
	}
	return core.CreateRecordResponse{
		Record:     unwrapData(response.Decoded),
		Raw:        response.Raw,
		StatusCode: response.StatusCode,
	}, nil
}

func (p *Provider) ListRecords(ctx context.Context, req core.ListRecordsRequest) (core.ListRecordsResponse, error) {
	if p == nil {
		return core.ListRecordsResponse{}, fmt.Errorf("zendesk: provider is nil")
	}
	if !strings.EqualFold(strings.TrimSpace(req.ObjectType), "contact") {
		return core.ListRecordsResponse{}, core.NewMappingError(
			fmt.Sprintf("zendesk: unsupported object type %q", req.ObjectType),
			map[string]any{"provider": Slug, "object_type": req.ObjectType},
		)
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	query := url.Values{}
	query.Set("per_page", strconv.Itoa(pageSize))
	if strings.TrimSpace(req.PageToken) != "" {
		query.Set("page", strings.TrimSpace(req.PageToken))
	}

	response, err := providers.DoJSON(ctx, p.httpClient, Slug, "list_contacts", providers.APIRequest{
		Method:      http.MethodGet,
		URL:         p.baseURL + contactsPath + "?" + query.Encode(),
		AccessToken: req.AccessToken,
		Timeout:     p.cfg.RequestTimeout,
	})
	if err != nil {
		return core.ListRecordsResponse{}, err
	}

	records := []map[string]any{}
	if items, ok := response.Decoded["items"].([]any); ok {
		for _, item := range items {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			records = append(records, unwrapData(entry))
		}
	}
	return core.ListRecordsResponse{
		Records:       records,
		Raw:           response.Raw,
		NextPageToken: nextPageToken(response.Decoded),
	}, nil
}

// unwrapData peels the Sell response envelope: every record travels inside a
// "data" object next to its "meta".
func unwrapData(entry map[string]any) map[string]any {
	if data, ok := entry["data"].(map[string]any); ok {
		return data
	}
	return entry
}

func nextPageToken(decoded map[string]any) string {
	meta, ok := decoded["meta"].(map[string]any)
	if !ok {
		return ""
	}
	links, ok := meta["links"].(map[string]any)
	if !ok {
		return ""
	}
	next, _ := links["next_page"].(string)
	return strings.TrimSpace(next)
}

var _ core.Provider = (*Provider)(nil)
