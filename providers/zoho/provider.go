package zoho

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-unify/core"
	"github.com/goliatone/go-unify/providers"
)

const (
	Slug = "zoho"

	tokenPath    = "/oauth/v2/token"
	contactsPath = "/crm/v2/Contacts"
)

// accountHosts maps the Zoho datacenter hint from the consent callback to its
// accounts host. The chosen host is pinned on the connection because refresh
// calls must hit the same datacenter.
var accountHosts = map[string]string{
	"us": "https://accounts.zoho.com",
	"eu": "https://accounts.zoho.eu",
	"in": "https://accounts.zoho.in",
	"au": "https://accounts.zoho.com.au",
	"jp": "https://accounts.zoho.jp",
}

// Config wires the Zoho CRM provider. Zoho wants client credentials in the
// form body, not basic auth, and never rotates refresh tokens.
type Config struct {
	ClientID       string
	ClientSecret   string
	RedirectURI    string
	AccountsURL    string
	APIBaseURL     string
	RequestTimeout time.Duration
	HTTPClient     *http.Client
}

type Provider struct {
	cfg         Config
	tokenClient *providers.TokenClient
	httpClient  *http.Client
}

func New(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, fmt.Errorf("zoho: client id is required")
	}
	if strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, fmt.Errorf("zoho: client secret is required")
	}
	tokenClient, err := providers.NewTokenClient(providers.TokenClientConfig{
		Provider:           Slug,
		ClientID:           cfg.ClientID,
		ClientSecret:       cfg.ClientSecret,
		ClientSecretInBody: true,
		RequestTimeout:     cfg.RequestTimeout,
		HTTPClient:         cfg.HTTPClient,
	})
	if err != nil {
		return nil, err
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Provider{cfg: cfg, tokenClient: tokenClient, httpClient: httpClient}, nil
}

func (p *Provider) Slug() string {
	return Slug
}

func (*Provider) AuthKind() string {
	return "oauth2"
}

func (p *Provider) ExchangeCode(ctx context.Context, req core.CallbackRequest) (core.TokenGrant, error) {
	if p == nil {
		return core.TokenGrant{}, fmt.Errorf("zoho: provider is nil")
	}
	accountsURL, err := p.resolveAccountsURL(req.Location)
	if err != nil {
		return core.TokenGrant{}, err
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("redirect_uri", p.cfg.RedirectURI)
	form.Set("code", req.Code)

	payload, err := p.tokenClient.Exchange(ctx, accountsURL+tokenPath, form)
	if err != nil {
		return core.TokenGrant{}, err
	}
	return core.TokenGrant{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		TokenType:    providers.NormalizeTokenType(payload.TokenType),
		ExpiresAt:    providers.ResolveExpiresAt(time.Now().UTC(), payload.ExpiresIn),
		AccountURL:   accountsURL,
	}, nil
}

func (p *Provider) RefreshGrant(ctx context.Context, req core.RefreshRequest) (core.TokenGrant, error) {
	if p == nil {
		return core.TokenGrant{}, fmt.Errorf("zoho: provider is nil")
	}
	accountsURL := strings.TrimRight(strings.TrimSpace(req.AccountURL), "/")
	if accountsURL == "" {
		return core.TokenGrant{}, core.NewNotFoundError(
			"zoho: connection has no account url",
			map[string]any{"provider": Slug, "connection_id": req.ConnectionID},
		).WithTextCode(core.UnifyErrorLocationNotFound)
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("redirect_uri", p.cfg.RedirectURI)
	form.Set("refresh_token", req.RefreshToken)

	payload, err := p.tokenClient.Exchange(ctx, accountsURL+tokenPath, form)
	if err != nil {
		return core.TokenGrant{}, err
	}
	// Zoho refresh responses carry no refresh token; the stored one stays.
	return core.TokenGrant{
		AccessToken: payload.AccessToken,
		TokenType:   providers.NormalizeTokenType(payload.TokenType),
		ExpiresAt:   providers.ResolveExpiresAt(time.Now().UTC(), payload.ExpiresIn),
		AccountURL:  accountsURL,
	}, nil
}

func (p *Provider) CreateRecord(ctx context.Context, req core.CreateRecordRequest) (core.CreateRecordResponse, error) {
	if p == nil {
		return core.CreateRecordResponse{}, fmt.Errorf("zoho: provider is nil")
	}
	if !strings.EqualFold(strings.TrimSpace(req.ObjectType), "contact") {
		return core.CreateRecordResponse{}, core.NewMappingError(
			fmt.Sprintf("zoho: unsupported object type %q", req.ObjectType),
			map[string]any{"provider": Slug, "object_type": req.ObjectType},
		)
	}

	response, err := providers.DoJSON(ctx, p.httpClient, Slug, "create_contact", providers.APIRequest{
		Method:      http.MethodPost,
		URL:         p.apiBaseURL(req.AccountURL) + contactsPath,
		AccessToken: req.AccessToken,
		AuthScheme:  "Zoho-oauthtoken",
		Body:        map[string]any{"data": []any{req.Payload}},
		Timeout:     p.cfg.RequestTimeout,
	})
	if err != nil {
		return core.CreateRecordResponse{}, err
	}

	record := firstDataRecord(response.Decoded)
	// Zoho tucks the new record id inside "details"; lift it so downstream
	// identity resolution sees a plain "id" key.
	if details, ok := record["details"].(map[string]any); ok {
		if _, present := record["id"]; !present {
			if id, ok := details["id"]; ok {
				record["id"] = id
			}
		}
	}
	return core.CreateRecordResponse{
		Record:     record,
		Raw:        response.Raw,
		StatusCode: response.StatusCode,
	}, nil
}

func (p *Provider) ListRecords(ctx context.Context, req core.ListRecordsRequest) (core.ListRecordsResponse, error) {
	if p == nil {
		return core.ListRecordsResponse{}, fmt.Errorf("zoho: provider is nil")
	}
	if !strings.EqualFold(strings.TrimSpace(req.ObjectType), "contact") {
		return core.ListRecordsResponse{}, core.NewMappingError(
			fmt.Sprintf("zoho: unsupported object type %q", req.ObjectType),
			map[string]any{"provider": Slug, "object_type": req.ObjectType},
		)
	}

	target := p.apiBaseURL(req.AccountURL) + contactsPath
	query := url.Values{}
	if strings.TrimSpace(req.PageToken) != "" {
		query.Set("page_token", strings.TrimSpace(req.PageToken))
	}
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	response, err := providers.DoJSON(ctx, p.httpClient, Slug, "list_contacts", providers.APIRequest{
		Method:      http.MethodGet,
		URL:         target,
		AccessToken: req.AccessToken,
		AuthScheme:  "Zoho-oauthtoken",
		Timeout:     p.cfg.RequestTimeout,
	})
	if err != nil {
		return core.ListRecordsResponse{}, err
	}

	records := []map[string]any{}
	if data, ok := response.Decoded["data"].([]any); ok {
		for _, item := range data {
			if entry, ok := item.(map[string]any); ok {
				records = append(records, entry)
			}
		}
	}
	nextToken := ""
	if info, ok := response.Decoded["info"].(map[string]any); ok {
		if token, ok := info["next_page_token"].(string); ok {
			nextToken = strings.TrimSpace(token)
		}
	}
	return core.ListRecordsResponse{
		Records:       records,
		Raw:           response.Raw,
		NextPageToken: nextToken,
	}, nil
}

func (p *Provider) resolveAccountsURL(location string) (string, error) {
	if override := strings.TrimRight(strings.TrimSpace(p.cfg.AccountsURL), "/"); override != "" {
		return override, nil
	}
	location = strings.ToLower(strings.TrimSpace(location))
	if location == "" {
		return "", core.NewNotFoundError(
			fmt.Sprintf("zoho: no datacenter location, found %q", location),
			map[string]any{"provider": Slug},
		).WithTextCode(core.UnifyErrorLocationNotFound)
	}
	host, ok := accountHosts[location]
	if !ok {
		return "", core.NewNotFoundError(
			fmt.Sprintf("zoho: unknown datacenter location %q", location),
			map[string]any{"provider": Slug, "location": location},
		).WithTextCode(core.UnifyErrorLocationNotFound)
	}
	return host, nil
}

// apiBaseURL derives the record API host from the pinned accounts host, so
// data calls stay inside the connection's datacenter.
func (p *Provider) apiBaseURL(accountURL string) string {
	if override := strings.TrimRight(strings.TrimSpace(p.cfg.APIBaseURL), "/"); override != "" {
		return override
	}
	accounts := strings.TrimRight(strings.TrimSpace(accountURL), "/")
	if accounts == "" {
		return "https://www.zohoapis.com"
	}
	return strings.Replace(accounts, "accounts.zoho", "www.zohoapis", 1)
}

// firstDataRecord unwraps the first entry of a Zoho "data" array response.
// Responses without the array pass through as the record itself.
func firstDataRecord(decoded map[string]any) map[string]any {
	if decoded == nil {
		return map[string]any{}
	}
	if data, ok := decoded["data"].([]any); ok && len(data) > 0 {
		if entry, ok := data[0].(map[string]any); ok {
			return entry
		}
	}
	return decoded
}

var _ core.Provider = (*Provider)(nil)
