// Package microsoft365 collects enterprise applications and their delegated
// permission grants from Microsoft Graph.
package microsoft365

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shadowscan/shadowscan/internal/collectors/configstore"
)

const defaultGraphBaseURL = "https://graph.microsoft.com/v1.0"
const defaultLoginBaseURL = "https://login.microsoftonline.com"
const defaultTimeout = 120 * time.Second
const tokenLeeway = 30 * time.Second
const maxRetries = 4

type ClientOptions struct {
	HTTPClient   *http.Client
	GraphBaseURL string
	LoginBaseURL string
}

type Client struct {
	cfg configstore.Microsoft365Config

	http         *http.Client
	graphBaseURL string
	loginBaseURL string

	mu             sync.Mutex
	cachedToken    string
	cachedTokenExp time.Time
}

// ServicePrincipal is one enterprise application registered in the tenant.
type ServicePrincipal struct {
	ID                   string   `json:"id"`
	AppID                string   `json:"appId"`
	DisplayName          string   `json:"displayName"`
	PublisherName        string   `json:"publisherName"`
	ServicePrincipalType string   `json:"servicePrincipalType"`
	AccountEnabled       bool     `json:"accountEnabled"`
	Homepage             string   `json:"homepage"`
	Tags                 []string `json:"tags"`
}

// PermissionGrant is one delegated OAuth2 permission grant. Scope carries
// space-separated scope names.
type PermissionGrant struct {
	ID          string `json:"id"`
	ClientID    string `json:"clientId"`
	ConsentType string `json:"consentType"`
	PrincipalID string `json:"principalId"`
	ResourceID  string `json:"resourceId"`
	Scope       string `json:"scope"`
}

func NewClient(cfg configstore.Microsoft365Config) (*Client, error) {
	return NewClientWithOptions(cfg, ClientOptions{})
}

func NewClientWithOptions(cfg configstore.Microsoft365Config, opts ClientOptions) (*Client, error) {
	cfg = cfg.Normalized()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		cfg:          cfg,
		http:         httpClient,
		graphBaseURL: baseOrDefault(opts.GraphBaseURL, defaultGraphBaseURL),
		loginBaseURL: baseOrDefault(opts.LoginBaseURL, defaultLoginBaseURL),
	}, nil
}

func baseOrDefault(raw, def string) string {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if raw == "" {
		return def
	}
	return raw
}

// ListServicePrincipals pages through every service principal in the tenant.
func (c *Client) ListServicePrincipals(ctx context.Context) ([]ServicePrincipal, error) {
	items, err := c.listPaged(ctx, c.graphBaseURL+"/servicePrincipals?$top=999")
	if err != nil {
		return nil, err
	}

	out := make([]ServicePrincipal, 0, len(items))
	for _, raw := range items {
		var sp ServicePrincipal
		if err := json.Unmarshal(raw, &sp); err != nil {
			return nil, fmt.Errorf("decode service principal: %w", err)
		}
		out = append(out, sp)
	}
	return out, nil
}

// ListPermissionGrants pages through every delegated OAuth2 permission grant.
func (c *Client) ListPermissionGrants(ctx context.Context) ([]PermissionGrant, error) {
	items, err := c.listPaged(ctx, c.graphBaseURL+"/oauth2PermissionGrants?$top=999")
	if err != nil {
		return nil, err
	}

	out := make([]PermissionGrant, 0, len(items))
	for _, raw := range items {
		var grant PermissionGrant
		if err := json.Unmarshal(raw, &grant); err != nil {
			return nil, fmt.Errorf("decode permission grant: %w", err)
		}
		out = append(out, grant)
	}
	return out, nil
}

func (c *Client) listPaged(ctx context.Context, requestURL string) ([]json.RawMessage, error) {
	all := make([]json.RawMessage, 0)
	for requestURL != "" {
		body, err := c.doAuthorizedRequest(ctx, requestURL)
		if err != nil {
			return nil, err
		}

		var payload struct {
			Value    []json.RawMessage `json:"value"`
			NextLink string            `json:"@odata.nextLink"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("decode graph page: %w", err)
		}
		all = append(all, payload.Value...)
		requestURL = strings.TrimSpace(payload.NextLink)
	}
	return all, nil
}

func (c *Client) doAuthorizedRequest(ctx context.Context, requestURL string) ([]byte, error) {
	var lastErr error
	backoff := 500 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, 8*time.Second)
		}

		token, err := c.accessToken(ctx)
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return body, nil
		case resp.StatusCode == http.StatusUnauthorized:
			c.invalidateToken()
			lastErr = fmt.Errorf("graph request unauthorized: %s", strings.TrimSpace(string(body)))
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("graph temporary failure: status=%d", resp.StatusCode)
		default:
			return nil, fmt.Errorf("graph request failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
	}
	if lastErr == nil {
		lastErr = errors.New("graph request failed")
	}
	return nil, lastErr
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cachedToken = ""
	c.cachedTokenExp = time.Time{}
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if token := c.cachedToken; token != "" && time.Now().UTC().Add(tokenLeeway).Before(c.cachedTokenExp) {
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	token, expiry, err := c.fetchAccessToken(ctx)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.cachedToken = token
	c.cachedTokenExp = expiry
	c.mu.Unlock()
	return token, nil
}

func (c *Client) fetchAccessToken(ctx context.Context) (string, time.Time, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("scope", "https://graph.microsoft.com/.default")

	tokenURL := c.loginBaseURL + "/" + url.PathEscape(c.cfg.TenantID) + "/oauth2/v2.0/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", time.Time{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", time.Time{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", time.Time{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", time.Time{}, fmt.Errorf("microsoft token exchange failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", time.Time{}, fmt.Errorf("decode microsoft token response: %w", err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return "", time.Time{}, errors.New("microsoft token response missing access_token")
	}
	expiresIn := payload.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	return payload.AccessToken, time.Now().UTC().Add(time.Duration(expiresIn) * time.Second), nil
}
