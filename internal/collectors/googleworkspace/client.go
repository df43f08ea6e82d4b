// Package googleworkspace collects OAuth token grants and Apps Script
// projects from a Google Workspace tenant.
package googleworkspace

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
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

const (
	defaultDirectoryBaseURL = "https://admin.googleapis.com/admin/directory/v1"
	defaultReportsBaseURL   = "https://admin.googleapis.com/admin/reports/v1"
	defaultScriptBaseURL    = "https://script.googleapis.com/v1"
	defaultTokenURL         = "https://oauth2.googleapis.com/token"
	defaultTimeout          = 120 * time.Second
	tokenLeeway             = 30 * time.Second
	maxRetries              = 5
)

var defaultScopes = []string{
	"https://www.googleapis.com/auth/admin.directory.user.security",
	"https://www.googleapis.com/auth/admin.reports.audit.readonly",
	"https://www.googleapis.com/auth/script.projects.readonly",
}

var errNotFound = errors.New("google api resource not found")

type ClientOptions struct {
	HTTPClient       *http.Client
	DirectoryBaseURL string
	ReportsBaseURL   string
	ScriptBaseURL    string
	TokenURL         string
	Scopes           []string
}

type Client struct {
	cfg configstore.GoogleWorkspaceConfig

	http             *http.Client
	directoryBaseURL string
	reportsBaseURL   string
	scriptBaseURL    string
	tokenURL         string
	scopes           []string

	mu             sync.Mutex
	cachedToken    string
	cachedTokenExp time.Time
	privateKey     *rsa.PrivateKey
	clientEmail    string
}

// TokenGrant is one OAuth client grant from the directory tokens API.
type TokenGrant struct {
	UserKey     string   `json:"userKey"`
	ClientID    string   `json:"clientId"`
	DisplayText string   `json:"displayText"`
	NativeApp   bool     `json:"nativeApp"`
	Anonymous   bool     `json:"anonymous"`
	Scopes      []string `json:"scopes"`
}

// TokenActivity is one token-application audit event from the reports API.
type TokenActivity struct {
	ID struct {
		Time string `json:"time"`
	} `json:"id"`
	Actor struct {
		Email string `json:"email"`
	} `json:"actor"`
	Events []struct {
		Name       string `json:"name"`
		Parameters []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"parameters"`
	} `json:"events"`
}

// ScriptProject is an Apps Script project visible to the admin.
type ScriptProject struct {
	ScriptID   string `json:"scriptId"`
	Title      string `json:"title"`
	UpdateTime string `json:"updateTime"`
}

func NewClient(cfg configstore.GoogleWorkspaceConfig) (*Client, error) {
	return NewClientWithOptions(cfg, ClientOptions{})
}

func NewClientWithOptions(cfg configstore.GoogleWorkspaceConfig, opts ClientOptions) (*Client, error) {
	cfg = cfg.Normalized()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	scopes := opts.Scopes
	if len(scopes) == 0 {
		scopes = defaultScopes
	}

	c := &Client{
		cfg:              cfg,
		http:             httpClient,
		directoryBaseURL: baseOrDefault(opts.DirectoryBaseURL, defaultDirectoryBaseURL),
		reportsBaseURL:   baseOrDefault(opts.ReportsBaseURL, defaultReportsBaseURL),
		scriptBaseURL:    baseOrDefault(opts.ScriptBaseURL, defaultScriptBaseURL),
		tokenURL:         baseOrDefault(opts.TokenURL, defaultTokenURL),
		scopes:           scopes,
	}
	if err := c.initServiceAccount(); err != nil {
		return nil, err
	}
	return c, nil
}

func baseOrDefault(raw, def string) string {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if raw == "" {
		return def
	}
	return raw
}

func (c *Client) initServiceAccount() error {
	var payload struct {
		ClientEmail string `json:"client_email"`
		PrivateKey  string `json:"private_key"`
		TokenURI    string `json:"token_uri"`
	}
	if err := json.Unmarshal([]byte(c.cfg.ServiceAccountJSON), &payload); err != nil {
		return fmt.Errorf("decode service account json: %w", err)
	}
	key, err := parseRSAPrivateKey(payload.PrivateKey)
	if err != nil {
		return fmt.Errorf("parse service account private key: %w", err)
	}
	c.clientEmail = strings.TrimSpace(payload.ClientEmail)
	if c.clientEmail == "" {
		return errors.New("service account json missing client_email")
	}
	c.privateKey = key
	if tokenURI := strings.TrimSpace(payload.TokenURI); tokenURI != "" {
		c.tokenURL = tokenURI
	}
	return nil
}

func parseRSAPrivateKey(raw string) (*rsa.PrivateKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("private key is required")
	}
	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, errors.New("invalid PEM private key")
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("private key is not RSA")
		}
		return rsaKey, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	return nil, errors.New("unsupported private key format")
}

// ListTokenGrants pages through every user's authorized OAuth clients.
func (c *Client) ListTokenGrants(ctx context.Context) ([]TokenGrant, error) {
	items, err := c.listPaged(ctx, c.directoryBaseURL+"/users/all/tokens", url.Values{
		"maxResults": []string{"500"},
	})
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, err
	}

	out := make([]TokenGrant, 0, len(items))
	for _, raw := range items {
		var grant TokenGrant
		if err := json.Unmarshal(raw, &grant); err != nil {
			return nil, fmt.Errorf("decode oauth grant: %w", err)
		}
		out = append(out, grant)
	}
	return out, nil
}

// ListTokenActivities returns token-application audit events since the
// given time.
func (c *Client) ListTokenActivities(ctx context.Context, since time.Time) ([]TokenActivity, error) {
	values := url.Values{"maxResults": []string{"1000"}}
	if !since.IsZero() {
		values.Set("startTime", since.UTC().Format(time.RFC3339))
	}
	items, err := c.listPaged(ctx, c.reportsBaseURL+"/activity/users/all/applications/token", values)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, err
	}

	out := make([]TokenActivity, 0, len(items))
	for _, raw := range items {
		var activity TokenActivity
		if err := json.Unmarshal(raw, &activity); err != nil {
			return nil, fmt.Errorf("decode token activity: %w", err)
		}
		out = append(out, activity)
	}
	return out, nil
}

// ListScriptProjects returns Apps Script projects. Tenants without Apps
// Script enabled report not-found; that reads as an empty list.
func (c *Client) ListScriptProjects(ctx context.Context) ([]ScriptProject, error) {
	items, err := c.listPaged(ctx, c.scriptBaseURL+"/projects", url.Values{
		"pageSize": []string{"100"},
	})
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, err
	}

	out := make([]ScriptProject, 0, len(items))
	for _, raw := range items {
		var project ScriptProject
		if err := json.Unmarshal(raw, &project); err != nil {
			return nil, fmt.Errorf("decode script project: %w", err)
		}
		out = append(out, project)
	}
	return out, nil
}

// GetScriptSource concatenates a project's source files for content
// scanning. Missing projects read as empty source.
func (c *Client) GetScriptSource(ctx context.Context, scriptID string) (string, error) {
	scriptID = strings.TrimSpace(scriptID)
	if scriptID == "" {
		return "", errors.New("script id is required")
	}
	body, status, err := c.doAuthorizedJSONRequest(ctx, http.MethodGet, c.scriptBaseURL+"/projects/"+url.PathEscape(scriptID)+"/content", nil)
	if err != nil {
		if status == http.StatusNotFound {
			return "", nil
		}
		return "", err
	}

	var payload struct {
		Files []struct {
			Name   string `json:"name"`
			Source string `json:"source"`
		} `json:"files"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode script content: %w", err)
	}
	var sb strings.Builder
	for _, file := range payload.Files {
		sb.WriteString(file.Source)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func (c *Client) listPaged(ctx context.Context, endpoint string, values url.Values) ([]json.RawMessage, error) {
	all := make([]json.RawMessage, 0)
	nextPageToken := ""

	for {
		query := cloneURLValues(values)
		if nextPageToken != "" {
			query.Set("pageToken", nextPageToken)
		}
		requestURL := endpoint
		if encoded := query.Encode(); encoded != "" {
			requestURL += "?" + encoded
		}

		body, status, err := c.doAuthorizedJSONRequest(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			if status == http.StatusNotFound {
				return nil, errNotFound
			}
			return nil, err
		}

		var payload struct {
			NextPageToken string            `json:"nextPageToken"`
			Items         []json.RawMessage `json:"items"`
			Projects      []json.RawMessage `json:"projects"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("decode google api page: %w", err)
		}
		all = append(all, payload.Items...)
		all = append(all, payload.Projects...)

		nextPageToken = strings.TrimSpace(payload.NextPageToken)
		if nextPageToken == "" {
			break
		}
	}
	return all, nil
}

func cloneURLValues(values url.Values) url.Values {
	cloned := make(url.Values, len(values))
	for key, items := range values {
		cp := make([]string, len(items))
		copy(cp, items)
		cloned[key] = cp
	}
	return cloned
}

func (c *Client) doAuthorizedJSONRequest(ctx context.Context, method, requestURL string, body []byte) ([]byte, int, error) {
	var lastErr error
	statusCode := 0
	backoff := 500 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, statusCode, ctx.Err()
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, 8*time.Second)
		}

		accessToken, err := c.accessToken(ctx)
		if err != nil {
			return nil, statusCode, err
		}

		req, err := http.NewRequestWithContext(ctx, method, requestURL, strings.NewReader(string(body)))
		if err != nil {
			return nil, statusCode, err
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		statusCode = resp.StatusCode
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
			c.invalidateToken()
		}
		if statusCode >= 200 && statusCode < 300 {
			return respBody, statusCode, nil
		}
		if !shouldRetryStatus(statusCode) {
			return nil, statusCode, fmt.Errorf("google api request failed: status=%d body=%s", statusCode, strings.TrimSpace(string(respBody)))
		}
		lastErr = fmt.Errorf("google api temporary failure: status=%d", statusCode)
	}

	if lastErr == nil {
		lastErr = errors.New("google api request failed")
	}
	return nil, statusCode, lastErr
}

func shouldRetryStatus(statusCode int) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	return statusCode >= 500 && statusCode < 600
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
	assertion, err := c.signedAssertion()
	if err != nil {
		return "", time.Time{}, err
	}

	form := url.Values{}
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:jwt-bearer")
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
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

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", time.Time{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", time.Time{}, fmt.Errorf("google oauth token exchange failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return "", time.Time{}, fmt.Errorf("decode google oauth token response: %w", err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return "", time.Time{}, errors.New("google oauth token response missing access_token")
	}
	expiresIn := payload.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	return payload.AccessToken, time.Now().UTC().Add(time.Duration(expiresIn) * time.Second), nil
}

func (c *Client) signedAssertion() (string, error) {
	if c.privateKey == nil {
		return "", errors.New("rsa private key is required")
	}

	issuedAt := time.Now().UTC()
	claims := map[string]any{
		"iss":   c.clientEmail,
		"sub":   strings.TrimSpace(c.cfg.DelegatedAdminEmail),
		"scope": strings.Join(c.scopes, " "),
		"aud":   c.tokenURL,
		"iat":   issuedAt.Unix(),
		"exp":   issuedAt.Add(1 * time.Hour).Unix(),
	}

	headerJSON, err := json.Marshal(map[string]string{"alg": "RS256", "typ": "JWT"})
	if err != nil {
		return "", err
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	signingInput := base64.RawURLEncoding.EncodeToString(headerJSON) + "." + base64.RawURLEncoding.EncodeToString(claimsJSON)

	hash := sha256.Sum256([]byte(signingInput))
	signature, err := rsa.SignPKCS1v15(rand.Reader, c.privateKey, crypto.SHA256, hash[:])
	if err != nil {
		return "", err
	}
	return signingInput + "." + base64.RawURLEncoding.EncodeToString(signature), nil
}
