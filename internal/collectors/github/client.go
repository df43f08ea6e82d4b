// Package github collects GitHub App installations on an organization as
// candidate automations.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 120 * time.Second
const maxRetries = 3

const maxRetryAfter = 30 * time.Second

var ErrDatasetUnavailable = errors.New("github dataset unavailable")

type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// AppInstallation is one GitHub App installed on the organization.
type AppInstallation struct {
	ID                  int64
	AppID               int64
	AppSlug             string
	AppName             string
	AccountLogin        string
	RepositorySelection string
	Permissions         map[string]string
	Events              []string
	CreatedAtRaw        string
	UpdatedAtRaw        string
	SuspendedAtRaw      string
}

// New creates a new GitHub client. It validates that both baseURL and token
// are provided.
func New(baseURL, token string) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	token = strings.TrimSpace(token)

	if base == "" {
		return nil, errors.New("github base URL is required")
	}
	if token == "" {
		return nil, errors.New("github token is required")
	}

	return &Client{
		BaseURL: base,
		Token:   token,
		HTTP:    &http.Client{Timeout: defaultTimeout},
	}, nil
}

func (c *Client) httpClient() (*http.Client, error) {
	if c.BaseURL == "" || c.Token == "" {
		return nil, errors.New("github base URL and token are required")
	}
	if c.HTTP == nil {
		return &http.Client{Timeout: defaultTimeout}, nil
	}
	if c.HTTP.Timeout > 0 {
		return c.HTTP, nil
	}
	copy := *c.HTTP
	copy.Timeout = defaultTimeout
	return &copy, nil
}

func (c *Client) ListOrgInstallations(ctx context.Context, org string) ([]AppInstallation, error) {
	url := fmt.Sprintf("%s/orgs/%s/installations?per_page=100", c.BaseURL, org)
	var out []AppInstallation

	for url != "" {
		resp, err := c.doRequest(ctx, url)
		if err != nil {
			return nil, err
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: org installations endpoint unavailable (%s)", ErrDatasetUnavailable, resp.Status)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, formatGitHubAPIError("github installations api failed", resp, body)
		}

		var payload struct {
			Installations []json.RawMessage `json:"installations"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, err
		}

		for _, raw := range payload.Installations {
			var item struct {
				ID                  int64             `json:"id"`
				AppID               int64             `json:"app_id"`
				AppSlug             string            `json:"app_slug"`
				AppName             string            `json:"app_name"`
				Account             map[string]any    `json:"account"`
				RepositorySelection string            `json:"repository_selection"`
				Permissions         map[string]string `json:"permissions"`
				Events              []string          `json:"events"`
				CreatedAtRaw        string            `json:"created_at"`
				UpdatedAtRaw        string            `json:"updated_at"`
				SuspendedAtRaw      string            `json:"suspended_at"`
			}
			if err := json.Unmarshal(raw, &item); err != nil {
				return nil, err
			}
			accountLogin, _ := item.Account["login"].(string)

			out = append(out, AppInstallation{
				ID:                  item.ID,
				AppID:               item.AppID,
				AppSlug:             item.AppSlug,
				AppName:             item.AppName,
				AccountLogin:        accountLogin,
				RepositorySelection: item.RepositorySelection,
				Permissions:         item.Permissions,
				Events:              item.Events,
				CreatedAtRaw:        item.CreatedAtRaw,
				UpdatedAtRaw:        item.UpdatedAtRaw,
				SuspendedAtRaw:      item.SuspendedAtRaw,
			})
		}

		url = parseNextLink(resp.Header.Get("Link"))
	}

	return out, nil
}

func (c *Client) doRequest(ctx context.Context, url string) (*http.Response, error) {
	httpClient, err := c.httpClient()
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.Token)
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
		req.Header.Set("User-Agent", "shadowscan")

		resp, err := httpClient.Do(req)
		if err != nil {
			if attempt < maxRetries && shouldRetryError(ctx, err) {
				if err := sleepWithContext(ctx, backoffDelay(attempt)); err != nil {
					return nil, err
				}
				continue
			}
			return nil, err
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}
		if attempt < maxRetries && shouldRetryStatus(resp) {
			drainAndClose(resp.Body)
			if err := sleepWithContext(ctx, retryDelay(resp, attempt)); err != nil {
				return nil, err
			}
			continue
		}
		return resp, nil
	}
	return nil, errors.New("github request failed after retries")
}

func formatGitHubAPIError(prefix string, resp *http.Response, body []byte) error {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return fmt.Errorf("%s: %s: %s", prefix, resp.Status, payload.Message)
	}
	return fmt.Errorf("%s: %s", prefix, resp.Status)
}

func parseNextLink(linkHeader string) string {
	if linkHeader == "" {
		return ""
	}
	for part := range strings.SplitSeq(linkHeader, ",") {
		if !strings.Contains(part, "rel=\"next\"") {
			continue
		}
		start := strings.Index(part, "<")
		end := strings.Index(part, ">")
		if start >= 0 && end > start {
			return strings.TrimSpace(part[start+1 : end])
		}
	}
	return ""
}

func shouldRetryStatus(resp *http.Response) bool {
	if resp == nil {
		return false
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func shouldRetryError(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if ctx != nil && ctx.Err() != nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

func retryDelay(resp *http.Response, attempt int) time.Duration {
	if resp == nil {
		return backoffDelay(attempt)
	}
	if d := retryAfter(resp); d > 0 {
		return d
	}
	return backoffDelay(attempt)
}

func retryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	v := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		d := time.Duration(secs) * time.Second
		if d > maxRetryAfter {
			return maxRetryAfter
		}
		return d
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			return 0
		}
		if d > maxRetryAfter {
			return maxRetryAfter
		}
		return d
	}
	return 0
}

func backoffDelay(attempt int) time.Duration {
	if attempt < 0 {
		return 0
	}
	d := 200 * time.Millisecond
	for range attempt {
		d *= 2
		if d >= 5*time.Second {
			return 5 * time.Second
		}
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func drainAndClose(r io.ReadCloser) {
	if r == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(r, 1<<20))
	_ = r.Close()
}
