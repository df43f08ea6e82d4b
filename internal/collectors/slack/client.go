// Package slack collects installed Slack apps from the workspace
// integration log.
package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://slack.com/api"
const defaultTimeout = 120 * time.Second
const maxRetries = 3
const maxRetryAfter = 30 * time.Second

type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// IntegrationLog is one entry from team.integrationLogs. Slack reports app
// installs, scope expansions, and removals through this feed.
type IntegrationLog struct {
	AppID      string `json:"app_id"`
	AppType    string `json:"app_type"`
	ServiceID  string `json:"service_id"`
	UserID     string `json:"user_id"`
	UserName   string `json:"user_name"`
	ChangeType string `json:"change_type"`
	Scope      string `json:"scope"`
	DateRaw    string `json:"date"`
}

func (l IntegrationLog) Date() time.Time {
	secs, err := strconv.ParseInt(strings.TrimSpace(l.DateRaw), 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}

func New(baseURL, token string) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("slack token is required")
	}
	return &Client{
		BaseURL: base,
		Token:   token,
		HTTP:    &http.Client{Timeout: defaultTimeout},
	}, nil
}

// ListIntegrationLogs pages through the full team integration log.
func (c *Client) ListIntegrationLogs(ctx context.Context) ([]IntegrationLog, error) {
	var out []IntegrationLog

	page := 1
	for {
		values := url.Values{}
		values.Set("count", "100")
		values.Set("page", strconv.Itoa(page))

		body, err := c.callAPI(ctx, "team.integrationLogs", values)
		if err != nil {
			return nil, err
		}

		var payload struct {
			OK     bool             `json:"ok"`
			Error  string           `json:"error"`
			Logs   []IntegrationLog `json:"logs"`
			Paging struct {
				Page  int `json:"page"`
				Pages int `json:"pages"`
			} `json:"paging"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("decode integration logs: %w", err)
		}
		if !payload.OK {
			return nil, fmt.Errorf("slack api error: %s", payload.Error)
		}

		out = append(out, payload.Logs...)
		if payload.Paging.Pages == 0 || payload.Paging.Page >= payload.Paging.Pages {
			break
		}
		page = payload.Paging.Page + 1
	}
	return out, nil
}

func (c *Client) callAPI(ctx context.Context, method string, values url.Values) ([]byte, error) {
	requestURL := c.BaseURL + "/" + method
	if encoded := values.Encode(); encoded != "" {
		requestURL += "?" + encoded
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.Token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.HTTP.Do(req)
		if err != nil {
			if attempt < maxRetries {
				if err := sleepWithContext(ctx, backoffDelay(attempt)); err != nil {
					return nil, err
				}
				continue
			}
			return nil, err
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, readErr
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			if attempt < maxRetries {
				if err := sleepWithContext(ctx, retryAfter(resp, attempt)); err != nil {
					return nil, err
				}
				continue
			}
			return nil, errors.New("slack api rate limited")
		}
		if resp.StatusCode >= 500 && attempt < maxRetries {
			if err := sleepWithContext(ctx, backoffDelay(attempt)); err != nil {
				return nil, err
			}
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("slack api failed: %s", resp.Status)
		}
		return body, nil
	}
	return nil, errors.New("slack request failed after retries")
}

func retryAfter(resp *http.Response, attempt int) time.Duration {
	v := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if secs, err := strconv.Atoi(v); err == nil {
		d := time.Duration(secs) * time.Second
		if d > maxRetryAfter {
			return maxRetryAfter
		}
		return d
	}
	return backoffDelay(attempt)
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
