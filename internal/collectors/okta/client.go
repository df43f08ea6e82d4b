// Package okta collects OAuth applications and token grant events from an
// Okta org.
package okta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sdk "github.com/okta/okta-sdk-golang/v6/okta"
)

type Client struct {
	BaseURL string
	Token   string
	api     *sdk.APIClient
}

type App struct {
	ID         string
	Label      string
	Name       string
	Status     string
	SignOnMode string
}

// TokenGrantEvent is a system log event describing an OAuth grant or token
// issuance for an application.
type TokenGrantEvent struct {
	ID            string
	EventType     string
	Published     time.Time
	AppID         string
	AppName       string
	AppDomain     string
	ActorEmail    string
	GrantedScopes []string
}

// New creates a new Okta client. It validates that both baseURL and token are
// provided and returns an error if the SDK configuration fails.
func New(baseURL, token string) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	token = strings.TrimSpace(token)

	if base == "" {
		return nil, errors.New("okta base URL is required")
	}
	if token == "" {
		return nil, errors.New("okta token is required")
	}

	cfg, err := sdk.NewConfiguration(
		sdk.WithOrgUrl(base),
		sdk.WithToken(token),
		sdk.WithCache(false),
		sdk.WithRequestTimeout(120),
		sdk.WithRateLimitMaxBackOff(30),
		sdk.WithRateLimitMaxRetries(4),
	)
	if err != nil {
		return nil, fmt.Errorf("okta sdk config: %w", err)
	}
	api := sdk.NewAPIClient(cfg)
	return &Client{BaseURL: base, Token: token, api: api}, nil
}

func (c *Client) ensureClient() error {
	if c.api == nil {
		return errors.New("okta client is not initialized")
	}
	return nil
}

func (c *Client) ListApps(ctx context.Context) ([]App, error) {
	if err := c.ensureClient(); err != nil {
		return nil, err
	}

	req := c.api.ApplicationAPI.ListApplications(ctx).Limit(200)
	apps, resp, err := req.Execute()
	if err != nil {
		return listAppsFromRaw(resp, err)
	}

	out := make([]App, 0, len(apps))
	for _, app := range apps {
		mapped, err := mapApp(app)
		if err != nil {
			return nil, err
		}
		out = append(out, mapped)
	}

	for resp != nil && resp.HasNextPage() {
		var nextRaw []json.RawMessage
		resp, err = resp.Next(&nextRaw)
		if err != nil {
			return nil, formatOktaError(err, resp)
		}
		page, mapErr := mapAppsFromRaw(nextRaw)
		if mapErr != nil {
			return nil, mapErr
		}
		out = append(out, page...)
	}

	return out, nil
}

// ListTokenGrantEventsSince returns app.oauth2 system log events since the
// given time, oldest first.
func (c *Client) ListTokenGrantEventsSince(ctx context.Context, since time.Time) ([]TokenGrantEvent, error) {
	if err := c.ensureClient(); err != nil {
		return nil, err
	}

	since = since.UTC()
	req := c.api.SystemLogAPI.ListLogEvents(ctx).
		Since(since.Format(time.RFC3339)).
		Filter(`eventType sw "app.oauth2."`).
		SortOrder("ASCENDING").
		Limit(1000)

	events, resp, err := req.Execute()
	if err != nil {
		return nil, formatOktaError(err, resp)
	}

	out := make([]TokenGrantEvent, 0, len(events))
	for {
		for _, event := range events {
			mapped, mapErr := mapTokenGrantEvent(event)
			if mapErr != nil {
				return nil, mapErr
			}
			if mapped.ID == "" {
				continue
			}
			out = append(out, mapped)
		}
		if resp == nil || !resp.HasNextPage() {
			break
		}
		var next []sdk.LogEvent
		resp, err = resp.Next(&next)
		if err != nil {
			return nil, formatOktaError(err, resp)
		}
		events = next
	}

	return out, nil
}

func mapTokenGrantEvent(event sdk.LogEvent) (TokenGrantEvent, error) {
	published := time.Time{}
	if event.Published != nil {
		published = event.Published.UTC()
	}
	eventType := strings.TrimSpace(event.GetEventType())
	eventID := strings.TrimSpace(event.GetUuid())

	actor := event.GetActor()
	actorEmail := strings.TrimSpace(actor.GetAlternateId())

	var appID string
	var appName string
	var appDomain string
	for _, target := range event.Target {
		targetType := strings.ToLower(strings.TrimSpace(target.GetType()))
		if !strings.Contains(targetType, "app") {
			continue
		}
		if appID == "" {
			appID = strings.TrimSpace(target.GetId())
		}
		if appName == "" {
			appName = strings.TrimSpace(target.GetDisplayName())
		}
		if appDomain == "" {
			appDomain = strings.TrimSpace(target.GetAlternateId())
		}
		if details := target.GetDetailEntry(); details != nil {
			if appID == "" {
				appID = strings.TrimSpace(getStringValue(details["appId"]))
			}
			if appName == "" {
				appName = strings.TrimSpace(getStringValue(details["appName"]))
			}
			if appDomain == "" {
				appDomain = strings.TrimSpace(getStringValue(details["domain"]))
			}
		}
	}

	debugContext := event.GetDebugContext()
	scopes := extractEventScopes(debugContext.GetDebugData())

	if eventID == "" {
		eventID = strings.TrimSpace(eventType + ":" + published.Format(time.RFC3339Nano) + ":" + appID)
	}

	return TokenGrantEvent{
		ID:            eventID,
		EventType:     eventType,
		Published:     published,
		AppID:         appID,
		AppName:       appName,
		AppDomain:     appDomain,
		ActorEmail:    actorEmail,
		GrantedScopes: scopes,
	}, nil
}

func extractEventScopes(debugData map[string]any) []string {
	if len(debugData) == 0 {
		return nil
	}
	candidates := make([]string, 0, 8)
	keys := []string{"scopes", "scope", "grantedScopes", "requestedScopes", "scp"}
	for _, key := range keys {
		value, ok := debugData[key]
		if !ok {
			continue
		}
		switch typed := value.(type) {
		case string:
			candidates = append(candidates, splitScopes(typed)...)
		case []string:
			candidates = append(candidates, typed...)
		case []any:
			for _, raw := range typed {
				candidates = append(candidates, splitScopes(getStringValue(raw))...)
			}
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	dedup := make([]string, 0, len(candidates))
	seen := map[string]struct{}{}
	for _, scope := range candidates {
		scope = strings.ToLower(strings.TrimSpace(scope))
		if scope == "" {
			continue
		}
		if _, ok := seen[scope]; ok {
			continue
		}
		seen[scope] = struct{}{}
		dedup = append(dedup, scope)
	}
	return dedup
}

func splitScopes(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ' ' || r == ',' || r == ';'
	})
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func mapApp(app sdk.ListApplications200ResponseInner) (App, error) {
	raw, err := json.Marshal(app)
	if err != nil {
		return App{}, err
	}
	return mapAppPayload(raw)
}

func mapAppPayload(raw []byte) (App, error) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return App{}, err
	}
	return App{
		ID:         getStringValue(payload["id"]),
		Label:      getStringValue(payload["label"]),
		Name:       getStringValue(payload["name"]),
		Status:     getStringValue(payload["status"]),
		SignOnMode: getStringValue(payload["signOnMode"]),
	}, nil
}

func mapAppsFromRaw(rawItems []json.RawMessage) ([]App, error) {
	if len(rawItems) == 0 {
		return nil, nil
	}
	out := make([]App, 0, len(rawItems))
	for _, raw := range rawItems {
		app, err := mapAppPayload(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, app)
	}
	return out, nil
}

// listAppsFromRaw recovers pages the SDK fails to decode into its typed
// union. Okta returns app payloads the generated model does not cover.
func listAppsFromRaw(resp *sdk.APIResponse, err error) ([]App, error) {
	var apiErr *sdk.GenericOpenAPIError
	if !errors.As(err, &apiErr) {
		return nil, formatOktaError(err, resp)
	}
	if resp == nil || resp.Response == nil {
		return nil, formatOktaError(err, resp)
	}
	statusCode := resp.Response.StatusCode
	if statusCode < 200 || statusCode >= 300 {
		return nil, formatOktaError(err, resp)
	}

	var rawItems []json.RawMessage
	if parseErr := json.Unmarshal(apiErr.Body(), &rawItems); parseErr != nil {
		return nil, formatOktaError(err, resp)
	}
	out, mapErr := mapAppsFromRaw(rawItems)
	if mapErr != nil {
		return nil, mapErr
	}

	for resp != nil && resp.HasNextPage() {
		var nextRaw []json.RawMessage
		resp, err = resp.Next(&nextRaw)
		if err != nil {
			return nil, formatOktaError(err, resp)
		}
		page, mapErr := mapAppsFromRaw(nextRaw)
		if mapErr != nil {
			return nil, mapErr
		}
		out = append(out, page...)
	}

	return out, nil
}

func getStringValue(v any) string {
	if v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return ""
	}
}

func formatOktaError(err error, resp *sdk.APIResponse) error {
	if err == nil {
		return nil
	}
	status := ""
	if resp != nil && resp.Response != nil {
		status = resp.Response.Status
	}
	var apiErr *sdk.GenericOpenAPIError
	if errors.As(err, &apiErr) {
		if model := apiErr.Model(); model != nil {
			switch v := model.(type) {
			case sdk.Error:
				if summary := strings.TrimSpace(v.GetErrorSummary()); summary != "" {
					return fmt.Errorf("okta api error: %s: %s", status, summary)
				}
			case *sdk.Error:
				if summary := strings.TrimSpace(v.GetErrorSummary()); summary != "" {
					return fmt.Errorf("okta api error: %s: %s", status, summary)
				}
			}
		}
		body := strings.TrimSpace(string(apiErr.Body()))
		const maxBody = 4096
		if len(body) > maxBody {
			body = body[:maxBody] + fmt.Sprintf("... (truncated, %d bytes)", len(body))
		}
		if body != "" {
			return fmt.Errorf("okta api error: %s: %s", status, body)
		}
	}
	if status != "" {
		return fmt.Errorf("okta api error: %s: %w", status, err)
	}
	return err
}
