package googleworkspace

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shadowscan/shadowscan/internal/discovery"
	"github.com/shadowscan/shadowscan/internal/platform"
)

const activityWindow = 30 * 24 * time.Hour

// Collector lists OAuth token grants and Apps Script projects as candidate
// automations. Grants are aggregated per OAuth client: identity is the
// client id, scopes are the union across users.
type Collector struct {
	client     *Client
	sourceName string
	now        func() time.Time
}

func NewCollector(client *Client, sourceName string) *Collector {
	return &Collector{
		client:     client,
		sourceName: sourceName,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (c *Collector) Platform() platform.Platform { return platform.GoogleWorkspace }

func (c *Collector) SourceName() string { return c.sourceName }

func (c *Collector) ListCandidates(ctx context.Context) ([]discovery.Candidate, error) {
	grants, err := c.client.ListTokenGrants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list oauth token grants: %w", err)
	}

	activities, err := c.client.ListTokenActivities(ctx, c.now().Add(-activityWindow))
	if err != nil {
		return nil, fmt.Errorf("list token activities: %w", err)
	}
	activityByClient := aggregateActivities(activities)

	candidates := candidatesFromGrants(grants, activityByClient)

	scriptCandidates, err := c.listScriptCandidates(ctx)
	if err != nil {
		return nil, err
	}
	return append(candidates, scriptCandidates...), nil
}

func (c *Collector) listScriptCandidates(ctx context.Context) ([]discovery.Candidate, error) {
	projects, err := c.client.ListScriptProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list script projects: %w", err)
	}

	candidates := make([]discovery.Candidate, 0, len(projects))
	for _, project := range projects {
		scriptID := strings.TrimSpace(project.ScriptID)
		if scriptID == "" {
			continue
		}
		source, err := c.client.GetScriptSource(ctx, scriptID)
		if err != nil {
			return nil, fmt.Errorf("get script source %s: %w", scriptID, err)
		}
		candidates = append(candidates, discovery.Candidate{
			ExternalID:  "script:" + scriptID,
			DisplayName: strings.TrimSpace(project.Title),
			Platform:    platform.GoogleWorkspace,
			SourceText:  source,
		})
	}
	return candidates, nil
}

type clientActivity struct {
	events   int64
	lastSeen time.Time
	actors   map[string]struct{}
}

func aggregateActivities(activities []TokenActivity) map[string]*clientActivity {
	byClient := make(map[string]*clientActivity)
	for _, activity := range activities {
		eventTime := parseGoogleTime(activity.ID.Time)
		actor := strings.TrimSpace(activity.Actor.Email)

		for _, event := range activity.Events {
			clientID := ""
			for _, param := range event.Parameters {
				if param.Name == "client_id" {
					clientID = strings.TrimSpace(param.Value)
					break
				}
			}
			if clientID == "" {
				continue
			}

			agg := byClient[clientID]
			if agg == nil {
				agg = &clientActivity{actors: make(map[string]struct{})}
				byClient[clientID] = agg
			}
			agg.events++
			if eventTime.After(agg.lastSeen) {
				agg.lastSeen = eventTime
			}
			if actor != "" {
				agg.actors[actor] = struct{}{}
			}
		}
	}
	return byClient
}

func candidatesFromGrants(grants []TokenGrant, activityByClient map[string]*clientActivity) []discovery.Candidate {
	type clientGrants struct {
		displayText string
		scopes      map[string]struct{}
		users       map[string]struct{}
	}

	byClient := make(map[string]*clientGrants)
	order := make([]string, 0)
	for _, grant := range grants {
		clientID := strings.TrimSpace(grant.ClientID)
		if clientID == "" {
			continue
		}
		agg := byClient[clientID]
		if agg == nil {
			agg = &clientGrants{scopes: make(map[string]struct{}), users: make(map[string]struct{})}
			byClient[clientID] = agg
			order = append(order, clientID)
		}
		if agg.displayText == "" {
			agg.displayText = strings.TrimSpace(grant.DisplayText)
		}
		for _, scope := range grant.Scopes {
			if scope = strings.TrimSpace(scope); scope != "" {
				agg.scopes[scope] = struct{}{}
			}
		}
		if userKey := strings.TrimSpace(grant.UserKey); userKey != "" {
			agg.users[userKey] = struct{}{}
		}
	}

	candidates := make([]discovery.Candidate, 0, len(order))
	for _, clientID := range order {
		agg := byClient[clientID]
		candidate := discovery.Candidate{
			ExternalID:    clientID,
			DisplayName:   agg.displayText,
			Platform:      platform.GoogleWorkspace,
			ClientIDText:  clientID,
			GrantedScopes: sortedKeys(agg.scopes),
		}
		if activity := activityByClient[clientID]; activity != nil {
			candidate.Activity = &discovery.ActivitySignals{
				Events30d:  activity.events,
				LastSeenAt: activity.lastSeen,
				Actors:     sortedKeys(activity.actors),
			}
		} else if len(agg.users) > 0 {
			candidate.Activity = &discovery.ActivitySignals{Actors: sortedKeys(agg.users)}
		}
		candidates = append(candidates, candidate)
	}
	return candidates
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func parseGoogleTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC()
	}
	return time.Time{}
}
