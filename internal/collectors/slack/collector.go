package slack

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

// Collector folds the workspace integration log into one candidate per app.
// A "removed" entry after the last install drops the app from the result.
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

func (c *Collector) Platform() platform.Platform { return platform.Slack }

func (c *Collector) SourceName() string { return c.sourceName }

func (c *Collector) ListCandidates(ctx context.Context) ([]discovery.Candidate, error) {
	logs, err := c.client.ListIntegrationLogs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list integration logs: %w", err)
	}
	return candidatesFromLogs(logs, c.now()), nil
}

type appState struct {
	name        string
	scopes      map[string]struct{}
	users       map[string]struct{}
	removed     bool
	lastSeen    time.Time
	recentCount int64
}

func candidatesFromLogs(logs []IntegrationLog, now time.Time) []discovery.Candidate {
	cutoff := now.Add(-activityWindow)

	byApp := make(map[string]*appState)
	order := make([]string, 0)
	for _, entry := range logs {
		appID := strings.TrimSpace(entry.AppID)
		if appID == "" {
			appID = strings.TrimSpace(entry.ServiceID)
		}
		if appID == "" {
			continue
		}

		state := byApp[appID]
		if state == nil {
			state = &appState{scopes: make(map[string]struct{}), users: make(map[string]struct{})}
			byApp[appID] = state
			order = append(order, appID)
		}
		if name := strings.TrimSpace(entry.AppType); name != "" {
			state.name = name
		}
		for _, scope := range strings.Split(entry.Scope, ",") {
			if scope = strings.TrimSpace(scope); scope != "" {
				state.scopes[scope] = struct{}{}
			}
		}
		if user := strings.TrimSpace(entry.UserName); user != "" {
			state.users[user] = struct{}{}
		}

		entryTime := entry.Date()
		if entryTime.After(state.lastSeen) {
			state.lastSeen = entryTime
		}
		if entryTime.After(cutoff) {
			state.recentCount++
		}

		switch strings.TrimSpace(entry.ChangeType) {
		case "removed":
			state.removed = true
		case "added", "enabled", "expanded", "updated":
			state.removed = false
		}
	}

	candidates := make([]discovery.Candidate, 0, len(byApp))
	for _, appID := range order {
		state := byApp[appID]
		if state.removed {
			continue
		}
		candidate := discovery.Candidate{
			ExternalID:    appID,
			DisplayName:   state.name,
			Platform:      platform.Slack,
			GrantedScopes: sortedKeys(state.scopes),
		}
		if state.recentCount > 0 || len(state.users) > 0 {
			candidate.Activity = &discovery.ActivitySignals{
				Events30d:  state.recentCount,
				LastSeenAt: state.lastSeen,
				Actors:     sortedKeys(state.users),
			}
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
