package okta

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

// Collector lists org applications enriched with scopes and activity from
// app.oauth2 system log events.
type Collector struct {
	client *Client
	domain string
	now    func() time.Time
}

func NewCollector(client *Client, domain string) *Collector {
	return &Collector{
		client: client,
		domain: strings.TrimSpace(domain),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (c *Collector) Platform() platform.Platform { return platform.Okta }

func (c *Collector) SourceName() string { return c.domain }

func (c *Collector) ListCandidates(ctx context.Context) ([]discovery.Candidate, error) {
	apps, err := c.client.ListApps(ctx)
	if err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	events, err := c.client.ListTokenGrantEventsSince(ctx, c.now().Add(-activityWindow))
	if err != nil {
		return nil, fmt.Errorf("list token grant events: %w", err)
	}
	return candidatesFromApps(apps, events), nil
}

type appEvents struct {
	scopes   map[string]struct{}
	actors   map[string]struct{}
	domain   string
	count    int64
	lastSeen time.Time
}

func candidatesFromApps(apps []App, events []TokenGrantEvent) []discovery.Candidate {
	byApp := make(map[string]*appEvents)
	for _, event := range events {
		appID := strings.TrimSpace(event.AppID)
		if appID == "" {
			continue
		}
		agg := byApp[appID]
		if agg == nil {
			agg = &appEvents{scopes: make(map[string]struct{}), actors: make(map[string]struct{})}
			byApp[appID] = agg
		}
		for _, scope := range event.GrantedScopes {
			agg.scopes[scope] = struct{}{}
		}
		if actor := strings.TrimSpace(event.ActorEmail); actor != "" {
			agg.actors[actor] = struct{}{}
		}
		if agg.domain == "" {
			agg.domain = strings.TrimSpace(event.AppDomain)
		}
		agg.count++
		if event.Published.After(agg.lastSeen) {
			agg.lastSeen = event.Published
		}
	}

	candidates := make([]discovery.Candidate, 0, len(apps))
	for _, app := range apps {
		appID := strings.TrimSpace(app.ID)
		if appID == "" {
			continue
		}
		displayName := strings.TrimSpace(app.Label)
		if displayName == "" {
			displayName = strings.TrimSpace(app.Name)
		}

		candidate := discovery.Candidate{
			ExternalID:   appID,
			DisplayName:  displayName,
			Platform:     platform.Okta,
			ClientIDText: strings.TrimSpace(app.Name),
		}
		if agg := byApp[appID]; agg != nil {
			candidate.GrantedScopes = sortedKeys(agg.scopes)
			if agg.domain != "" {
				candidate.ClientIDText = strings.TrimSpace(candidate.ClientIDText + " " + agg.domain)
			}
			candidate.Activity = &discovery.ActivitySignals{
				Events30d:  agg.count,
				LastSeenAt: agg.lastSeen,
				Actors:     sortedKeys(agg.actors),
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
