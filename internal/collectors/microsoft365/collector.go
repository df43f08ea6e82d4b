package microsoft365

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shadowscan/shadowscan/internal/discovery"
	"github.com/shadowscan/shadowscan/internal/platform"
)

// Collector joins service principals with their delegated permission grants.
// Identity is the application (client) id, which is stable across tenants.
type Collector struct {
	client   *Client
	tenantID string
}

func NewCollector(client *Client, tenantID string) *Collector {
	return &Collector{client: client, tenantID: strings.TrimSpace(tenantID)}
}

func (c *Collector) Platform() platform.Platform { return platform.Microsoft365 }

func (c *Collector) SourceName() string { return c.tenantID }

func (c *Collector) ListCandidates(ctx context.Context) ([]discovery.Candidate, error) {
	principals, err := c.client.ListServicePrincipals(ctx)
	if err != nil {
		return nil, fmt.Errorf("list service principals: %w", err)
	}
	grants, err := c.client.ListPermissionGrants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list permission grants: %w", err)
	}
	return joinPrincipalsWithGrants(principals, grants), nil
}

func joinPrincipalsWithGrants(principals []ServicePrincipal, grants []PermissionGrant) []discovery.Candidate {
	scopesByPrincipal := make(map[string]map[string]struct{})
	actorsByPrincipal := make(map[string]map[string]struct{})
	for _, grant := range grants {
		principalObjectID := strings.TrimSpace(grant.ClientID)
		if principalObjectID == "" {
			continue
		}
		scopes := scopesByPrincipal[principalObjectID]
		if scopes == nil {
			scopes = make(map[string]struct{})
			scopesByPrincipal[principalObjectID] = scopes
		}
		for _, scope := range strings.Fields(grant.Scope) {
			scopes[scope] = struct{}{}
		}
		if grant.ConsentType == "Principal" {
			if actor := strings.TrimSpace(grant.PrincipalID); actor != "" {
				actors := actorsByPrincipal[principalObjectID]
				if actors == nil {
					actors = make(map[string]struct{})
					actorsByPrincipal[principalObjectID] = actors
				}
				actors[actor] = struct{}{}
			}
		}
	}

	candidates := make([]discovery.Candidate, 0, len(principals))
	for _, principal := range principals {
		appID := strings.TrimSpace(principal.AppID)
		if appID == "" {
			continue
		}
		// Only applications someone actually consented to; first-party
		// managed identities without grants are platform plumbing.
		scopes := scopesByPrincipal[principal.ID]
		if len(scopes) == 0 && principal.ServicePrincipalType == "ManagedIdentity" {
			continue
		}

		candidate := discovery.Candidate{
			ExternalID:    appID,
			DisplayName:   strings.TrimSpace(principal.DisplayName),
			Platform:      platform.Microsoft365,
			ClientIDText:  appID + " " + strings.TrimSpace(principal.PublisherName) + " " + strings.TrimSpace(principal.Homepage),
			GrantedScopes: sortedKeys(scopes),
		}
		if actors := actorsByPrincipal[principal.ID]; len(actors) > 0 {
			candidate.Activity = &discovery.ActivitySignals{Actors: sortedKeys(actors)}
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
