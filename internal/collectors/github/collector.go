package github

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shadowscan/shadowscan/internal/discovery"
	"github.com/shadowscan/shadowscan/internal/platform"
)

// Collector lists GitHub App installations as candidate automations.
// Identity is "installation:<id>" so the same app installed twice stays
// distinguishable.
type Collector struct {
	client *Client
	org    string
}

func NewCollector(client *Client, org string) *Collector {
	return &Collector{client: client, org: strings.TrimSpace(org)}
}

func (c *Collector) Platform() platform.Platform { return platform.GitHub }

func (c *Collector) SourceName() string { return c.org }

func (c *Collector) ListCandidates(ctx context.Context) ([]discovery.Candidate, error) {
	installations, err := c.client.ListOrgInstallations(ctx, c.org)
	if err != nil {
		return nil, fmt.Errorf("list org installations: %w", err)
	}

	candidates := make([]discovery.Candidate, 0, len(installations))
	for _, installation := range installations {
		candidates = append(candidates, candidateFromInstallation(installation))
	}
	return candidates, nil
}

func candidateFromInstallation(installation AppInstallation) discovery.Candidate {
	displayName := strings.TrimSpace(installation.AppName)
	if displayName == "" {
		displayName = strings.TrimSpace(installation.AppSlug)
	}

	return discovery.Candidate{
		ExternalID:    "installation:" + strconv.FormatInt(installation.ID, 10),
		DisplayName:   displayName,
		Platform:      platform.GitHub,
		ClientIDText:  installation.AppSlug,
		GrantedScopes: permissionScopes(installation.Permissions),
	}
}

// permissionScopes flattens the installation permission map into
// "name:access" scope strings with a stable order.
func permissionScopes(permissions map[string]string) []string {
	if len(permissions) == 0 {
		return nil
	}
	scopes := make([]string, 0, len(permissions))
	for name, access := range permissions {
		name = strings.TrimSpace(name)
		access = strings.TrimSpace(access)
		if name == "" {
			continue
		}
		if access == "" {
			scopes = append(scopes, name)
			continue
		}
		scopes = append(scopes, name+":"+access)
	}
	sort.Strings(scopes)
	return scopes
}
