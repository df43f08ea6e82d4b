package grouping

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shadowscan/shadowscan/internal/discovery"
	"github.com/shadowscan/shadowscan/internal/platform"
)

var testOrg = uuid.MustParse("4c6b8a40-93dd-45d2-b0ff-6eb218aa1a55")

func automation(key, vendor string, p platform.Platform, level discovery.RiskLevel, scopes []string, lastSeen time.Time) discovery.Automation {
	return discovery.Automation{
		OrgID:            testOrg,
		Platform:         p,
		ExternalID:       key + "-" + lastSeen.Format("150405"),
		VendorName:       vendor,
		VendorGroupKey:   key,
		GrantedScopes:    scopes,
		Risk:             discovery.RiskAssessment{Level: level},
		LastDiscoveredAt: lastSeen,
	}
}

func TestGroupByVendor_Aggregates(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(2 * time.Hour)

	groups, ungrouped := GroupByVendor([]discovery.Automation{
		automation("attio-google_workspace", "Attio", platform.GoogleWorkspace, discovery.RiskLevelMedium,
			[]string{"drive.readonly", "openid"}, t0),
		automation("attio-google_workspace", "Attio", platform.GoogleWorkspace, discovery.RiskLevelHigh,
			[]string{"drive.readonly", "contacts.read"}, t1),
	})

	if len(ungrouped) != 0 {
		t.Fatalf("ungrouped = %v, want none", ungrouped)
	}
	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}
	g := groups[0]
	if g.ApplicationCount != 2 {
		t.Fatalf("ApplicationCount = %d, want 2", g.ApplicationCount)
	}
	if g.RiskLevel != discovery.RiskLevelHigh {
		t.Fatalf("RiskLevel = %q, want max of members", g.RiskLevel)
	}
	// Union of {drive.readonly, openid} and {drive.readonly, contacts.read}.
	if g.TotalPermissions != 3 {
		t.Fatalf("TotalPermissions = %d, want union size 3", g.TotalPermissions)
	}
	if !g.LastSeen.Equal(t1) {
		t.Fatalf("LastSeen = %v, want %v", g.LastSeen, t1)
	}
}

func TestGroupByVendor_UngroupedNotDropped(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	groups, ungrouped := GroupByVendor([]discovery.Automation{
		automation("", "", platform.GoogleWorkspace, discovery.RiskLevelLow, nil, now),
		automation("linear-slack", "Linear", platform.Slack, discovery.RiskLevelLow, nil, now),
	})

	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}
	if len(ungrouped) != 1 {
		t.Fatalf("ungrouped = %d, want 1", len(ungrouped))
	}
	for _, g := range groups {
		if g.VendorGroupKey == "" {
			t.Fatal("empty-key group must not exist")
		}
	}
}

func TestGroupByVendor_Ordering(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	groups, _ := GroupByVendor([]discovery.Automation{
		automation("zeta-slack", "Zeta", platform.Slack, discovery.RiskLevelHigh, nil, now),
		automation("alpha-slack", "Alpha", platform.Slack, discovery.RiskLevelHigh, nil, now),
		automation("mid-okta", "Mid", platform.Okta, discovery.RiskLevelCritical, nil, now),
		automation("busy-github", "Busy", platform.GitHub, discovery.RiskLevelHigh, nil, now),
		automation("busy-github", "Busy", platform.GitHub, discovery.RiskLevelLow, nil, now.Add(time.Minute)),
	})

	wantOrder := []string{"mid-okta", "busy-github", "alpha-slack", "zeta-slack"}
	if len(groups) != len(wantOrder) {
		t.Fatalf("groups = %d, want %d", len(groups), len(wantOrder))
	}
	for i, want := range wantOrder {
		if groups[i].VendorGroupKey != want {
			t.Fatalf("groups[%d] = %q, want %q (full order %v)", i, groups[i].VendorGroupKey, want, groupKeys(groups))
		}
	}
}

func TestGroupByVendor_SamePlatformVendorSplitByPlatform(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	groups, _ := GroupByVendor([]discovery.Automation{
		automation("attio-google_workspace", "Attio", platform.GoogleWorkspace, discovery.RiskLevelLow, nil, now),
		automation("attio-slack", "Attio", platform.Slack, discovery.RiskLevelLow, nil, now),
	})
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want vendor split per platform", len(groups))
	}
}

func groupKeys(groups []VendorGroup) []string {
	keys := make([]string, 0, len(groups))
	for _, g := range groups {
		keys = append(keys, g.VendorGroupKey)
	}
	return keys
}
