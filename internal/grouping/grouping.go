// Package grouping builds read-time vendor aggregates over persisted
// automations. Groups are computed on demand and never stored.
package grouping

import (
	"sort"
	"time"

	"github.com/shadowscan/shadowscan/internal/discovery"
	"github.com/shadowscan/shadowscan/internal/platform"
)

// VendorGroup aggregates every automation attributable to one vendor on one
// platform.
type VendorGroup struct {
	VendorGroupKey   string
	VendorName       string
	Platform         platform.Platform
	ApplicationCount int
	RiskLevel        discovery.RiskLevel
	TotalPermissions int
	LastSeen         time.Time
	Members          []discovery.Automation
}

// GroupByVendor groups automations by vendor group key. Automations without
// a key cannot be attributed to a vendor; they are returned separately,
// never silently dropped. Group ordering is deterministic: risk level
// descending, then application count descending, then key ascending.
func GroupByVendor(automations []discovery.Automation) ([]VendorGroup, []discovery.Automation) {
	byKey := make(map[string]*VendorGroup)
	var order []string
	var ungrouped []discovery.Automation

	for _, a := range automations {
		key := a.VendorGroupKey
		if key == "" {
			ungrouped = append(ungrouped, a)
			continue
		}
		group, ok := byKey[key]
		if !ok {
			group = &VendorGroup{
				VendorGroupKey: key,
				VendorName:     a.VendorName,
				Platform:       a.Platform,
				RiskLevel:      discovery.RiskLevelLow,
			}
			byKey[key] = group
			order = append(order, key)
		}
		group.Members = append(group.Members, a)
		group.ApplicationCount++
		if a.Risk.Level.Rank() > group.RiskLevel.Rank() {
			group.RiskLevel = a.Risk.Level
		}
		if a.LastDiscoveredAt.After(group.LastSeen) {
			group.LastSeen = a.LastDiscoveredAt
		}
	}

	groups := make([]VendorGroup, 0, len(order))
	for _, key := range order {
		group := byKey[key]
		group.TotalPermissions = permissionUnionSize(group.Members)
		groups = append(groups, *group)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].RiskLevel.Rank() != groups[j].RiskLevel.Rank() {
			return groups[i].RiskLevel.Rank() > groups[j].RiskLevel.Rank()
		}
		if groups[i].ApplicationCount != groups[j].ApplicationCount {
			return groups[i].ApplicationCount > groups[j].ApplicationCount
		}
		return groups[i].VendorGroupKey < groups[j].VendorGroupKey
	})

	return groups, ungrouped
}

// permissionUnionSize counts distinct scopes across members. Duplicates
// across members must not double-count.
func permissionUnionSize(members []discovery.Automation) int {
	seen := make(map[string]struct{})
	for _, m := range members {
		for _, scope := range discovery.NormalizeScopes(m.GrantedScopes) {
			seen[scope] = struct{}{}
		}
	}
	return len(seen)
}
