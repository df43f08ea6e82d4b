// Package aggregator turns collector candidates into the persisted
// automation inventory: classification, risk scoring, de-duplication by
// identity, and run bookkeeping.
package aggregator

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shadowscan/shadowscan/internal/discovery"
	"github.com/shadowscan/shadowscan/internal/store"
)

// AutomationStore is the subset of the store the reconciler writes through.
type AutomationStore interface {
	UpsertAutomation(ctx context.Context, a discovery.Automation) (store.UpsertResult, error)
}

// ReconcileStats summarizes one reconcile pass over a candidate batch.
type ReconcileStats struct {
	Seen     int
	Invalid  int
	Upserted int
	Created  int
}

// Reconciler classifies candidates and upserts them by identity. Running it
// twice over the same batch yields the same inventory.
type Reconciler struct {
	store    AutomationStore
	detector *discovery.Detector
	scorer   *discovery.Scorer
	now      func() time.Time
}

func NewReconciler(s AutomationStore) *Reconciler {
	return &Reconciler{
		store:    s,
		detector: discovery.NewDetector(discovery.DefaultRuleSet()),
		scorer:   discovery.NewScorer(discovery.DefaultScoringRules()),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Reconcile processes one batch. Invalid candidates are counted and
// excluded; they never abort the batch.
func (r *Reconciler) Reconcile(ctx context.Context, orgID uuid.UUID, candidates []discovery.Candidate) (ReconcileStats, error) {
	stats := ReconcileStats{Seen: len(candidates)}
	now := r.now()

	for _, candidate := range candidates {
		if err := candidate.Validate(); err != nil {
			stats.Invalid++
			continue
		}

		automation := r.Classify(orgID, candidate, now)
		result, err := r.store.UpsertAutomation(ctx, automation)
		if err != nil {
			return stats, err
		}
		stats.Upserted++
		if result.Created {
			stats.Created++
		}
	}
	return stats, nil
}

// Classify runs detection, scoring, and vendor extraction for one valid
// candidate. It is deterministic for a given candidate.
func (r *Reconciler) Classify(orgID uuid.UUID, c discovery.Candidate, now time.Time) discovery.Automation {
	detection := r.detector.Detect(c)
	risk := r.scorer.Score(c, detection)

	vendor := discovery.ExtractVendorName(c.DisplayName)
	if vendor == "" {
		vendor = vendorFromClientText(c.ClientIDText)
	}
	if vendor == "" && detection.IsAIPlatform {
		vendor = detection.PlatformLabel
	}

	groupKey := ""
	if vendor != "" {
		groupKey = discovery.VendorGroupKey(vendor, c.Platform)
	}

	return discovery.Automation{
		OrgID:            orgID,
		Platform:         c.Platform,
		ExternalID:       strings.TrimSpace(c.ExternalID),
		DisplayName:      strings.TrimSpace(c.DisplayName),
		VendorName:       vendor,
		VendorGroupKey:   groupKey,
		GrantedScopes:    discovery.NormalizeScopes(c.GrantedScopes),
		Detection:        detection,
		Risk:             risk,
		LastDiscoveredAt: now,
	}
}

// Platform infrastructure domains carry no vendor identity; a Google
// client id like "123.apps.googleusercontent.com" must not group as
// "Googleusercontent".
var infrastructureDomains = map[string]struct{}{
	"googleusercontent.com": {},
	"googleapis.com":        {},
	"google.com":            {},
	"slack.com":             {},
	"microsoft.com":         {},
	"microsoftonline.com":   {},
	"windows.net":           {},
	"github.com":            {},
	"okta.com":              {},
	"oktapreview.com":       {},
}

// vendorFromClientText falls back to domain-based inference when the
// display name is a platform-issued placeholder. The first token that
// normalizes to a registrable non-infrastructure domain wins.
func vendorFromClientText(clientIDText string) string {
	for _, token := range strings.Fields(clientIDText) {
		if !strings.Contains(token, ".") {
			continue
		}
		domain := discovery.NormalizeDomain(token)
		if domain == "" {
			continue
		}
		if _, infra := infrastructureDomains[domain]; infra {
			continue
		}
		if vendor := discovery.VendorNameFromDomain(domain); vendor != "" {
			return vendor
		}
	}
	return ""
}
