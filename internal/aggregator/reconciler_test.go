package aggregator

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shadowscan/shadowscan/internal/discovery"
	"github.com/shadowscan/shadowscan/internal/platform"
	"github.com/shadowscan/shadowscan/internal/store"
)

type fakeAutomationStore struct {
	byIdentity map[string]discovery.Automation
	upserts    int
}

func newFakeAutomationStore() *fakeAutomationStore {
	return &fakeAutomationStore{byIdentity: make(map[string]discovery.Automation)}
}

func (f *fakeAutomationStore) UpsertAutomation(_ context.Context, a discovery.Automation) (store.UpsertResult, error) {
	f.upserts++
	key := a.Identity().String()
	prev, existed := f.byIdentity[key]
	f.byIdentity[key] = a
	return store.UpsertResult{
		ID:          uuid.New(),
		Created:     !existed,
		RiskChanged: !existed || prev.Risk.Score != a.Risk.Score,
	}, nil
}

func testOrgID() uuid.UUID {
	return uuid.MustParse("0d64a0de-9137-4b10-a3cf-6f0ac31f3983")
}

func TestReconcileIsIdempotent(t *testing.T) {
	t.Parallel()

	fake := newFakeAutomationStore()
	reconciler := NewReconciler(fake)
	candidates := []discovery.Candidate{
		{
			ExternalID:    "77713.apps.googleusercontent.com",
			DisplayName:   "ChatGPT",
			Platform:      platform.GoogleWorkspace,
			GrantedScopes: []string{"openid", "email", "profile", "https://www.googleapis.com/auth/drive.readonly"},
		},
		{ExternalID: "A111", DisplayName: "Attio CRM", Platform: platform.Slack},
	}

	first, err := reconciler.Reconcile(context.Background(), testOrgID(), candidates)
	if err != nil {
		t.Fatal(err)
	}
	if first.Seen != 2 || first.Upserted != 2 || first.Created != 2 || first.Invalid != 0 {
		t.Fatalf("first stats = %+v", first)
	}

	snapshot := make(map[string]discovery.Automation, len(fake.byIdentity))
	for key, a := range fake.byIdentity {
		snapshot[key] = a
	}

	second, err := reconciler.Reconcile(context.Background(), testOrgID(), candidates)
	if err != nil {
		t.Fatal(err)
	}
	if second.Created != 0 {
		t.Fatalf("second run created %d records", second.Created)
	}
	if len(fake.byIdentity) != 2 {
		t.Fatalf("inventory size = %d, want 2", len(fake.byIdentity))
	}
	for key, a := range fake.byIdentity {
		prev := snapshot[key]
		prev.LastDiscoveredAt = a.LastDiscoveredAt
		if !reflect.DeepEqual(prev, a) {
			t.Fatalf("record %s changed between identical runs:\n%+v\n%+v", key, prev, a)
		}
	}
}

func TestReconcileExcludesInvalidCandidates(t *testing.T) {
	t.Parallel()

	fake := newFakeAutomationStore()
	reconciler := NewReconciler(fake)
	candidates := []discovery.Candidate{
		{ExternalID: "", DisplayName: "No ID", Platform: platform.Slack},
		{ExternalID: "x", DisplayName: "Bad Platform", Platform: platform.Platform("myspace")},
		{ExternalID: "ok-1", DisplayName: "Notion", Platform: platform.Slack},
	}

	stats, err := reconciler.Reconcile(context.Background(), testOrgID(), candidates)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Invalid != 2 {
		t.Fatalf("Invalid = %d, want 2", stats.Invalid)
	}
	if stats.Upserted != 1 {
		t.Fatalf("Upserted = %d, want 1", stats.Upserted)
	}
}

func TestReconcileKeepsCrossPlatformIdentitiesApart(t *testing.T) {
	t.Parallel()

	fake := newFakeAutomationStore()
	reconciler := NewReconciler(fake)
	candidates := []discovery.Candidate{
		{ExternalID: "shared-id", DisplayName: "Zapier", Platform: platform.Slack},
		{ExternalID: "shared-id", DisplayName: "Zapier", Platform: platform.GitHub},
	}

	if _, err := reconciler.Reconcile(context.Background(), testOrgID(), candidates); err != nil {
		t.Fatal(err)
	}
	if len(fake.byIdentity) != 2 {
		t.Fatalf("inventory size = %d, want 2", len(fake.byIdentity))
	}
}

func TestClassifyChatGPTDriveScenario(t *testing.T) {
	t.Parallel()

	reconciler := NewReconciler(newFakeAutomationStore())
	candidate := discovery.Candidate{
		ExternalID:    "77713.apps.googleusercontent.com",
		DisplayName:   "ChatGPT",
		Platform:      platform.GoogleWorkspace,
		GrantedScopes: []string{"openid", "email", "profile", "https://www.googleapis.com/auth/drive.readonly"},
	}

	a := reconciler.Classify(testOrgID(), candidate, time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC))
	if !a.Detection.IsAIPlatform {
		t.Fatal("IsAIPlatform = false")
	}
	if a.Risk.Level != discovery.RiskLevelHigh {
		t.Fatalf("Risk.Level = %q, want high (score %d)", a.Risk.Level, a.Risk.Score)
	}
	if a.VendorGroupKey != "chatgpt-google_workspace" {
		t.Fatalf("VendorGroupKey = %q", a.VendorGroupKey)
	}
}

func TestClassifyVendorFallsBackToDomain(t *testing.T) {
	t.Parallel()

	reconciler := NewReconciler(newFakeAutomationStore())
	candidate := discovery.Candidate{
		ExternalID:   "app-1",
		DisplayName:  "OAuth App: 445566",
		Platform:     platform.Okta,
		ClientIDText: "oidc_client api.perplexity.ai",
	}

	a := reconciler.Classify(testOrgID(), candidate, time.Now().UTC())
	if a.VendorName != "Perplexity" {
		t.Fatalf("VendorName = %q, want Perplexity", a.VendorName)
	}
	if a.VendorGroupKey != "perplexity-okta" {
		t.Fatalf("VendorGroupKey = %q", a.VendorGroupKey)
	}
}

func TestVendorFromClientTextSkipsInfrastructureDomains(t *testing.T) {
	t.Parallel()

	if got := vendorFromClientText("77713.apps.googleusercontent.com"); got != "" {
		t.Fatalf("vendorFromClientText = %q, want empty", got)
	}
	if got := vendorFromClientText("api.attio.com"); got != "Attio" {
		t.Fatalf("vendorFromClientText = %q, want Attio", got)
	}
}
