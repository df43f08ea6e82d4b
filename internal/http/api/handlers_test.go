package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/shadowscan/shadowscan/internal/aggregator"
	"github.com/shadowscan/shadowscan/internal/collectors/okta"
	"github.com/shadowscan/shadowscan/internal/collectors/registry"
	"github.com/shadowscan/shadowscan/internal/discovery"
	"github.com/shadowscan/shadowscan/internal/platform"
	"github.com/shadowscan/shadowscan/internal/store"
)

func newTestContext(method, target string, body string) (*echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

type fakeInventoryStore struct {
	automations []discovery.Automation
	lastFilter  store.ListFilter
	run         store.DiscoveryRun
	runErr      error
	configs     []registry.ConfigRow

	savedPlatform platform.Platform
	savedEnabled  bool
	savedConfig   []byte
}

func (s *fakeInventoryStore) ListAutomations(_ context.Context, _ uuid.UUID, filter store.ListFilter) ([]discovery.Automation, error) {
	s.lastFilter = filter
	return s.automations, nil
}

func (s *fakeInventoryStore) GetAutomation(_ context.Context, id discovery.Identity) (discovery.Automation, error) {
	for _, a := range s.automations {
		if a.Platform == id.Platform && a.ExternalID == id.ExternalID {
			return a, nil
		}
	}
	return discovery.Automation{}, store.ErrNotFound
}

func (s *fakeInventoryStore) ListRiskHistoryByIdentity(_ context.Context, id discovery.Identity, _ int) ([]store.RiskHistoryEntry, error) {
	a, err := s.GetAutomation(context.Background(), id)
	if err != nil {
		return nil, err
	}
	return []store.RiskHistoryEntry{{
		Score:      a.Risk.Score,
		Level:      a.Risk.Level,
		RecordedAt: a.LastDiscoveredAt,
	}}, nil
}

func (s *fakeInventoryStore) LatestRun(context.Context, uuid.UUID) (store.DiscoveryRun, error) {
	return s.run, s.runErr
}

func (s *fakeInventoryStore) ListCollectorConfigs(context.Context) ([]registry.ConfigRow, error) {
	return s.configs, nil
}

func (s *fakeInventoryStore) SetCollectorConfig(_ context.Context, p platform.Platform, enabled bool, config []byte) error {
	s.savedPlatform = p
	s.savedEnabled = enabled
	s.savedConfig = config
	return nil
}

func (s *fakeInventoryStore) Ping(context.Context) error { return nil }

type fakeRunner struct {
	report aggregator.RunReport
	err    error
}

func (r *fakeRunner) RunOnce(context.Context) (aggregator.RunReport, error) {
	return r.report, r.err
}

func testAutomation(p platform.Platform, externalID, vendorKey string, level discovery.RiskLevel) discovery.Automation {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	return discovery.Automation{
		Platform:         p,
		ExternalID:       externalID,
		DisplayName:      externalID,
		VendorName:       strings.Split(vendorKey, "-")[0],
		VendorGroupKey:   vendorKey,
		GrantedScopes:    []string{"email"},
		Risk:             discovery.RiskAssessment{Score: 40, Level: level},
		FirstSeenAt:      now,
		LastDiscoveredAt: now,
	}
}

func TestHandleListAutomations(t *testing.T) {
	t.Parallel()

	st := &fakeInventoryStore{automations: []discovery.Automation{
		testAutomation(platform.Okta, "app-1", "acme-okta", discovery.RiskLevelHigh),
		testAutomation(platform.Slack, "A0X", "acme-slack", discovery.RiskLevelLow),
	}}
	h := &Handlers{OrgID: uuid.New(), Store: st}

	c, rec := newTestContext(http.MethodGet, "/api/automations?platform=okta&min_risk=high&ai_only=true", "")
	if err := h.HandleListAutomations(c); err != nil {
		t.Fatalf("HandleListAutomations() error = %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	if st.lastFilter.Platform != platform.Okta {
		t.Fatalf("filter platform = %q, want %q", st.lastFilter.Platform, platform.Okta)
	}
	if st.lastFilter.MinRiskLevel != discovery.RiskLevelHigh {
		t.Fatalf("filter min risk = %q, want high", st.lastFilter.MinRiskLevel)
	}
	if !st.lastFilter.AIOnly {
		t.Fatal("filter ai_only not set")
	}

	var resp struct {
		Automations []automationJSON `json:"automations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Automations) != 2 {
		t.Fatalf("automations length = %d, want 2", len(resp.Automations))
	}
}

func TestHandleListAutomationsRejectsUnknownPlatform(t *testing.T) {
	t.Parallel()

	h := &Handlers{Store: &fakeInventoryStore{}}
	c, rec := newTestContext(http.MethodGet, "/api/automations?platform=salesforce", "")
	if err := h.HandleListAutomations(c); err != nil {
		t.Fatalf("HandleListAutomations() error = %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleListAutomationsGroupByVendor(t *testing.T) {
	t.Parallel()

	st := &fakeInventoryStore{automations: []discovery.Automation{
		testAutomation(platform.Okta, "app-1", "chatgpt-okta", discovery.RiskLevelHigh),
		testAutomation(platform.Okta, "app-2", "chatgpt-okta", discovery.RiskLevelMedium),
		testAutomation(platform.Okta, "app-3", "", discovery.RiskLevelLow),
	}}
	h := &Handlers{OrgID: uuid.New(), Store: st}

	c, rec := newTestContext(http.MethodGet, "/api/automations?group_by=vendor", "")
	if err := h.HandleListAutomations(c); err != nil {
		t.Fatalf("HandleListAutomations() error = %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp struct {
		Groups    []vendorGroupJSON `json:"groups"`
		Ungrouped []automationJSON  `json:"ungrouped"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Groups) != 1 {
		t.Fatalf("groups length = %d, want 1", len(resp.Groups))
	}
	group := resp.Groups[0]
	if group.ApplicationCount != 2 {
		t.Fatalf("application count = %d, want 2", group.ApplicationCount)
	}
	if group.RiskLevel != "high" {
		t.Fatalf("group risk level = %q, want high", group.RiskLevel)
	}
	if len(resp.Ungrouped) != 1 || resp.Ungrouped[0].ExternalID != "app-3" {
		t.Fatalf("ungrouped = %+v, want single app-3 entry", resp.Ungrouped)
	}
}

func TestHandleGetAutomation(t *testing.T) {
	t.Parallel()

	st := &fakeInventoryStore{automations: []discovery.Automation{
		testAutomation(platform.GoogleWorkspace, "1234.apps.googleusercontent.com", "chatgpt-google_workspace", discovery.RiskLevelHigh),
	}}
	h := &Handlers{OrgID: uuid.New(), Store: st}

	c, rec := newTestContext(http.MethodGet, "/api/automations/google_workspace/1234.apps.googleusercontent.com", "")
	c.SetPathValues(echo.PathValues{
		{Name: "platform", Value: "google_workspace"},
		{Name: "*", Value: "1234.apps.googleusercontent.com"},
	})
	if err := h.HandleGetAutomation(c); err != nil {
		t.Fatalf("HandleGetAutomation() error = %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got automationJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ExternalID != "1234.apps.googleusercontent.com" {
		t.Fatalf("external id = %q", got.ExternalID)
	}
}

func TestHandleGetAutomationIncludesRiskHistory(t *testing.T) {
	t.Parallel()

	st := &fakeInventoryStore{automations: []discovery.Automation{
		testAutomation(platform.Okta, "app-1", "chatgpt-okta", discovery.RiskLevelHigh),
	}}
	h := &Handlers{OrgID: uuid.New(), Store: st}

	c, rec := newTestContext(http.MethodGet, "/api/automations/okta/app-1?include=risk_history", "")
	c.SetPathValues(echo.PathValues{
		{Name: "platform", Value: "okta"},
		{Name: "*", Value: "app-1"},
	})
	if err := h.HandleGetAutomation(c); err != nil {
		t.Fatalf("HandleGetAutomation() error = %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp struct {
		Automation  automationJSON    `json:"automation"`
		RiskHistory []riskHistoryJSON `json:"risk_history"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Automation.ExternalID != "app-1" {
		t.Fatalf("external id = %q", resp.Automation.ExternalID)
	}
	if len(resp.RiskHistory) != 1 || resp.RiskHistory[0].Level != "high" {
		t.Fatalf("risk history = %+v, want one high entry", resp.RiskHistory)
	}
}

func TestHandleGetAutomationNotFound(t *testing.T) {
	t.Parallel()

	h := &Handlers{OrgID: uuid.New(), Store: &fakeInventoryStore{}}
	c, rec := newTestContext(http.MethodGet, "/api/automations/okta/missing", "")
	c.SetPathValues(echo.PathValues{
		{Name: "platform", Value: "okta"},
		{Name: "*", Value: "missing"},
	})
	if err := h.HandleGetAutomation(c); err != nil {
		t.Fatalf("HandleGetAutomation() error = %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleRunDiscovery(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{report: aggregator.RunReport{
		RunID:  uuid.New(),
		Status: store.RunStatusSucceeded,
		Stats:  aggregator.ReconcileStats{Seen: 5, Upserted: 5},
	}}
	h := &Handlers{Store: &fakeInventoryStore{}, Runner: runner}

	c, rec := newTestContext(http.MethodPost, "/api/discovery/run", "")
	if err := h.HandleRunDiscovery(c); err != nil {
		t.Fatalf("HandleRunDiscovery() error = %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != store.RunStatusSucceeded {
		t.Fatalf("status field = %v, want %q", resp["status"], store.RunStatusSucceeded)
	}
}

func TestHandleRunDiscoveryConflict(t *testing.T) {
	t.Parallel()

	h := &Handlers{Store: &fakeInventoryStore{}, Runner: &fakeRunner{err: aggregator.ErrRunInProgress}}
	c, rec := newTestContext(http.MethodPost, "/api/discovery/run", "")
	if err := h.HandleRunDiscovery(c); err != nil {
		t.Fatalf("HandleRunDiscovery() error = %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestHandleLatestRunNotFound(t *testing.T) {
	t.Parallel()

	h := &Handlers{Store: &fakeInventoryStore{runErr: store.ErrNotFound}}
	c, rec := newTestContext(http.MethodGet, "/api/discovery/runs/latest", "")
	if err := h.HandleLatestRun(c); err != nil {
		t.Fatalf("HandleLatestRun() error = %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleSetConnector(t *testing.T) {
	t.Parallel()

	reg := registry.NewRegistry()
	if err := reg.Register(okta.Definition{}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	st := &fakeInventoryStore{}
	h := &Handlers{Store: st, Registry: reg}

	body := `{"enabled":true,"config":{"domain":"acme.okta.com","token":"tok"}}`
	c, rec := newTestContext(http.MethodPut, "/api/connectors/okta", body)
	c.SetPathValues(echo.PathValues{{Name: "platform", Value: "okta"}})
	if err := h.HandleSetConnector(c); err != nil {
		t.Fatalf("HandleSetConnector() error = %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	if st.savedPlatform != platform.Okta {
		t.Fatalf("saved platform = %q, want okta", st.savedPlatform)
	}
	if !st.savedEnabled {
		t.Fatal("saved config not enabled")
	}

	var resp connectorJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Configured {
		t.Fatal("response reports connector unconfigured")
	}
	if resp.SourceName != "acme.okta.com" {
		t.Fatalf("source name = %q, want acme.okta.com", resp.SourceName)
	}
}

func TestHandleSetConnectorRejectsIncompleteConfig(t *testing.T) {
	t.Parallel()

	reg := registry.NewRegistry()
	if err := reg.Register(okta.Definition{}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	h := &Handlers{Store: &fakeInventoryStore{}, Registry: reg}

	body := `{"enabled":true,"config":{"domain":"acme.okta.com"}}`
	c, rec := newTestContext(http.MethodPut, "/api/connectors/okta", body)
	c.SetPathValues(echo.PathValues{{Name: "platform", Value: "okta"}})
	if err := h.HandleSetConnector(c); err != nil {
		t.Fatalf("HandleSetConnector() error = %v", err)
	}
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
}

func TestHandleListConnectors(t *testing.T) {
	t.Parallel()

	reg := registry.NewRegistry()
	if err := reg.Register(okta.Definition{}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	st := &fakeInventoryStore{configs: []registry.ConfigRow{{
		Platform: platform.Okta,
		Enabled:  true,
		Config:   []byte(`{"domain":"acme.okta.com","token":"tok"}`),
	}}}
	h := &Handlers{Store: st, Registry: reg}

	c, rec := newTestContext(http.MethodGet, "/api/connectors", "")
	if err := h.HandleListConnectors(c); err != nil {
		t.Fatalf("HandleListConnectors() error = %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp struct {
		Connectors []connectorJSON `json:"connectors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Connectors) != 1 {
		t.Fatalf("connectors length = %d, want 1", len(resp.Connectors))
	}
	got := resp.Connectors[0]
	if !got.Enabled || !got.Configured {
		t.Fatalf("connector state = %+v, want enabled and configured", got)
	}
}
