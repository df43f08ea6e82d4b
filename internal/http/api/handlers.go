// Package api serves the JSON inventory API: automations, vendor grouping,
// discovery runs, and collector configuration.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/shadowscan/shadowscan/internal/aggregator"
	"github.com/shadowscan/shadowscan/internal/collectors/registry"
	"github.com/shadowscan/shadowscan/internal/discovery"
	"github.com/shadowscan/shadowscan/internal/grouping"
	"github.com/shadowscan/shadowscan/internal/platform"
	"github.com/shadowscan/shadowscan/internal/store"
)

// InventoryStore is the read/write persistence surface the API needs.
type InventoryStore interface {
	registry.ConfigSource
	ListAutomations(ctx context.Context, orgID uuid.UUID, filter store.ListFilter) ([]discovery.Automation, error)
	GetAutomation(ctx context.Context, id discovery.Identity) (discovery.Automation, error)
	ListRiskHistoryByIdentity(ctx context.Context, id discovery.Identity, limit int) ([]store.RiskHistoryEntry, error)
	LatestRun(ctx context.Context, orgID uuid.UUID) (store.DiscoveryRun, error)
	SetCollectorConfig(ctx context.Context, p platform.Platform, enabled bool, config []byte) error
	Ping(ctx context.Context) error
}

// DiscoveryRunner triggers a manual discovery run.
type DiscoveryRunner interface {
	RunOnce(ctx context.Context) (aggregator.RunReport, error)
}

// Handlers groups the API handlers and their shared dependencies.
type Handlers struct {
	OrgID    uuid.UUID
	Store    InventoryStore
	Runner   DiscoveryRunner
	Registry *registry.CollectorRegistry
}

type automationJSON struct {
	Platform         string                    `json:"platform"`
	ExternalID       string                    `json:"external_id"`
	DisplayName      string                    `json:"display_name"`
	VendorName       string                    `json:"vendor_name,omitempty"`
	VendorGroupKey   string                    `json:"vendor_group_key,omitempty"`
	GrantedScopes    []string                  `json:"granted_scopes,omitempty"`
	Detection        discovery.DetectionResult `json:"detection"`
	Risk             discovery.RiskAssessment  `json:"risk"`
	FirstSeenAt      time.Time                 `json:"first_seen_at"`
	LastDiscoveredAt time.Time                 `json:"last_discovered_at"`
}

type vendorGroupJSON struct {
	VendorGroupKey   string           `json:"vendor_group_key"`
	VendorName       string           `json:"vendor_name"`
	Platform         string           `json:"platform"`
	ApplicationCount int              `json:"application_count"`
	RiskLevel        string           `json:"risk_level"`
	TotalPermissions int              `json:"total_permissions"`
	Members          []automationJSON `json:"members"`
}

func toAutomationJSON(a discovery.Automation) automationJSON {
	return automationJSON{
		Platform:         a.Platform.String(),
		ExternalID:       a.ExternalID,
		DisplayName:      a.DisplayName,
		VendorName:       a.VendorName,
		VendorGroupKey:   a.VendorGroupKey,
		GrantedScopes:    a.GrantedScopes,
		Detection:        a.Detection,
		Risk:             a.Risk,
		FirstSeenAt:      a.FirstSeenAt,
		LastDiscoveredAt: a.LastDiscoveredAt,
	}
}

// HandleHealthz returns a simple health check response.
func (h *Handlers) HandleHealthz(c *echo.Context) error {
	if err := h.Store.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// HandleListAutomations lists the inventory, optionally grouped by vendor.
func (h *Handlers) HandleListAutomations(c *echo.Context) error {
	ctx := c.Request().Context()

	filter, err := parseListFilter(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	automations, err := h.Store.ListAutomations(ctx, h.OrgID, filter)
	if err != nil {
		return err
	}

	if strings.EqualFold(c.QueryParam("group_by"), "vendor") {
		groups, ungrouped := grouping.GroupByVendor(automations)

		groupsJSON := make([]vendorGroupJSON, 0, len(groups))
		for _, group := range groups {
			members := make([]automationJSON, 0, len(group.Members))
			for _, member := range group.Members {
				members = append(members, toAutomationJSON(member))
			}
			groupsJSON = append(groupsJSON, vendorGroupJSON{
				VendorGroupKey:   group.VendorGroupKey,
				VendorName:       group.VendorName,
				Platform:         group.Platform.String(),
				ApplicationCount: group.ApplicationCount,
				RiskLevel:        string(group.RiskLevel),
				TotalPermissions: group.TotalPermissions,
				Members:          members,
			})
		}
		ungroupedJSON := make([]automationJSON, 0, len(ungrouped))
		for _, a := range ungrouped {
			ungroupedJSON = append(ungroupedJSON, toAutomationJSON(a))
		}
		return c.JSON(http.StatusOK, map[string]any{
			"groups":    groupsJSON,
			"ungrouped": ungroupedJSON,
		})
	}

	out := make([]automationJSON, 0, len(automations))
	for _, a := range automations {
		out = append(out, toAutomationJSON(a))
	}
	return c.JSON(http.StatusOK, map[string]any{"automations": out})
}

// HandleGetAutomation fetches one automation by platform and external id.
func (h *Handlers) HandleGetAutomation(c *echo.Context) error {
	ctx := c.Request().Context()

	p, err := platform.Parse(c.Param("platform"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	externalID := strings.Trim(c.Param("*"), "/")
	if externalID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "external id is required"})
	}

	id := discovery.Identity{OrgID: h.OrgID, Platform: p, ExternalID: externalID}
	a, err := h.Store.GetAutomation(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "automation not found"})
	}
	if err != nil {
		return err
	}

	if !strings.EqualFold(c.QueryParam("include"), "risk_history") {
		return c.JSON(http.StatusOK, toAutomationJSON(a))
	}

	history, err := h.Store.ListRiskHistoryByIdentity(ctx, id, 50)
	if err != nil {
		return err
	}
	entries := make([]riskHistoryJSON, 0, len(history))
	for _, entry := range history {
		entries = append(entries, riskHistoryJSON{
			Score:      entry.Score,
			Level:      string(entry.Level),
			Factors:    entry.Factors,
			RecordedAt: entry.RecordedAt,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"automation":   toAutomationJSON(a),
		"risk_history": entries,
	})
}

type riskHistoryJSON struct {
	Score      int       `json:"score"`
	Level      string    `json:"level"`
	Factors    []string  `json:"factors,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// HandleRunDiscovery triggers a discovery run synchronously.
func (h *Handlers) HandleRunDiscovery(c *echo.Context) error {
	report, err := h.Runner.RunOnce(c.Request().Context())
	if errors.Is(err, aggregator.ErrRunInProgress) {
		return c.JSON(http.StatusConflict, map[string]string{"error": "discovery run already in progress"})
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"run_id":          report.RunID,
		"status":          report.Status,
		"seen":            report.Stats.Seen,
		"invalid":         report.Stats.Invalid,
		"upserted":        report.Stats.Upserted,
		"platform_errors": report.PlatformErrors,
	})
}

// HandleLatestRun returns the most recent discovery run.
func (h *Handlers) HandleLatestRun(c *echo.Context) error {
	run, err := h.Store.LatestRun(c.Request().Context(), h.OrgID)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no discovery runs yet"})
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"id":                   run.ID,
		"status":               run.Status,
		"started_at":           run.StartedAt,
		"finished_at":          run.FinishedAt,
		"candidates_seen":      run.CandidatesSeen,
		"candidates_invalid":   run.CandidatesInvalid,
		"automations_upserted": run.AutomationsUpserted,
		"platform_errors":      run.PlatformErrors,
	})
}

type connectorJSON struct {
	Platform    string `json:"platform"`
	DisplayName string `json:"display_name"`
	Enabled     bool   `json:"enabled"`
	Configured  bool   `json:"configured"`
	SourceName  string `json:"source_name,omitempty"`
}

// HandleListConnectors returns the configuration state of every collector.
func (h *Handlers) HandleListConnectors(c *echo.Context) error {
	states, err := h.Registry.LoadStates(c.Request().Context(), h.Store)
	if err != nil {
		return err
	}

	out := make([]connectorJSON, 0, len(states))
	for _, state := range states {
		out = append(out, connectorJSON{
			Platform:    state.Definition.Platform().String(),
			DisplayName: state.Definition.DisplayName(),
			Enabled:     state.Enabled,
			Configured:  state.Configured,
			SourceName:  state.SourceName,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"connectors": out})
}

// HandleSetConnector stores a collector configuration. The payload is
// validated against the platform's definition before it is persisted.
func (h *Handlers) HandleSetConnector(c *echo.Context) error {
	ctx := c.Request().Context()

	p, err := platform.Parse(c.Param("platform"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	def, ok := h.Registry.Get(p)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no collector for platform"})
	}

	var req struct {
		Enabled bool            `json:"enabled"`
		Config  json.RawMessage `json:"config"`
	}
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	cfg, err := def.DecodeConfig(req.Config)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if req.Enabled {
		if err := def.ValidateConfig(cfg); err != nil {
			return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		}
	}

	if err := h.Store.SetCollectorConfig(ctx, p, req.Enabled, req.Config); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, connectorJSON{
		Platform:    p.String(),
		DisplayName: def.DisplayName(),
		Enabled:     req.Enabled,
		Configured:  def.IsConfigured(cfg),
		SourceName:  def.SourceName(cfg),
	})
}

func parseListFilter(c *echo.Context) (store.ListFilter, error) {
	var filter store.ListFilter

	if raw := strings.TrimSpace(c.QueryParam("platform")); raw != "" {
		p, err := platform.Parse(raw)
		if err != nil {
			return store.ListFilter{}, err
		}
		filter.Platform = p
	}
	if raw := strings.ToLower(strings.TrimSpace(c.QueryParam("min_risk"))); raw != "" {
		switch discovery.RiskLevel(raw) {
		case discovery.RiskLevelLow, discovery.RiskLevelMedium, discovery.RiskLevelHigh, discovery.RiskLevelCritical:
			filter.MinRiskLevel = discovery.RiskLevel(raw)
		default:
			return store.ListFilter{}, errors.New("min_risk must be one of low, medium, high, critical")
		}
	}
	if raw := strings.ToLower(strings.TrimSpace(c.QueryParam("ai_only"))); raw == "true" || raw == "1" {
		filter.AIOnly = true
	}
	filter.VendorKey = strings.TrimSpace(c.QueryParam("vendor_key"))
	return filter, nil
}
