package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/shadowscan/shadowscan/internal/discovery"
)

// RiskHistoryEntry is one append-only snapshot of an automation's risk.
type RiskHistoryEntry struct {
	AutomationID uuid.UUID
	Score        int
	Level        discovery.RiskLevel
	Factors      []string
	RecordedAt   time.Time
}

// ListRiskHistory returns the history for one automation, newest first.
func (s *Store) ListRiskHistory(ctx context.Context, automationID uuid.UUID, limit int) ([]RiskHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT automation_id, risk_score, risk_level, risk_factors, recorded_at
		FROM automation_risk_history
		WHERE automation_id = $1
		ORDER BY recorded_at DESC, id DESC
		LIMIT $2
	`, automationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRiskHistoryRows(rows)
}

func scanRiskHistoryRows(rows pgx.Rows) ([]RiskHistoryEntry, error) {
	var out []RiskHistoryEntry
	for rows.Next() {
		var entry RiskHistoryEntry
		var rawLevel string
		var factorsJSON []byte
		var recordedAt time.Time
		if err := rows.Scan(&entry.AutomationID, &entry.Score, &rawLevel, &factorsJSON, &recordedAt); err != nil {
			return nil, err
		}
		entry.Level = discovery.RiskLevel(rawLevel)
		entry.RecordedAt = recordedAt.UTC()
		if err := json.Unmarshal(factorsJSON, &entry.Factors); err != nil {
			return nil, fmt.Errorf("decode risk factors: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// ListRiskHistoryByIdentity resolves the automation by identity and returns
// its history, newest first.
func (s *Store) ListRiskHistoryByIdentity(ctx context.Context, id discovery.Identity, limit int) ([]RiskHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT h.automation_id, h.risk_score, h.risk_level, h.risk_factors, h.recorded_at
		FROM automation_risk_history h
		JOIN automations a ON a.id = h.automation_id
		WHERE a.org_id = $1 AND a.platform = $2 AND a.external_id = $3
		ORDER BY h.recorded_at DESC, h.id DESC
		LIMIT $4
	`, id.OrgID, id.Platform.String(), id.ExternalID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRiskHistoryRows(rows)
}
