package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/shadowscan/shadowscan/internal/discovery"
	"github.com/shadowscan/shadowscan/internal/platform"
)

// UpsertResult reports what an upsert did with one automation.
type UpsertResult struct {
	ID          uuid.UUID
	Created     bool
	RiskChanged bool
}

// UpsertAutomation inserts or updates by (org_id, platform, external_id).
// Identity columns are never rewritten. A risk change, including the first
// insert, appends one row to the risk history.
func (s *Store) UpsertAutomation(ctx context.Context, a discovery.Automation) (UpsertResult, error) {
	scopesJSON, err := json.Marshal(nonNilStrings(a.GrantedScopes))
	if err != nil {
		return UpsertResult{}, fmt.Errorf("encode granted scopes: %w", err)
	}
	detectionJSON, err := json.Marshal(a.Detection)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("encode detection: %w", err)
	}
	factorsJSON, err := json.Marshal(nonNilStrings(a.Risk.Factors))
	if err != nil {
		return UpsertResult{}, fmt.Errorf("encode risk factors: %w", err)
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return UpsertResult{}, err
	}
	defer tx.Rollback(ctx)

	var result UpsertResult
	var prevScore int
	var prevLevel string
	err = tx.QueryRow(ctx, `
		SELECT id, risk_score, risk_level
		FROM automations
		WHERE org_id = $1 AND platform = $2 AND external_id = $3
		FOR UPDATE
	`, a.OrgID, a.Platform.String(), a.ExternalID).Scan(&result.ID, &prevScore, &prevLevel)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		result.Created = true
	case err != nil:
		return UpsertResult{}, err
	}

	if result.Created {
		err = tx.QueryRow(ctx, `
			INSERT INTO automations (
				org_id, platform, external_id, display_name, vendor_name,
				vendor_group_key, granted_scopes, detection, risk_score,
				risk_level, risk_factors, last_discovered_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id
		`, a.OrgID, a.Platform.String(), a.ExternalID, a.DisplayName, a.VendorName,
			a.VendorGroupKey, scopesJSON, detectionJSON, a.Risk.Score,
			string(a.Risk.Level), factorsJSON, a.LastDiscoveredAt).Scan(&result.ID)
		if err != nil {
			return UpsertResult{}, err
		}
		result.RiskChanged = true
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE automations SET
				display_name = $2,
				vendor_name = $3,
				vendor_group_key = $4,
				granted_scopes = $5,
				detection = $6,
				risk_score = $7,
				risk_level = $8,
				risk_factors = $9,
				last_discovered_at = $10
			WHERE id = $1
		`, result.ID, a.DisplayName, a.VendorName, a.VendorGroupKey, scopesJSON,
			detectionJSON, a.Risk.Score, string(a.Risk.Level), factorsJSON, a.LastDiscoveredAt)
		if err != nil {
			return UpsertResult{}, err
		}
		result.RiskChanged = prevScore != a.Risk.Score || prevLevel != string(a.Risk.Level)
	}

	if result.RiskChanged {
		_, err = tx.Exec(ctx, `
			INSERT INTO automation_risk_history (automation_id, risk_score, risk_level, risk_factors)
			VALUES ($1, $2, $3, $4)
		`, result.ID, a.Risk.Score, string(a.Risk.Level), factorsJSON)
		if err != nil {
			return UpsertResult{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return UpsertResult{}, err
	}
	return result, nil
}

// ListFilter narrows ListAutomations. Zero values mean no constraint.
type ListFilter struct {
	Platform     platform.Platform
	MinRiskLevel discovery.RiskLevel
	AIOnly       bool
	VendorKey    string
}

func (f ListFilter) whereClause(orgID uuid.UUID) (string, []any) {
	clauses := []string{"org_id = $1"}
	args := []any{orgID}

	if f.Platform != "" {
		args = append(args, f.Platform.String())
		clauses = append(clauses, fmt.Sprintf("platform = $%d", len(args)))
	}
	if f.MinRiskLevel != "" {
		levels := []string{}
		for _, level := range []discovery.RiskLevel{
			discovery.RiskLevelLow, discovery.RiskLevelMedium,
			discovery.RiskLevelHigh, discovery.RiskLevelCritical,
		} {
			if level.Rank() >= f.MinRiskLevel.Rank() {
				levels = append(levels, string(level))
			}
		}
		args = append(args, levels)
		clauses = append(clauses, fmt.Sprintf("risk_level = ANY($%d)", len(args)))
	}
	if f.AIOnly {
		clauses = append(clauses, "(detection->>'is_ai_platform')::boolean")
	}
	if f.VendorKey != "" {
		args = append(args, f.VendorKey)
		clauses = append(clauses, fmt.Sprintf("vendor_group_key = $%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

// ListAutomations returns the org inventory ordered by risk score, worst
// first, then by identity for a stable order.
func (s *Store) ListAutomations(ctx context.Context, orgID uuid.UUID, filter ListFilter) ([]discovery.Automation, error) {
	where, args := filter.whereClause(orgID)
	rows, err := s.Pool.Query(ctx, `
		SELECT org_id, platform, external_id, display_name, vendor_name,
			vendor_group_key, granted_scopes, detection, risk_score,
			risk_level, risk_factors, first_seen_at, last_discovered_at
		FROM automations
		WHERE `+where+`
		ORDER BY risk_score DESC, platform ASC, external_id ASC
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []discovery.Automation
	for rows.Next() {
		a, err := scanAutomation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAutomation fetches one record by identity.
func (s *Store) GetAutomation(ctx context.Context, id discovery.Identity) (discovery.Automation, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT org_id, platform, external_id, display_name, vendor_name,
			vendor_group_key, granted_scopes, detection, risk_score,
			risk_level, risk_factors, first_seen_at, last_discovered_at
		FROM automations
		WHERE org_id = $1 AND platform = $2 AND external_id = $3
	`, id.OrgID, id.Platform.String(), id.ExternalID)

	a, err := scanAutomation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return discovery.Automation{}, ErrNotFound
	}
	return a, err
}

// InventoryCount is one (platform, risk level) bucket of the inventory.
type InventoryCount struct {
	Platform  platform.Platform
	RiskLevel discovery.RiskLevel
	Total     int64
	AITotal   int64
}

// CountInventory returns inventory totals broken down by platform and risk
// level, with a separate AI platform count per bucket.
func (s *Store) CountInventory(ctx context.Context, orgID uuid.UUID) ([]InventoryCount, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT platform, risk_level, count(*),
		       count(*) FILTER (WHERE (detection->>'is_ai_platform')::boolean)
		FROM automations
		WHERE org_id = $1
		GROUP BY platform, risk_level
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []InventoryCount
	for rows.Next() {
		var c InventoryCount
		var rawPlatform, rawLevel string
		if err := rows.Scan(&rawPlatform, &rawLevel, &c.Total, &c.AITotal); err != nil {
			return nil, err
		}
		c.Platform = platform.Platform(rawPlatform)
		c.RiskLevel = discovery.RiskLevel(rawLevel)
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// CountAutomations returns per-platform totals for the org.
func (s *Store) CountAutomations(ctx context.Context, orgID uuid.UUID) (map[platform.Platform]int64, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT platform, count(*)
		FROM automations
		WHERE org_id = $1
		GROUP BY platform
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[platform.Platform]int64)
	for rows.Next() {
		var rawPlatform string
		var count int64
		if err := rows.Scan(&rawPlatform, &count); err != nil {
			return nil, err
		}
		counts[platform.Platform(rawPlatform)] = count
	}
	return counts, rows.Err()
}

func scanAutomation(row pgx.Row) (discovery.Automation, error) {
	var a discovery.Automation
	var rawPlatform, rawLevel string
	var scopesJSON, detectionJSON, factorsJSON []byte
	var firstSeen, lastDiscovered time.Time

	err := row.Scan(&a.OrgID, &rawPlatform, &a.ExternalID, &a.DisplayName,
		&a.VendorName, &a.VendorGroupKey, &scopesJSON, &detectionJSON,
		&a.Risk.Score, &rawLevel, &factorsJSON, &firstSeen, &lastDiscovered)
	if err != nil {
		return discovery.Automation{}, err
	}

	a.Platform = platform.Platform(rawPlatform)
	a.Risk.Level = discovery.RiskLevel(rawLevel)
	a.FirstSeenAt = firstSeen.UTC()
	a.LastDiscoveredAt = lastDiscovered.UTC()
	if err := json.Unmarshal(scopesJSON, &a.GrantedScopes); err != nil {
		return discovery.Automation{}, fmt.Errorf("decode granted scopes: %w", err)
	}
	if err := json.Unmarshal(detectionJSON, &a.Detection); err != nil {
		return discovery.Automation{}, fmt.Errorf("decode detection: %w", err)
	}
	if err := json.Unmarshal(factorsJSON, &a.Risk.Factors); err != nil {
		return discovery.Automation{}, fmt.Errorf("decode risk factors: %w", err)
	}
	return a, nil
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
