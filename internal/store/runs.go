package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PlatformError records one platform whose collection failed during a run.
type PlatformError struct {
	Platform string `json:"platform"`
	Error    string `json:"error"`
}

// DiscoveryRun is the bookkeeping row for one reconcile pass.
type DiscoveryRun struct {
	ID                  uuid.UUID
	OrgID               uuid.UUID
	Status              string
	StartedAt           time.Time
	FinishedAt          *time.Time
	CandidatesSeen      int
	CandidatesInvalid   int
	AutomationsUpserted int
	PlatformErrors      []PlatformError
}

const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusPartial   = "partial"
	RunStatusFailed    = "failed"
)

// StartRun opens a new discovery run row.
func (s *Store) StartRun(ctx context.Context, orgID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO discovery_runs (org_id, status)
		VALUES ($1, $2)
		RETURNING id
	`, orgID, RunStatusRunning).Scan(&id)
	return id, err
}

// FinishRun closes a run with its final counters.
func (s *Store) FinishRun(ctx context.Context, runID uuid.UUID, status string, seen, invalid, upserted int, platformErrors []PlatformError) error {
	if platformErrors == nil {
		platformErrors = []PlatformError{}
	}
	errorsJSON, err := json.Marshal(platformErrors)
	if err != nil {
		return fmt.Errorf("encode platform errors: %w", err)
	}
	tag, err := s.Pool.Exec(ctx, `
		UPDATE discovery_runs SET
			status = $2,
			finished_at = now(),
			candidates_seen = $3,
			candidates_invalid = $4,
			automations_upserted = $5,
			platform_errors = $6
		WHERE id = $1
	`, runID, status, seen, invalid, upserted, errorsJSON)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// LatestRun returns the most recent run for the org.
func (s *Store) LatestRun(ctx context.Context, orgID uuid.UUID) (DiscoveryRun, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, org_id, status, started_at, finished_at,
			candidates_seen, candidates_invalid, automations_upserted, platform_errors
		FROM discovery_runs
		WHERE org_id = $1
		ORDER BY started_at DESC
		LIMIT 1
	`, orgID)

	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return DiscoveryRun{}, ErrNotFound
	}
	return run, err
}

// ListRuns returns recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, orgID uuid.UUID, limit int) ([]DiscoveryRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id, org_id, status, started_at, finished_at,
			candidates_seen, candidates_invalid, automations_upserted, platform_errors
		FROM discovery_runs
		WHERE org_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DiscoveryRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func scanRun(row pgx.Row) (DiscoveryRun, error) {
	var run DiscoveryRun
	var startedAt time.Time
	var finishedAt *time.Time
	var errorsJSON []byte

	err := row.Scan(&run.ID, &run.OrgID, &run.Status, &startedAt, &finishedAt,
		&run.CandidatesSeen, &run.CandidatesInvalid, &run.AutomationsUpserted, &errorsJSON)
	if err != nil {
		return DiscoveryRun{}, err
	}

	run.StartedAt = startedAt.UTC()
	if finishedAt != nil {
		t := finishedAt.UTC()
		run.FinishedAt = &t
	}
	if err := json.Unmarshal(errorsJSON, &run.PlatformErrors); err != nil {
		return DiscoveryRun{}, fmt.Errorf("decode platform errors: %w", err)
	}
	return run, nil
}
