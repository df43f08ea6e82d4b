package aggregator

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Scheduler runs discovery on a fixed interval, starting with one run at
// startup. An in-progress run elsewhere is not an error worth logging
// loudly.
type Scheduler struct {
	Runner   *Runner
	Interval time.Duration
}

func (s *Scheduler) Run(ctx context.Context) {
	if s.Runner == nil || s.Interval <= 0 {
		return
	}

	// Run immediately at startup.
	s.runOnce(ctx)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	report, err := s.Runner.RunOnce(ctx)
	switch {
	case errors.Is(err, ErrRunInProgress):
		slog.Info("discovery run skipped", "reason", "already in progress")
	case err != nil:
		slog.Error("discovery run failed", "err", err)
	default:
		slog.Info("discovery run finished",
			"run_id", report.RunID,
			"status", report.Status,
			"seen", report.Stats.Seen,
			"invalid", report.Stats.Invalid,
			"upserted", report.Stats.Upserted,
			"duration", report.Duration.Round(time.Millisecond),
		)
	}
}
