package aggregator

import (
	"log/slog"
	"sync"
	"time"

	"github.com/shadowscan/shadowscan/internal/collectors/registry"
)

const defaultProgressInterval = 5 * time.Second

type logReporterKey struct {
	source string
	stage  string
}

// LogReporter logs collection events to the default slog logger, throttling
// intermediate progress per (source, stage).
type LogReporter struct {
	Logger           *slog.Logger
	ProgressInterval time.Duration

	mu           sync.Mutex
	lastLoggedAt map[logReporterKey]time.Time
}

func (r *LogReporter) Report(e registry.Event) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := e.At
	if now.IsZero() {
		now = time.Now()
	}

	attrs := []any{"source", e.Source}
	if e.Stage != "" {
		attrs = append(attrs, "stage", e.Stage)
	}
	if e.Current != 0 || e.Total != 0 {
		attrs = append(attrs, "current", e.Current, "total", e.Total)
	}

	message := e.Message
	if e.Err != nil {
		if message == "" {
			switch {
			case e.Source != "" && e.Stage != "":
				message = e.Source + " " + e.Stage + " failed"
			case e.Source != "":
				message = e.Source + " failed"
			default:
				message = "collection failed"
			}
		}
		attrs = append(attrs, "err", e.Err)
		logger.Error(message, attrs...)
		return
	}
	if message == "" {
		if e.Done {
			message = "collection complete"
		} else {
			return
		}
	}

	if !e.Done && !r.shouldLogProgress(now, e) {
		return
	}
	logger.Info(message, attrs...)
}

func (r *LogReporter) shouldLogProgress(now time.Time, e registry.Event) bool {
	// Non-progress events log unconditionally.
	if e.Current == 0 && e.Total == 0 {
		return true
	}

	interval := r.ProgressInterval
	if interval <= 0 {
		interval = defaultProgressInterval
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastLoggedAt == nil {
		r.lastLoggedAt = make(map[logReporterKey]time.Time)
	}
	key := logReporterKey{source: e.Source, stage: e.Stage}
	if last, ok := r.lastLoggedAt[key]; ok && now.Sub(last) < interval {
		return false
	}
	r.lastLoggedAt[key] = now
	return true
}
