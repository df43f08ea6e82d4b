package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/shadowscan/shadowscan/internal/collectors/configstore"
	"github.com/shadowscan/shadowscan/internal/collectors/registry"
	"github.com/shadowscan/shadowscan/internal/discovery"
	"github.com/shadowscan/shadowscan/internal/metrics"
	"github.com/shadowscan/shadowscan/internal/store"
)

// ErrRunInProgress means another process holds the discovery lock.
var ErrRunInProgress = errors.New("discovery run already in progress")

// RunStore is the persistence surface the runner needs beyond reconciling.
type RunStore interface {
	AutomationStore
	registry.ConfigSource
	AcquireDiscoveryLock(ctx context.Context) (bool, func(), error)
	StartRun(ctx context.Context, orgID uuid.UUID) (uuid.UUID, error)
	FinishRun(ctx context.Context, runID uuid.UUID, status string, seen, invalid, upserted int, platformErrors []store.PlatformError) error
}

// RunReport is what one full discovery run produced.
type RunReport struct {
	RunID          uuid.UUID
	Status         string
	Stats          ReconcileStats
	PlatformErrors []store.PlatformError
	Duration       time.Duration
}

// Runner executes full discovery runs: collect from every enabled
// platform, classify, and reconcile into the inventory.
type Runner struct {
	OrgID       uuid.UUID
	Store       RunStore
	Registry    *registry.CollectorRegistry
	Reconciler  *Reconciler
	Reporter    registry.Reporter
	Secrets     configstore.SecretResolver
	MaxInflight int
	Timeout     time.Duration

	// Inventory, when set, refreshes the inventory gauges after each run.
	Inventory InventoryCounter
}

// InventoryCounter reports inventory totals for metrics.
type InventoryCounter interface {
	CountInventory(ctx context.Context, orgID uuid.UUID) ([]store.InventoryCount, error)
}

type platformResult struct {
	platform   string
	candidates []discovery.Candidate
	err        error
}

// RunOnce performs one discovery run. A partial platform failure degrades
// the run status but never discards the candidates other platforms
// produced.
func (r *Runner) RunOnce(ctx context.Context) (RunReport, error) {
	started := time.Now()

	locked, release, err := r.Store.AcquireDiscoveryLock(ctx)
	if err != nil {
		return RunReport{}, fmt.Errorf("acquire discovery lock: %w", err)
	}
	if !locked {
		return RunReport{}, ErrRunInProgress
	}
	defer release()

	collectors, err := r.buildCollectors(ctx)
	if err != nil {
		return RunReport{}, err
	}

	runID, err := r.Store.StartRun(ctx, r.OrgID)
	if err != nil {
		return RunReport{}, fmt.Errorf("start run: %w", err)
	}

	results := r.collectAll(ctx, collectors)

	var candidates []discovery.Candidate
	var platformErrors []store.PlatformError
	for _, result := range results {
		if result.err != nil {
			platformErrors = append(platformErrors, store.PlatformError{
				Platform: result.platform,
				Error:    result.err.Error(),
			})
			continue
		}
		candidates = append(candidates, result.candidates...)
	}

	stats, reconcileErr := r.Reconciler.Reconcile(ctx, r.OrgID, candidates)

	status := store.RunStatusSucceeded
	switch {
	case reconcileErr != nil:
		status = store.RunStatusFailed
	case len(platformErrors) > 0 && len(platformErrors) == len(collectors):
		status = store.RunStatusFailed
	case len(platformErrors) > 0:
		status = store.RunStatusPartial
	}

	if err := r.Store.FinishRun(ctx, runID, status, stats.Seen, stats.Invalid, stats.Upserted, platformErrors); err != nil {
		r.report(registry.Event{Source: "aggregator", Err: err, At: time.Now()})
	}

	metrics.DiscoveryRunsTotal.WithLabelValues(status).Inc()
	if status == store.RunStatusSucceeded {
		metrics.DiscoveryLastSuccessTimestamp.SetToCurrentTime()
	}
	r.updateInventoryGauges(ctx)

	report := RunReport{
		RunID:          runID,
		Status:         status,
		Stats:          stats,
		PlatformErrors: platformErrors,
		Duration:       time.Since(started),
	}
	if reconcileErr != nil {
		return report, fmt.Errorf("reconcile: %w", reconcileErr)
	}
	return report, nil
}

// buildCollectors constructs one collector per enabled, configured
// platform, resolving secret references first.
func (r *Runner) buildCollectors(ctx context.Context) ([]registry.Collector, error) {
	states, err := r.Registry.LoadStates(ctx, r.Store)
	if err != nil {
		return nil, fmt.Errorf("load collector states: %w", err)
	}

	var collectors []registry.Collector
	for _, state := range states {
		if !state.Enabled || !state.Configured {
			continue
		}
		cfg, err := resolveConfigSecrets(ctx, r.Secrets, state.Config)
		if err != nil {
			return nil, fmt.Errorf("resolve secrets for %s: %w", state.Definition.Platform(), err)
		}
		collector, err := state.Definition.NewCollector(cfg)
		if err != nil {
			return nil, fmt.Errorf("build collector for %s: %w", state.Definition.Platform(), err)
		}
		collectors = append(collectors, collector)
	}
	return collectors, nil
}

// collectAll fans collection out across platforms, bounded by MaxInflight,
// each with its own timeout. Results come back in platform order.
func (r *Runner) collectAll(ctx context.Context, collectors []registry.Collector) []platformResult {
	results := make([]platformResult, len(collectors))

	group, groupCtx := errgroup.WithContext(ctx)
	inflight := r.MaxInflight
	if inflight < 1 {
		inflight = 1
	}
	group.SetLimit(inflight)

	for i, collector := range collectors {
		group.Go(func() error {
			results[i] = r.collectOne(groupCtx, collector)
			return nil
		})
	}
	_ = group.Wait()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].platform < results[j].platform
	})
	return results
}

func (r *Runner) collectOne(ctx context.Context, collector registry.Collector) platformResult {
	platformName := collector.Platform().String()
	source := platformName
	if name := collector.SourceName(); name != "" {
		source = platformName + "/" + name
	}

	collectCtx := ctx
	cancel := context.CancelFunc(func() {})
	if r.Timeout > 0 {
		collectCtx, cancel = context.WithTimeout(ctx, r.Timeout)
	}
	defer cancel()

	r.report(registry.Event{Source: source, Stage: "collect", Message: "collection started", At: time.Now()})
	started := time.Now()

	candidates, err := collector.ListCandidates(collectCtx)
	metrics.DiscoveryDuration.WithLabelValues(platformName).Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.CandidatesTotal.WithLabelValues(platformName, "error").Inc()
		r.report(registry.Event{Source: source, Stage: "collect", Err: err, At: time.Now()})
		return platformResult{platform: platformName, err: err}
	}

	metrics.CandidatesTotal.WithLabelValues(platformName, "ok").Add(float64(len(candidates)))
	r.report(registry.Event{
		Source:  source,
		Stage:   "collect",
		Current: int64(len(candidates)),
		Total:   int64(len(candidates)),
		Done:    true,
		At:      time.Now(),
	})
	return platformResult{platform: platformName, candidates: candidates}
}

func (r *Runner) report(e registry.Event) {
	if r.Reporter == nil {
		return
	}
	r.Reporter.Report(e)
}

// resolveConfigSecrets replaces vault references in the secret-valued
// fields of each known config type.
func resolveConfigSecrets(ctx context.Context, resolver configstore.SecretResolver, cfg any) (any, error) {
	switch typed := cfg.(type) {
	case configstore.GoogleWorkspaceConfig:
		if err := configstore.ResolveFields(ctx, resolver, &typed.ServiceAccountJSON); err != nil {
			return nil, err
		}
		return typed, nil
	case configstore.SlackConfig:
		if err := configstore.ResolveFields(ctx, resolver, &typed.Token); err != nil {
			return nil, err
		}
		return typed, nil
	case configstore.Microsoft365Config:
		if err := configstore.ResolveFields(ctx, resolver, &typed.ClientSecret); err != nil {
			return nil, err
		}
		return typed, nil
	case configstore.GitHubConfig:
		if err := configstore.ResolveFields(ctx, resolver, &typed.Token); err != nil {
			return nil, err
		}
		return typed, nil
	case configstore.OktaConfig:
		if err := configstore.ResolveFields(ctx, resolver, &typed.Token); err != nil {
			return nil, err
		}
		return typed, nil
	default:
		return cfg, nil
	}
}

func (r *Runner) updateInventoryGauges(ctx context.Context) {
	if r.Inventory == nil {
		return
	}
	counts, err := r.Inventory.CountInventory(ctx, r.OrgID)
	if err != nil {
		slog.Warn("inventory gauge refresh failed", "error", err)
		return
	}

	metrics.AutomationsTotal.Reset()
	metrics.AIPlatformsTotal.Reset()
	aiByPlatform := make(map[string]int64)
	for _, c := range counts {
		metrics.AutomationsTotal.WithLabelValues(c.Platform.String(), string(c.RiskLevel)).Set(float64(c.Total))
		aiByPlatform[c.Platform.String()] += c.AITotal
	}
	for p, total := range aiByPlatform {
		metrics.AIPlatformsTotal.WithLabelValues(p).Set(float64(total))
	}
}
