package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shadowscan/shadowscan/internal/aggregator"
	"github.com/shadowscan/shadowscan/internal/config"
	"github.com/shadowscan/shadowscan/internal/logging"
	"github.com/shadowscan/shadowscan/internal/store"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Run a one-off discovery pass across every configured platform.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDiscover()
	},
}

func runDiscover() error {
	if _, err := logging.BootstrapFromEnv(logging.BootstrapOptions{Command: "shadowscan discover"}); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer st.Close()

	reg, err := buildCollectorRegistry()
	if err != nil {
		return err
	}
	secrets, err := buildSecretResolver(cfg)
	if err != nil {
		return err
	}

	runner := &aggregator.Runner{
		OrgID:       cfg.OrganizationID,
		Store:       st,
		Registry:    reg,
		Reconciler:  aggregator.NewReconciler(st),
		Reporter:    &aggregator.LogReporter{},
		Secrets:     secrets,
		MaxInflight: cfg.DiscoveryMaxInflight,
		Timeout:     cfg.CollectorTimeout,
		Inventory:   st,
	}

	report, err := runner.RunOnce(ctx)
	if errors.Is(err, aggregator.ErrRunInProgress) {
		slog.Info("discovery run already in progress, nothing to do")
		return nil
	}
	if err != nil {
		return err
	}

	slog.Info("discovery finished",
		"run_id", report.RunID,
		"status", report.Status,
		"candidates_seen", report.Stats.Seen,
		"candidates_invalid", report.Stats.Invalid,
		"automations_upserted", report.Stats.Upserted,
		"platform_errors", len(report.PlatformErrors),
		"duration", report.Duration,
	)
	if report.Status == store.RunStatusPartial {
		slog.Warn("some platforms failed", "errors", report.PlatformErrors)
	}
	return nil
}
