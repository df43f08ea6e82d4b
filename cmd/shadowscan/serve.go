package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shadowscan/shadowscan/internal/aggregator"
	"github.com/shadowscan/shadowscan/internal/config"
	"github.com/shadowscan/shadowscan/internal/http/api"
	"github.com/shadowscan/shadowscan/internal/logging"
	"github.com/shadowscan/shadowscan/internal/metrics"
	"github.com/shadowscan/shadowscan/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the periodic discovery loop.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	if _, err := logging.BootstrapFromEnv(logging.BootstrapOptions{Command: "shadowscan serve"}); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	scheduler := aggregator.Scheduler{Runner: runner, Interval: cfg.DiscoveryInterval}
	go scheduler.Run(ctx)

	_, metricsErrCh := metrics.StartServer(ctx, cfg.MetricsAddr)

	srv := api.NewEchoServer(cfg.OrganizationID, st, runner, reg)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", cfg.HTTPAddr)
		errCh <- srv.StartServer(httpServer)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-metricsErrCh:
		return err
	}
}
