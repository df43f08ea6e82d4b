package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const (
	defaultHTTPAddr    = ":8080"
	defaultMetricsAddr = "off"

	defaultDiscoveryInterval    = 30 * time.Minute
	defaultDiscoveryMaxInflight = 4
	defaultCollectorTimeout     = 10 * time.Minute

	defaultGoogleWorkspaceWorkers = 3
	defaultMicrosoft365Workers    = 3
	defaultOktaWorkers            = 3
)

type Config struct {
	DatabaseURL string
	HTTPAddr    string
	MetricsAddr string

	// OrganizationID partitions persisted automations. Single-tenant
	// deployments leave it unset and get the zero UUID.
	OrganizationID uuid.UUID

	DiscoveryInterval    time.Duration
	DiscoveryMaxInflight int
	CollectorTimeout     time.Duration

	GoogleWorkspaceWorkers int
	Microsoft365Workers    int
	OktaWorkers            int

	VaultAddr  string
	VaultToken string
}

type LoadOptions struct {
	RequireDatabaseURL bool
}

func Load() (Config, error) {
	return LoadWithOptions(LoadOptions{RequireDatabaseURL: true})
}

func LoadOptionalDB() (Config, error) {
	return LoadWithOptions(LoadOptions{RequireDatabaseURL: false})
}

func LoadWithOptions(opts LoadOptions) (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, err
		}
	}

	cfg := Config{
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		HTTPAddr:               getenvDefault("HTTP_ADDR", defaultHTTPAddr),
		MetricsAddr:            getenvDefault("METRICS_ADDR", defaultMetricsAddr),
		DiscoveryInterval:      defaultDiscoveryInterval,
		DiscoveryMaxInflight:   getenvIntDefault("DISCOVERY_MAX_INFLIGHT", defaultDiscoveryMaxInflight),
		CollectorTimeout:       defaultCollectorTimeout,
		GoogleWorkspaceWorkers: getenvIntDefault("GOOGLE_WORKSPACE_WORKERS", defaultGoogleWorkspaceWorkers),
		Microsoft365Workers:    getenvIntDefault("MICROSOFT_365_WORKERS", defaultMicrosoft365Workers),
		OktaWorkers:            getenvIntDefault("OKTA_WORKERS", defaultOktaWorkers),
		VaultAddr:              strings.TrimSpace(os.Getenv("VAULT_ADDR")),
		VaultToken:             strings.TrimSpace(os.Getenv("VAULT_TOKEN")),
	}

	if v := strings.TrimSpace(os.Getenv("ORG_ID")); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return Config{}, fmt.Errorf("ORG_ID must be a UUID: %w", err)
		}
		cfg.OrganizationID = id
	}

	if v := os.Getenv("DISCOVERY_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.DiscoveryInterval = d
		}
	}
	if v := os.Getenv("COLLECTOR_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.CollectorTimeout = d
		}
	}
	if cfg.DiscoveryMaxInflight < 1 {
		cfg.DiscoveryMaxInflight = 1
	}

	if opts.RequireDatabaseURL && cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
