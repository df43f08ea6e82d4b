package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "shadowscan"
)

var (
	discoveryDurationBuckets = []float64{1, 2, 5, 10, 30, 60, 120, 300, 600, 1200}

	// Discovery metrics
	DiscoveryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "discovery_duration_seconds",
		Help:      "Time taken for a platform collection to complete.",
		Buckets:   discoveryDurationBuckets,
	}, []string{"platform"})

	DiscoveryRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "discovery_runs_total",
		Help:      "Count of discovery run executions.",
	}, []string{"status"})

	DiscoveryLastSuccessTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "discovery_last_success_timestamp_seconds",
		Help:      "Unix timestamp of the last successful discovery run.",
	})

	CandidatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "candidates_total",
		Help:      "Count of candidates handed over by collectors.",
	}, []string{"platform", "outcome"})

	// Inventory metrics
	AutomationsTotal = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "automations_total",
		Help:      "Number of automations in the inventory.",
	}, []string{"platform", "risk_level"})

	AIPlatformsTotal = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ai_platforms_total",
		Help:      "Number of automations detected as AI platforms.",
	}, []string{"platform"})
)
