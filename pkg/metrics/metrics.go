package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Resolutions counts capability map resolutions by outcome (ok|denied|error).
	Resolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "menuguard_resolutions_total",
			Help: "Total number of capability map resolutions",
		},
		[]string{"result"},
	)

	// ResolutionLatency measures how long resolving a role takes, cache included.
	ResolutionLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "menuguard_resolution_duration_seconds",
			Help:    "Capability map resolution latency",
			Buckets: prometheus.DefBuckets,
		},
	)

	// MenuChecks counts route guard decisions by action and outcome (allow|deny|error).
	MenuChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "menuguard_menu_checks_total",
			Help: "Total number of menu permission checks",
		},
		[]string{"action", "result"},
	)

	// MigrationRuns counts migration runs by status (completed|failed|busy).
	MigrationRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "menuguard_migration_runs_total",
			Help: "Total number of permission migration runs",
		},
		[]string{"status"},
	)

	// MigrationRows counts rows seen by migration runs (inspected|updated|skipped|conflict).
	MigrationRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "menuguard_migration_rows_total",
			Help: "Rows processed by permission migration runs",
		},
		[]string{"outcome"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "menuguard_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
