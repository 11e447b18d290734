// Package metrics exposes Prometheus metrics for the sweep daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run result label values.
const (
	RunCompleted = "completed"
	RunSkipped   = "skipped"
	RunFailed    = "failed"
)

var (
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sweep_runs_total",
		Help: "Sweep runs by result.",
	}, []string{"result"})

	ItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sweep_items_total",
		Help: "Processed items by result.",
	}, []string{"result"})

	RetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sweep_retries_total",
		Help: "Item processing retries.",
	})

	ItemsQuarantined = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sweep_items_quarantined_total",
		Help: "Items relocated to the quarantine bucket.",
	})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sweep_run_duration_seconds",
		Help:    "Wall-clock duration of sweep runs.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	buildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sweep_build_info",
		Help: "Build information.",
	}, []string{"version"})
)

// Init records static build information. Call once at startup.
func Init(version string) {
	buildInfo.WithLabelValues(version).Set(1)
}

// ObserveOutcomes folds a run's per-item results into the item counters.
func ObserveOutcomes(succeeded, failed, retries int) {
	ItemsTotal.WithLabelValues("success").Add(float64(succeeded))
	ItemsTotal.WithLabelValues("failure").Add(float64(failed))
	RetriesTotal.Add(float64(retries))
}
