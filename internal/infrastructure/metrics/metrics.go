// Package metrics exposes Prometheus instrumentation for the stats engine.
// Counters live on the hot flush/consolidation paths, so everything here
// is registered once at init and shared process-wide.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EventsFlushed counts raw stat events written to the event log.
	EventsFlushed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "screeps_stats",
		Name:      "events_flushed_total",
		Help:      "Raw stat events appended to the event log by accumulator flushes.",
	})

	// FlushFailures counts accumulator flushes that failed to append.
	FlushFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "screeps_stats",
		Name:      "flush_failures_total",
		Help:      "Accumulator flushes that failed to append to the event log.",
	})

	// EventsConsolidated counts raw events consumed by consolidation passes.
	EventsConsolidated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "screeps_stats",
		Name:      "events_consolidated_total",
		Help:      "Raw stat events consumed and pruned by consolidation passes.",
	})

	// ConsolidationRuns counts consolidation passes by outcome.
	ConsolidationRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "screeps_stats",
		Name:      "consolidation_runs_total",
		Help:      "Consolidation passes by outcome.",
	}, []string{"outcome"})

	// ConsolidationDuration observes the wall-clock duration of passes.
	ConsolidationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "screeps_stats",
		Name:      "consolidation_duration_seconds",
		Help:      "Wall-clock duration of consolidation passes.",
		Buckets:   prometheus.DefBuckets,
	})

	// GranularityFailures counts failed per-granularity merge units.
	GranularityFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "screeps_stats",
		Name:      "granularity_failures_total",
		Help:      "Per-granularity merge units abandoned within a pass.",
	}, []string{"interval"})

	// RankerFailures counts failed per-mode ranking units.
	RankerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "screeps_stats",
		Name:      "ranker_failures_total",
		Help:      "Per-mode ranking units abandoned within a pass.",
	}, []string{"mode"})
)

// Consolidation pass outcomes.
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeSkipped = "skipped"
)

// Handler returns the HTTP handler serving the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
