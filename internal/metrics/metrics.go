// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pathways"

var (
	DraftGenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "drafts",
			Name:      "generations_total",
			Help:      "Draft generation requests by outcome.",
		},
		[]string{"outcome"},
	)

	FinalizeOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "finalize",
			Name:      "requests_total",
			Help:      "Finalize requests by outcome.",
		},
		[]string{"outcome"},
	)

	EnrichmentLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "lookups_total",
			Help:      "Per-block venue lookups by outcome.",
		},
		[]string{"outcome"},
	)

	MaterializedBlocks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "schedule",
			Name:      "materialized_blocks_total",
			Help:      "Generated schedule blocks produced by materialization.",
		},
	)

	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Latency of calls to external services.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
		[]string{"service"},
	)

	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "processed_total",
			Help:      "Background jobs by type and final status.",
		},
		[]string{"type", "status"},
	)
)

// Outcome maps an error to a short label value.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}
