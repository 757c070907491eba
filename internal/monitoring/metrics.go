// Package monitoring exposes Prometheus metrics for the enrichment
// pipeline and aggregates journaled runs into summaries.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SearchesTotal counts search provider calls by backend.
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrich_searches_total",
			Help: "Total number of search provider calls.",
		},
		[]string{"backend"},
	)

	// SearchErrorsTotal counts provider calls that failed after retries.
	SearchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrich_search_errors_total",
			Help: "Search provider calls that failed after retries were exhausted.",
		},
		[]string{"backend"},
	)

	// LLMCallsTotal counts arbitration calls by outcome status
	// (ok, error, bad_response).
	LLMCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrich_llm_calls_total",
			Help: "Arbitration LLM calls by outcome.",
		},
		[]string{"status"},
	)

	// RowsTotal counts processed rows by outcome (found, not_found, skipped).
	RowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrich_rows_total",
			Help: "Rows processed by outcome.",
		},
		[]string{"outcome"},
	)

	// BatchesTotal counts arbitrated batches.
	BatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "enrich_batches_total",
			Help: "Total number of batches sent through arbitration.",
		},
	)

	// RunDuration observes wall time of complete pipeline runs.
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "enrich_run_duration_seconds",
			Help:    "Duration of full pipeline runs.",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600, 14400},
		},
	)
)
