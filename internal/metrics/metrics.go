// Package metrics holds the Prometheus collectors of collection runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartcollections_runs_total",
		Help: "Collection runs by outcome",
	}, []string{"outcome"})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "smartcollections_run_duration_seconds",
		Help:    "Collection run duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
	})

	// CollectionsTotal counts processed definitions by source and final status
	CollectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartcollections_collections_total",
		Help: "Processed collection definitions by source and status",
	}, []string{"source", "status"})

	MembersChanged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartcollections_members_changed_total",
		Help: "Collection members changed by operation",
	}, []string{"operation"})

	ValidationMismatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartcollections_validation_mismatch_total",
		Help: "Members found missing or extra after reconciliation",
	}, []string{"category"})

	ParseErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smartcollections_parse_errors_total",
		Help: "Expression parse errors reported",
	})

	DegradedEvaluations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smartcollections_degraded_evaluations_total",
		Help: "Definitions evaluated with play state unavailable",
	})
)
