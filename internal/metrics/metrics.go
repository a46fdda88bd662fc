// Package metrics defines the engine's Prometheus instrumentation
// surface. Metrics are package-level so every component registers
// against the same default registry without threading a registry
// handle through every constructor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProviderCalls counts Market-Data Facade calls per provider and
	// outcome (spec.md §4.2 "rate budget tracking... exposed for
	// observability").
	ProviderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "symphony",
		Subsystem: "marketdata",
		Name:      "provider_calls_total",
		Help:      "Market-data provider calls by provider and outcome.",
	}, []string{"provider", "outcome"})

	// CacheHits counts facade cache hits/misses by operation.
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "symphony",
		Subsystem: "marketdata",
		Name:      "cache_results_total",
		Help:      "Market-data cache lookups by operation and hit/miss.",
	}, []string{"operation", "result"})

	// SymphonyEvaluations counts completed tree evaluations by outcome.
	SymphonyEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "symphony",
		Subsystem: "scheduler",
		Name:      "evaluations_total",
		Help:      "Symphony evaluations by outcome (ok, eval_error, skipped).",
	}, []string{"outcome"})

	// OrdersPlaced counts orders placed by side and terminal status.
	OrdersPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "symphony",
		Subsystem: "execution",
		Name:      "orders_placed_total",
		Help:      "Orders placed by side and terminal status.",
	}, []string{"side", "status"})

	// Liquidations counts forced liquidations triggered by the Failure
	// Handler's kill switch (spec.md §4.8).
	Liquidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "symphony",
		Subsystem: "failure",
		Name:      "liquidations_total",
		Help:      "Forced liquidations by reason.",
	}, []string{"reason"})

	// WindowDuration observes the wall-clock length of a scheduler
	// window run, start to reconciliation.
	WindowDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "symphony",
		Subsystem: "scheduler",
		Name:      "window_duration_seconds",
		Help:      "Duration of a full daily rebalance window.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})

	// PoolTasks counts internal/workers pool tasks by pool name and
	// outcome (completed, failed, timeout, panic) — the Prometheus-
	// exported counterpart to PoolMetrics' in-process snapshot.
	PoolTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "symphony",
		Subsystem: "workers",
		Name:      "pool_tasks_total",
		Help:      "Worker-pool tasks by pool name and outcome.",
	}, []string{"pool", "outcome"})

	// PoolTaskDuration observes per-task execution latency by pool name.
	PoolTaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "symphony",
		Subsystem: "workers",
		Name:      "pool_task_duration_seconds",
		Help:      "Worker-pool task execution latency by pool name.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"pool"})
)
