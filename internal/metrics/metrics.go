package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/anupdhamala/taskfold/internal/aggregation"
)

var (
	EdgesAdded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskfold_edges_added_total",
		Help: "Total number of task graph edges added.",
	})

	EdgesRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskfold_edges_removed_total",
		Help: "Total number of task graph edges removed.",
	})

	TasksInvalidated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskfold_tasks_invalidated_total",
		Help: "Total number of tasks marked dirty for recomputation.",
	})

	RecomputesEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskfold_recomputes_enqueued_total",
		Help: "Total number of recompute jobs placed on the queue.",
	})

	RecomputesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskfold_recomputes_dropped_total",
		Help: "Total number of recompute jobs rejected due to a full queue.",
	})

	RecomputesCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskfold_recomputes_completed_total",
		Help: "Total number of recompute jobs finished, labelled by status.",
	}, []string{"status"})

	RecomputeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "taskfold_recompute_duration_ms",
		Help:    "Recompute latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})

	QueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "taskfold_queue_utilization_ratio",
		Help: "Current recompute queue utilization (0–1).",
	})
)

// The aggregation tree keeps its own counters; bridge them so restructuring
// activity shows up next to the scheduler metrics.
var (
	_ = promauto.NewCounterFunc(prometheus.CounterOpts{
		Name: "taskfold_aggregation_leaf_upgrades_total",
		Help: "Total number of leaves upgraded to aggregating nodes.",
	}, func() float64 { return float64(aggregation.LeafUpgrades()) })

	_ = promauto.NewCounterFunc(prometheus.CounterOpts{
		Name: "taskfold_aggregation_balance_runs_total",
		Help: "Total number of deferred aggregation number increases processed.",
	}, func() float64 { return float64(aggregation.BalanceRuns()) })

	_ = promauto.NewCounterFunc(prometheus.CounterOpts{
		Name: "taskfold_aggregation_optimize_runs_total",
		Help: "Total number of follower-set restructurings.",
	}, func() float64 { return float64(aggregation.OptimizeRuns()) })

	_ = promauto.NewCounterFunc(prometheus.CounterOpts{
		Name: "taskfold_aggregation_lost_follower_retries_total",
		Help: "Total number of lost-follower reconciliation retries.",
	}, func() float64 { return float64(aggregation.LostFollowerRetries()) })
)
