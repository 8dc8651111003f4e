package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	comparisonsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitor_comparisons_total",
		Help: "Number of page pair comparisons scored.",
	})

	judgeFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitor_judge_failures_total",
		Help: "Number of comparisons where the AI judge was unavailable.",
	})

	significantChangesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitor_significant_changes_total",
		Help: "Number of detected page changes above the alert threshold.",
	})

	snapshotsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitor_snapshots_total",
		Help: "Number of page snapshots stored.",
	})

	comparisonDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "monitor_comparison_duration_seconds",
		Help:    "Wall time of a single comparison including the judge call.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})
)
