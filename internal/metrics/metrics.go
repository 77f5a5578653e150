// Package metrics exposes the node's Prometheus instrumentation: block and
// transaction throughput counters plus gauges an operator dashboards
// against to catch a stalled or diverging node before it becomes an
// incident.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BlocksCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shieldnode",
		Name:      "blocks_committed_total",
		Help:      "Total number of blocks committed to the store.",
	})

	TransactionsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shieldnode",
		Name:      "transactions_accepted_total",
		Help:      "Total number of transactions that passed the full pipeline and were merged into a block.",
	})

	TransactionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shieldnode",
		Name:      "transactions_rejected_total",
		Help:      "Total number of transactions rejected, labeled by the sentinel error that rejected them.",
	}, []string{"reason"})

	CurrentHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "shieldnode",
		Name:      "current_height",
		Help:      "Height of the last committed block.",
	})

	CurrentEpoch = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "shieldnode",
		Name:      "current_epoch",
		Help:      "Index of the epoch the current height falls within.",
	})

	BlockCommitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "shieldnode",
		Name:      "block_commit_duration_seconds",
		Help:      "Time spent in Commit, from FinalizeBlock's last transaction to the persisted app hash.",
		Buckets:   prometheus.DefBuckets,
	})

	EpochBoundariesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shieldnode",
		Name:      "epoch_boundaries_processed_total",
		Help:      "Total number of epoch-boundary rollovers (stake EndEpoch + sct EndEpoch) processed.",
	})
)

// Handler returns the HTTP handler the node's metrics server mounts at
// /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
