package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
)

var (
	// RPCCallsTotal tracks node calls per chain and operation
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txengine_rpc_calls_total",
			Help: "Total number of RPC calls",
		},
		[]string{"chain", "operation"},
	)

	// RPCErrorsTotal tracks failed node calls by retry classification
	RPCErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txengine_rpc_errors_total",
			Help: "Total number of RPC errors",
		},
		[]string{"chain", "error_type"},
	)

	// RPCLatency tracks RPC call latency
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "txengine_rpc_latency_seconds",
			Help:    "RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"chain", "operation"},
	)

	// PreloadsTotal counts preloads by outcome
	PreloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txengine_preloads_total",
			Help: "Total number of preloads",
		},
		[]string{"chain", "result"},
	)

	// SignsTotal counts signing attempts by outcome
	SignsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txengine_signs_total",
			Help: "Total number of signing attempts",
		},
		[]string{"chain", "result"},
	)

	// BroadcastsTotal counts submitted payloads by outcome
	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txengine_broadcasts_total",
			Help: "Total number of broadcast payloads",
		},
		[]string{"chain", "result"},
	)

	// TrackerPolls counts status checks by outcome
	TrackerPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txengine_tracker_polls_total",
			Help: "Total number of transaction status polls",
		},
		[]string{"chain", "result"},
	)

	// TrackerActiveJobs is the number of transactions currently polled
	TrackerActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "txengine_tracker_active_jobs",
			Help: "Number of running confirmation jobs",
		},
	)

	// TrackerTerminal counts transactions that left the pending state
	TrackerTerminal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txengine_tracker_terminal_total",
			Help: "Total number of transactions reaching a terminal state",
		},
		[]string{"chain", "state"},
	)

	// FeedDropped counts change batches dropped for slow subscribers
	FeedDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "txengine_feed_dropped_total",
			Help: "Total number of change batches dropped",
		},
	)

	// DBConnectionPoolUsage is open connections as a percentage of the pool
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "txengine_db_connection_pool_usage",
			Help: "Database connection pool usage in percent",
		},
	)

	// DBBatchSize tracks rows written per batch statement
	DBBatchSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "txengine_db_batch_size",
			Help:    "Rows written per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
		},
		[]string{"operation"},
	)
)

// Result labels an outcome for the counters above.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrServiceUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrBroadcast):
		return "rejected"
	}
	return "error"
}
