package chain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// MulticallDurationSeconds tracks aggregate3 round-trip latency.
	MulticallDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vaultfactory_chain_multicall_duration_seconds",
		Help:    "Duration of batched read-only calls",
		Buckets: prometheus.DefBuckets,
	})

	// MulticallSubCallsTotal tracks the number of queries sent inside batches.
	MulticallSubCallsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaultfactory_chain_multicall_subcalls_total",
		Help: "Total number of queries sent through multicall",
	})

	// EstimateDurationSeconds tracks gas simulation latency.
	EstimateDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vaultfactory_chain_estimate_duration_seconds",
		Help:    "Duration of gas estimation calls",
		Buckets: prometheus.DefBuckets,
	})

	// TransactionsSentTotal tracks signed transactions broadcast to the network.
	TransactionsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaultfactory_chain_transactions_sent_total",
		Help: "Total number of transactions broadcast",
	})

	// CallFailuresTotal tracks failed chain calls by kind.
	CallFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaultfactory_chain_call_failures_total",
			Help: "Total number of failed chain calls",
		},
		[]string{"kind"},
	)
)
