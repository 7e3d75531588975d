package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// BreakerEnabled indicates whether the breaker allows vault submissions.
	BreakerEnabled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vaultfactory_circuit_breaker_enabled",
		Help: "Whether the circuit breaker allows vault submissions (1=enabled, 0=disabled)",
	})

	// BreakerBalance tracks the last checked native balance.
	BreakerBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vaultfactory_circuit_breaker_balance_eth",
		Help: "Last checked native balance of the signer",
	})

	// BreakerDisableThreshold tracks the balance below which submissions are blocked.
	BreakerDisableThreshold = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vaultfactory_circuit_breaker_disable_threshold_eth",
		Help: "Current balance threshold for blocking submissions",
	})

	// BreakerEnableThreshold tracks the balance at which submissions are allowed again.
	BreakerEnableThreshold = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vaultfactory_circuit_breaker_enable_threshold_eth",
		Help: "Current balance threshold for re-enabling submissions (with hysteresis)",
	})

	// BreakerAvgGasUsed tracks the rolling average gas of mined create transactions.
	BreakerAvgGasUsed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vaultfactory_circuit_breaker_avg_gas_used",
		Help: "Rolling average gas used by recent create transactions",
	})

	// BreakerStateChanges counts enabled/disabled transitions.
	BreakerStateChanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaultfactory_circuit_breaker_state_changes_total",
		Help: "Total number of times the circuit breaker changed state",
	})

	// BreakerCheckDuration tracks the time taken to check the balance.
	BreakerCheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vaultfactory_circuit_breaker_check_duration_seconds",
		Help:    "Time taken to check the signer balance",
		Buckets: prometheus.DefBuckets,
	})
)
