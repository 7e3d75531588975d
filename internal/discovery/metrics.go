package discovery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// GaugesDiscovered tracks the size of the last live gauge list.
	GaugesDiscovered = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vaultfactory_discovery_gauges",
		Help: "Number of live gauges returned by the last registry poll",
	})

	// InvalidGaugesTotal tracks registry records skipped for malformed addresses.
	InvalidGaugesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaultfactory_discovery_invalid_gauges_total",
		Help: "Total number of registry records with an invalid gauge address",
	})

	// SupersededListsTotal tracks candidate lists replaced before they were consumed.
	SupersededListsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaultfactory_discovery_superseded_lists_total",
		Help: "Total number of candidate lists dropped in favor of a newer poll",
	})

	// PollDurationSeconds tracks registry poll latency.
	PollDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vaultfactory_discovery_poll_duration_seconds",
		Help:    "Duration of registry poll requests",
		Buckets: prometheus.DefBuckets,
	})

	// PollErrorsTotal tracks registry poll failures.
	PollErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaultfactory_discovery_poll_errors_total",
		Help: "Total number of registry poll failures",
	})
)
