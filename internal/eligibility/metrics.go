package eligibility

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// EligibleGauges tracks the size of the last resolved eligible set.
	EligibleGauges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vaultfactory_eligibility_eligible_gauges",
		Help: "Number of gauges the factory reported as creatable on the last resolve",
	})

	// ResolveDurationSeconds tracks eligibility batch latency.
	ResolveDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vaultfactory_eligibility_resolve_duration_seconds",
		Help:    "Duration of eligibility batch calls",
		Buckets: prometheus.DefBuckets,
	})

	// ResolveErrorsTotal tracks failed eligibility resolutions.
	ResolveErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaultfactory_eligibility_resolve_errors_total",
		Help: "Total number of failed eligibility resolutions",
	})
)
