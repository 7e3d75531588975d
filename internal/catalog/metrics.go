package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// VaultsLoaded tracks the size of the catalog snapshot.
	VaultsLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vaultfactory_catalog_vaults",
		Help: "Number of vaults in the current catalog snapshot",
	})

	// RefreshDurationSeconds tracks catalog refresh latency.
	RefreshDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vaultfactory_catalog_refresh_duration_seconds",
		Help:    "Duration of catalog refreshes including balance reads",
		Buckets: prometheus.DefBuckets,
	})

	// RefreshErrorsTotal tracks failed catalog refreshes.
	RefreshErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaultfactory_catalog_refresh_errors_total",
		Help: "Total number of failed catalog refreshes",
	})

	// ViewsTotal tracks served catalog views by outcome.
	ViewsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultfactory_catalog_views_total",
		Help: "Total number of catalog views by outcome",
	}, []string{"outcome"})
)
