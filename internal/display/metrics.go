package display

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// ResolutionsTotal tracks applied resolutions by outcome.
	ResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultfactory_display_resolutions_total",
		Help: "Total number of applied display metadata resolutions",
	}, []string{"outcome"})

	// SupersededTotal tracks resolutions discarded because the selection changed.
	SupersededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaultfactory_display_superseded_total",
		Help: "Total number of display resolutions discarded for a newer selection",
	})

	// ResolveDurationSeconds tracks name/symbol batch latency.
	ResolveDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vaultfactory_display_resolve_duration_seconds",
		Help:    "Duration of name and symbol batch calls",
		Buckets: prometheus.DefBuckets,
	})
)
