package estimate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// EstimatesTotal tracks simulations by outcome (success, warning, error).
	EstimatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultfactory_estimate_total",
		Help: "Total number of create simulations by outcome",
	}, []string{"outcome"})

	// SkippedTotal tracks estimates short-circuited by missing inputs.
	SkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaultfactory_estimate_skipped_total",
		Help: "Total number of estimates skipped for a missing caller, gauge or factory",
	})

	// SupersededTotal tracks estimates discarded for newer inputs.
	SupersededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaultfactory_estimate_superseded_total",
		Help: "Total number of estimates discarded for a newer selection or session",
	})
)
