package factory

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// CandidateLists tracks candidate lists applied to the driver.
	CandidateLists = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaultfactory_driver_candidate_lists_total",
		Help: "Total number of candidate lists applied",
	})

	// SelectionsTotal tracks selection changes.
	SelectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaultfactory_driver_selections_total",
		Help: "Total number of selection changes",
	})

	// Subscribers tracks active event subscribers.
	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vaultfactory_driver_event_subscribers",
		Help: "Number of active state event subscribers",
	})

	// DroppedEventsTotal tracks events not delivered to a full subscriber.
	DroppedEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaultfactory_driver_dropped_events_total",
		Help: "Total number of state events dropped for slow subscribers",
	})
)
