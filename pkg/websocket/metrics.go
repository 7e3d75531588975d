package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// ActiveConnections tracks connected event stream clients.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vaultfactory_ws_active_connections",
		Help: "Number of connected WebSocket clients",
	})

	// MessagesSentTotal tracks frames written by type.
	MessagesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaultfactory_ws_messages_sent_total",
			Help: "Total number of WebSocket frames written to clients",
		},
		[]string{"type"},
	)

	// MessagesReceivedTotal tracks client messages, which are read and discarded.
	MessagesReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaultfactory_ws_messages_received_total",
		Help: "Total number of WebSocket messages received from clients",
	})

	// WriteErrorsTotal tracks failed frame or ping writes.
	WriteErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaultfactory_ws_write_errors_total",
		Help: "Total number of failed WebSocket writes",
	})

	// ConnectionDuration tracks WebSocket connection lifetime.
	ConnectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vaultfactory_ws_connection_duration_seconds",
		Help:    "Duration of WebSocket client connections",
		Buckets: []float64{1, 10, 60, 300, 600, 1800, 3600, 7200, 14400, 43200, 86400},
	})
)
