package submission

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// SubmissionsTotal tracks terminal submissions by state.
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultfactory_submission_total",
		Help: "Total number of vault creation submissions by terminal state",
	}, []string{"state"})

	// GuardRejectionsTotal tracks submissions refused before any call.
	GuardRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultfactory_submission_guard_rejections_total",
		Help: "Total number of submissions rejected by the entry guard",
	}, []string{"reason"})

	// RefreshFailuresTotal tracks failed post-success refreshes.
	RefreshFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultfactory_submission_refresh_failures_total",
		Help: "Total number of failed refreshes after a successful submission",
	}, []string{"target"})

	// SubmissionDurationSeconds tracks time from send to receipt.
	SubmissionDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vaultfactory_submission_duration_seconds",
		Help:    "Duration of create transactions from submission to receipt",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
	})
)
