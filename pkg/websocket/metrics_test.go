package websocket

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_FrameTypesAreSeparateSeries(t *testing.T) {
	snapshot := MessagesSentTotal.WithLabelValues("snapshot")
	submission := MessagesSentTotal.WithLabelValues("submission")

	beforeSnapshot := testutil.ToFloat64(snapshot)
	beforeSubmission := testutil.ToFloat64(submission)

	snapshot.Inc()
	snapshot.Inc()
	submission.Inc()

	if got := testutil.ToFloat64(snapshot) - beforeSnapshot; got != 2 {
		t.Errorf("expected 2 snapshot frames, got %v", got)
	}
	if got := testutil.ToFloat64(submission) - beforeSubmission; got != 1 {
		t.Errorf("expected 1 submission frame, got %v", got)
	}
}

func TestMetrics_ActiveConnections(t *testing.T) {
	before := testutil.ToFloat64(ActiveConnections)
	ActiveConnections.Inc()
	ActiveConnections.Dec()

	if got := testutil.ToFloat64(ActiveConnections); got != before {
		t.Errorf("expected %v, got %v", before, got)
	}
	if ConnectionDuration == nil || WriteErrorsTotal == nil || MessagesReceivedTotal == nil {
		t.Error("websocket metrics not registered")
	}
}
