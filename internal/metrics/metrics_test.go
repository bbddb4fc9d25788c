package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(nil)
	m.ObserveApply("quiz_submitted", "changed", 10*time.Millisecond)
	m.ObserveApply("quiz_submitted", "changed", 5*time.Millisecond)
	m.StaleRetry()
	m.Malformed()

	if got := testutil.ToFloat64(m.Reconciliations.WithLabelValues("quiz_submitted", "changed")); got != 2 {
		t.Fatalf("expected 2 reconciliations, got %v", got)
	}
	if got := testutil.ToFloat64(m.StaleRetries); got != 1 {
		t.Fatalf("expected 1 stale retry, got %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "completion_scorm_malformed_total 1") {
		t.Fatalf("metrics output missing malformed counter:\n%s", rec.Body.String())
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveApply("recheck", "unchanged", time.Millisecond)
	m.StaleRetry()
	m.Malformed()
	m.Completed()
	m.NotifyFailed("amqp")
}
