package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the completion engine's collectors. A nil *Metrics is a no-op.
type Metrics struct {
	reg prometheus.Gatherer

	Reconciliations *prometheus.CounterVec
	ApplyDuration   *prometheus.HistogramVec
	StaleRetries    prometheus.Counter
	MalformedScorm  prometheus.Counter
	Completions     prometheus.Counter
	NotifyFailures  *prometheus.CounterVec
}

// New registers the collectors on a fresh registry unless reg is given.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	m := &Metrics{
		reg: reg,
		Reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "completion_reconciliations_total",
			Help: "Activity events reconciled into an enrollment",
		}, []string{"event", "result"}),
		ApplyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "completion_apply_duration_seconds",
			Help:    "Time spent locking, reconciling and persisting one event",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		}, []string{"event"}),
		StaleRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "completion_stale_write_retries_total",
			Help: "Enrollment updates retried after a version conflict",
		}),
		MalformedScorm: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "completion_scorm_malformed_total",
			Help: "SCORM runtime payloads that could not be interpreted",
		}),
		Completions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "completion_enrollments_completed_total",
			Help: "Enrollments that transitioned into completed",
		}),
		NotifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "completion_notify_failures_total",
			Help: "Downstream notifications that failed",
		}, []string{"notifier"}),
	}
	reg.MustRegister(m.Reconciliations, m.ApplyDuration, m.StaleRetries, m.MalformedScorm, m.Completions, m.NotifyFailures)
	return m
}

func (m *Metrics) ObserveApply(event, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Reconciliations.WithLabelValues(event, result).Inc()
	m.ApplyDuration.WithLabelValues(event).Observe(d.Seconds())
}

func (m *Metrics) StaleRetry() {
	if m != nil {
		m.StaleRetries.Inc()
	}
}

func (m *Metrics) Malformed() {
	if m != nil {
		m.MalformedScorm.Inc()
	}
}

func (m *Metrics) Completed() {
	if m != nil {
		m.Completions.Inc()
	}
}

func (m *Metrics) NotifyFailed(notifier string) {
	if m != nil {
		m.NotifyFailures.WithLabelValues(notifier).Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
