package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Termination reasons used as the "reason" label.
const (
	ReasonSession = "session"
	ReasonKillAll = "kill_all"
	ReasonTracked = "tracked"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	// Session metrics
	SessionsTotal    prometheus.Counter
	SessionsActive   prometheus.Gauge
	SessionErrors    *prometheus.CounterVec
	TeardownDuration prometheus.Histogram

	// Document metrics
	DocumentsClosed     prometheus.Counter
	DocumentCloseErrors prometheus.Counter

	// Process metrics
	HostsTerminated *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "safexl_sessions_total",
				Help: "Total number of sessions opened",
			},
		),
		SessionsActive: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "safexl_sessions_active",
				Help: "Number of sessions not yet torn down",
			},
		),
		SessionErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "safexl_session_errors_total",
				Help: "Total number of session failures by stage",
			},
			[]string{"stage"},
		),
		TeardownDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "safexl_teardown_duration_seconds",
				Help:    "Session teardown duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		DocumentsClosed: f.NewCounter(
			prometheus.CounterOpts{
				Name: "safexl_documents_closed_total",
				Help: "Total number of session-created documents closed at teardown",
			},
		),
		DocumentCloseErrors: f.NewCounter(
			prometheus.CounterOpts{
				Name: "safexl_document_close_errors_total",
				Help: "Total number of documents that failed to close at teardown",
			},
		),
		HostsTerminated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "safexl_hosts_terminated_total",
				Help: "Total number of host processes force-killed",
			},
			[]string{"reason"},
		),
	}
}

// SessionOpened records a new session.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// SessionClosed records a finished teardown.
func (m *Metrics) SessionClosed(duration time.Duration) {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
	m.TeardownDuration.Observe(duration.Seconds())
}

// RecordError records a failure at stage ("create", "snapshot", "teardown").
func (m *Metrics) RecordError(stage string) {
	if m == nil {
		return
	}
	m.SessionErrors.WithLabelValues(stage).Inc()
}

// DocumentsClosedAdd records closed and failed document counts.
func (m *Metrics) DocumentsClosedAdd(closed, failed int) {
	if m == nil {
		return
	}
	m.DocumentsClosed.Add(float64(closed))
	m.DocumentCloseErrors.Add(float64(failed))
}

// HostsTerminatedAdd records n killed host processes.
func (m *Metrics) HostsTerminatedAdd(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.HostsTerminated.WithLabelValues(reason).Add(float64(n))
}
