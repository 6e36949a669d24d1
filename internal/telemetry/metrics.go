package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is safe to use through a nil pointer.
type Metrics struct {
	requests *prometheus.CounterVec
	reports  *prometheus.CounterVec
	polls    *prometheus.CounterVec
}

func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ec_dashboard",
			Name:      "transport_requests_total",
			Help:      "Backend calls by transport and outcome.",
		}, []string{"transport", "outcome"}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ec_dashboard",
			Name:      "error_reports_total",
			Help:      "Intercepted faults by report type.",
		}, []string{"type", "delivered"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ec_dashboard",
			Name:      "poll_runs_total",
			Help:      "Poll callback invocations by key.",
		}, []string{"key"}),
	}
	reg.MustRegister(m.requests, m.reports, m.polls)
	return m
}

func (m *Metrics) Request(transport, outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(transport, outcome).Inc()
}

func (m *Metrics) Report(reportType string, delivered bool) {
	if m == nil {
		return
	}
	d := "false"
	if delivered {
		d = "true"
	}
	m.reports.WithLabelValues(reportType, d).Inc()
}

func (m *Metrics) PollRun(key string) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(key).Inc()
}
