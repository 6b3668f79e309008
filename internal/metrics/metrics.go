// Package metrics exposes Prometheus instrumentation for the API.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cryptolearn"

// Metrics groups every collector of the server.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	LoginsTotal        *prometheus.CounterVec
	TasksGenerated     *prometheus.CounterVec
	TaskVerifications  *prometheus.CounterVec
	ResetRequestsTotal prometheus.Counter
	ResetMailFailures  prometheus.Counter
	TokensSweptTotal   *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		LoginsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "logins_total",
				Help:      "Login attempts by outcome",
			},
			[]string{"outcome"},
		),
		TasksGenerated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_generated_total",
				Help:      "Generated Caesar tasks by type and language",
			},
			[]string{"type", "language"},
		),
		TaskVerifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_verifications_total",
				Help:      "Task verifications by type and result",
			},
			[]string{"type", "result"},
		),
		ResetRequestsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "password_reset_requests_total",
				Help:      "Total password reset requests",
			},
		),
		ResetMailFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "password_reset_mail_failures_total",
				Help:      "Password reset emails that could not be delivered",
			},
		),
		TokensSweptTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "expired_records_swept_total",
				Help:      "Expired records removed by the cleanup worker",
			},
			[]string{"kind"},
		),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusClass(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *Metrics) RequestStarted() {
	if m == nil {
		return
	}
	m.HTTPRequestsInFlight.Inc()
}

func (m *Metrics) RequestFinished() {
	if m == nil {
		return
	}
	m.HTTPRequestsInFlight.Dec()
}

// RecordLogin counts a login attempt; outcome is success, failed or disabled.
func (m *Metrics) RecordLogin(outcome string) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordTaskGenerated(taskType, language string) {
	if m == nil {
		return
	}
	m.TasksGenerated.WithLabelValues(taskType, language).Inc()
}

// RecordVerification counts a verification; result is correct, incorrect, revealed, not_found or mismatch.
func (m *Metrics) RecordVerification(taskType, result string) {
	if m == nil {
		return
	}
	m.TaskVerifications.WithLabelValues(taskType, result).Inc()
}

func (m *Metrics) RecordResetRequest() {
	if m == nil {
		return
	}
	m.ResetRequestsTotal.Inc()
}

func (m *Metrics) RecordResetMailFailure() {
	if m == nil {
		return
	}
	m.ResetMailFailures.Inc()
}

func (m *Metrics) RecordSwept(kind string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.TokensSweptTotal.WithLabelValues(kind).Add(float64(n))
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
