// Package metrics defines the Prometheus collectors of the server and worker.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tally"

type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	summaries     *prometheus.CounterVec
	warnings      *prometheus.CounterVec
	billPayments  *prometheus.CounterVec
	reminders     *prometheus.CounterVec
	reminderScans prometheus.Counter
	exports       *prometheus.CounterVec
}

// New registers every collector on a fresh registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		summaries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_requests_total",
			Help:      "Summary requests by kind and cache result.",
		}, []string{"kind", "cache"}),
		warnings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_warnings_total",
			Help:      "Aggregation warnings by code.",
		}, []string{"code"}),
		billPayments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bill_payments_total",
			Help:      "Bill payment attempts by outcome.",
		}, []string{"outcome"}),
		reminders: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bill_reminders_total",
			Help:      "Bill reminders by outcome.",
		}, []string{"outcome"}),
		reminderScans: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminder_scans_total",
			Help:      "Completed reminder scans.",
		}),
		exports: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_exports_total",
			Help:      "Summary exports by target and outcome.",
		}, []string{"target", "outcome"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) SummaryRequest(kind string, cacheHit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if cacheHit {
		result = "hit"
	}
	m.summaries.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) Warnings(code string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.warnings.WithLabelValues(code).Add(float64(n))
}

// BillPayment records a payment attempt: "saved", "duplicate" or "error".
func (m *Metrics) BillPayment(outcome string) {
	if m == nil {
		return
	}
	m.billPayments.WithLabelValues(outcome).Inc()
}

// Reminder records a reminder outcome: "published", "skipped", "failed" or
// "sent".
func (m *Metrics) Reminder(outcome string) {
	if m == nil {
		return
	}
	m.reminders.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ReminderScan() {
	if m == nil {
		return
	}
	m.reminderScans.Inc()
}

func (m *Metrics) Export(target, outcome string) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(target, outcome).Inc()
}
