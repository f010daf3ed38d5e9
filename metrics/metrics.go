// Package metrics holds the Prometheus instruments for the review workflow.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gcx_supplier"

type Metrics struct {
	registry *prometheus.Registry

	Transitions      *prometheus.CounterVec
	Uploads          *prometheus.CounterVec
	Notifications    *prometheus.CounterVec
	ReportDuration   prometheus.Histogram
	ReportsGenerated *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Application lifecycle actions by outcome.",
		}, []string{"action", "result"}),
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_actions_total",
			Help:      "Document upload, verify and reject actions by outcome.",
		}, []string{"action", "result"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification deliveries by channel and outcome.",
		}, []string{"channel", "result"}),
		ReportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_render_seconds",
			Help:      "Time spent rendering application snapshot reports.",
			Buckets:   prometheus.DefBuckets,
		}),
		ReportsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "Snapshot reports by outcome.",
		}, []string{"result"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Transitions,
		m.Uploads,
		m.Notifications,
		m.ReportDuration,
		m.ReportsGenerated,
		m.HTTPDuration,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) Transition(action string, err error) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(action, result(err)).Inc()
}

func (m *Metrics) Document(action string, err error) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(action, result(err)).Inc()
}

func (m *Metrics) Notification(channel string, err error) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(channel, result(err)).Inc()
}

func (m *Metrics) Report(started time.Time, err error) {
	if m == nil {
		return
	}
	m.ReportDuration.Observe(time.Since(started).Seconds())
	m.ReportsGenerated.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) HTTP(method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
