// Package metrics exposes Prometheus metrics for reconciliation passes and
// HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentstation/lbmap/pkg/reconciler"
)

const namespace = "lbmap"

// Metrics owns a registry so several servers (and tests) can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	passes            *prometheus.CounterVec
	passDuration      *prometheus.HistogramVec
	servicesTotal     *prometheus.GaugeVec
	containersDropped *prometheus.CounterVec
	changes           *prometheus.CounterVec
	requests          *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_passes_total",
			Help:      "Reconciliation passes by table and outcome.",
		}, []string{"table", "outcome"}),
		passDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_duration_seconds",
			Help:      "Duration of successful reconciliation passes.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"table"}),
		servicesTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "services",
			Help:      "Services in a table after the last pass.",
		}, []string{"table"}),
		containersDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "containers_dropped_total",
			Help:      "Containers discarded with unavailable services.",
		}, []string{"table"}),
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "service_changes_total",
			Help:      "Services created, updated or deleted by passes.",
		}, []string{"table", "change"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		m.passes,
		m.passDuration,
		m.servicesTotal,
		m.containersDropped,
		m.changes,
		m.requests,
		m.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObservePass records a successful pass.
func (m *Metrics) ObservePass(result *reconciler.Result) {
	table := result.Table
	stats := result.Metadata.Stats

	outcome := "applied"
	if result.Metadata.DryRun {
		outcome = "dry_run"
	}
	m.passes.WithLabelValues(table, outcome).Inc()
	m.passDuration.WithLabelValues(table).Observe(result.Metadata.Duration.Seconds())
	m.servicesTotal.WithLabelValues(table).Set(float64(len(result.Services)))
	m.containersDropped.WithLabelValues(table).Add(float64(stats.ContainersDropped))

	if !result.Metadata.DryRun {
		m.changes.WithLabelValues(table, "created").Add(float64(stats.ServicesCreated))
		m.changes.WithLabelValues(table, "updated").Add(float64(stats.ServicesUpdated))
		m.changes.WithLabelValues(table, "deleted").Add(float64(stats.ServicesDeleted))
	}
}

// ObserveFailure records a pass that returned an error.
func (m *Metrics) ObserveFailure(table string) {
	m.passes.WithLabelValues(table, "failed").Inc()
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, code int, elapsed time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
