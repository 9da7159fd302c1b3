// Package metrics provides Prometheus metrics for GenEx
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for GenEx
type Metrics struct {
	registry *prometheus.Registry

	// HTTP request metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Domain metrics
	ExportsTotal        *prometheus.CounterVec
	ExportDuration      *prometheus.HistogramVec
	VersionAppendsTotal prometheus.Counter
	BatchesStoredTotal  *prometheus.CounterVec
	ExtractionsTotal    *prometheus.CounterVec
}

// New creates all metrics on a private registry so tests can build as many
// instances as they like.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "genex_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "genex_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		ExportsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "genex_exports_total",
				Help: "Total number of committed exports by format and push status",
			},
			[]string{"format", "push_status"},
		),
		ExportDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "genex_export_duration_seconds",
				Help:    "Duration of the export pipeline in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"format"},
		),
		VersionAppendsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "genex_requirement_versions_appended_total",
				Help: "Total number of requirement versions appended",
			},
		),
		BatchesStoredTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "genex_batches_stored_total",
				Help: "Total number of requirement batches stored by policy",
			},
			[]string{"policy"},
		),
		ExtractionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "genex_extractions_total",
				Help: "Total number of extraction runs by outcome",
			},
			[]string{"status"},
		),
	}
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordExport records one committed export.
func (m *Metrics) RecordExport(format, pushStatus string, seconds float64) {
	if m == nil {
		return
	}
	m.ExportsTotal.WithLabelValues(format, pushStatus).Inc()
	m.ExportDuration.WithLabelValues(format).Observe(seconds)
}

// RecordVersionAppend records one appended version.
func (m *Metrics) RecordVersionAppend() {
	if m == nil {
		return
	}
	m.VersionAppendsTotal.Inc()
}

// RecordBatch records one stored batch.
func (m *Metrics) RecordBatch(policy string) {
	if m == nil {
		return
	}
	m.BatchesStoredTotal.WithLabelValues(policy).Inc()
}

// RecordExtraction records the outcome of one extraction run.
func (m *Metrics) RecordExtraction(status string) {
	if m == nil {
		return
	}
	m.ExtractionsTotal.WithLabelValues(status).Inc()
}

// RecordHTTP records one served HTTP request.
func (m *Metrics) RecordHTTP(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(seconds)
}
