// Package metrics defines the Prometheus collectors for the search and answer
// pipeline and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors on a private registry. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	SearchQueriesTotal  *prometheus.CounterVec
	SearchLatency       *prometheus.HistogramVec
	SearchResultsCount  prometheus.Histogram
	DocsIndexed         prometheus.Gauge
	AnswerChunksTotal   prometheus.Counter
	CompletionErrors    prometheus.Counter
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faqrag_http_requests_total",
				Help: "Total number of HTTP requests by method, route, and status.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "faqrag_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "route"},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faqrag_search_queries_total",
				Help: "Total search queries by provider and outcome (hit, zero_result, error).",
			},
			[]string{"provider", "outcome"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "faqrag_search_latency_seconds",
				Help:    "Search latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"provider"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "faqrag_search_results_count",
				Help:    "Number of documents returned per search.",
				Buckets: []float64{0, 1, 2, 5, 10, 25},
			},
		),
		DocsIndexed: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "faqrag_documents_indexed",
				Help: "Number of FAQ documents in the current index.",
			},
		),
		AnswerChunksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "faqrag_answer_chunks_total",
				Help: "Total streamed answer chunks delivered.",
			},
		),
		CompletionErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "faqrag_completion_errors_total",
				Help: "Total failed or aborted answer completions.",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.DocsIndexed,
		m.AnswerChunksTotal,
		m.CompletionErrors,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler returns the Prometheus scrape HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSearch records one search against provider.
func (m *Metrics) ObserveSearch(provider string, took time.Duration, results int, err error) {
	if m == nil {
		return
	}
	outcome := "hit"
	switch {
	case err != nil:
		outcome = "error"
	case results == 0:
		outcome = "zero_result"
	}
	m.SearchQueriesTotal.WithLabelValues(provider, outcome).Inc()
	m.SearchLatency.WithLabelValues(provider).Observe(took.Seconds())
	if err == nil {
		m.SearchResultsCount.Observe(float64(results))
	}
}

// SetIndexed records the size of the freshly fitted corpus.
func (m *Metrics) SetIndexed(n int) {
	if m == nil {
		return
	}
	m.DocsIndexed.Set(float64(n))
}

// AnswerChunk counts one delivered answer chunk.
func (m *Metrics) AnswerChunk() {
	if m == nil {
		return
	}
	m.AnswerChunksTotal.Inc()
}

// CompletionFailed counts one failed completion.
func (m *Metrics) CompletionFailed() {
	if m == nil {
		return
	}
	m.CompletionErrors.Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(took.Seconds())
}
