// Package metrics exposes Prometheus instrumentation for citation rewriting.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every mdcite metric.
const Namespace = "mdcite"

// Surface labels.
const (
	SurfaceHTTP   = "http"
	SurfaceUpload = "upload"
)

// Metrics holds the transform counters and histograms.
type Metrics struct {
	DocumentsTotal    *prometheus.CounterVec
	UniqueURLsTotal   prometheus.Counter
	TransformDuration prometheus.Histogram
	FailuresTotal     *prometheus.CounterVec
	CacheLookups      *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates and registers all metrics on reg. A nil reg gets a fresh
// private registry so repeated construction in tests never collides.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		DocumentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "documents_total",
				Help:      "Documents rewritten, by surface",
			},
			[]string{"surface"},
		),
		UniqueURLsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "unique_urls_total",
				Help:      "Unique canonical URLs registered across all documents",
			},
		),
		TransformDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "transform_duration_seconds",
				Help:      "Time spent converting and rewriting one document",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
			},
		),
		FailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "failures_total",
				Help:      "Documents that could not be processed, by error code",
			},
			[]string{"code"},
		),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "cache_lookups_total",
				Help:      "Result cache lookups, by outcome",
			},
			[]string{"result"},
		),
		gatherer: reg,
	}
}

// ObserveDocument records one successful rewrite.
func (m *Metrics) ObserveDocument(surface string, uniqueURLs int, elapsed time.Duration) {
	m.DocumentsTotal.WithLabelValues(surface).Inc()
	m.UniqueURLsTotal.Add(float64(uniqueURLs))
	m.TransformDuration.Observe(elapsed.Seconds())
}

// ObserveFailure records a document rejected with code.
func (m *Metrics) ObserveFailure(code string) {
	m.FailuresTotal.WithLabelValues(code).Inc()
}

// ObserveCache records a cache hit or miss.
func (m *Metrics) ObserveCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
