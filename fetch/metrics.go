package fetch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the enhancement run.
type Metrics struct {
	Registry         *prometheus.Registry
	FetchesTotal     *prometheus.CounterVec
	FetchDuration    prometheus.Histogram
	RetriesTotal     prometheus.Counter
	ErrorsTotal      *prometheus.CounterVec
	CacheHitsTotal   prometheus.Counter
	BooksTotal       *prometheus.CounterVec
	CheckpointsTotal prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	fetches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enhancer_fetches_total",
			Help: "Total page fetches issued against the site.",
		},
		[]string{"outcome"},
	)
	fetchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "enhancer_fetch_duration_seconds",
			Help:    "Latency of page fetches, including retries.",
			Buckets: prometheus.DefBuckets,
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "enhancer_retries_total",
			Help: "Total number of fetch retry attempts.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enhancer_fetch_errors_total",
			Help: "Total number of fetch errors by type.",
		},
		[]string{"error_type"},
	)
	cacheHits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "enhancer_page_cache_hits_total",
			Help: "Fetches served from the in-memory page cache.",
		},
	)
	books := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enhancer_books_total",
			Help: "Books handled by the pipeline, by outcome.",
		},
		[]string{"outcome"},
	)
	checkpoints := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "enhancer_checkpoints_total",
			Help: "Full dataset rewrites performed.",
		},
	)

	registry.MustRegister(fetches, fetchDuration, retries, errorsTotal, cacheHits, books, checkpoints)

	return &Metrics{
		Registry:         registry,
		FetchesTotal:     fetches,
		FetchDuration:    fetchDuration,
		RetriesTotal:     retries,
		ErrorsTotal:      errorsTotal,
		CacheHitsTotal:   cacheHits,
		BooksTotal:       books,
		CheckpointsTotal: checkpoints,
	}
}

// IncFetch increments the fetch counter for an outcome label.
func (m *Metrics) IncFetch(outcome string) {
	if m == nil {
		return
	}
	m.FetchesTotal.WithLabelValues(outcome).Inc()
}

// ObserveDuration records one fetch duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
}

// IncRetries increments the retry counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the error counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncCacheHit increments the page cache hit counter.
func (m *Metrics) IncCacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

// IncBook increments the per-book outcome counter.
func (m *Metrics) IncBook(outcome string) {
	if m == nil {
		return
	}
	m.BooksTotal.WithLabelValues(outcome).Inc()
}

// IncCheckpoint increments the checkpoint counter.
func (m *Metrics) IncCheckpoint() {
	if m == nil {
		return
	}
	m.CheckpointsTotal.Inc()
}
