// Package metrics holds the Prometheus instrumentation of the cache.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lookup results.
const (
	ResultHit     = "hit"
	ResultMiss    = "miss"
	ResultExpired = "expired"
	ResultError   = "error"
)

// Warmup job outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeSkipped   = "skipped"
	OutcomeAbandoned = "abandoned"
)

// Cache groups the cache counters. A nil *Cache records nothing.
type Cache struct {
	lookups        *prometheus.CounterVec
	writes         *prometheus.CounterVec
	storeErrors    *prometheus.CounterVec
	invalidated    *prometheus.CounterVec
	computes       *prometheus.CounterVec
	warmupJobs     *prometheus.CounterVec
	warmupDuration prometheus.Histogram
}

// New registers the cache metrics on reg.
func New(reg prometheus.Registerer) *Cache {
	f := promauto.With(reg)
	return &Cache{
		lookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aicache_lookups_total",
				Help: "Cache lookups by function and result",
			},
			[]string{"function", "result"}, // result: hit/miss/expired/error
		),
		writes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aicache_writes_total",
				Help: "Entries written to the cache",
			},
			[]string{"function"},
		),
		storeErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aicache_store_errors_total",
				Help: "Cache store failures by operation",
			},
			[]string{"operation"},
		),
		invalidated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aicache_invalidated_entries_total",
				Help: "Entries removed by invalidation operations",
			},
			[]string{"operation"},
		),
		computes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aicache_computes_total",
				Help: "Downstream AI-generation calls made on cache misses",
			},
			[]string{"function", "status"},
		),
		warmupJobs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aicache_warmup_jobs_total",
				Help: "Warmup jobs by outcome",
			},
			[]string{"outcome"},
		),
		warmupDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "aicache_warmup_duration_seconds",
				Help:    "Wall-clock duration of warmup runs",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1h
			},
		),
	}
}

// Lookup counts one read of function with the given result.
func (m *Cache) Lookup(function, result string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(function, result).Inc()
}

// Write counts one stored entry.
func (m *Cache) Write(function string) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(function).Inc()
}

// StoreError counts a failed store operation.
func (m *Cache) StoreError(operation string) {
	if m == nil {
		return
	}
	m.storeErrors.WithLabelValues(operation).Inc()
}

// Invalidated adds n removed entries under operation.
func (m *Cache) Invalidated(operation string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.invalidated.WithLabelValues(operation).Add(float64(n))
}

// Compute counts one call of the generator for function.
func (m *Cache) Compute(function string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.computes.WithLabelValues(function, status).Inc()
}

// WarmupJob counts one warmup job by outcome.
func (m *Cache) WarmupJob(outcome string) {
	if m == nil {
		return
	}
	m.warmupJobs.WithLabelValues(outcome).Inc()
}

// WarmupRun observes the wall-clock duration of a warmup batch.
func (m *Cache) WarmupRun(seconds float64) {
	if m == nil {
		return
	}
	m.warmupDuration.Observe(seconds)
}
