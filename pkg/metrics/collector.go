package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/academy-ai/aicache/pkg/models"
)

// StatsSource yields a statistics snapshot.
type StatsSource interface {
	Snapshot(ctx context.Context) (models.CacheStats, error)
}

// StatsCollector exports store contents as gauges, polling src on every
// scrape.
type StatsCollector struct {
	src     StatsSource
	timeout time.Duration

	entries *prometheus.Desc
	hits    *prometheus.Desc
	up      *prometheus.Desc
}

// NewStatsCollector returns a collector bounded by timeout per scrape.
func NewStatsCollector(src StatsSource, timeout time.Duration) *StatsCollector {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &StatsCollector{
		src:     src,
		timeout: timeout,
		entries: prometheus.NewDesc("aicache_entries", "Entries currently stored, including expired rows not yet cleaned", []string{"function"}, nil),
		hits:    prometheus.NewDesc("aicache_entry_hits", "Sum of hit counters of stored entries", []string{"function"}, nil),
		up:      prometheus.NewDesc("aicache_store_up", "Whether the last statistics query succeeded", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *StatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
	ch <- c.hits
	ch <- c.up
}

// Collect implements prometheus.Collector.
func (c *StatsCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	stats, err := c.src.Snapshot(ctx)
	if err != nil {
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1)
	for fn, s := range stats.ByFunction {
		ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(s.Count), fn)
		ch <- prometheus.MustNewConstMetric(c.hits, prometheus.GaugeValue, float64(s.TotalHits), fn)
	}
}
