package prometheus

import (
	"time"

	"github.com/marmos91/execgate/pkg/cache"
	"github.com/marmos91/execgate/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func init() {
	metrics.RegisterCacheMetricsConstructor(newCacheMetrics)
}

// cacheMetrics is the Prometheus implementation of cache.CacheMetrics.
type cacheMetrics struct {
	notifyReads    *prometheus.CounterVec
	notifyDuration prometheus.Histogram
	notifyKeys     prometheus.Histogram
	waiters        prometheus.Gauge
	reads          *prometheus.CounterVec
	dirtyEntries   prometheus.Gauge
	cachedEntries  prometheus.Gauge
	footprint      prometheus.Gauge
	commits        prometheus.Counter
	commitSize     prometheus.Histogram
	commitDuration prometheus.Histogram
}

// newCacheMetrics creates the Prometheus-backed CacheMetrics instance.
func newCacheMetrics() cache.CacheMetrics {
	reg := metrics.GetRegistry()

	return &cacheMetrics{
		notifyReads: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "execgate_cache_notify_reads_total",
				Help: "Total NotifyReadInputObjects calls by outcome",
			},
			[]string{"outcome"}, // "immediate", "waited"
		),
		notifyDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "execgate_cache_notify_read_duration_seconds",
				Help: "Duration of NotifyReadInputObjects calls",
				Buckets: []float64{
					0.0001, // immediate path
					0.001,
					0.01,
					0.1,
					1,
					10,
					60, // stuck on a missing dependency
				},
			},
		),
		notifyKeys: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "execgate_cache_notify_read_keys",
				Help:    "Number of input keys per NotifyReadInputObjects call",
				Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128},
			},
		),
		waiters: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "execgate_cache_pending_waiters",
				Help: "Requests currently registered in the waiter registry",
			},
		),
		reads: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "execgate_cache_reads_total",
				Help: "Read-through lookups by result",
			},
			[]string{"status"}, // "hit", "miss"
		),
		dirtyEntries: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "execgate_cache_dirty_entries",
				Help: "Uncommitted entries in the cache",
			},
		),
		cachedEntries: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "execgate_cache_cached_entries",
				Help: "Committed entries retained in memory",
			},
		),
		footprint: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "execgate_cache_footprint_bytes",
				Help: "Approximate in-memory byte footprint of the cache",
			},
		),
		commits: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "execgate_cache_commits_total",
				Help: "Total commit batches written to the durable store",
			},
		),
		commitSize: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "execgate_cache_commit_records",
				Help:    "Records (objects plus markers) per commit batch",
				Buckets: []float64{1, 10, 100, 1000, 10000},
			},
		),
		commitDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "execgate_cache_commit_duration_seconds",
				Help:    "Duration of commit batches",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

func (m *cacheMetrics) ObserveNotifyRead(numKeys int, immediate bool, duration time.Duration) {
	outcome := "waited"
	if immediate {
		outcome = "immediate"
	}
	m.notifyReads.WithLabelValues(outcome).Inc()
	m.notifyDuration.Observe(duration.Seconds())
	m.notifyKeys.Observe(float64(numKeys))
}

func (m *cacheMetrics) RecordWaiters(count int) {
	m.waiters.Set(float64(count))
}

func (m *cacheMetrics) RecordRead(hit bool) {
	status := "miss"
	if hit {
		status = "hit"
	}
	m.reads.WithLabelValues(status).Inc()
}

func (m *cacheMetrics) RecordDirtyEntries(count int) {
	m.dirtyEntries.Set(float64(count))
}

func (m *cacheMetrics) RecordCachedEntries(count int) {
	m.cachedEntries.Set(float64(count))
}

func (m *cacheMetrics) RecordFootprint(bytes int64) {
	m.footprint.Set(float64(bytes))
}

func (m *cacheMetrics) ObserveCommit(objects, markers int, duration time.Duration) {
	m.commits.Inc()
	m.commitSize.Observe(float64(objects + markers))
	m.commitDuration.Observe(duration.Seconds())
}
