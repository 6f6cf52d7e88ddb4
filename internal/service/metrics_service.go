package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/filemgr/internal/models"
	"github.com/noah-isme/filemgr/pkg/jobs"
)

const metricsNamespace = "filemgr"

// MetricsService owns the Prometheus registry and keeps lightweight counters
// for the JSON snapshot endpoint.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	catalogOps      *prometheus.CounterVec
	catalogDuration *prometheus.HistogramVec
	pageHits        prometheus.Histogram

	queuesMu sync.RWMutex
	queues   []queueStatsSource

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	catalogOpCount       uint64
	catalogFailCount     uint64
	catalogDurationTotal uint64
}

type queueStatsSource interface {
	Name() string
	Stats() jobs.Stats
}

// NewMetricsService registers the collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "cache_latency_seconds",
		Help:      "Latency of cache lookups",
		Buckets:   prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "cache_write_seconds",
		Help:      "Latency of cache writes",
		Buckets:   prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "cache_hit_ratio",
		Help:      "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "cache_hits_total",
		Help:      "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "cache_misses_total",
		Help:      "Total cache misses",
	})

	catalogOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "catalog_operations_total",
		Help:      "Catalog operations by name and outcome",
	}, []string{"operation", "status"})

	catalogDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "catalog_operation_duration_seconds",
		Help:      "Duration of catalog operations",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"operation"})

	pageHits := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "paged_query_hits",
		Help:      "Number of hits reported by paged queries",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "goroutines",
		Help:      "Number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		catalogOps, catalogDuration, pageHits, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		catalogOps:      catalogOps,
		catalogDuration: catalogDuration,
		pageHits:        pageHits,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// WatchQueue exports the depth and job outcomes of q. Each queue name may be
// registered once.
func (m *MetricsService) WatchQueue(q queueStatsSource) error {
	if m == nil || q == nil {
		return nil
	}
	labels := prometheus.Labels{"queue": q.Name()}
	gauge := func(name, help string, read func(jobs.Stats) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: name, Help: help, ConstLabels: labels,
		}, func() float64 { return read(q.Stats()) })
	}
	counter := func(name, help string, read func(jobs.Stats) float64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: name, Help: help, ConstLabels: labels,
		}, func() float64 { return read(q.Stats()) })
	}
	collectors := []prometheus.Collector{
		gauge("queue_pending_jobs", "Jobs waiting in the queue buffer", func(s jobs.Stats) float64 { return float64(s.Pending) }),
		gauge("queue_inflight_jobs", "Jobs currently being handled", func(s jobs.Stats) float64 { return float64(s.InFlight) }),
		counter("queue_jobs_succeeded_total", "Jobs handled successfully", func(s jobs.Stats) float64 { return float64(s.Succeeded) }),
		counter("queue_jobs_retried_total", "Job attempts scheduled for retry", func(s jobs.Stats) float64 { return float64(s.Retried) }),
		counter("queue_jobs_abandoned_total", "Jobs dropped after exhausting retries", func(s jobs.Stats) float64 { return float64(s.Abandoned) }),
	}
	for _, c := range collectors {
		if err := m.registry.Register(c); err != nil {
			return err
		}
	}
	m.queuesMu.Lock()
	m.queues = append(m.queues, q)
	m.queuesMu.Unlock()
	return nil
}

// ObserveHTTPRequest records one served request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records a cache lookup and refreshes the hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration of a cache write.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveCatalogOperation records the outcome and latency of a catalog call.
func (m *MetricsService) ObserveCatalogOperation(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
		atomic.AddUint64(&m.catalogFailCount, 1)
	}
	m.catalogOps.WithLabelValues(operation, status).Inc()
	m.catalogDuration.WithLabelValues(operation).Observe(duration.Seconds())
	atomic.AddUint64(&m.catalogOpCount, 1)
	atomic.AddUint64(&m.catalogDurationTotal, uint64(duration.Nanoseconds()))
}

// ObservePageHits records the hit count of a paged query.
func (m *MetricsService) ObservePageHits(hits int) {
	if m == nil {
		return
	}
	m.pageHits.Observe(float64(hits))
}

// Snapshot aggregates counters for the JSON metrics endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	ops := atomic.LoadUint64(&m.catalogOpCount)
	failures := atomic.LoadUint64(&m.catalogFailCount)
	opDuration := atomic.LoadUint64(&m.catalogDurationTotal)

	var cacheRatio float64
	if lookups := hits + misses; lookups > 0 {
		cacheRatio = float64(hits) / float64(lookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	var avgOpMs float64
	if ops > 0 {
		avgOpMs = float64(opDuration) / float64(ops) / float64(time.Millisecond)
	}

	var queues map[string]jobs.Stats
	m.queuesMu.RLock()
	for _, q := range m.queues {
		if queues == nil {
			queues = make(map[string]jobs.Stats, len(m.queues))
		}
		queues[q.Name()] = q.Stats()
	}
	m.queuesMu.RUnlock()

	return models.SystemMetrics{
		CacheHitRatio:             cacheRatio,
		CacheHits:                 hits,
		CacheMisses:               misses,
		RequestsTotal:             requests,
		AverageRequestDurationMs:  avgRequestMs,
		CatalogOperations:         ops,
		CatalogFailures:           failures,
		AverageCatalogOperationMs: avgOpMs,
		Goroutines:                runtime.NumGoroutine(),
		Queues:                    queues,
		GeneratedAt:               time.Now().UTC(),
	}
}
