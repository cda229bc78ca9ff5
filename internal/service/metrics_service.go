package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/timeweave/meeting-scheduler-api/internal/models"
)

// MetricsService owns the Prometheus registry and keeps light counters for the JSON snapshot.
type MetricsService struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	cacheLookups       *prometheus.CounterVec
	cacheLatency       prometheus.Histogram
	generationDuration *prometheus.HistogramVec
	slotsWritten       *prometheus.CounterVec
	notifications      *prometheus.CounterVec

	requestCount         uint64
	requestDurationTotal uint64
	cacheHitCount        uint64
	cacheMissCount       uint64
	suggestionRuns       uint64
	notificationsSent    uint64
	notificationsFailed  uint64
}

// NewMetricsService registers collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()
	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "suggestion_cache_lookups_total",
			Help: "Suggestion cache lookups by result",
		}, []string{"result"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "suggestion_cache_latency_seconds",
			Help:    "Latency of suggestion cache reads",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
		}),
		generationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "suggestion_generation_duration_seconds",
			Help:    "Duration of suggested slot generation",
			Buckets: prometheus.DefBuckets,
		}, []string{"mode"}),
		slotsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "suggested_slots_written_total",
			Help: "Suggested slot rows written",
		}, []string{"mode"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Notification deliveries by kind and outcome",
		}, []string{"kind", "outcome"}),
	}

	registry.MustRegister(
		m.requestDuration, m.requestTotal, m.cacheLookups, m.cacheLatency,
		m.generationDuration, m.slotsWritten, m.notifications,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
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

// ObserveHTTPRequest records request metrics.
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

// RecordCacheOperation records a cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
	atomic.AddUint64(&m.cacheMissCount, 1)
}

// ObserveSuggestionGeneration records one generation run.
func (m *MetricsService) ObserveSuggestionGeneration(force bool, slots int, duration time.Duration) {
	if m == nil {
		return
	}
	mode := "incremental"
	if force {
		mode = "rebuild"
	}
	m.generationDuration.WithLabelValues(mode).Observe(duration.Seconds())
	m.slotsWritten.WithLabelValues(mode).Add(float64(slots))
	atomic.AddUint64(&m.suggestionRuns, 1)
}

// RecordNotification counts a delivery attempt.
func (m *MetricsService) RecordNotification(kind models.NotificationKind, err error) {
	if m == nil {
		return
	}
	outcome := "sent"
	if err != nil {
		outcome = "failed"
		atomic.AddUint64(&m.notificationsFailed, 1)
	} else {
		atomic.AddUint64(&m.notificationsSent, 1)
	}
	m.notifications.WithLabelValues(string(kind), outcome).Inc()
}

// Snapshot returns aggregated counters.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var ratio float64
	if hits+misses > 0 {
		ratio = float64(hits) / float64(hits+misses)
	}
	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		CacheHits:                hits,
		CacheMisses:              misses,
		CacheHitRatio:            ratio,
		SuggestionRuns:           atomic.LoadUint64(&m.suggestionRuns),
		NotificationsSent:        atomic.LoadUint64(&m.notificationsSent),
		NotificationsFailed:      atomic.LoadUint64(&m.notificationsFailed),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
