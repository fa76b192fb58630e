package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dispatch gate outcomes recorded by RecordDispatchDecision.
const (
	DispatchOutcomeClean          = "clean"
	DispatchOutcomeOverride       = "override"
	DispatchOutcomeBlocked        = "blocked"
	DispatchOutcomeReasonRequired = "reason_required"
	DispatchOutcomeInactive       = "inactive"
)

// MetricsService encapsulates Prometheus instrumentation for the API and jobs.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	cacheWrite      prometheus.Observer
	snapshots       *prometheus.CounterVec
	dispatch        *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	verifications   *prometheus.CounterVec
	sweepDuration   prometheus.Observer
	certExpired     prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snapshot_cache_hits_total",
		Help: "Sealed snapshot cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snapshot_cache_misses_total",
		Help: "Sealed snapshot cache misses",
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "snapshot_cache_write_seconds",
		Help:    "Latency for snapshot cache writes",
		Buckets: prometheus.DefBuckets,
	})

	snapshots := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "compliance_snapshots_total",
		Help: "Snapshots sealed by source and status",
	}, []string{"source", "status"})

	dispatch := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_gate_decisions_total",
		Help: "Dispatch compliance gate decisions by outcome",
	}, []string{"outcome"})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Outbound notifications by channel and final status",
	}, []string{"channel", "status"})

	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "verification_lookups_total",
		Help: "Public verification token lookups by result",
	}, []string{"result"})

	sweepDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "compliance_sweep_duration_seconds",
		Help:    "Duration of scheduled status refresh sweeps",
		Buckets: []float64{1, 5, 15, 60, 300, 900, 1800},
	})

	certExpired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "certifications_expired_total",
		Help: "Certifications observed transitioning into EXPIRED",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheHits, cacheMisses, cacheWrite, snapshots, dispatch, notifications, verifications, sweepDuration, certExpired, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		cacheWrite:      cacheWrite,
		snapshots:       snapshots,
		dispatch:        dispatch,
		notifications:   notifications,
		verifications:   verifications,
		sweepDuration:   sweepDuration,
		certExpired:     certExpired,
	}
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a snapshot cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
		return
	}
	m.cacheMisses.Inc()
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordSnapshot counts a committed snapshot.
func (m *MetricsService) RecordSnapshot(source, status string) {
	if m == nil {
		return
	}
	m.snapshots.WithLabelValues(source, status).Inc()
}

// RecordDispatchDecision counts a gate outcome.
func (m *MetricsService) RecordDispatchDecision(outcome string) {
	if m == nil {
		return
	}
	m.dispatch.WithLabelValues(outcome).Inc()
}

// RecordNotification counts a final notification outcome.
func (m *MetricsService) RecordNotification(channel, status string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(channel, status).Inc()
}

// RecordVerification counts a public token lookup.
func (m *MetricsService) RecordVerification(result string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(result).Inc()
}

// ObserveSweep records how long a refresh sweep took.
func (m *MetricsService) ObserveSweep(duration time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(duration.Seconds())
}

// RecordCertificationExpired counts CERT_EXPIRED transitions.
func (m *MetricsService) RecordCertificationExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.certExpired.Add(float64(n))
}
