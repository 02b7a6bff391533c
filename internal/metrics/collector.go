// Package metrics provides internal metrics collection.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector registers and records service metrics.
type Collector struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	generationsTotal    *prometheus.CounterVec
	generationDuration  *prometheus.HistogramVec
	generationsInFlight prometheus.Gauge

	downloadsTotal       *prometheus.CounterVec
	downloadBytesServed  prometheus.Counter
	artifactsCleanedUp   prometheus.Counter
	backendInitFailures  *prometheus.CounterVec

	registry *prometheus.Registry
	logger   *zap.Logger
}

// NewCollector creates a collector with its own registry.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	c := &Collector{
		registry: registry,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.generationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Total number of 3D generation requests",
		},
		[]string{"backend", "status"},
	)

	c.generationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Remote generation duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"backend"},
	)

	c.generationsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "generations_in_flight",
			Help:      "Number of generations currently running",
		},
	)

	c.downloadsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Total number of artifact download requests",
		},
		[]string{"status"},
	)

	c.downloadBytesServed = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_bytes_served_total",
			Help:      "Total artifact bytes served",
		},
	)

	c.artifactsCleanedUp = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_cleaned_up_total",
			Help:      "Total artifact files deleted after serving",
		},
	)

	c.backendInitFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_init_failures_total",
			Help:      "Total backend client initialization failures",
		},
		[]string{"backend"},
	)

	return c
}

// Registry returns the underlying registry for the /metrics handler.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordHTTPRequest records a completed HTTP request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, httpStatusLabel(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// RecordGeneration records a completed generation attempt.
func (c *Collector) RecordGeneration(backend, status string, duration time.Duration) {
	c.generationsTotal.WithLabelValues(backend, status).Inc()
	c.generationDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// GenerationStarted marks a generation in flight.
func (c *Collector) GenerationStarted() { c.generationsInFlight.Inc() }

// GenerationFinished removes a generation from the in-flight gauge.
func (c *Collector) GenerationFinished() { c.generationsInFlight.Dec() }

// RecordDownload records a download attempt and the bytes served on success.
func (c *Collector) RecordDownload(status string, bytesServed int64) {
	c.downloadsTotal.WithLabelValues(status).Inc()
	if bytesServed > 0 {
		c.downloadBytesServed.Add(float64(bytesServed))
	}
}

// RecordCleanup records a successful artifact file deletion.
func (c *Collector) RecordCleanup() { c.artifactsCleanedUp.Inc() }

// RecordBackendInitFailure records a failed backend client initialization.
func (c *Collector) RecordBackendInitFailure(backend string) {
	c.backendInitFailures.WithLabelValues(backend).Inc()
}

func httpStatusLabel(status int) string {
	switch {
	case status < 200:
		return "1xx"
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
