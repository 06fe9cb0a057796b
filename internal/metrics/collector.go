// Package metrics provides Prometheus metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector exports scheduler counters to Prometheus. It is
// observability-only: the scheduler never reads it back.
type Collector struct {
	requestsSubmitted *prometheus.CounterVec
	requestsCompleted *prometheus.CounterVec
	requestsFailed    *prometheus.CounterVec
	requestsExpired   prometheus.Counter

	batchesTotal  prometheus.Counter
	batchSize     prometheus.Histogram
	batchDuration prometheus.Histogram

	queueDepth    prometheus.Gauge
	activeBatches prometheus.Gauge

	logger *zap.Logger
}

// NewCollector creates a collector registered on the default registerer.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.requestsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_submitted_total",
			Help:      "Total number of submitted inference requests",
		},
		[]string{"priority"},
	)

	c.requestsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_completed_total",
			Help:      "Total number of successfully completed requests",
		},
		[]string{"client"},
	)

	c.requestsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_failed_total",
			Help:      "Total number of failed requests",
		},
		[]string{"client"},
	)

	c.requestsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_expired_total",
			Help:      "Total number of requests expired before scheduling",
		},
	)

	c.batchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Total number of dispatched batches",
		},
	)

	c.batchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of requests per dispatched batch",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		},
	)

	c.batchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Wall-clock batch processing duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	c.queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Current number of requests awaiting batch assignment",
		},
	)

	c.activeBatches = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_batches",
			Help:      "Current number of formed but unfinished batches",
		},
	)

	return c
}

// RecordSubmit records one submitted request.
func (c *Collector) RecordSubmit(priority string) {
	c.requestsSubmitted.WithLabelValues(priority).Inc()
}

// RecordCompletion records one terminal request outcome.
func (c *Collector) RecordCompletion(clientName string, failed bool) {
	if failed {
		c.requestsFailed.WithLabelValues(clientName).Inc()
		return
	}
	c.requestsCompleted.WithLabelValues(clientName).Inc()
}

// RecordExpired records requests removed by the expiration sweeper.
func (c *Collector) RecordExpired(n int) {
	c.requestsExpired.Add(float64(n))
}

// RecordBatch records one dispatched batch.
func (c *Collector) RecordBatch(size int, duration time.Duration) {
	c.batchesTotal.Inc()
	c.batchSize.Observe(float64(size))
	c.batchDuration.Observe(duration.Seconds())
}

// SetQueueDepth updates the queue depth gauge.
func (c *Collector) SetQueueDepth(depth int) {
	c.queueDepth.Set(float64(depth))
}

// SetActiveBatches updates the active batch gauge.
func (c *Collector) SetActiveBatches(n int) {
	c.activeBatches.Set(float64(n))
}
