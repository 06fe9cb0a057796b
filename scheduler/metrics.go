package scheduler

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricsSnapshot is a point-in-time view of scheduler statistics.
// Observability-only: nothing in the scheduler depends on it for
// correctness.
type MetricsSnapshot struct {
	TotalRequests     int64         `json:"total_requests"`
	CompletedRequests int64         `json:"completed_requests"`
	FailedRequests    int64         `json:"failed_requests"`
	ExpiredRequests   int64         `json:"expired_requests"`
	TotalBatches      int64         `json:"total_batches"`
	AvgBatchSize      float64       `json:"avg_batch_size"`
	AvgProcessingTime time.Duration `json:"avg_processing_time"`
	ThroughputPerSec  float64       `json:"throughput_per_sec"`
	QueueDepth        int           `json:"queue_depth"`
	ActiveBatches     int           `json:"active_batches"`
	LastUpdated       time.Time     `json:"last_updated"`
}

// stats accumulates counters and moving averages. Counters are lock-free;
// the derived averages share one small mutex because they are only touched
// on batch completion and on the 1s collector tick.
type stats struct {
	total     atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	expired   atomic.Int64

	mu            sync.Mutex
	totalBatches  int64
	avgBatchSize  float64
	avgProcessing time.Duration
	throughput    float64
	lastUpdated   time.Time

	// throughput sampling state
	lastSampleCount int64
	lastSampleAt    time.Time
}

func newStats(now time.Time) *stats {
	return &stats{
		lastUpdated:  now,
		lastSampleAt: now,
	}
}

// recordBatch folds one finished batch into the moving averages using an
// exponential moving average with weight 1/totalBatches. The first sample
// fully replaces the zero initialization.
func (s *stats) recordBatch(size int, duration time.Duration, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalBatches++
	w := 1.0 / float64(s.totalBatches)
	s.avgBatchSize = s.avgBatchSize*(1-w) + float64(size)*w
	s.avgProcessing = time.Duration(float64(s.avgProcessing)*(1-w) + float64(duration)*w)
	s.lastUpdated = now
}

// sampleThroughput recomputes requests/second from the completed-counter
// delta since the previous sample.
func (s *stats) sampleThroughput(now time.Time) {
	completed := s.completed.Load()

	s.mu.Lock()
	defer s.mu.Unlock()

	elapsed := now.Sub(s.lastSampleAt).Seconds()
	if elapsed <= 0 {
		return
	}
	s.throughput = float64(completed-s.lastSampleCount) / elapsed
	s.lastSampleCount = completed
	s.lastSampleAt = now
	s.lastUpdated = now
}

// snapshot captures the current statistics. Queue depth and active batch
// count are owned by the engine and passed in.
func (s *stats) snapshot(queueDepth, activeBatches int) MetricsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return MetricsSnapshot{
		TotalRequests:     s.total.Load(),
		CompletedRequests: s.completed.Load(),
		FailedRequests:    s.failed.Load(),
		ExpiredRequests:   s.expired.Load(),
		TotalBatches:      s.totalBatches,
		AvgBatchSize:      s.avgBatchSize,
		AvgProcessingTime: s.avgProcessing,
		ThroughputPerSec:  s.throughput,
		QueueDepth:        queueDepth,
		ActiveBatches:     activeBatches,
		LastUpdated:       s.lastUpdated,
	}
}
