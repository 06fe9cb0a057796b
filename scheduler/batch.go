package scheduler

import (
	"time"

	"github.com/BaSui01/batchflow/config"
	"github.com/BaSui01/batchflow/types"
	"github.com/google/uuid"
)

// activeBatch is a scheduled group of requests assigned for dispatch.
// Claimed flips false→true exactly once, under the same mutex that scans
// for unclaimed batches, so only one worker ever owns a batch.
type activeBatch struct {
	id             string
	requests       []*types.Request
	startedAt      time.Time
	assignedWorker int
	claimed        bool
}

func newActiveBatch(requests []*types.Request, now time.Time) *activeBatch {
	return &activeBatch{
		id:             uuid.NewString(),
		requests:       requests,
		startedAt:      now,
		assignedWorker: -1,
	}
}

// shouldSchedule decides whether a batch is formed this tick: either enough
// work has accumulated, or a non-empty queue has waited long enough.
func shouldSchedule(queueLen int, sinceLast time.Duration, cfg *config.SchedulerConfig) bool {
	if queueLen == 0 {
		return false
	}
	if queueLen >= cfg.MinBatchSize {
		return true
	}
	return sinceLast >= cfg.BatchTimeout
}

// nextBatchSize picks the batch size for the current queue snapshot.
//
// With dynamic batching enabled:
//  1. Near-expiry requests override throughput: keep the batch small so it
//     dispatches fast.
//  2. A deep queue batches at the backend's throughput sweet spot.
//  3. Otherwise drain what is available, capped at MaxBatchSize.
//
// With dynamic batching disabled the size is always capped at MaxBatchSize.
func nextBatchSize(queueLen, urgent int, cfg *config.SchedulerConfig) int {
	if queueLen == 0 {
		return 0
	}

	if !cfg.EnableDynamicBatching {
		return min(queueLen, cfg.MaxBatchSize)
	}

	if urgent > 0 {
		return min(urgent, cfg.MinBatchSize)
	}
	if queueLen >= cfg.OptimalBatchSize {
		return cfg.OptimalBatchSize
	}
	return min(queueLen, cfg.MaxBatchSize)
}
