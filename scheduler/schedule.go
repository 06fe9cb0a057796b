package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// scheduleLoop periodically forms batches from the pending queue.
func (e *Engine) scheduleLoop(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.ScheduleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.scheduleOnce()
		}
	}
}

// scheduleOnce forms at most one batch: it checks the should-schedule rule,
// sizes the batch against the current queue snapshot, and moves the drained
// requests into a new unclaimed active batch.
func (e *Engine) scheduleOnce() {
	now := e.clock()

	e.queueMu.Lock()
	qlen := e.queue.len()
	if !shouldSchedule(qlen, now.Sub(e.lastScheduled), &e.cfg) {
		e.queueMu.Unlock()
		return
	}
	urgent := e.queue.urgentCount(now, e.cfg.UrgencyWindow)
	size := nextBatchSize(qlen, urgent, &e.cfg)
	drained := e.queue.drainUpTo(size)
	e.lastScheduled = now
	depth := e.queue.len()
	e.queueMu.Unlock()

	if len(drained) == 0 {
		return
	}

	b := newActiveBatch(drained, now)

	e.batchMu.Lock()
	e.batches = append(e.batches, b)
	active := len(e.batches)
	e.batchMu.Unlock()

	if e.prom != nil {
		e.prom.SetQueueDepth(depth)
		e.prom.SetActiveBatches(active)
	}
	e.logger.Debug("batch scheduled",
		zap.String("batch_id", b.id),
		zap.Int("size", len(drained)),
		zap.Int("urgent", urgent),
		zap.Int("queue_depth", depth),
	)
}

// collectLoop refreshes throughput once per second from the completed
// counter delta.
func (e *Engine) collectLoop(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.stats.sampleThroughput(e.clock())
		}
	}
}
