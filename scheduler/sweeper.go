package scheduler

import (
	"context"
	"time"

	"github.com/BaSui01/batchflow/types"
	"go.uber.org/zap"
)

// sweepLoop periodically removes queued requests past their deadline and
// delivers a timeout failure to each abandoned caller. Requests already
// inside an active batch are in flight and belong to the worker pool; the
// sweeper never touches them.
func (e *Engine) sweepLoop(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.sweepOnce()
		}
	}
}

func (e *Engine) sweepOnce() {
	now := e.clock()

	e.queueMu.Lock()
	expired := e.queue.removeExpired(now)
	depth := e.queue.len()
	e.queueMu.Unlock()

	if len(expired) == 0 {
		return
	}

	// Replies are delivered outside the lock; the requests left the queue
	// atomically above, so this path is their sole owner.
	for _, req := range expired {
		deliver(req, types.Result{
			ID: req.ID,
			Err: types.NewError(types.ErrTimeout, "request deadline elapsed before scheduling").
				WithRetryable(true),
		})
	}

	e.stats.expired.Add(int64(len(expired)))
	if e.prom != nil {
		e.prom.RecordExpired(len(expired))
		e.prom.SetQueueDepth(depth)
	}
	e.logger.Debug("expired requests swept",
		zap.Int("count", len(expired)),
		zap.Int("queue_depth", depth),
	)
}
