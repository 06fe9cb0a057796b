package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/batchflow/client"
	"github.com/BaSui01/batchflow/types"
)

// workerIdleDelay is how long a worker sleeps when no unclaimed batch is
// available.
const workerIdleDelay = 2 * time.Millisecond

// workerLoop claims unclaimed batches and dispatches them until shutdown.
// The backend client is fixed per worker: workerIndex mod clientCount.
func (e *Engine) workerLoop(ctx context.Context, idx int) error {
	cli := e.clients[idx%len(e.clients)]
	logger := e.logger.With(
		zap.Int("worker", idx),
		zap.String("client", cli.Name()),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		b := e.claimBatch(idx)
		if b == nil {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(workerIdleDelay):
			}
			continue
		}

		e.processBatch(b, cli, logger)
	}
}

// claimBatch atomically claims the first unclaimed active batch, if any.
// The claimed flag is inspected and flipped under batchMu, so at most one
// worker ever owns a given batch.
func (e *Engine) claimBatch(idx int) *activeBatch {
	e.batchMu.Lock()
	defer e.batchMu.Unlock()

	for _, b := range e.batches {
		if !b.claimed {
			b.claimed = true
			b.assignedWorker = idx
			return b
		}
	}
	return nil
}

// processBatch dispatches every request in the batch concurrently to the
// worker's client, delivers each outcome exactly once, then retires the
// batch. Failures are per-request: one bad dispatch never disturbs its
// siblings, and a panic is logged rather than killing the worker.
func (e *Engine) processBatch(b *activeBatch, cli client.Client, logger *zap.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("batch processing panicked",
				zap.String("batch_id", b.id),
				zap.Any("panic", r),
			)
		}
	}()

	start := e.clock()

	// In-flight work runs to natural completion even during shutdown, so
	// dispatch is not bound to the worker loop's context.
	ctx, span := e.tracer.Start(context.Background(), "batchflow.dispatch",
		trace.WithAttributes(
			attribute.String("batch.id", b.id),
			attribute.Int("batch.size", len(b.requests)),
			attribute.String("client", cli.Name()),
		),
	)
	defer span.End()

	results := make([]types.Result, len(b.requests))
	done := make(chan int, len(b.requests))
	for i, req := range b.requests {
		go func(i int, req *types.Request) {
			defer func() {
				if r := recover(); r != nil {
					results[i] = types.Result{
						ID: req.ID,
						Err: types.NewError(types.ErrBackendFailure,
							fmt.Sprintf("dispatch panicked: %v", r)).
							WithClient(cli.Name()),
					}
				}
				done <- i
			}()

			text, err := cli.Generate(ctx, req.Prompt, req.Params)
			if err != nil {
				results[i] = types.Result{
					ID: req.ID,
					Err: types.NewError(types.ErrBackendFailure, "inference request failed").
						WithCause(err).
						WithClient(cli.Name()),
				}
				return
			}
			results[i] = types.Result{ID: req.ID, Text: text}
		}(i, req)
	}
	for range b.requests {
		<-done
	}

	succeeded, failed := 0, 0
	for i, req := range b.requests {
		res := results[i]
		if res.Err != nil {
			failed++
			e.stats.failed.Add(1)
		} else {
			succeeded++
			e.stats.completed.Add(1)
		}
		if e.prom != nil {
			e.prom.RecordCompletion(cli.Name(), res.Err != nil)
		}
		deliver(req, res)
	}

	e.retireBatch(b)

	duration := e.clock().Sub(start)
	e.stats.recordBatch(len(b.requests), duration, e.clock())
	if e.prom != nil {
		e.prom.RecordBatch(len(b.requests), duration)
	}

	span.SetAttributes(
		attribute.Int("batch.succeeded", succeeded),
		attribute.Int("batch.failed", failed),
	)
	logger.Debug("batch processed",
		zap.String("batch_id", b.id),
		zap.Int("size", len(b.requests)),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed),
		zap.Duration("duration", duration),
	)
}

// retireBatch removes a finished batch from the shared collection. Batches
// are never reused.
func (e *Engine) retireBatch(b *activeBatch) {
	e.batchMu.Lock()
	for i, cur := range e.batches {
		if cur == b {
			e.batches = append(e.batches[:i], e.batches[i+1:]...)
			break
		}
	}
	active := len(e.batches)
	e.batchMu.Unlock()

	if e.prom != nil {
		e.prom.SetActiveBatches(active)
	}
}
