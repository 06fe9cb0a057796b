// Package scheduler implements the dynamic batch-inference engine: a
// priority request queue, a time/size-triggered batch scheduler with
// dynamic sizing, a fixed worker pool dispatching to backend clients, an
// expiration sweeper, and live throughput metrics.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/BaSui01/batchflow/client"
	"github.com/BaSui01/batchflow/config"
	"github.com/BaSui01/batchflow/internal/metrics"
	"github.com/BaSui01/batchflow/internal/telemetry"
	"github.com/BaSui01/batchflow/types"
)

// State is the engine lifecycle state.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Engine owns all shared scheduling state and the background tasks that
// operate on it. Construct with NewEngine, call Start, submit work with
// Submit, and stop with Shutdown.
type Engine struct {
	cfg     config.SchedulerConfig
	clients []client.Client
	logger  *zap.Logger
	clock   func() time.Time
	tracer  trace.Tracer
	limiter *rate.Limiter

	promNamespace string
	prom          *metrics.Collector

	telemetryCfg *config.TelemetryConfig
	providers    *telemetry.Providers

	// queueMu guards the pending queue and the last-scheduled timestamp.
	queueMu       sync.Mutex
	queue         *requestQueue
	lastScheduled time.Time

	// batchMu guards the active-batches collection, including every
	// claimed flag inside it.
	batchMu sync.Mutex
	batches []*activeBatch

	stats *stats

	state  atomic.Int32
	cancel context.CancelFunc
	group  *errgroup.Group
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the zap logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithPrometheus enables Prometheus export under the given metric
// namespace. Optional; the collector registers on the default registerer
// when the engine starts.
func WithPrometheus(namespace string) Option {
	return func(e *Engine) { e.promNamespace = namespace }
}

// WithTelemetry enables OpenTelemetry export for dispatch traces. The SDK
// is initialized when the engine starts and flushed when it shuts down.
// When cfg.Enabled is false the engine keeps noop providers and never
// connects to a collector.
func WithTelemetry(cfg config.TelemetryConfig) Option {
	return func(e *Engine) { e.telemetryCfg = &cfg }
}

// WithClock overrides the time source. Test hook.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// NewEngine creates an engine over the given backend clients. The client
// list is fixed for the engine lifetime; workers select clients by
// round-robin on their worker index.
func NewEngine(cfg config.SchedulerConfig, clients []client.Client, opts ...Option) *Engine {
	e := &Engine{
		cfg:     cfg,
		clients: clients,
		logger:  zap.NewNop(),
		clock:   time.Now,
		tracer:  otel.Tracer("batchflow/scheduler"),
		queue:   newRequestQueue(cfg.MaxQueueSize),
		batches: make([]*activeBatch, 0, 8),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.stats = newStats(e.clock())
	if cfg.SubmitRate > 0 {
		burst := cfg.SubmitBurst
		if burst <= 0 {
			burst = int(cfg.SubmitRate)
			if burst < 1 {
				burst = 1
			}
		}
		e.limiter = rate.NewLimiter(rate.Limit(cfg.SubmitRate), burst)
	}
	return e
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Start validates configuration and spawns the background tasks: the
// expiration sweeper, the batch scheduler, the worker pool, and the
// metrics collector. Valid only from the Stopped state.
func (e *Engine) Start() error {
	if len(e.clients) == 0 {
		return types.NewError(types.ErrNoClients, "engine started with zero backend clients")
	}
	if err := e.cfg.Validate(); err != nil {
		return types.NewError(types.ErrInvalidConfig, "invalid scheduler config").WithCause(err)
	}
	if !e.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return types.NewError(types.ErrInvalidState, "start is only valid from the stopped state")
	}

	if e.promNamespace != "" && e.prom == nil {
		e.prom = metrics.NewCollector(e.promNamespace, e.logger)
	}
	if e.telemetryCfg != nil && e.providers == nil {
		p, err := telemetry.Init(*e.telemetryCfg, e.logger)
		if err != nil {
			e.state.Store(int32(StateStopped))
			return types.NewError(types.ErrInvalidConfig, "telemetry initialization failed").WithCause(err)
		}
		e.providers = p
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.group, ctx = errgroup.WithContext(ctx)

	e.queueMu.Lock()
	e.queue.reopen()
	e.lastScheduled = e.clock()
	e.queueMu.Unlock()

	e.group.Go(func() error { return e.sweepLoop(ctx) })
	e.group.Go(func() error { return e.scheduleLoop(ctx) })
	e.group.Go(func() error { return e.collectLoop(ctx) })
	for i := 0; i < e.cfg.WorkerCount; i++ {
		idx := i
		e.group.Go(func() error { return e.workerLoop(ctx, idx) })
	}

	e.state.Store(int32(StateRunning))
	e.logger.Info("engine started",
		zap.Int("workers", e.cfg.WorkerCount),
		zap.Int("clients", len(e.clients)),
		zap.Bool("dynamic_batching", e.cfg.EnableDynamicBatching),
	)
	return nil
}

// Submit enqueues one inference request and returns a handle the caller
// awaits for exactly one terminal outcome. Submit never blocks beyond
// enqueue time: a full queue or an exhausted rate limit fails immediately.
func (e *Engine) Submit(ctx context.Context, prompt string, params types.InferenceParams, priority types.Priority) (*Handle, error) {
	if e.State() != StateRunning {
		return nil, types.NewError(types.ErrShutdown, "engine is not running")
	}
	if e.limiter != nil && !e.limiter.Allow() {
		return nil, types.NewError(types.ErrRateLimited, "submission rate limit exceeded").WithRetryable(true)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := e.clock()
	req := &types.Request{
		ID:        uuid.NewString(),
		Prompt:    prompt,
		Params:    params,
		Priority:  priority,
		CreatedAt: now,
		Deadline:  now.Add(e.cfg.RequestTimeout),
		Reply:     make(chan types.Result, 1),
	}

	e.queueMu.Lock()
	if e.queue.closed {
		e.queueMu.Unlock()
		return nil, types.NewError(types.ErrShutdown, "engine shut down before the request was queued")
	}
	ok := e.queue.push(req)
	depth := e.queue.len()
	e.queueMu.Unlock()

	if !ok {
		return nil, types.NewError(types.ErrQueueFull, "request queue is full").WithRetryable(true)
	}

	e.stats.total.Add(1)
	if e.prom != nil {
		e.prom.RecordSubmit(priority.String())
		e.prom.SetQueueDepth(depth)
	}

	return &Handle{req: req}, nil
}

// Metrics returns a point-in-time snapshot of scheduler statistics.
func (e *Engine) Metrics() MetricsSnapshot {
	e.queueMu.Lock()
	depth := e.queue.len()
	e.queueMu.Unlock()

	e.batchMu.Lock()
	active := len(e.batches)
	e.batchMu.Unlock()

	return e.stats.snapshot(depth, active)
}

// Shutdown signals every background task to stop and waits for them. Valid
// only from the Running state. In-flight batches finish naturally;
// queued-but-unscheduled requests receive a shutdown failure.
//
// The context bounds how long Shutdown waits. When it expires first,
// Shutdown returns the context error and the engine stays in Stopping
// until the remaining workers finish their claimed batches; it then
// fails the leftover pending requests and reaches Stopped on its own.
func (e *Engine) Shutdown(ctx context.Context) error {
	if !e.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return types.NewError(types.ErrInvalidState, "shutdown is only valid from the running state")
	}

	e.cancel()

	done := make(chan error, 1)
	go func() { done <- e.group.Wait() }()

	select {
	case waitErr := <-done:
		e.finalize(ctx)
		return waitErr
	case <-ctx.Done():
		e.logger.Warn("shutdown wait abandoned, workers still draining", zap.Error(ctx.Err()))
		go func() {
			<-done
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			e.finalize(flushCtx)
		}()
		return ctx.Err()
	}
}

// finalize runs once all background tasks have exited: it fails whatever is
// still pending, flushes telemetry, and marks the engine stopped.
func (e *Engine) finalize(ctx context.Context) {
	e.failPending()
	if e.providers != nil {
		if err := e.providers.Shutdown(ctx); err != nil {
			e.logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
		e.providers = nil
	}
	e.state.Store(int32(StateStopped))
	e.logger.Info("engine stopped")
}

// failPending delivers a shutdown failure to every request still waiting in
// the queue or in an unclaimed batch, and closes the queue so a submitter
// that raced the lifecycle check cannot enqueue into a dead engine. Claimed
// batches were completed by their worker before it exited.
func (e *Engine) failPending() {
	e.queueMu.Lock()
	queued := e.queue.close()
	e.queueMu.Unlock()

	e.batchMu.Lock()
	var unclaimed []*activeBatch
	kept := e.batches[:0]
	for _, b := range e.batches {
		if b.claimed {
			kept = append(kept, b)
			continue
		}
		unclaimed = append(unclaimed, b)
	}
	e.batches = kept
	e.batchMu.Unlock()

	for _, b := range unclaimed {
		queued = append(queued, b.requests...)
	}
	for _, req := range queued {
		e.stats.failed.Add(1)
		deliver(req, types.Result{
			ID:  req.ID,
			Err: types.NewError(types.ErrShutdown, "engine shut down before the request was scheduled"),
		})
	}
	if len(queued) > 0 {
		e.logger.Info("pending requests failed on shutdown", zap.Int("count", len(queued)))
	}
}

// deliver writes the terminal outcome for a request. The reply channel has
// capacity 1 and each request is owned by exactly one delivery path, so the
// send never blocks. The channel is closed after the send.
func deliver(req *types.Request, res types.Result) {
	req.Reply <- res
	close(req.Reply)
}

// Handle is the caller's side of one submitted request.
type Handle struct {
	req *types.Request
}

// ID returns the request identifier.
func (h *Handle) ID() string { return h.req.ID }

// Done exposes the reply channel for select-based callers. It yields
// exactly one Result.
func (h *Handle) Done() <-chan types.Result { return h.req.Reply }

// Wait blocks until the terminal outcome arrives or ctx is canceled.
// Cancellation abandons the wait without disturbing engine bookkeeping;
// the engine still resolves the request internally.
func (h *Handle) Wait(ctx context.Context) (string, error) {
	select {
	case res, ok := <-h.req.Reply:
		if !ok {
			return "", types.NewError(types.ErrBackendFailure, "reply channel closed without a result")
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Text, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
