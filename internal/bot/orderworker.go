package bot

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tradeengine/internal/broker"
	"tradeengine/pkg/ratelimit"
	"tradeengine/pkg/retry"
)

// orderJob is one unit of work submitted to the Order Worker: a
// closure over the broker call to make, plus a channel to deliver its
// result back to the caller. run returns an untyped value so the same
// queue serializes every broker call the engine makes (PlaceOrder,
// Profile, Positions) behind one consumer, not just order placement;
// callers type-assert the result back to their expected shape.
type orderJob struct {
	ctx    context.Context
	run    func(ctx context.Context) (interface{}, error)
	result chan<- orderResult
}

type orderResult struct {
	value interface{}
	err   error
}

// OrderWorker is the single consumer through which every broker call
// (quotes excepted, which callers issue directly) is serialized. The
// tick loop and the Entry/Exit Paths never call the broker directly;
// they enqueue a job and wait on its result channel, so one slow or
// rate-limited broker round trip never blocks the hot path for other
// symbols.
type OrderWorker struct {
	adapter   broker.Adapter
	limiter   *ratelimit.RateLimiter
	retryCfg  retry.Config
	logger    *zap.Logger

	jobs chan orderJob
	done chan struct{}
}

// OrderWorkerConfig controls throttling and retry behavior. Rate and
// Burst follow the broker's documented request budget; RetryConfig
// governs how PlaceOrder failures are retried before being surfaced
// to the caller as a hard failure.
type OrderWorkerConfig struct {
	Rate        float64
	Burst       float64
	RetryConfig retry.Config
	QueueDepth  int
}

// DefaultOrderWorkerConfig matches the broker throttle the engine is
// specified against: at most ~1 request per 800ms sustained, small
// burst allowance, aggressive retry on transient failures since a
// stuck entry/exit order is the costliest possible failure mode.
func DefaultOrderWorkerConfig() OrderWorkerConfig {
	return OrderWorkerConfig{
		Rate:        1.25, // ~1 req / 800ms
		Burst:       3,
		RetryConfig: retry.AggressiveConfig(),
		QueueDepth:  256,
	}
}

// NewOrderWorker builds a worker bound to adapter. Call Run in its own
// goroutine to start draining the queue.
func NewOrderWorker(adapter broker.Adapter, cfg OrderWorkerConfig, logger *zap.Logger) *OrderWorker {
	return &OrderWorker{
		adapter:  adapter,
		limiter:  ratelimit.NewRateLimiter(cfg.Rate, cfg.Burst),
		retryCfg: cfg.RetryConfig,
		logger:   logger,
		jobs:     make(chan orderJob, cfg.QueueDepth),
		done:     make(chan struct{}),
	}
}

// Run drains the job queue until ctx is cancelled. It is meant to run
// in exactly one goroutine for the lifetime of the process.
func (w *OrderWorker) Run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-w.jobs:
			w.process(job)
		}
	}
}

func (w *OrderWorker) process(job orderJob) {
	if err := w.limiter.Wait(job.ctx); err != nil {
		job.result <- orderResult{err: fmt.Errorf("order worker: rate limiter: %w", err)}
		return
	}

	cfg := w.retryCfg
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		w.logger.Warn("broker call retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}

	value, err := retry.DoWithResult(job.ctx, func() (interface{}, error) {
		return job.run(job.ctx)
	}, cfg)

	job.result <- orderResult{value: value, err: err}
}

// submit enqueues run and blocks until it completes or ctx is done.
func (w *OrderWorker) submit(ctx context.Context, run func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	result := make(chan orderResult, 1)
	select {
	case w.jobs <- orderJob{ctx: ctx, run: run, result: result}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-result:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PlaceOrder submits an order through the worker, serialized behind
// every other in-flight broker call.
func (w *OrderWorker) PlaceOrder(ctx context.Context, req broker.OrderRequest) (string, error) {
	v, err := w.submit(ctx, func(ctx context.Context) (interface{}, error) {
		return w.adapter.PlaceOrder(ctx, req)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Profile fetches the authenticated account's identity and margin
// through the worker. Like PlaceOrder, this keeps the broker's
// documented request budget honest (§5): Profile/Positions share the
// same rate limiter and serialized queue PlaceOrder uses, rather than
// bypassing it via a direct adapter call.
func (w *OrderWorker) Profile(ctx context.Context) (*broker.Profile, error) {
	v, err := w.submit(ctx, func(ctx context.Context) (interface{}, error) {
		return w.adapter.Profile(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*broker.Profile), nil
}

// Positions fetches the account's current open positions through the
// worker, serialized behind every other in-flight broker call.
func (w *OrderWorker) Positions(ctx context.Context) ([]broker.Position, error) {
	v, err := w.submit(ctx, func(ctx context.Context) (interface{}, error) {
		return w.adapter.Positions(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]broker.Position), nil
}
