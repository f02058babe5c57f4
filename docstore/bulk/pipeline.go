// Package bulk provides a backpressure-aware batching pipeline that
// accumulates individual mutation operations and flushes them through a
// backend's server-side bulk-execute primitive, adaptively resizing the
// batch on overload. Exactly one batch is in flight at a time, bounding
// backend-side contention.
package bulk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arthur-debert/docstore/docstore/backend"
	"github.com/arthur-debert/docstore/docstore/metrics"
	"github.com/arthur-debert/docstore/docstore/retry"
	"go.uber.org/zap"
)

// Defaults for the adaptive batching policy.
const (
	// DefaultBatchSize is the initial number of operations per flush.
	DefaultBatchSize = 5000

	// DefaultGrowThreshold: a flush that processes more than this many
	// operations in one call grows the next batch by 5%.
	DefaultGrowThreshold = 100

	// DefaultStagingCapacity bounds the staging channel; Submit blocks
	// (backpressure) when the consumer falls behind by this much.
	DefaultStagingCapacity = 10000

	// DefaultMaxAttempts caps retries of a single batch flush.
	DefaultMaxAttempts = 20
)

// ErrClosed is returned by Submit after Close or Abort.
var ErrClosed = errors.New("bulk: pipeline closed")

// ErrAborted is the pipeline error after Abort.
var ErrAborted = errors.New("bulk: pipeline aborted")

// Executor applies one batch server-side and reports how many of the
// submitted operations were actually processed. Processing only a prefix
// is allowed; the pipeline resubmits the remainder.
type Executor func(ctx context.Context, ops []backend.Operation) (processed int, err error)

// Pipeline is a bounded-staging → fixed-size-batch → single-consumer
// pipeline. Completion is two-phase: Close stops intake, then waits for
// the consumer to drain everything already accepted. Abort cancels
// in-flight work and drops whatever was staged but not flushed.
//
// Submit must not be called concurrently with or after Close; producers
// coordinate their completion signal the way they would for closing a
// channel. Abort may be called at any time.
type Pipeline struct {
	exec          Executor
	logger        *zap.Logger
	batchSize     int
	growThreshold int
	maxAttempts   int
	delay         retry.DelayFunc

	staging   chan backend.Operation
	done      chan struct{} // consumer exited
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu      sync.Mutex
	closed  bool
	err     error
	dropped int // operations accepted but never committed
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithBatchSize sets the initial batch size.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) { p.batchSize = n }
}

// WithGrowThreshold sets the processed-count above which the batch grows.
func WithGrowThreshold(n int) Option {
	return func(p *Pipeline) { p.growThreshold = n }
}

// WithStagingCapacity sets the staging channel capacity.
func WithStagingCapacity(n int) Option {
	return func(p *Pipeline) { p.staging = make(chan backend.Operation, n) }
}

// WithRetry sets the per-batch retry cap and throttle delay strategy.
func WithRetry(maxAttempts int, delay retry.DelayFunc) Option {
	return func(p *Pipeline) {
		p.maxAttempts = maxAttempts
		p.delay = delay
	}
}

// WithLogger sets the logger; the default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// New starts a pipeline flushing through exec. The consumer goroutine runs
// until Close drains it or Abort cancels it.
func New(exec Executor, opts ...Option) *Pipeline {
	p := &Pipeline{
		exec:          exec,
		logger:        zap.NewNop(),
		batchSize:     DefaultBatchSize,
		growThreshold: DefaultGrowThreshold,
		maxAttempts:   DefaultMaxAttempts,
		delay:         retry.Exponential(50*time.Millisecond, 5*time.Second),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.staging == nil {
		p.staging = make(chan backend.Operation, DefaultStagingCapacity)
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.run(ctx)
	return p
}

// Submit stages one operation, blocking for backpressure when the staging
// channel is full. It fails with ErrClosed after Close or Abort, with the
// pipeline's fatal error once the consumer has died, and with ctx.Err on
// caller cancellation.
func (p *Pipeline) Submit(ctx context.Context, op backend.Operation) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.mu.Unlock()
	select {
	case p.staging <- op:
		return nil
	case <-p.done:
		if err := p.Err(); err != nil {
			return err
		}
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting operations, waits for everything already accepted
// to be flushed, and returns the pipeline's fatal error, if any. The wait
// is bounded by ctx; cancelling ctx abandons the wait while the consumer
// keeps draining in the background. Close must not be called concurrently
// with Submit: producers stop submitting first, the same discipline as
// closing a channel.
func (p *Pipeline) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.closeOnce.Do(func() { close(p.staging) })
	select {
	case <-p.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return p.Err()
}

// Abort cancels in-flight work and drops queued-but-unflushed operations.
// It blocks until the consumer has stopped.
func (p *Pipeline) Abort() {
	p.mu.Lock()
	p.closed = true
	if p.err == nil {
		p.err = ErrAborted
	}
	p.mu.Unlock()
	p.cancel()
	<-p.done
}

// Err returns the pipeline's fatal error, wrapped with the number of
// accepted-but-uncommitted operations when that number is known.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil {
		return nil
	}
	if p.dropped > 0 {
		return fmt.Errorf("bulk: %d operations not committed: %w", p.dropped, p.err)
	}
	return p.err
}

// fail records the consumer's fatal error and how many operations of the
// current batch it will never commit.
func (p *Pipeline) fail(err error, unflushed int) {
	p.mu.Lock()
	if p.err == nil {
		p.err = err
	}
	p.dropped += unflushed
	p.mu.Unlock()
}

// run is the single consumer: gather up to batchSize operations, flush,
// repeat until the staging channel is drained and closed, the context is
// cancelled, or a flush fails fatally. Operations still staged when the
// consumer stops early are counted as dropped.
func (p *Pipeline) run(ctx context.Context) {
	defer close(p.done)
	size := p.batchSize
	metrics.BulkBatchSize.Set(float64(size))
	failed := false
	for {
		batch, open := p.gather(ctx, size)
		if len(batch) > 0 {
			if err := p.flush(ctx, batch, &size); err != nil {
				p.fail(err, len(batch))
				failed = true
				break
			}
		}
		if !open {
			break
		}
	}
	if failed || ctx.Err() != nil {
		p.mu.Lock()
		p.dropped += len(p.staging)
		p.mu.Unlock()
	}
}

// gather blocks for the first operation, then fills the batch with
// whatever is immediately available, up to size items.
func (p *Pipeline) gather(ctx context.Context, size int) (batch []backend.Operation, open bool) {
	select {
	case op, ok := <-p.staging:
		if !ok {
			return nil, false
		}
		batch = append(batch, op)
	case <-ctx.Done():
		return nil, false
	}
	for len(batch) < size {
		select {
		case op, ok := <-p.staging:
			if !ok {
				return batch, false
			}
			batch = append(batch, op)
		default:
			return batch, true
		}
	}
	return batch, true
}

// flush commits a gathered batch, resubmitting unprocessed remainders and
// adapting the batch size: +5% after a flush that processed more than the
// grow threshold, -30% (then retry the same remainder) on
// payload-too-large or timeout. Any non-retryable classifier outcome is
// fatal for the whole pipeline, not just this batch.
func (p *Pipeline) flush(ctx context.Context, batch []backend.Operation, size *int) error {
	remaining := batch
	attempts := 0
	for len(remaining) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := len(remaining)
		if n > *size {
			n = *size
		}
		processed, err := p.exec(ctx, remaining[:n])
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			attempts++
			code, _ := backend.CodeOf(err)
			switch {
			case code == backend.StatusTooLarge || code == backend.StatusTimeout:
				*size = shrink(*size)
				metrics.BulkBatchSize.Set(float64(*size))
				metrics.BulkFlushes.WithLabelValues("shrink").Inc()
				p.logger.Debug("shrinking bulk batch",
					zap.Stringer("status", code),
					zap.Int("batch_size", *size))
			case backend.ShouldRetry(err):
				metrics.BulkFlushes.WithLabelValues("retry").Inc()
				if !p.sleep(ctx, p.delay(attempts, err)) {
					return ctx.Err()
				}
			default:
				metrics.BulkFlushes.WithLabelValues("fatal").Inc()
				return backend.Classify(err)
			}
			if attempts >= p.maxAttempts {
				return backend.Classify(err)
			}
			continue
		}
		if processed <= 0 {
			// A successful call that made no progress would loop forever.
			return fmt.Errorf("bulk: backend reported no progress on a batch of %d", n)
		}
		if processed > n {
			processed = n
		}
		attempts = 0
		metrics.BulkFlushes.WithLabelValues("ok").Inc()
		if processed > p.growThreshold {
			*size = grow(*size)
			metrics.BulkBatchSize.Set(float64(*size))
		}
		remaining = remaining[processed:]
	}
	return nil
}

// sleep waits d, returning false when the context is cancelled first.
func (p *Pipeline) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func grow(size int) int {
	next := size + size*5/100
	if next == size {
		next = size + 1
	}
	return next
}

func shrink(size int) int {
	next := size - size*30/100
	if next < 1 {
		next = 1
	}
	return next
}
