// Package worker applies queued attempt events with a fixed pool of
// goroutines. Events of one attempt always land on the same worker, in
// queue order.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/pulse/internal/adapters/mq/queue"
	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/pkg/logger"
	"github.com/okian/pulse/pkg/metrics"
)

const (
	defaultWorkerCount = 4
	laneBuffer         = 64
)

// Handler applies one event to the engine.
type Handler interface {
	Apply(ctx context.Context, e model.Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, e model.Event) error

// Apply implements Handler.
func (f HandlerFunc) Apply(ctx context.Context, e model.Event) error { return f(ctx, e) }

// Source is the read side of the queue.
type Source interface {
	Dequeue() <-chan queue.Item
}

// doneReporter is implemented by queues that track per-item latency.
type doneReporter interface {
	Done(queue.Item)
}

// Pool runs workers that drain the queue until it is closed.
type Pool struct {
	source  Source
	handler Handler
	count   int
	logger  logger.Logger

	active    atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64

	wg      sync.WaitGroup
	started atomic.Bool
}

// NewPool creates a worker pool with configuration options.
func NewPool(source Source, handler Handler, opts ...Option) *Pool {
	p := &Pool{
		source:  source,
		handler: handler,
		count:   defaultWorkerCount,
		logger:  logger.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	metrics.UpdateWorkerCount(p.count)
	metrics.UpdateWorkerActiveCount(0)
	return p
}

// Start launches the workers and the dispatcher feeding them. They stop
// when ctx is cancelled or the queue is closed and drained. Calling Start
// twice is a no-op.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	lanes := make([]chan queue.Item, p.count)
	for i := range lanes {
		lanes[i] = make(chan queue.Item, laneBuffer)
		p.wg.Add(1)
		go p.run(ctx, lanes[i], p.logger.With(logger.String("worker", strconv.Itoa(i))))
	}
	p.wg.Add(1)
	go p.dispatch(ctx, lanes)
}

// dispatch routes each item to the lane owned by its attempt so SUBMIT,
// VALIDATE and REJECT for one attempt apply in order.
func (p *Pool) dispatch(ctx context.Context, lanes []chan queue.Item) {
	defer p.wg.Done()
	defer func() {
		for _, lane := range lanes {
			close(lane)
		}
	}()
	items := p.source.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case it, ok := <-items:
			if !ok {
				return
			}
			select {
			case lanes[Lane(it.Event.AttemptID, len(lanes))] <- it:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Lane picks the worker for an attempt id among n workers.
func Lane(attemptID string, n int) int {
	return int(xxhash.Sum64String(attemptID) % uint64(n))
}

func (p *Pool) run(ctx context.Context, lane <-chan queue.Item, log logger.Logger) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case it, ok := <-lane:
			if !ok {
				return
			}
			p.process(ctx, log, it)
		}
	}
}

func (p *Pool) process(ctx context.Context, log logger.Logger, it queue.Item) {
	metrics.UpdateWorkerActiveCount(int(p.active.Add(1)))
	defer func() {
		metrics.UpdateWorkerActiveCount(int(p.active.Add(-1)))
		if d, ok := p.source.(doneReporter); ok {
			d.Done(it)
		}
	}()

	start := time.Now()
	if err := p.handler.Apply(ctx, it.Event); err != nil {
		p.failed.Add(1)
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "apply")
		log.Warn(ctx, "event not applied",
			logger.String("event_id", it.Event.EventID),
			logger.String("type", string(it.Event.Type)),
			logger.String("attempt_id", it.Event.AttemptID),
			logger.Error(err),
		)
		return
	}
	p.processed.Add(1)
	metrics.RecordEventIngested(string(it.Event.Type))
	log.Debug(ctx, "event applied",
		logger.String("event_id", it.Event.EventID),
		logger.Duration("took", time.Since(start)),
	)
}

// Stats reports processed and failed event counts.
func (p *Pool) Stats() (processed, failed int64) {
	return p.processed.Load(), p.failed.Load()
}

// Wait blocks until every worker has returned or ctx ends. Close the queue
// first so workers can drain and exit.
func (p *Pool) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		p.logger.Warn(ctx, "worker shutdown timed out")
		return fmt.Errorf("worker shutdown: %w", ctx.Err())
	}
}
