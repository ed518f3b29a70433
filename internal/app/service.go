// Package service wires the scoring, aggregation and ranking engine behind
// the operations used by the HTTP API and the event ingest pipeline.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/okian/pulse/internal/adapters/mq/queue"
	"github.com/okian/pulse/internal/adapters/mq/worker"
	"github.com/okian/pulse/internal/adapters/repository"
	"github.com/okian/pulse/internal/domain/capacity"
	"github.com/okian/pulse/internal/domain/dedupe"
	"github.com/okian/pulse/internal/domain/scoring"
	"github.com/okian/pulse/internal/domain/types"
	"github.com/okian/pulse/pkg/logger"
	"github.com/okian/pulse/pkg/metrics"
)

// ErrNotStarted is returned by ingest calls before Start.
var ErrNotStarted = errors.New("service not started")

// SnapshotSink receives every leaderboard produced by a full recompute.
type SnapshotSink interface {
	Name() string
	Export(ctx context.Context, snapshots []types.Leaderboard) error
}

// Service implements the engine operations.
type Service struct {
	store      *repository.Store
	calculator *scoring.Calculator
	aggregator *capacity.Aggregator
	sinks      []SnapshotSink
	now        func() time.Time
	logger     logger.Logger

	// ingest pipeline, created by Start
	workerCount int
	queueSize   int
	dedupeSize  int
	deduper     dedupe.Deduper
	queue       *queue.InMemoryQueue
	pool        *worker.Pool

	recomputeInterval time.Duration
	recomputeOnStart  bool

	mu           sync.RWMutex
	started      bool
	cancel       context.CancelFunc
	materializer sync.WaitGroup

	recMu         sync.Mutex
	lastRecompute time.Time
	lastSnapshots int
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the backing store.
func WithStore(st *repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithCalculator sets the score calculator.
func WithCalculator(c *scoring.Calculator) Option {
	return func(s *Service) {
		if c != nil {
			s.calculator = c
		}
	}
}

// WithAggregator sets the capacity aggregator.
func WithAggregator(a *capacity.Aggregator) Option {
	return func(s *Service) {
		if a != nil {
			s.aggregator = a
		}
	}
}

// WithSinks adds snapshot sinks fed by RecomputeAll.
func WithSinks(sinks ...SnapshotSink) Option {
	return func(s *Service) {
		for _, sink := range sinks {
			if sink != nil {
				s.sinks = append(s.sinks, sink)
			}
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithWorkerCount sets the number of event workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the event queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the event-id deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithRecompute configures eager snapshot materialization. interval 0
// disables the periodic run.
func WithRecompute(interval time.Duration, onStart bool) Option {
	return func(s *Service) {
		if interval >= 0 {
			s.recomputeInterval = interval
		}
		s.recomputeOnStart = onStart
	}
}

// New constructs a Service. Synchronous operations work without Start.
func New(opts ...Option) *Service {
	s := &Service{
		store:       repository.NewStore(),
		calculator:  scoring.NewCalculator(),
		aggregator:  capacity.NewAggregator(),
		now:         func() time.Time { return time.Now().UTC() },
		logger:      logger.Discard(),
		workerCount: 4,
		queueSize:   10_000,
		dedupeSize:  100_000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store exposes the backing store for seeding.
func (s *Service) Store() *repository.Store {
	return s.store
}

// Start launches the ingest workers and the snapshot materializer.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.queue, worker.HandlerFunc(s.Apply),
		worker.WithCount(s.workerCount),
		worker.WithLogger(s.logger.Named("worker")),
	)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool.Start(runCtx)

	if s.recomputeOnStart {
		if _, err := s.RecomputeAll(ctx); err != nil {
			s.logger.Error(ctx, "initial leaderboard recompute failed", logger.Error(err))
		}
	}
	if s.recomputeInterval > 0 {
		s.materializer.Add(1)
		go s.materialize(runCtx)
	}

	s.started = true
	s.logger.Info(ctx, "pulse service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
		logger.Duration("recompute_interval", s.recomputeInterval),
		logger.Int("sinks", len(s.sinks)),
	)
	return nil
}

// materialize rebuilds all snapshots on every tick until ctx ends.
func (s *Service) materialize(ctx context.Context) {
	defer s.materializer.Done()
	ticker := time.NewTicker(s.recomputeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RecomputeAll(ctx); err != nil {
				s.logger.Error(ctx, "periodic leaderboard recompute failed", logger.Error(err))
			}
		}
	}
}

// Stop closes the queue, lets workers drain it and closes the sinks.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping pulse service")

	var errs []error
	_ = s.queue.Close()
	if err := s.pool.Wait(ctx); err != nil {
		errs = append(errs, err)
	}
	s.cancel()
	s.materializer.Wait()

	for _, sink := range s.sinks {
		if c, ok := sink.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close sink %s: %w", sink.Name(), err))
			}
		}
	}
	s.started = false
	return errors.Join(errs...)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"store":       s.store.Stats(),
	}
	s.recMu.Lock()
	stats["snapshots"] = s.lastSnapshots
	if !s.lastRecompute.IsZero() {
		stats["lastRecompute"] = s.lastRecompute
	}
	s.recMu.Unlock()
	if s.started {
		processed, failed := s.pool.Stats()
		stats["queueLength"] = s.queue.Len()
		stats["dedupeEntries"] = s.deduper.Size()
		stats["eventsProcessed"] = processed
		stats["eventsFailed"] = failed
		metrics.UpdateQueueSize(s.queue.Len())
	}
	return stats
}
