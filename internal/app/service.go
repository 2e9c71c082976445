// Package service wires the snapshot store, extractor, queue and worker
// pool into the tackle feature service used by the HTTP API and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	eventqueue "github.com/okian/tackle/internal/adapters/mq/queue"
	workerpool "github.com/okian/tackle/internal/adapters/mq/worker"
	"github.com/okian/tackle/internal/adapters/repository"
	"github.com/okian/tackle/internal/adapters/sink"
	"github.com/okian/tackle/internal/domain/dedupe"
	"github.com/okian/tackle/internal/domain/features"
	"github.com/okian/tackle/internal/domain/model"
	"github.com/okian/tackle/pkg/logger"
	"github.com/okian/tackle/pkg/metrics"
)

// Service owns the pipeline components. Several runs may share it
// concurrently; their jobs are told apart by run id.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      *repository.SnapshotStore
	deduper    dedupe.Deduper
	eventQueue *eventqueue.InMemoryQueue
	extractor  *features.SnapshotExtractor
	workerPool *workerpool.Pool
	sink       sink.Sink

	// Configuration
	workerCount int
	queueSize   int
	dedupeSize  int
	shardCount  int
	featureOpts []features.Option

	// State
	started bool
	stopCh  chan struct{}
	runs    sync.Map // run id -> *batch

	failMu       sync.Mutex
	lastFailures []Failure

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU(),
		queueSize:   10000,
		dedupeSize:  50000,
		shardCount:  repository.DefaultShardCount,
		stopCh:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting tackle feature service...")

	s.store = repository.NewSnapshotStore(ctx, repository.WithShardCount(s.shardCount))
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.eventQueue = eventqueue.NewInMemoryQueue(
		eventqueue.WithCapacity(s.queueSize),
	)
	s.extractor = features.NewSnapshotExtractor(s.store, s.featureOpts...)

	// The service is both the pool's sink and its tracker so it can route
	// results back to the run that submitted them.
	s.workerPool = workerpool.NewPool(s.workerCount, s.eventQueue, s.extractor, s, s)
	s.workerPool.Start(ctx)

	s.stopCh = make(chan struct{})
	s.started = true
	s.logger.Info(ctx, "tackle feature service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("shards", s.shardCount),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	if err := s.Shutdown(context.Background()); err != nil && s.logger != nil {
		s.logger.Error(context.Background(), "service shutdown", logger.Error(err))
	}
}

// Shutdown drains the queue, stops the workers and closes the store and
// the sink. The first error is returned.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info(ctx, "stopping tackle feature service...")

	var errs []error
	if s.workerPool != nil {
		errs = append(errs, s.workerPool.Shutdown(ctx))
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if s.sink != nil {
		errs = append(errs, s.sink.Close())
	}

	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}

	s.started = false
	s.logger.Info(ctx, "tackle feature service stopped")
	return errors.Join(errs...)
}

// LoadSnapshot indexes tracking rows so events can be extracted against
// them. It may be called again to add further rows.
func (s *Service) LoadSnapshot(ctx context.Context, rows []model.PlayerRow) error {
	store, err := s.snapshotStore()
	if err != nil {
		return err
	}
	start := time.Now()
	if err := store.Add(ctx, rows...); err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	s.logger.Info(ctx, "snapshot loaded",
		logger.Int("rows", len(rows)),
		logger.Int("groups", store.Count(ctx)),
		logger.Duration("took", time.Since(start)),
	)
	return nil
}

// Extract computes the features of a single event synchronously.
func (s *Service) Extract(ctx context.Context, event model.TackleEvent) (model.FeatureVector, error) {
	s.mu.RLock()
	ex, started := s.extractor, s.started
	s.mu.RUnlock()
	if !started {
		return model.FeatureVector{}, ErrNotStarted
	}
	return ex.Extract(ctx, event)
}

// SeenAndRecord atomically checks if an event id was seen and records it if not.
// Returns true if the event was already seen, false if it was newly recorded.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordEventDuplicate()
	}
	return seen
}

// Unrecord removes an event ID from the seen list, allowing it to be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Failures returns the failures of the most recently finished run.
func (s *Service) Failures() []Failure {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	out := make([]Failure, len(s.lastFailures))
	copy(out, s.lastFailures)
	return out
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"shardCount":  s.shardCount,
	}

	if s.started {
		queueLen := s.eventQueue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["snapshotGroups"] = s.store.Count(ctx)
		stats["snapshotRows"] = s.store.Rows(ctx)
		stats["processed"] = s.workerPool.Processed()
		stats["seenEvents"] = s.deduper.Size()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.workerCount)
	}

	return stats
}

func (s *Service) snapshotStore() (*repository.SnapshotStore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store, nil
}
