// Package worker runs feature extraction for queued tackle events.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/tackle/internal/adapters/mq/queue"
	"github.com/okian/tackle/internal/adapters/sink"
	"github.com/okian/tackle/internal/domain/features"
	"github.com/okian/tackle/internal/domain/model"
	"github.com/okian/tackle/pkg/logger"
	"github.com/okian/tackle/pkg/metrics"
)

// Default worker configuration constants.
const (
	metricsUpdateInterval = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
	workerStopTimeout     = time.Second
)

// Extractor computes the feature vector of an event.
type Extractor interface {
	Extract(ctx context.Context, event model.TackleEvent) (model.FeatureVector, error)
}

// Sink receives every successfully extracted vector.
type Sink interface {
	Write(ctx context.Context, rec sink.Record) error
}

// Tracker is told about the outcome of every job, successful or not.
type Tracker interface {
	Done(ctx context.Context, job queue.Job, err error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes jobs until its queue is drained or it is stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after the job in flight.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker on top of an Extractor and a Sink.
type InMemoryWorker struct {
	queue     Queue
	extractor Extractor
	sink      Sink
	tracker   Tracker
	name      string
	processed *atomic.Int64

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, extractor Extractor, s Sink, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		extractor: extractor,
		sink:      s,
		name:      "worker",
		processed: new(atomic.Int64),
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			err := w.process(ctx, job)
			w.processed.Add(1)
			if w.tracker != nil {
				w.tracker.Done(ctx, job, err)
			}
		}
	}
}

// Shutdown stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed once Run has returned.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// process handles a single job. Extraction failures are expected for
// inconsistent input and are logged at debug level; sink failures are errors.
func (w *InMemoryWorker) process(ctx context.Context, job queue.Job) error { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	vector, err := w.extractor.Extract(ctx, job.Event)
	if err != nil {
		metrics.RecordErrorByComponent("worker", features.Reason(err))
		w.logger.Debug(ctx, "event skipped",
			logger.String("eventID", job.Event.ID()),
			logger.Error(err),
		)
		return err
	}

	if err := w.sink.Write(ctx, sink.Record{RunID: job.RunID, Seq: job.Seq, Event: job.Event, Vector: vector}); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "sink_error")
		metrics.RecordErrorByType("sink_error", "high")
		w.logger.Error(ctx, "sink write failed for event",
			logger.String("eventID", job.Event.ID()),
			logger.Error(err),
		)
		return fmt.Errorf("write event %s: %w", job.Event.ID(), err)
	}
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	shutdown chan struct{}

	processed         atomic.Int64
	lastProcessed     int64
	lastProcessedTime time.Time

	logger logger.Logger
}

// NewPool creates a new worker pool. A workerCount below one means one
// worker per CPU.
func NewPool(workerCount int, q Queue, extractor Extractor, s Sink, tracker Tracker) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers:           make([]*InMemoryWorker, workerCount),
		queue:             q,
		shutdown:          make(chan struct{}),
		lastProcessedTime: time.Now(),
		logger:            logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(q, extractor, s,
			WithName("worker-"+strconv.Itoa(i)),
			WithTracker(tracker),
			withCounter(&pool.processed),
		)
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	metrics.UpdateWorkerMessagesPerSecond(0.0)

	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns the number of jobs handled since the pool was created.
func (p *Pool) Processed() int64 { return p.processed.Load() }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	metrics.UpdateWorkerActiveCount(len(p.workers))
	go p.startMetricsUpdater(ctx)
}

// startMetricsUpdater starts a background goroutine that updates worker metrics.
func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.updateMetrics()
		}
	}
}

// updateMetrics publishes the throughput since the previous update.
func (p *Pool) updateMetrics() {
	now := time.Now()
	total := p.processed.Load()
	if elapsed := now.Sub(p.lastProcessedTime).Seconds(); elapsed > 0 {
		metrics.UpdateWorkerMessagesPerSecond(float64(total-p.lastProcessed) / elapsed)
	}
	p.lastProcessed = total
	p.lastProcessedTime = now
}

// Shutdown closes the queue, lets workers drain it and waits for them.
// Workers still busy when ctx or the pool timeout expires are stopped.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
			stopCtx, stop := context.WithTimeout(context.Background(), workerStopTimeout)
			_ = w.Shutdown(stopCtx)
			stop()
		}
	}

	select {
	case <-p.shutdown:
	default:
		close(p.shutdown)
	}
	metrics.UpdateWorkerActiveCount(0)

	if timedOut {
		return fmt.Errorf("worker pool drain: %w", context.DeadlineExceeded)
	}
	return nil
}
