package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	eventqueue "github.com/okian/tackle/internal/adapters/mq/queue"
	"github.com/okian/tackle/internal/adapters/sink"
	"github.com/okian/tackle/internal/domain/features"
	"github.com/okian/tackle/internal/domain/model"
	"github.com/okian/tackle/internal/domain/types"
	"github.com/okian/tackle/pkg/logger"
)

// enqueueRetryInterval is how long Run waits for room in a full queue.
const enqueueRetryInterval = 2 * time.Millisecond

// Failure is one event of a run that produced no vector.
type Failure struct {
	Seq       int
	Key       model.Key
	TacklerID int64
	Reason    string
	Err       error
}

// Report summarizes a finished run.
type Report struct {
	RunID      string
	Total      int
	Succeeded  int
	Duplicates int
	Failed     []Failure
	Duration   time.Duration
}

// batch tracks the jobs of one run until every submitted job is done.
type batch struct {
	id      string
	collect bool
	wg      sync.WaitGroup

	mu        sync.Mutex
	events    map[int]model.TackleEvent
	succeeded int
	failed    []Failure
	records   []sink.Record
}

// Run extracts features for every event through the worker pool and
// waits for all of them. Results go to the configured sink in completion
// order. Duplicate events within the run are not extracted again; sinks
// implementing sink.OutcomeWriter are told about them and about failures.
// A full queue blocks submission until a worker frees a slot.
func (s *Service) Run(ctx context.Context, events []model.TackleEvent) (Report, error) {
	_, rep, err := s.run(ctx, events, false)
	return rep, err
}

// ExtractBatch is Run returning the vectors themselves in input order.
func (s *Service) ExtractBatch(ctx context.Context, events []model.TackleEvent) (types.BatchResult, error) {
	b, rep, err := s.run(ctx, events, true)
	if err != nil {
		return types.BatchResult{}, err
	}

	res := types.BatchResult{
		RunID:      rep.RunID,
		Results:    make([]types.Features, 0, len(b.records)),
		Failures:   make([]types.Failure, 0, len(rep.Failed)),
		Duplicates: rep.Duplicates,
	}
	for _, rec := range b.records {
		f := types.NewFeatures(rec.Event, rec.Vector)
		f.RunID = rep.RunID
		res.Results = append(res.Results, f)
	}
	for _, f := range rep.Failed {
		e := b.events[f.Seq]
		res.Failures = append(res.Failures, types.Failure{
			EventID:   e.ID(),
			GameID:    e.GameID,
			PlayID:    e.PlayID,
			FrameID:   e.FrameID,
			TacklerID: e.TacklerID,
			Reason:    f.Reason,
			Message:   f.Err.Error(),
		})
	}
	return res, nil
}

func (s *Service) run(ctx context.Context, events []model.TackleEvent, collect bool) (*batch, Report, error) {
	s.mu.RLock()
	q, stop, started := s.eventQueue, s.stopCh, s.started
	s.mu.RUnlock()
	if !started {
		return nil, Report{}, ErrNotStarted
	}

	start := time.Now()
	b := &batch{id: uuid.NewString(), collect: collect, events: make(map[int]model.TackleEvent, len(events))}
	rep := Report{RunID: b.id, Total: len(events)}
	s.runs.Store(b.id, b)
	log := s.logger.Named("run")
	log.Info(ctx, "run started", logger.String("runID", b.id), logger.Int("events", len(events)))

	var submitErr error
	first := make(map[string]int, len(events))
	for seq, e := range events {
		if s.SeenAndRecord(ctx, b.id+"/"+e.ID()) {
			log.Debug(ctx, "duplicate event skipped", logger.String("eventID", e.ID()))
			rep.Duplicates++
			if !collect {
				s.writeOutcome(ctx, sink.Outcome{RunID: b.id, Seq: seq, Event: e, Duplicate: true, DuplicateOf: first[e.ID()]})
			}
			continue
		}
		first[e.ID()] = seq
		b.mu.Lock()
		b.events[seq] = e
		b.mu.Unlock()
		b.wg.Add(1)
		if err := submit(ctx, q, stop, eventqueue.Job{RunID: b.id, Seq: seq, Event: e}); err != nil {
			b.wg.Done()
			submitErr = err
			break
		}
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.runs.Delete(b.id)
	case <-ctx.Done():
		// Late completions still find the batch until it drains.
		go func() {
			<-done
			s.runs.Delete(b.id)
		}()
		if submitErr == nil {
			submitErr = ctx.Err()
		}
	}

	b.mu.Lock()
	rep.Succeeded = b.succeeded
	rep.Failed = append([]Failure(nil), b.failed...)
	b.mu.Unlock()
	sort.Slice(rep.Failed, func(i, j int) bool { return rep.Failed[i].Seq < rep.Failed[j].Seq })
	if collect {
		b.mu.Lock()
		sort.Slice(b.records, func(i, j int) bool { return b.records[i].Seq < b.records[j].Seq })
		b.mu.Unlock()
	}
	rep.Duration = time.Since(start)
	s.setFailures(rep.Failed)

	log.Info(ctx, "run finished",
		logger.String("runID", b.id),
		logger.Int("succeeded", rep.Succeeded),
		logger.Int("failed", len(rep.Failed)),
		logger.Int("duplicates", rep.Duplicates),
		logger.Duration("took", rep.Duration),
	)
	if submitErr != nil {
		return b, rep, fmt.Errorf("run %s: %w", b.id, submitErr)
	}
	return b, rep, nil
}

// submit retries until the queue accepts the job.
func submit(ctx context.Context, q *eventqueue.InMemoryQueue, stop <-chan struct{}, job eventqueue.Job) error { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	for !q.Enqueue(ctx, job) {
		if q.IsClosed() {
			return eventqueue.ErrQueueClosed
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return eventqueue.ErrQueueClosed
		case <-time.After(enqueueRetryInterval):
		}
	}
	return nil
}

// Write implements the worker pool's sink. Records of runs that collect
// their results are kept; all others go to the configured sink.
func (s *Service) Write(ctx context.Context, rec sink.Record) error {
	if v, ok := s.runs.Load(rec.RunID); ok {
		if b := v.(*batch); b.collect {
			b.mu.Lock()
			b.records = append(b.records, rec)
			b.mu.Unlock()
			return nil
		}
	}
	if s.sink == nil {
		return nil
	}
	return s.sink.Write(ctx, rec)
}

// Done implements the worker pool's tracker.
func (s *Service) Done(ctx context.Context, job eventqueue.Job, err error) { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	v, ok := s.runs.Load(job.RunID)
	if !ok {
		return
	}
	b := v.(*batch)
	if err != nil && !b.collect {
		s.writeOutcome(ctx, sink.Outcome{RunID: job.RunID, Seq: job.Seq, Event: job.Event, Reason: features.Reason(err)})
	}
	b.mu.Lock()
	if err != nil {
		b.failed = append(b.failed, Failure{
			Seq:       job.Seq,
			Key:       job.Event.Key(),
			TacklerID: job.Event.TacklerID,
			Reason:    features.Reason(err),
			Err:       err,
		})
	} else {
		b.succeeded++
	}
	b.mu.Unlock()
	b.wg.Done()
}

// writeOutcome passes an event without a record to sinks that account for
// every input event.
func (s *Service) writeOutcome(ctx context.Context, o sink.Outcome) { //nolint:gocritic // hugeParam: mirrors Write
	ow, ok := s.sink.(sink.OutcomeWriter)
	if !ok {
		return
	}
	if err := ow.WriteOutcome(ctx, o); err != nil {
		s.logger.Warn(ctx, "failed to record event outcome",
			logger.String("eventID", o.Event.ID()), logger.Error(err))
	}
}

func (s *Service) setFailures(f []Failure) {
	s.failMu.Lock()
	s.lastFailures = f
	s.failMu.Unlock()
}
