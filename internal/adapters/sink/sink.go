// Package sink persists or publishes extracted feature vectors.
package sink

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/okian/tackle/internal/domain/model"
	"github.com/okian/tackle/pkg/metrics"
)

// Record is one extracted vector together with the event it belongs to.
// Seq is the event's position in its run's input.
type Record struct {
	RunID  string
	Seq    int
	Event  model.TackleEvent
	Vector model.FeatureVector
}

// Sink receives records as workers complete them, in completion order.
type Sink interface {
	Write(ctx context.Context, rec Record) error
	Close() error
}

// Outcome accounts for an event of a run that produced no vector of its
// own: a failed extraction (Reason set) or a duplicate of the event at
// sequence DuplicateOf.
type Outcome struct {
	RunID       string
	Seq         int
	Event       model.TackleEvent
	Reason      string
	Duplicate   bool
	DuplicateOf int
}

// OutcomeWriter is implemented by sinks that keep one entry per input event
// and so also need the events without a record.
type OutcomeWriter interface {
	WriteOutcome(ctx context.Context, o Outcome) error
}

// Memory keeps records in memory. It backs synchronous API calls and tests.
type Memory struct {
	mu      sync.Mutex
	records []Record
}

// NewMemory creates an empty in-memory sink.
func NewMemory() *Memory { return &Memory{} }

// Write implements Sink.
func (m *Memory) Write(ctx context.Context, rec Record) error {
	m.mu.Lock()
	m.records = append(m.records, rec)
	m.mu.Unlock()
	metrics.RecordSinkWrite("memory")
	return nil
}

// Records returns a copy of the stored records sorted by run and sequence.
func (m *Memory) Records() []Record {
	m.mu.Lock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	m.mu.Unlock()
	sortRecords(out)
	return out
}

// Close implements Sink.
func (m *Memory) Close() error { return nil }

// Multi fans every record out to several sinks.
type Multi struct {
	sinks []Sink
}

// NewMulti combines sinks; nil entries are skipped.
func NewMulti(sinks ...Sink) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Write writes to every sink and returns the first error.
func (m *Multi) Write(ctx context.Context, rec Record) error {
	var first error
	for _, s := range m.sinks {
		if err := s.Write(ctx, rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// WriteOutcome forwards o to every sink that accounts for outcomes.
func (m *Multi) WriteOutcome(ctx context.Context, o Outcome) error { //nolint:gocritic // hugeParam: mirrors Write
	var first error
	for _, s := range m.sinks {
		ow, ok := s.(OutcomeWriter)
		if !ok {
			continue
		}
		if err := ow.WriteOutcome(ctx, o); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close closes every sink, even after a failure.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func sortRecords(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].RunID != recs[j].RunID {
			return recs[i].RunID < recs[j].RunID
		}
		return recs[i].Seq < recs[j].Seq
	})
}
