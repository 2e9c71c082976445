package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/okian/tackle/internal/adapters/tabular"
	"github.com/okian/tackle/internal/domain/model"
	"github.com/okian/tackle/pkg/metrics"
)

// Reasons written for rows that never got a vector of their own.
const (
	ReasonInvalidRecord = "invalid_record"
	ReasonNotProcessed  = "not_processed"
)

// CSVSink collects the outcome of every event of one run and, on Close,
// writes the input event table back with the feature columns appended.
// Sequence numbers index table.Events().
type CSVSink struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	table  *tabular.EventTable
	drop   bool

	vectors     map[int]model.FeatureVector
	reasons     map[int]string
	duplicateOf map[int]int
	closed      bool
}

// CSVOption configures a CSVSink.
type CSVOption func(*CSVSink)

// WithDropDuplicates leaves repeated events out of the table instead of
// repeating the features of their first occurrence.
func WithDropDuplicates(drop bool) CSVOption {
	return func(s *CSVSink) { s.drop = drop }
}

// NewCSVSink writes the augmented table to w on Close. w is not closed.
func NewCSVSink(w io.Writer, table *tabular.EventTable, opts ...CSVOption) *CSVSink {
	s := &CSVSink{
		w:           w,
		table:       table,
		vectors:     make(map[int]model.FeatureVector),
		reasons:     make(map[int]string),
		duplicateOf: make(map[int]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewCSVFileSink creates (or truncates) path and writes the table there.
func NewCSVFileSink(path string, table *tabular.EventTable, opts ...CSVOption) (*CSVSink, error) {
	if table == nil {
		return nil, fmt.Errorf("%w: event table", ErrMissingEndpoint)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create feature table: %w", err)
	}
	s := NewCSVSink(f, table, opts...)
	s.closer = f
	return s, nil
}

// Write implements Sink.
func (s *CSVSink) Write(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		metrics.RecordSinkError("csv")
		return ErrClosed
	}
	s.vectors[rec.Seq] = rec.Vector
	metrics.RecordSinkWrite("csv")
	return nil
}

// WriteOutcome implements OutcomeWriter.
func (s *CSVSink) WriteOutcome(ctx context.Context, o Outcome) error { //nolint:gocritic // hugeParam: mirrors Write
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if o.Duplicate {
		s.duplicateOf[o.Seq] = o.DuplicateOf
	} else {
		s.reasons[o.Seq] = o.Reason
	}
	return nil
}

// Close writes the table. Calling it again is a no-op.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	err := tabular.WriteAugmented(s.w, s.table, s.rows())
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		metrics.RecordSinkError("csv")
	}
	return err
}

// rows resolves every input row: invalid rows first, then events by their
// own outcome or, for duplicates, by the outcome of the first occurrence.
func (s *CSVSink) rows() []tabular.RowFeatures {
	out := make([]tabular.RowFeatures, s.table.Len())
	for _, row := range s.table.Invalid() {
		out[row] = tabular.RowFeatures{Err: ReasonInvalidRecord}
	}
	for seq := range s.table.Events() {
		src, dup := seq, false
		if first, ok := s.duplicateOf[seq]; ok {
			src, dup = first, true
		}
		row := tabular.RowFeatures{Skip: dup && s.drop}
		if v, ok := s.vectors[src]; ok {
			row.Vector = v
		} else if reason, ok := s.reasons[src]; ok {
			row.Err = reason
		} else {
			row.Err = ReasonNotProcessed
		}
		out[s.table.Row(seq)] = row
	}
	return out
}
