// Package features turns tackle events into model feature vectors by
// joining each event to its tracking snapshot.
package features

import (
	"context"
	"time"

	"github.com/okian/tackle/internal/adapters/repository"
	"github.com/okian/tackle/internal/domain/model"
	"github.com/okian/tackle/internal/domain/spatial"
	"github.com/okian/tackle/pkg/logger"
	"github.com/okian/tackle/pkg/metrics"
)

// Extractor computes the feature vector of one event.
type Extractor interface {
	// Extract returns the vector for event, honoring ctx for cancellation.
	// Errors are *RecordError values.
	Extract(ctx context.Context, event model.TackleEvent) (model.FeatureVector, error)
}

// SnapshotExtractor implements Extractor on top of a snapshot index.
type SnapshotExtractor struct {
	store   repository.Store
	spatial []spatial.Option
	log     logger.Logger
}

// NewSnapshotExtractor creates an extractor reading groups from store.
func NewSnapshotExtractor(store repository.Store, opts ...Option) *SnapshotExtractor {
	e := &SnapshotExtractor{store: store}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract implements Extractor.
func (e *SnapshotExtractor) Extract(ctx context.Context, event model.TackleEvent) (model.FeatureVector, error) {
	start := time.Now()

	group, err := e.store.Group(ctx, event.Key())
	if err != nil {
		return model.FeatureVector{}, e.fail(ctx, event, err)
	}
	fv, err := spatial.Extract(event, group, e.spatial...)
	if err != nil {
		return model.FeatureVector{}, e.fail(ctx, event, err)
	}

	metrics.RecordEventExtracted()
	metrics.RecordBlockersBetween(fv.BlockersBetween)
	metrics.RecordExtractionLatency(float64(time.Since(start).Microseconds()) / 1000)
	return fv, nil
}

func (e *SnapshotExtractor) fail(ctx context.Context, event model.TackleEvent, err error) error {
	reason := Reason(err)
	metrics.RecordExtractionFailure(reason)
	if e.log != nil {
		e.log.Debug(ctx, "feature extraction failed",
			logger.String("key", event.Key().String()),
			logger.Int64("tacklerId", event.TacklerID),
			logger.String("reason", reason),
			logger.Error(err))
	}
	return &RecordError{
		Key:           event.Key(),
		TacklerID:     event.TacklerID,
		BallCarrierID: event.BallCarrierID,
		Err:           err,
	}
}
