package features

import (
	"github.com/okian/tackle/internal/domain/spatial"
	"github.com/okian/tackle/pkg/logger"
)

// Option applies a configuration option to the SnapshotExtractor.
type Option func(*SnapshotExtractor)

// WithPadding sets the value used for missing nearest-player slots.
func WithPadding(v float64) Option {
	return func(e *SnapshotExtractor) {
		e.spatial = append(e.spatial, spatial.WithPadding(v))
	}
}

// WithLateralMargin sets the lateral margin of the blocker box, in yards.
func WithLateralMargin(margin float64) Option {
	return func(e *SnapshotExtractor) {
		e.spatial = append(e.spatial, spatial.WithLateralMargin(margin))
	}
}

// WithBallAsCandidate lets the ball row count as an offensive candidate.
func WithBallAsCandidate(include bool) Option {
	return func(e *SnapshotExtractor) {
		e.spatial = append(e.spatial, spatial.WithBallAsCandidate(include))
	}
}

// WithLogger sets the logger used for failed extractions.
func WithLogger(l logger.Logger) Option {
	return func(e *SnapshotExtractor) {
		if l != nil {
			e.log = l
		}
	}
}
