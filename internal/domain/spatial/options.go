package spatial

import "math"

// DefaultLateralMargin widens the blocker box along the field's width, in yards.
const DefaultLateralMargin = 2.0

// settings controls how features are derived from a snapshot group.
type settings struct {
	padding       float64
	lateralMargin float64
	includeBall   bool
}

func newSettings(opts []Option) settings {
	s := settings{
		padding:       math.NaN(),
		lateralMargin: DefaultLateralMargin,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Option applies a configuration option to a feature computation.
type Option func(*settings)

// WithPadding sets the value written to nearest-player slots that have no
// candidate. Defaults to NaN.
func WithPadding(v float64) Option {
	return func(s *settings) {
		s.padding = v
	}
}

// WithLateralMargin sets the margin added on both lateral sides of the
// blocker box. Negative values are ignored.
func WithLateralMargin(margin float64) Option {
	return func(s *settings) {
		if margin >= 0 && !math.IsNaN(margin) {
			s.lateralMargin = margin
		}
	}
}

// WithBallAsCandidate makes the ball row eligible as a nearest "offensive"
// candidate, reproducing the club != tackler club filter literally.
func WithBallAsCandidate(include bool) Option {
	return func(s *settings) {
		s.includeBall = include
	}
}
