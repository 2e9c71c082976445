package spatial

import (
	"fmt"
	"math"

	"github.com/okian/tackle/internal/domain/model"
)

// Box is a closed axis-aligned rectangle in field coordinates.
type Box struct {
	XMin, XMax float64
	YMin, YMax float64
}

// NewBox spans the two points and widens the y-range by margin on each side.
// The result does not depend on which point is passed first.
func NewBox(ax, ay, bx, by, margin float64) Box {
	return Box{
		XMin: math.Min(ax, bx),
		XMax: math.Max(ax, bx),
		YMin: math.Min(ay, by) - margin,
		YMax: math.Max(ay, by) + margin,
	}
}

// Contains reports whether (x, y) lies inside the box, edges included.
func (b Box) Contains(x, y float64) bool {
	return x >= b.XMin && x <= b.XMax && y >= b.YMin && y <= b.YMax
}

// BlockerBox returns the box between tackler and ball carrier used to count
// potential blockers.
func BlockerBox(event model.TackleEvent, opts ...Option) Box {
	s := newSettings(opts)
	return NewBox(event.TacklerX, event.TacklerY, event.BallCarrierX, event.BallCarrierY, s.lateralMargin)
}

// BlockersBetween counts the ball carrier's teammates (the carrier excluded)
// whose tracked position falls inside the box spanned by tackler and ball
// carrier.
func BlockersBetween(event model.TackleEvent, group []model.PlayerRow, opts ...Option) (int, error) {
	if len(group) == 0 {
		return 0, ErrEmptyGroup
	}
	for _, v := range []float64{event.TacklerX, event.TacklerY, event.BallCarrierX, event.BallCarrierY} {
		if math.IsNaN(v) {
			return 0, fmt.Errorf("%w: tackler %d / ball carrier %d", ErrMissingCoordinates, event.TacklerID, event.BallCarrierID)
		}
	}

	club, err := resolveClub(group, event.BallCarrierID, "ball carrier")
	if err != nil {
		return 0, err
	}

	box := BlockerBox(event, opts...)
	count := 0
	for _, row := range group {
		if row.IsBall() || row.Club != club || row.HasID(event.BallCarrierID) {
			continue
		}
		if box.Contains(row.X, row.Y) {
			count++
		}
	}
	return count, nil
}
