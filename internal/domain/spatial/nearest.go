// Package spatial derives tackle features from a single snapshot group.
//
// Every function here is pure: the same event and group always produce the
// same result, so callers are free to evaluate events sequentially or in
// parallel.
package spatial

import (
	"fmt"
	"math"
	"sort"

	"github.com/okian/tackle/internal/domain/model"
)

// Candidate is a player considered as a nearest neighbor of the tackler.
type Candidate struct {
	NFLID    *int64
	Club     string
	Distance float64
}

// Nearest is the result of a nearest-player search around the tackler.
// Both slices are sorted ascending and hold at most model.NearestCount items.
type Nearest struct {
	Defenders          []Candidate
	Offensive          []Candidate
	BallCarrierClosest bool
}

// NearestPlayers finds the closest teammates and opponents of the tackler.
//
// Defenders share the tackler's club (the tackler excluded), offensive players
// carry any other club. The ball row is never a candidate unless
// WithBallAsCandidate(true) is given. Distances are measured from the
// tackler's position on the event record to each candidate's tracked position.
func NearestPlayers(event model.TackleEvent, group []model.PlayerRow, opts ...Option) (Nearest, error) {
	s := newSettings(opts)
	if len(group) == 0 {
		return Nearest{}, ErrEmptyGroup
	}
	if math.IsNaN(event.TacklerX) || math.IsNaN(event.TacklerY) {
		return Nearest{}, fmt.Errorf("%w: tackler %d", ErrMissingCoordinates, event.TacklerID)
	}

	club, err := resolveClub(group, event.TacklerID, "tackler")
	if err != nil {
		return Nearest{}, err
	}

	var defenders, offensive []Candidate
	for _, row := range group {
		if row.IsBall() && !s.includeBall {
			continue
		}
		d := distance(event.TacklerX, event.TacklerY, row.X, row.Y)
		// Rows without a usable position never rank, like NaN in nsmallest.
		if math.IsNaN(d) {
			continue
		}
		c := Candidate{NFLID: row.NFLID, Club: row.Club, Distance: d}
		switch {
		case row.Club == club && row.HasID(event.TacklerID):
			// the tackler is never its own neighbor
		case row.Club == club:
			defenders = append(defenders, c)
		default:
			offensive = append(offensive, c)
		}
	}

	out := Nearest{
		Defenders: smallest(defenders, model.NearestCount),
		Offensive: smallest(offensive, model.NearestCount),
	}
	for _, c := range out.Offensive {
		if c.NFLID != nil && *c.NFLID == event.BallCarrierID {
			out.BallCarrierClosest = true
			break
		}
	}
	return out, nil
}

// smallest returns up to n candidates with the smallest distance. Ties keep
// snapshot order.
func smallest(cs []Candidate, n int) []Candidate {
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].Distance < cs[j].Distance })
	if len(cs) > n {
		cs = cs[:n]
	}
	return cs
}

// resolveClub finds the club of the single row carrying id.
func resolveClub(group []model.PlayerRow, id int64, role string) (string, error) {
	var (
		club    string
		matches int
	)
	for _, row := range group {
		if row.HasID(id) {
			club = row.Club
			matches++
		}
	}
	switch matches {
	case 0:
		return "", fmt.Errorf("%w: %s %d", ErrIdentifierNotFound, role, id)
	case 1:
		return club, nil
	default:
		return "", fmt.Errorf("%w: %s %d (%d rows)", ErrAmbiguousIdentifier, role, id, matches)
	}
}

func distance(x1, y1, x2, y2 float64) float64 {
	return math.Hypot(x2-x1, y2-y1)
}
