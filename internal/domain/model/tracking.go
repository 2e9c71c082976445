// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strconv"
)

// FootballClub is the club label reserved for the ball in tracking data.
const FootballClub = "football"

// Key identifies one snapshot group: every tracking row of a single frame.
type Key struct {
	GameID  int64
	PlayID  int64
	FrameID int64
}

// String renders the key for logs and error messages.
func (k Key) String() string {
	return fmt.Sprintf("game=%d/play=%d/frame=%d", k.GameID, k.PlayID, k.FrameID)
}

// PlayerRow is one tracking sample of a player (or the ball) in a frame.
type PlayerRow struct {
	GameID  int64
	PlayID  int64
	FrameID int64
	NFLID   *int64 // nil for the ball
	Club    string // team abbreviation, or FootballClub
	X       float64
	Y       float64

	// Direction is only populated when rows are loaded for a play feed.
	Direction PlayDirection
}

// Key returns the snapshot group this row belongs to.
func (r PlayerRow) Key() Key {
	return Key{GameID: r.GameID, PlayID: r.PlayID, FrameID: r.FrameID}
}

// IsBall reports whether the row tracks the football rather than a player.
func (r PlayerRow) IsBall() bool {
	return r.NFLID == nil || r.Club == FootballClub
}

// HasID reports whether the row belongs to the player with the given id.
func (r PlayerRow) HasID(id int64) bool {
	return r.NFLID != nil && *r.NFLID == id
}

// IDString renders the player id, "NA" for the ball.
func (r PlayerRow) IDString() string {
	if r.NFLID == nil {
		return "NA"
	}
	return strconv.FormatInt(*r.NFLID, 10)
}

// ID is a small helper to take the address of a player id literal.
func ID(v int64) *int64 { return &v }
