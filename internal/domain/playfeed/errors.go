package playfeed

import "errors"

var (
	// ErrNoRows is returned when a play has no tracking rows.
	ErrNoRows = errors.New("play has no tracking rows")
	// ErrClubs is returned when the rows do not carry two teams.
	ErrClubs = errors.New("play must have exactly two teams")
)
