package weekly

import "errors"

// Sentinel kinds for week catalog errors.
var (
	ErrUnexpectedHeader = errors.New("first column of tracking data is expected to be gameId")
	ErrUnknownGame      = errors.New("game not found in any tracking week")
	ErrUnknownPlay      = errors.New("play not found in tracking week")
	ErrInvalidWeekRange = errors.New("invalid week range")
)
