package service

import "errors"

var (
	// ErrNotStarted is returned by operations that need a started service.
	ErrNotStarted = errors.New("service not started")
	// ErrPlayNotFound is returned when a play is not in the play table.
	ErrPlayNotFound = errors.New("play not found")
	// ErrGameNotFound is returned when a game is not in the schedule.
	ErrGameNotFound = errors.New("game not found")
	// ErrNoTackler is returned when a feed is requested without a tackler
	// and no prediction names one.
	ErrNoTackler = errors.New("no tackler for play")
)
