package spatial

import "errors"

// Sentinel kinds for feature computation errors.
var (
	ErrEmptyGroup          = errors.New("snapshot group is empty")
	ErrIdentifierNotFound  = errors.New("player id not found in snapshot group")
	ErrAmbiguousIdentifier = errors.New("player id matches more than one row in snapshot group")
	ErrMissingCoordinates  = errors.New("event coordinates are missing")
)
