package repository

import "errors"

// Sentinel kinds for snapshot index errors.
var (
	ErrGroupNotFound = errors.New("snapshot group not found")
	ErrStoreClosed   = errors.New("snapshot store closed")
)
