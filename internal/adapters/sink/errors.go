package sink

import "errors"

// Sentinel kinds for sink errors.
var (
	ErrClosed          = errors.New("sink closed")
	ErrUnknownDialect  = errors.New("unknown sql dialect")
	ErrMissingEndpoint = errors.New("sink endpoint not configured")
)
