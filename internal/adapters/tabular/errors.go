package tabular

import "errors"

// Sentinel kinds for table I/O errors.
var (
	ErrMalformed      = errors.New("malformed table")
	ErrMissingColumn  = errors.New("required column missing")
	ErrInvalidValue   = errors.New("invalid cell value")
	ErrLengthMismatch = errors.New("table rows and results differ in length")
)
