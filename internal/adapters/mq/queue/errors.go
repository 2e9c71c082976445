package queue

import "errors"

// ErrQueueClosed is returned by submitters once the queue stops accepting jobs.
var ErrQueueClosed = errors.New("event queue closed")
