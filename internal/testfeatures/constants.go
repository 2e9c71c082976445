package testfeatures

import "time"

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Runner configuration constants.
const (
	DefaultBatchSize     = 500
	progressInterval     = time.Second
	PercentageMultiplier = 100
)
