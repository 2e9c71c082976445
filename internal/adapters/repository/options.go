package repository

import "time"

// DefaultShardCount is the number of shards of a new store.
const DefaultShardCount = 16

const (
	defaultMetricsUpdateInterval = 5 * time.Second
)

// Option applies a configuration option to the SnapshotStore.
type Option func(*SnapshotStore)

// WithShardCount sets the number of independently locked shards.
func WithShardCount(n int) Option {
	return func(s *SnapshotStore) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *SnapshotStore) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}
