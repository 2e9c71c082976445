package repository

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/tackle/internal/domain/model"
	"github.com/okian/tackle/pkg/metrics"
)

// shard holds the groups whose key hashes to it.
type shard struct {
	mu     sync.RWMutex
	groups map[model.Key][]model.PlayerRow
}

// SnapshotStore is an in-memory, sharded Store. Rows sharing a key keep
// their insertion order, and duplicate player ids inside a group are kept
// so callers can detect ambiguous snapshots.
type SnapshotStore struct {
	shards                []*shard
	shardCount            int
	metricsUpdateInterval time.Duration

	groups atomic.Int64
	rows   atomic.Int64
	closed atomic.Bool

	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewSnapshotStore constructs an empty store and starts the background
// metrics updater, which stops when ctx ends or Close is called.
func NewSnapshotStore(ctx context.Context, opts ...Option) *SnapshotStore {
	s := &SnapshotStore{
		shardCount:            DefaultShardCount,
		metricsUpdateInterval: defaultMetricsUpdateInterval,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.shards = make([]*shard, s.shardCount)
	for i := range s.shards {
		s.shards[i] = &shard{groups: make(map[model.Key][]model.PlayerRow)}
	}

	s.stopChan = make(chan struct{})
	metrics.UpdateRepositoryShardCount(s.shardCount)
	s.startMetricsUpdater(ctx)

	return s
}

// shardFor picks the shard of key with an FNV-1a style mix of its parts.
func (s *SnapshotStore) shardFor(key model.Key) *shard {
	const (
		offset = 14695981039346656037
		prime  = 1099511628211
	)
	h := uint64(offset)
	for _, v := range [3]int64{key.GameID, key.PlayID, key.FrameID} {
		h ^= uint64(v)
		h *= prime
	}
	return s.shards[h%uint64(len(s.shards))]
}

// Add implements Store.Add.
func (s *SnapshotStore) Add(ctx context.Context, rows ...model.PlayerRow) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	for i := range rows {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("add rows: %w", err)
			}
		}
		key := rows[i].Key()
		sh := s.shardFor(key)
		sh.mu.Lock()
		group, ok := sh.groups[key]
		sh.groups[key] = append(group, rows[i])
		sh.mu.Unlock()
		if !ok {
			s.groups.Add(1)
		}
		s.rows.Add(1)
	}
	return nil
}

// Group implements Store.Group. The returned slice is a copy.
func (s *SnapshotStore) Group(ctx context.Context, key model.Key) ([]model.PlayerRow, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sh := s.shardFor(key)
	sh.mu.RLock()
	group, ok := sh.groups[key]
	if !ok {
		sh.mu.RUnlock()
		return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, key)
	}
	out := make([]model.PlayerRow, len(group))
	copy(out, group)
	sh.mu.RUnlock()
	return out, nil
}

// Count implements Store.Count.
func (s *SnapshotStore) Count(ctx context.Context) int {
	return int(s.groups.Load())
}

// Rows implements Store.Rows.
func (s *SnapshotStore) Rows(ctx context.Context) int {
	return int(s.rows.Load())
}

// Close stops the metrics updater. Further Adds fail with ErrStoreClosed;
// reads keep working.
func (s *SnapshotStore) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		close(s.stopChan)
	}
	s.wg.Wait()
	return nil
}

// startMetricsUpdater starts a background goroutine that updates repository metrics
func (s *SnapshotStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

// updateMetrics publishes index size gauges.
func (s *SnapshotStore) updateMetrics() {
	for i, sh := range s.shards {
		sh.mu.RLock()
		n := len(sh.groups)
		sh.mu.RUnlock()
		metrics.UpdateRepositoryRecordsPerShard(strconv.Itoa(i), n)
	}
	metrics.UpdateSnapshotGroups(int(s.groups.Load()))
	metrics.UpdateSnapshotRows(int(s.rows.Load()))
}
