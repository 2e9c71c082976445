package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/tackle/internal/domain/types"
	"github.com/okian/tackle/pkg/metrics"
)

// DefaultStream is the Redis stream feature vectors are published to.
const DefaultStream = "tackle.features"

const redisPingTimeout = 5 * time.Second

// RedisSink publishes every record to a Redis stream with XADD.
type RedisSink struct {
	client *redis.Client
	stream string
	owns   bool
}

// NewRedisSink connects to redisURL and publishes to stream
// (DefaultStream when empty).
func NewRedisSink(ctx context.Context, redisURL, stream string) (*RedisSink, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("%w: redis url", ErrMissingEndpoint)
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	s := NewRedisStreamSink(client, stream)
	s.owns = true
	return s, nil
}

// NewRedisStreamSink publishes with an existing client, which Close leaves open.
func NewRedisStreamSink(client *redis.Client, stream string) *RedisSink {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisSink{client: client, stream: stream}
}

// Write implements Sink.
func (s *RedisSink) Write(ctx context.Context, rec Record) error {
	payload := types.NewFeatures(rec.Event, rec.Vector)
	payload.RunID = rec.RunID
	data, err := json.Marshal(payload)
	if err != nil {
		metrics.RecordSinkError("redis")
		return fmt.Errorf("encode %s: %w", rec.Event.ID(), err)
	}
	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"data":      string(data),
			"timestamp": time.Now().Unix(),
		},
	}).Err()
	if err != nil {
		metrics.RecordSinkError("redis")
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	metrics.RecordSinkWrite("redis")
	return nil
}

// Close closes the client when the sink created it.
func (s *RedisSink) Close() error {
	if s.owns {
		return s.client.Close()
	}
	return nil
}
