package service

import (
	"github.com/okian/tackle/internal/adapters/sink"
	"github.com/okian/tackle/internal/domain/features"
	"github.com/okian/tackle/pkg/logger"
)

// Option configures a Service.
type Option func(*Service)

// Sizing options ignore non-positive values and keep the default.

// WithWorkerCount sets the number of extraction workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) { setPositive(&s.workerCount, count) }
}

// WithQueueSize bounds the event queue.
func WithQueueSize(size int) Option {
	return func(s *Service) { setPositive(&s.queueSize, size) }
}

// WithDedupeSize bounds the run-scoped duplicate cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) { setPositive(&s.dedupeSize, size) }
}

// WithShardCount sets the number of snapshot store shards.
func WithShardCount(count int) Option {
	return func(s *Service) { setPositive(&s.shardCount, count) }
}

func setPositive(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSink sets where batch results are written. The service closes it on
// shutdown.
func WithSink(out sink.Sink) Option {
	return func(s *Service) {
		s.sink = out
	}
}

// WithFeatureOptions configures the extractor.
func WithFeatureOptions(opts ...features.Option) Option {
	return func(s *Service) {
		s.featureOpts = append(s.featureOpts, opts...)
	}
}
