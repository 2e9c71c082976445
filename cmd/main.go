package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/tackle/internal/adapters/http/api"
	"github.com/okian/tackle/internal/adapters/tabular"
	"github.com/okian/tackle/internal/adapters/weekly"
	service "github.com/okian/tackle/internal/app"
	"github.com/okian/tackle/internal/config"
	"github.com/okian/tackle/internal/domain/features"
	"github.com/okian/tackle/pkg/logger"
	"github.com/okian/tackle/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Only the custom registry is scraped.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			os.Stderr.WriteString("failed to sync logs: " + err.Error() + "\n")
		}
	}()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}
	if err := logger.SetFormat(cfg.LogFormat); err != nil {
		os.Stderr.WriteString("failed to set log format: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc, err := newService(cfg, log)
	if err != nil {
		log.Error(ctx, "invalid service configuration", logger.Error(err))
		return
	}
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	if cfg.TrackingPath != "" {
		rows, err := readTable(cfg.TrackingPath, tabular.ReadTracking)
		if err != nil {
			log.Error(ctx, "failed to read tracking snapshot", logger.String("path", cfg.TrackingPath), logger.Error(err))
			return
		}
		if err := svc.LoadSnapshot(ctx, rows); err != nil {
			log.Error(ctx, "failed to load tracking snapshot", logger.Error(err))
			return
		}
	} else {
		log.Warn(ctx, "no tracking_path configured; every extraction will miss its group")
	}

	var plays api.PlayFeeds
	if cfg.DataDir != "" && cfg.PlaysPath != "" && cfg.GamesPath != "" {
		p, err := newPlays(ctx, cfg, log)
		if err != nil {
			log.Error(ctx, "failed to prepare play feeds", logger.Error(err))
			return
		}
		log.Info(ctx, "play feeds ready", logger.Int("plays", p.Len()))
		plays = p
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	apiServer := api.NewServer(svc, plays, svc,
		api.WithCORSOrigins(cfg.Origins()),
		api.WithStreamInterval(time.Duration(cfg.StreamIntervalMS)*time.Millisecond),
		api.WithMaxBatchSize(cfg.MaxBatchSize),
		api.WithLogger(log.Named("api")),
	)

	// No write timeout: play streams stay open for the whole play.
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiServer.Handler(ctx),
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}

// newService maps the configuration onto service options.
func newService(cfg *config.Config, log logger.Logger) (*service.Service, error) {
	padding, err := cfg.PaddingValue()
	if err != nil {
		return nil, err
	}
	return service.New(
		service.WithLogger(log.Named("service")),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.EventQueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithShardCount(cfg.ShardCount),
		service.WithFeatureOptions(
			features.WithPadding(padding),
			features.WithLateralMargin(cfg.LateralMargin),
			features.WithBallAsCandidate(cfg.IncludeBall),
		),
	), nil
}

// newPlays indexes the week files and loads the play, game and prediction
// tables. Predictions are optional.
func newPlays(ctx context.Context, cfg *config.Config, log logger.Logger) (*service.Plays, error) {
	catalog, err := weekly.NewCatalog(ctx, cfg.DataDir,
		weekly.WithWeekRange(cfg.WeekStart, cfg.WeekEnd),
		weekly.WithLogger(log.Named("weekly")),
	)
	if err != nil {
		return nil, err
	}
	plays, err := readTable(cfg.PlaysPath, tabular.ReadPlays)
	if err != nil {
		return nil, err
	}
	games, err := readTable(cfg.GamesPath, tabular.ReadGames)
	if err != nil {
		return nil, err
	}
	predictions, err := readOptionalTable(cfg.PredictionsPath, tabular.ReadPredictions)
	if err != nil {
		return nil, err
	}
	return service.NewPlays(weekly.NewLoader(catalog), plays, games, predictions), nil
}

func readTable[T any](path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	out, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return out, nil
}

func readOptionalTable[T any](path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	if path == "" {
		return nil, nil
	}
	return readTable(path, read)
}

// startSystemMetricsUpdater updates system metrics until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater updates service metrics until ctx is done.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics publishes queue utilization. GetStats already
// refreshes the queue and worker gauges.
func updateServiceMetrics(svc *service.Service) {
	stats := svc.GetStats()
	length, ok := stats["queueLength"].(int)
	if !ok {
		return
	}
	if size, ok := stats["queueSize"].(int); ok && size > 0 {
		metrics.UpdateQueueUtilization(float64(length) / float64(size))
	}
}
