// Command extract augments a table of tackle events with spatial features
// computed against a tracking snapshot.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/okian/tackle/internal/adapters/sink"
	"github.com/okian/tackle/internal/adapters/tabular"
	service "github.com/okian/tackle/internal/app"
	"github.com/okian/tackle/internal/config"
	"github.com/okian/tackle/internal/domain/features"
	"github.com/okian/tackle/pkg/logger"
)

const (
	logFilePermission = 0o600
	shutdownTimeout   = 30 * time.Second
)

func main() {
	var (
		eventsPath   = flag.String("events", "", "Event table (overrides events_path)")
		trackingPath = flag.String("tracking", "", "Tracking snapshot (overrides tracking_path)")
		outputPath   = flag.String("output", "", "Output table for the csv sink (overrides output_path)")
		logFile      = flag.String("log", "", "Also write logs to this file (overrides log_file)")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	override(&cfg.EventsPath, *eventsPath)
	override(&cfg.TrackingPath, *trackingPath)
	override(&cfg.OutputPath, *outputPath)
	override(&cfg.LogFile, *logFile)

	closeLog, err := setupLogging(cfg.LogFile)
	if err != nil {
		os.Stderr.WriteString("failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.SetFormat(cfg.LogFormat); err != nil {
		os.Stderr.WriteString("failed to set log format: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		_ = logger.SetLevelString("info")
	}

	rep, err := run(ctx, cfg)
	code := 0
	if err != nil {
		logger.Get().Error(ctx, "extraction failed", logger.Error(err))
		code = 1
	} else {
		printReport(os.Stdout, rep)
	}
	_ = logger.Sync()
	closeLog()
	os.Exit(code)
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// setupLogging logs to stdout and, when path is set, to path as well.
func setupLogging(path string) (func(), error) {
	if path == "" {
		return func() {}, logger.Init()
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	if err := logger.InitWriter(io.MultiWriter(os.Stdout, f)); err != nil {
		_ = f.Close()
		return nil, err
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", path))
	return func() { _ = f.Close() }, nil
}

// summary is a run report extended with the input rows that never reached
// the run because their identifiers could not be parsed.
type summary struct {
	service.Report
	Rows    int
	Invalid int
}

// run reads the inputs, extracts every event and flushes the sinks.
func run(ctx context.Context, cfg *config.Config) (summary, error) {
	log := logger.Get().Named("extract")
	if cfg.EventsPath == "" || cfg.TrackingPath == "" {
		return summary{}, fmt.Errorf("%w: events_path and tracking_path are required", config.ErrInvalidConfig)
	}
	padding, err := cfg.PaddingValue()
	if err != nil {
		return summary{}, err
	}

	table, err := readEventTable(cfg.EventsPath)
	if err != nil {
		return summary{}, err
	}
	rows, err := readTable(cfg.TrackingPath, tabular.ReadTracking)
	if err != nil {
		return summary{}, err
	}
	sum := summary{Rows: table.Len(), Invalid: len(table.Invalid())}
	for _, row := range table.Invalid() {
		log.Warn(ctx, "event row skipped", logger.Int("row", row+1), logger.Error(table.RowError(row)))
	}
	log.Info(ctx, "inputs loaded",
		logger.Int("events", len(table.Events())),
		logger.Int("invalid", sum.Invalid),
		logger.Int("rows", len(rows)))

	out, err := openSink(ctx, cfg, table)
	if err != nil {
		return summary{}, err
	}

	svc := service.New(
		service.WithLogger(log.Named("service")),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.EventQueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithShardCount(cfg.ShardCount),
		service.WithSink(out),
		service.WithFeatureOptions(
			features.WithPadding(padding),
			features.WithLateralMargin(cfg.LateralMargin),
			features.WithBallAsCandidate(cfg.IncludeBall),
		),
	)
	if err := svc.Start(ctx); err != nil {
		_ = out.Close()
		return summary{}, err
	}

	rep, runErr := func() (service.Report, error) {
		if err := svc.LoadSnapshot(ctx, rows); err != nil {
			return service.Report{}, err
		}
		return svc.Run(ctx, table.Events())
	}()
	sum.Report = rep

	// The sink is flushed on shutdown even when the run was interrupted.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := svc.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("flush results: %w", err)
	}
	return sum, runErr
}

// openSink builds the table sink and, when a Redis URL is configured,
// fans out to a Redis stream too. The csv sink writes table back with the
// feature columns appended.
func openSink(ctx context.Context, cfg *config.Config, table *tabular.EventTable) (sink.Sink, error) {
	var out sink.Sink
	var err error
	switch cfg.Sink {
	case config.SinkSQLite:
		out, err = sink.OpenSQLSink(ctx, sink.DialectSQLite, cfg.DatabaseDSN)
	case config.SinkPostgres:
		out, err = sink.OpenSQLSink(ctx, sink.DialectPostgres, cfg.DatabaseDSN)
	default:
		out, err = sink.NewCSVFileSink(cfg.OutputPath, table, sink.WithDropDuplicates(cfg.DropDuplicates))
	}
	if err != nil {
		return nil, err
	}
	if cfg.RedisURL == "" {
		return out, nil
	}
	stream, err := sink.NewRedisSink(ctx, cfg.RedisURL, cfg.RedisStream)
	if err != nil {
		_ = out.Close()
		return nil, err
	}
	return sink.NewMulti(out, stream), nil
}

func readEventTable(path string) (*tabular.EventTable, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	t, err := tabular.ReadEventTable(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return t, nil
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

// printReport writes the run summary with failures aggregated by reason.
// Unparseable rows count as failures.
func printReport(w io.Writer, sum summary) { //nolint:gocritic // hugeParam: summary is printed once
	fmt.Fprintf(w, "run %s: %d rows, %d extracted, %d duplicates, %d failed in %s\n",
		sum.RunID, sum.Rows, sum.Succeeded, sum.Duplicates, len(sum.Failed)+sum.Invalid, sum.Duration.Round(time.Millisecond))

	byReason := make(map[string]int)
	for _, f := range sum.Failed {
		byReason[f.Reason]++
	}
	if sum.Invalid > 0 {
		byReason[sink.ReasonInvalidRecord] += sum.Invalid
	}
	reasons := make([]string, 0, len(byReason))
	for r := range byReason {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Fprintf(w, "  %-22s %d\n", r, byReason[r])
	}
}
