package testfeatures

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/tackle/internal/adapters/tabular"
	"github.com/okian/tackle/internal/domain/model"
	"github.com/okian/tackle/internal/domain/types"
	"github.com/okian/tackle/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
)

// ErrNoEvents is returned when the event table is empty.
var ErrNoEvents = errors.New("no events to submit")

// Run executes the complete feature load test.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get().Named("testfeatures")

	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}

	log.Info(ctx, "starting tackle feature test",
		logger.String("baseURL", config.BaseURL),
		logger.String("events", config.EventsPath),
		logger.Int("batchSize", config.BatchSize),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout),
		logger.Bool("verbose", config.Verbose))

	if err := checkServiceHealth(ctx, config); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	events, err := loadEvents(config.EventsPath)
	if err != nil {
		return stats, fmt.Errorf("event loading failed: %w", err)
	}
	stats.EventsRead = len(events)

	batches := split(events, config.BatchSize)
	results := submitBatches(ctx, config, batches, stats)
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	if err := verifyResults(ctx, batches, results, stats); err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}

	if config.Plays > 0 {
		fetchFeeds(ctx, config, distinctPlays(events, config.Plays), stats)
	}

	if config.OutputFile != "" {
		if err := saveResults(ctx, config.OutputFile, results); err != nil {
			log.Warn(ctx, "failed to save results to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats)

	log.Info(ctx, "test completed successfully")
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	resp, err := newHTTPClient(config.Timeout).Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if _, err := readResponseBody(resp); err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func loadEvents(path string) ([]eventPayload, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return nil, err
	}
	defer f.Close()

	events, err := tabular.ReadEvents(f)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNoEvents
	}
	out := make([]eventPayload, len(events))
	for i, e := range events {
		out[i] = payload(e)
	}
	return out, nil
}

func payload(e model.TackleEvent) eventPayload {
	p := eventPayload{
		GameID:        e.GameID,
		PlayID:        e.PlayID,
		FrameID:       e.FrameID,
		TacklerID:     e.TacklerID,
		BallCarrierID: e.BallCarrierID,
		TacklerX:      e.TacklerX,
		TacklerY:      e.TacklerY,
	}
	if !math.IsNaN(e.BallCarrierX) && !math.IsNaN(e.BallCarrierY) {
		x, y := e.BallCarrierX, e.BallCarrierY
		p.BallCarrierX, p.BallCarrierY = &x, &y
	}
	return p
}

// split cuts events into consecutive batches of at most size events.
func split(events []eventPayload, size int) [][]eventPayload {
	out := make([][]eventPayload, 0, (len(events)+size-1)/size)
	for start := 0; start < len(events); start += size {
		end := min(start+size, len(events))
		out = append(out, events[start:end])
	}
	return out
}

// saveResults writes every extracted feature row as a JSON array.
func saveResults(ctx context.Context, filename string, results []types.BatchResult) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	rows := make([]types.Features, 0)
	for _, res := range results {
		rows = append(rows, res.Results...)
	}

	file, err := os.Create(filename) //nolint:gosec // path comes from the command line
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to write results: %w", err)
	}
	if err := file.Close(); err != nil {
		return err
	}

	logger.Get().Named("testfeatures").Info(ctx, "results saved to file",
		logger.String("filename", filename),
		logger.Int("rows", len(rows)))
	return nil
}

// displayFinalStats logs the final test statistics.
func displayFinalStats(stats *Stats) {
	var extractedRate, eventsPerSecond float64
	if stats.EventsSubmitted > 0 {
		extractedRate = float64(stats.Extracted) / float64(stats.EventsSubmitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		eventsPerSecond = float64(stats.EventsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Named("testfeatures").Info(context.Background(), "final statistics",
		logger.Int("eventsRead", stats.EventsRead),
		logger.Int("eventsSubmitted", stats.EventsSubmitted),
		logger.Int("batchesSubmitted", stats.BatchesSubmitted),
		logger.Int("batchesFailed", stats.BatchesFailed),
		logger.Int("extracted", stats.Extracted),
		logger.Int("duplicates", stats.Duplicates),
		logger.Int("failed", stats.Failed),
		logger.Any("failuresByReason", stats.FailuresByReason),
		logger.Int("feedsFetched", stats.FeedsFetched),
		logger.Int("feedsFailed", stats.FeedsFailed),
		logger.Duration("duration", stats.Duration),
		logger.Float64("extractedRate", extractedRate),
		logger.Float64("eventsPerSecond", eventsPerSecond))
}
