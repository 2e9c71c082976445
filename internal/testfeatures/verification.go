package testfeatures

import (
	"context"
	"fmt"

	"github.com/okian/tackle/internal/domain/types"
	"github.com/okian/tackle/pkg/logger"
)

// verifyResults tallies the batch results and checks that every event of
// every answered batch is accounted for exactly once.
func verifyResults(ctx context.Context, batches [][]eventPayload, results []types.BatchResult, stats *Stats) error {
	stats.FailuresByReason = make(map[string]int)

	for i, res := range results {
		if res.RunID == "" {
			// batch failed as a whole
			continue
		}
		stats.Extracted += len(res.Results)
		stats.Failed += len(res.Failures)
		stats.Duplicates += res.Duplicates
		for _, f := range res.Failures {
			stats.FailuresByReason[f.Reason]++
		}

		got := len(res.Results) + len(res.Failures) + res.Duplicates
		if got != len(batches[i]) {
			return fmt.Errorf("batch %d (run %s): %d events answered for %d submitted", i, res.RunID, got, len(batches[i]))
		}
		for _, r := range res.Results {
			if r.RunID != res.RunID {
				return fmt.Errorf("batch %d: result %s carries run %q, want %q", i, r.EventID, r.RunID, res.RunID)
			}
		}
	}

	logger.Get().Named("testfeatures").Info(ctx, "results verified",
		logger.Int("extracted", stats.Extracted),
		logger.Int("failed", stats.Failed),
		logger.Int("duplicates", stats.Duplicates))
	return nil
}
