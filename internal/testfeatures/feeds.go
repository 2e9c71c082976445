package testfeatures

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/okian/tackle/pkg/logger"
)

type playRef struct {
	gameID int64
	playID int64
}

// distinctPlays returns up to limit plays in order of first appearance.
func distinctPlays(events []eventPayload, limit int) []playRef {
	seen := make(map[playRef]struct{})
	var out []playRef
	for _, e := range events {
		if len(out) >= limit {
			break
		}
		ref := playRef{e.GameID, e.PlayID}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	return out
}

// fetchFeeds requests the feed of every play concurrently. A service
// without play data answers 503, which counts as a failed fetch.
func fetchFeeds(ctx context.Context, config *Config, plays []playRef, stats *Stats) {
	log := logger.Get().Named("testfeatures")
	log.Info(ctx, "fetching play feeds", logger.Int("plays", len(plays)))

	client := newHTTPClient(config.Timeout)
	var fetched, failed int64

	playChan := make(chan playRef, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ref := range playChan {
				if err := fetchSingleFeed(ctx, client, config.BaseURL, ref); err != nil {
					atomic.AddInt64(&failed, 1)
					if config.Verbose {
						log.Warn(ctx, "play feed failed",
							logger.Int64("gameId", ref.gameID),
							logger.Int64("playId", ref.playID),
							logger.Error(err))
					}
					continue
				}
				atomic.AddInt64(&fetched, 1)
			}
		}()
	}

	go func() {
		defer close(playChan)
		for _, ref := range plays {
			select {
			case <-ctx.Done():
				return
			case playChan <- ref:
			}
		}
	}()
	wg.Wait()

	stats.FeedsFetched = int(fetched)
	stats.FeedsFailed = int(failed)
}

func fetchSingleFeed(ctx context.Context, client *HTTPClient, baseURL string, ref playRef) error {
	resp, err := client.Get(ctx, fmt.Sprintf("%s/plays/%d/%d", baseURL, ref.gameID, ref.playID))
	if err != nil {
		return err
	}
	if _, err := readResponseBody(resp); err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
