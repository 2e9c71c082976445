package testfeatures

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/tackle/internal/domain/types"
	"github.com/okian/tackle/pkg/logger"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client *http.Client
}

func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with a JSON body.
func (c *HTTPClient) Post(ctx context.Context, url string, body interface{}) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// readResponseBody reads and closes the response body
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// submitBatches posts the batches concurrently and returns one result per
// batch, in batch order. Batches that fail as a whole leave a zero result.
func submitBatches(ctx context.Context, config *Config, batches [][]eventPayload, stats *Stats) []types.BatchResult {
	log := logger.Get().Named("testfeatures")
	log.Info(ctx, "submitting batches",
		logger.Int("batches", len(batches)),
		logger.Int("workers", config.Workers))

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/features/batch"

	results := make([]types.BatchResult, len(batches))
	var (
		submitted int64
		failed    int64
		events    int64
	)

	var lastReport atomic.Int64
	batchChan := make(chan int, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for index := range batchChan {
				if ctx.Err() != nil {
					continue
				}
				res, err := submitSingleBatch(ctx, client, url, batches[index])
				atomic.AddInt64(&submitted, 1)
				atomic.AddInt64(&events, int64(len(batches[index])))
				if err != nil {
					atomic.AddInt64(&failed, 1)
					if config.Verbose {
						log.Warn(ctx, "batch failed", logger.Int("batch", index), logger.Error(err))
					}
				} else {
					results[index] = res
				}

				now := time.Now().UnixNano()
				last := lastReport.Load()
				if now-last >= int64(progressInterval) && lastReport.CompareAndSwap(last, now) {
					log.Info(ctx, "progress",
						logger.Int64("submitted", atomic.LoadInt64(&submitted)),
						logger.Int("batches", len(batches)),
						logger.Int64("failed", atomic.LoadInt64(&failed)))
				}
			}
		}()
	}

	go func() {
		defer close(batchChan)
		for i := range batches {
			select {
			case <-ctx.Done():
				return
			case batchChan <- i:
			}
		}
	}()

	wg.Wait()

	stats.BatchesSubmitted = int(atomic.LoadInt64(&submitted))
	stats.BatchesFailed = int(atomic.LoadInt64(&failed))
	stats.EventsSubmitted = int(atomic.LoadInt64(&events))

	log.Info(ctx, "batch submission completed",
		logger.Int("batches", stats.BatchesSubmitted),
		logger.Int("failed", stats.BatchesFailed))
	return results
}

// submitSingleBatch posts one batch and decodes the result.
func submitSingleBatch(ctx context.Context, client *HTTPClient, url string, batch []eventPayload) (types.BatchResult, error) {
	resp, err := client.Post(ctx, url, batch)
	if err != nil {
		return types.BatchResult{}, err
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return types.BatchResult{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return types.BatchResult{}, fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var res types.BatchResult
	if err := json.Unmarshal(body, &res); err != nil {
		return types.BatchResult{}, fmt.Errorf("failed to decode batch result: %w", err)
	}
	return res, nil
}
