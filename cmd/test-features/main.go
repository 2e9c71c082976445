// Command test-features drives a running tackle service with an event table
// and checks that every submitted event is answered exactly once.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/tackle/internal/testfeatures"
)

const (
	defaultPlays         = 20
	workersPerCPU        = 2
	defaultTimeout       = 30 * time.Second
	defaultOverallBudget = 10 * time.Minute
)

// Exit codes.
const (
	exitOK          = 0
	exitRunFailed   = 1
	exitUsage       = 2
	exitBatchErrors = 3
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("test-features", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfg := &testfeatures.Config{}
	fs.StringVar(&cfg.BaseURL, "url", "http://localhost:9080", "Base URL of the service")
	fs.StringVar(&cfg.EventsPath, "events", "", "Event table to submit (required)")
	fs.IntVar(&cfg.BatchSize, "batch", testfeatures.DefaultBatchSize, "Events per batch request")
	fs.IntVar(&cfg.Plays, "plays", defaultPlays, "Distinct plays whose feed is fetched afterwards (0 disables)")
	fs.IntVar(&cfg.Workers, "workers", runtime.NumCPU()*workersPerCPU, "Concurrent batch requests")
	fs.DurationVar(&cfg.Timeout, "timeout", defaultTimeout, "HTTP request timeout")
	fs.StringVar(&cfg.OutputFile, "output", "", "Write extracted features to this JSON file")
	fs.StringVar(&cfg.LogFile, "log", "", "Log file (default: test_log_TIMESTAMP.log)")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Log each failed batch and feed")
	budget := fs.Duration("budget", defaultOverallBudget, "Upper bound for the whole run")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if cfg.EventsPath == "" {
		fs.Usage()
		return exitUsage
	}

	closer, err := testfeatures.SetupLogging(cfg.LogFile)
	if err != nil {
		fmt.Fprintf(stderr, "failed to setup logging: %v\n", err)
		return exitRunFailed
	}
	defer closer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *budget)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats, err := testfeatures.Run(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "test failed: %v\n", err)
		return exitRunFailed
	}
	if stats.BatchesFailed > 0 {
		fmt.Fprintf(stderr, "%d of %d batches failed\n", stats.BatchesFailed, stats.BatchesSubmitted)
		return exitBatchErrors
	}
	return exitOK
}
