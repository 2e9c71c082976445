// Package config defines process configuration and how it is loaded.
package config

import (
	"fmt"
	"math"
	"runtime"
	"strings"

	"github.com/okian/tackle/internal/adapters/sink"
	"github.com/okian/tackle/internal/adapters/weekly"
	"github.com/okian/tackle/internal/domain/spatial"
)

// Sink kinds.
const (
	SinkCSV      = "csv"
	SinkSQLite   = "sqlite"
	SinkPostgres = "postgres"
)

// Config contains process configuration shared by the server and the
// batch CLI.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`
	// LogFile additionally receives the batch CLI's logs when set.
	LogFile string `koanf:"log_file"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// EventQueueSize bounds the in-memory event queue.
	EventQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of extraction workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// ShardCount configures the number of shards in the snapshot store.
	ShardCount int `koanf:"shard_count"`

	// Padding fills nearest-player slots without a candidate: "nan" or "inf".
	Padding string `koanf:"padding"`

	// LateralMargin widens the blocker box, in yards.
	LateralMargin float64 `koanf:"lateral_margin"`

	// IncludeBall lets the ball row rank as a nearest offensive player.
	IncludeBall bool `koanf:"include_ball"`

	// Input tables.
	TrackingPath    string `koanf:"tracking_path"`
	EventsPath      string `koanf:"events_path"`
	PredictionsPath string `koanf:"predictions_path"`
	PlaysPath       string `koanf:"plays_path"`
	GamesPath       string `koanf:"games_path"`

	// DataDir holds tracking_week_{N}.csv for weeks WeekStart..WeekEnd.
	DataDir   string `koanf:"data_dir"`
	WeekStart int    `koanf:"week_start"`
	WeekEnd   int    `koanf:"week_end"`

	// OutputPath is the augmented event table written by the csv sink.
	OutputPath string `koanf:"output_path"`

	// DropDuplicates leaves repeated events out of the augmented table.
	DropDuplicates bool `koanf:"drop_duplicates"`

	// Sink selects where batch results go: csv, sqlite or postgres.
	Sink        string `koanf:"sink"`
	DatabaseDSN string `koanf:"database_dsn"`

	// RedisURL additionally publishes results to RedisStream when set.
	RedisURL    string `koanf:"redis_url"`
	RedisStream string `koanf:"redis_stream"`

	// StreamIntervalMS is the default delay between streamed play frames.
	StreamIntervalMS int `koanf:"stream_interval_ms"`

	// MaxBatchSize caps POST /features/batch.
	MaxBatchSize int `koanf:"max_batch_size"`

	// CORSOrigins is a comma-separated list of allowed origins.
	CORSOrigins string `koanf:"cors_origins"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		EventQueueSize:   10_000,
		WorkerCount:      runtime.NumCPU(),
		DedupeSize:       50_000,
		ShardCount:       16,
		Padding:          "nan",
		LateralMargin:    spatial.DefaultLateralMargin,
		WeekStart:        weekly.DefaultWeekStart,
		WeekEnd:          weekly.DefaultWeekEnd,
		OutputPath:       "features.csv",
		Sink:             SinkCSV,
		RedisStream:      sink.DefaultStream,
		StreamIntervalMS: 100,
		MaxBatchSize:     10_000,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.EventQueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.DedupeSize <= 0:
		return fmt.Errorf("%w: dedupe_size must be positive", ErrInvalidConfig)
	case c.ShardCount <= 0:
		return fmt.Errorf("%w: shard_count must be positive", ErrInvalidConfig)
	case c.LateralMargin < 0 || math.IsNaN(c.LateralMargin):
		return fmt.Errorf("%w: lateral_margin must not be negative", ErrInvalidConfig)
	case c.WeekStart < 1 || c.WeekEnd < c.WeekStart:
		return fmt.Errorf("%w: week range %d..%d", ErrInvalidConfig, c.WeekStart, c.WeekEnd)
	case c.StreamIntervalMS < 0:
		return fmt.Errorf("%w: stream_interval_ms must not be negative", ErrInvalidConfig)
	case c.MaxBatchSize <= 0:
		return fmt.Errorf("%w: max_batch_size must be positive", ErrInvalidConfig)
	}
	if _, err := c.PaddingValue(); err != nil {
		return err
	}
	switch c.Sink {
	case SinkCSV:
	case SinkSQLite, SinkPostgres:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("%w: database_dsn is required for the %s sink", ErrInvalidConfig, c.Sink)
		}
	default:
		return fmt.Errorf("%w: unknown sink %q", ErrInvalidConfig, c.Sink)
	}
	return nil
}

// PaddingValue returns the numeric padding.
func (c *Config) PaddingValue() (float64, error) {
	switch strings.ToLower(strings.TrimSpace(c.Padding)) {
	case "nan", "":
		return math.NaN(), nil
	case "inf", "+inf":
		return math.Inf(1), nil
	default:
		return 0, fmt.Errorf("%w: padding must be nan or inf, got %q", ErrInvalidConfig, c.Padding)
	}
}

// Origins splits CORSOrigins.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
