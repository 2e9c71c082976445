package sink

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite" // sqlite driver
	_ "github.com/lib/pq"             // PostgreSQL driver

	"github.com/okian/tackle/pkg/metrics"
)

// Dialect selects the SQL flavour and driver of an SQLSink.
type Dialect string

// Supported dialects.
const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// driver returns the database/sql driver name registered for d.
func (d Dialect) driver() (string, error) {
	switch d {
	case DialectSQLite:
		return "sqlite", nil
	case DialectPostgres:
		return "postgres", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDialect, string(d))
	}
}

// placeholder returns the n-th (1-based) bind parameter.
func (d Dialect) placeholder(n int) string {
	if d == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// FeatureTable is the table written by SQLSink.
const FeatureTable = "tackle_features"

var featureColumns = []string{ //nolint:gochecknoglobals // read-only schema
	"event_id", "run_id", "game_id", "play_id", "frame_id", "tackler_id", "ball_carrier_id",
	"closest_defender_1", "closest_defender_2", "closest_defender_3",
	"closest_offensive_1", "closest_offensive_2", "closest_offensive_3",
	"ballcarrier_closest_indicator", "num_off_player_between", "written_at",
}

const createFeatureTable = `CREATE TABLE IF NOT EXISTS ` + FeatureTable + ` (
	event_id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	game_id BIGINT NOT NULL,
	play_id BIGINT NOT NULL,
	frame_id BIGINT NOT NULL,
	tackler_id BIGINT NOT NULL,
	ball_carrier_id BIGINT NOT NULL,
	closest_defender_1 DOUBLE PRECISION,
	closest_defender_2 DOUBLE PRECISION,
	closest_defender_3 DOUBLE PRECISION,
	closest_offensive_1 DOUBLE PRECISION,
	closest_offensive_2 DOUBLE PRECISION,
	closest_offensive_3 DOUBLE PRECISION,
	ballcarrier_closest_indicator INTEGER NOT NULL,
	num_off_player_between INTEGER NOT NULL,
	written_at BIGINT NOT NULL
)`

// upsertStatement builds an insert that replaces the row of an event id.
func upsertStatement(d Dialect) string {
	ph := make([]string, len(featureColumns))
	set := make([]string, 0, len(featureColumns)-1)
	for i, c := range featureColumns {
		ph[i] = d.placeholder(i + 1)
		if i > 0 {
			set = append(set, c+" = excluded."+c)
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (event_id) DO UPDATE SET %s",
		FeatureTable, strings.Join(featureColumns, ", "), strings.Join(ph, ", "), strings.Join(set, ", "))
}

// SQLSink upserts each record into FeatureTable, keyed by event id.
// Non-finite distances are stored as NULL.
type SQLSink struct {
	mu      sync.Mutex
	db      *sql.DB
	ownsDB  bool
	dialect Dialect
	stmt    *sql.Stmt
	closed  bool
}

// OpenSQLSink opens dsn with the driver of dialect and prepares the table.
func OpenSQLSink(ctx context.Context, dialect Dialect, dsn string) (*SQLSink, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: database dsn", ErrMissingEndpoint)
	}
	driver, err := dialect.driver()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dialect == DialectSQLite {
		// a single connection keeps ":memory:" databases shared
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	s, err := NewSQLSink(ctx, db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// NewSQLSink uses an existing connection pool; db is not closed by Close.
func NewSQLSink(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLSink, error) {
	if _, err := dialect.driver(); err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, createFeatureTable); err != nil {
		return nil, fmt.Errorf("create %s: %w", FeatureTable, err)
	}
	stmt, err := db.PrepareContext(ctx, upsertStatement(dialect))
	if err != nil {
		return nil, fmt.Errorf("prepare upsert: %w", err)
	}
	return &SQLSink{db: db, dialect: dialect, stmt: stmt}, nil
}

// DB exposes the connection pool for queries.
func (s *SQLSink) DB() *sql.DB { return s.db }

// Write implements Sink.
func (s *SQLSink) Write(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		metrics.RecordSinkError(string(s.dialect))
		return ErrClosed
	}

	e, v := rec.Event, rec.Vector
	_, err := s.stmt.ExecContext(ctx,
		e.ID(), rec.RunID, e.GameID, e.PlayID, e.FrameID, e.TacklerID, e.BallCarrierID,
		nullable(v.ClosestDefenders[0]), nullable(v.ClosestDefenders[1]), nullable(v.ClosestDefenders[2]),
		nullable(v.ClosestOffensive[0]), nullable(v.ClosestOffensive[1]), nullable(v.ClosestOffensive[2]),
		v.BallCarrierClosest, v.BlockersBetween, time.Now().UnixMilli(),
	)
	if err != nil {
		metrics.RecordSinkError(string(s.dialect))
		return fmt.Errorf("upsert %s: %w", e.ID(), err)
	}
	metrics.RecordSinkWrite(string(s.dialect))
	return nil
}

// Close releases the prepared statement and, when opened by OpenSQLSink,
// the connection pool.
func (s *SQLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.stmt.Close()
	if s.ownsDB {
		if cerr := s.db.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}
