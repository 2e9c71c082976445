// Package weekly locates the weekly tracking file of a game and loads the
// rows of a single play from it.
package weekly

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/okian/tackle/pkg/logger"
)

// WeekFile returns the file name of a week's tracking data.
func WeekFile(week int) string {
	return fmt.Sprintf("tracking_week_%d.csv", week)
}

// Catalog maps game ids to the tracking week that contains them. It is
// built once and read-only afterwards, so it is safe for concurrent use.
type Catalog struct {
	dir   string
	start int
	end   int
	weeks map[int64]int
	log   logger.Logger
}

// NewCatalog scans the first column of every week file in dir.
func NewCatalog(ctx context.Context, dir string, opts ...Option) (*Catalog, error) {
	c := &Catalog{
		dir:   dir,
		start: DefaultWeekStart,
		end:   DefaultWeekEnd,
		weeks: make(map[int64]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.start < 1 || c.end < c.start {
		return nil, fmt.Errorf("%w: %d..%d", ErrInvalidWeekRange, c.start, c.end)
	}

	for week := c.start; week <= c.end; week++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := c.scan(week)
		if err != nil {
			return nil, err
		}
		if c.log != nil {
			c.log.Debug(ctx, "indexed tracking week", logger.Int("week", week), logger.Int("games", n))
		}
	}
	return c, nil
}

// scan records the games of one week file. A game listed in several weeks
// resolves to the last one scanned.
func (c *Catalog) scan(week int) (int, error) {
	path := c.Path(week)
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open week %d: %w", week, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		return 0, fmt.Errorf("read header of %s: %w", path, err)
	}
	if len(header) == 0 || strings.TrimPrefix(header[0], "\ufeff") != "gameId" {
		return 0, fmt.Errorf("%w: %s", ErrUnexpectedHeader, path)
	}

	seen := make(map[int64]struct{})
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read %s: %w", path, err)
		}
		id, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%s line %d: bad gameId %q", path, line, rec[0])
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			c.weeks[id] = week
		}
	}
	return len(seen), nil
}

// Path returns the tracking file of week.
func (c *Catalog) Path(week int) string {
	return filepath.Join(c.dir, WeekFile(week))
}

// Week returns the week whose tracking file contains gameID.
func (c *Catalog) Week(gameID int64) (int, error) {
	week, ok := c.weeks[gameID]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownGame, gameID)
	}
	return week, nil
}

// Games returns the number of indexed games.
func (c *Catalog) Games() int { return len(c.weeks) }
