package weekly

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/okian/tackle/internal/adapters/tabular"
	"github.com/okian/tackle/internal/domain/model"
	"github.com/okian/tackle/pkg/metrics"
)

// Loader reads the tracking rows of a play from its week file.
type Loader struct {
	catalog *Catalog
}

// NewLoader creates a loader resolving weeks through catalog.
func NewLoader(catalog *Catalog) *Loader {
	return &Loader{catalog: catalog}
}

// LoadPlay returns every row of (gameID, playID) in file order.
func (l *Loader) LoadPlay(ctx context.Context, gameID, playID int64) ([]model.PlayerRow, error) {
	start := time.Now()
	week, err := l.catalog.Week(gameID)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(l.catalog.Path(week))
	if err != nil {
		return nil, fmt.Errorf("open week %d: %w", week, err)
	}
	defer f.Close()

	rows, err := tabular.ReadPlayTracking(f, gameID, playID)
	if err != nil {
		return nil, fmt.Errorf("week %d: %w", week, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: game %d play %d", ErrUnknownPlay, gameID, playID)
	}
	metrics.RecordPlayLoadLatency(float64(time.Since(start).Milliseconds()))
	return rows, nil
}
