package tabular

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/okian/tackle/internal/domain/model"
)

var eventIDColumns = []string{colGameID, colPlayID, colFrameID, colTacklerID, colBallCarrierID} //nolint:gochecknoglobals // read-only schema

// EventTable is a tackle event table as read. Every input column is kept
// verbatim so the table can be written back with features appended. Rows
// whose identifiers cannot be parsed are kept too and reported by Invalid.
type EventTable struct {
	raw     dataframe.DataFrame
	events  []model.TackleEvent
	rows    []int
	invalid map[int]error
}

// ReadEventTable reads a tackle event table. A missing required column
// fails the whole table; a bad identifier cell only invalidates its row.
// Ball-carrier coordinates are optional and default to NaN.
func ReadEventTable(r io.Reader) (*EventTable, error) {
	// Every column is read as text and no spelling is treated as missing,
	// so cells are written back exactly as they came in.
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nil),
	)
	f, err := newFrame(df, colGameID, colPlayID, colFrameID, colTacklerID, colBallCarrierID, colTacklerX, colTacklerY)
	if err != nil {
		return nil, err
	}

	ids := make(map[string][]float64, len(eventIDColumns))
	for _, c := range eventIDColumns {
		ids[c] = f.floats(c)
	}
	tx, ty := f.floats(colTacklerX), f.floats(colTacklerY)
	bx, by := f.floats(colBallCarrierX), f.floats(colBallCarrierY)

	t := &EventTable{raw: df, invalid: make(map[int]error)}
	for i := 0; i < f.rows(); i++ {
		var parsed [5]int64
		var rowErr error
		for k, c := range eventIDColumns {
			v := ids[c][i]
			if math.IsNaN(v) || v != math.Trunc(v) {
				rowErr = fmt.Errorf("%w: %s row %d", ErrInvalidValue, c, i+1)
				break
			}
			parsed[k] = int64(v)
		}
		if rowErr != nil {
			t.invalid[i] = rowErr
			continue
		}
		t.rows = append(t.rows, i)
		t.events = append(t.events, model.TackleEvent{
			GameID:        parsed[0],
			PlayID:        parsed[1],
			FrameID:       parsed[2],
			TacklerID:     parsed[3],
			BallCarrierID: parsed[4],
			TacklerX:      tx[i],
			TacklerY:      ty[i],
			BallCarrierX:  bx[i],
			BallCarrierY:  by[i],
		})
	}
	return t, nil
}

// Len is the number of input rows, valid or not.
func (t *EventTable) Len() int { return t.raw.Nrow() }

// Events returns the parsed events of the valid rows in input order. An
// event's index in this slice is its sequence number in a run.
func (t *EventTable) Events() []model.TackleEvent { return t.events }

// Row maps an event's sequence number to its input row.
func (t *EventTable) Row(seq int) int { return t.rows[seq] }

// Invalid returns the rows that could not be parsed, in input order.
func (t *EventTable) Invalid() []int {
	out := make([]int, 0, len(t.invalid))
	for row := range t.invalid {
		out = append(out, row)
	}
	sort.Ints(out)
	return out
}

// RowError is the parse error of an invalid row, nil for a valid one.
func (t *EventTable) RowError(row int) error { return t.invalid[row] }

// ReadEvents reads a tackle event table and requires every row to be valid.
func ReadEvents(r io.Reader) ([]model.TackleEvent, error) {
	t, err := ReadEventTable(r)
	if err != nil {
		return nil, err
	}
	if bad := t.Invalid(); len(bad) > 0 {
		return nil, t.RowError(bad[0])
	}
	return t.Events(), nil
}
