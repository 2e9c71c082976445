// Package tabular reads and writes the CSV tables of the tackle pipeline
// on top of gota data frames.
package tabular

import (
	"fmt"
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// nanValues are the cell spellings treated as missing.
var nanValues = []string{"NA", "NaN", "nan", ""} //nolint:gochecknoglobals // read-only table configuration

// loadOptions reads every listed numeric column as float and everything
// else as string, so extra columns never fail type detection.
func loadOptions(numeric ...string) []dataframe.LoadOption {
	types := make(map[string]series.Type, len(numeric))
	for _, c := range numeric {
		types[c] = series.Float
	}
	return []dataframe.LoadOption{
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.WithTypes(types),
		dataframe.NaNValues(nanValues),
	}
}

// frame wraps a loaded data frame with typed column accessors.
type frame struct {
	df   dataframe.DataFrame
	cols map[string]struct{}
}

func newFrame(df dataframe.DataFrame, required ...string) (frame, error) {
	if df.Err != nil {
		return frame{}, fmt.Errorf("%w: %v", ErrMalformed, df.Err)
	}
	f := frame{df: df, cols: make(map[string]struct{})}
	for _, name := range df.Names() {
		f.cols[name] = struct{}{}
	}
	for _, name := range required {
		if !f.has(name) {
			return frame{}, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}
	return f, nil
}

func (f frame) has(col string) bool {
	_, ok := f.cols[col]
	return ok
}

func (f frame) rows() int { return f.df.Nrow() }

// floats returns the column as float64, NaN for missing cells and for
// absent optional columns.
func (f frame) floats(col string) []float64 {
	if !f.has(col) {
		out := make([]float64, f.rows())
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	return f.df.Col(col).Float()
}

// ints truncates a numeric column; missing cells become zero.
func (f frame) ints(col string) []int {
	vals := f.floats(col)
	out := make([]int, len(vals))
	for i, v := range vals {
		if !math.IsNaN(v) {
			out[i] = int(v)
		}
	}
	return out
}

// ids returns a required integral identifier column. The first bad cell
// fails the whole load; event tables go through ReadEventTable instead.
func (f frame) ids(col string) ([]int64, error) {
	vals := f.floats(col)
	out := make([]int64, len(vals))
	for i, v := range vals {
		if math.IsNaN(v) || v != math.Trunc(v) {
			return nil, fmt.Errorf("%w: %s row %d", ErrInvalidValue, col, i+1)
		}
		out[i] = int64(v)
	}
	return out, nil
}

// nullableIDs is ids with missing cells mapped to nil.
func (f frame) nullableIDs(col string) ([]*int64, error) {
	vals := f.floats(col)
	out := make([]*int64, len(vals))
	for i, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("%w: %s row %d", ErrInvalidValue, col, i+1)
		}
		id := int64(v)
		out[i] = &id
	}
	return out, nil
}

// strings returns a text column with missing cells as "".
func (f frame) strings(col string) []string {
	out := make([]string, f.rows())
	if !f.has(col) {
		return out
	}
	s := f.df.Col(col)
	for i := range out {
		if e := s.Elem(i); !e.IsNA() {
			out[i] = e.String()
		}
	}
	return out
}
