package tabular

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/okian/tackle/internal/domain/model"
)

// Feature column names of the output table.
var (
	ClosestDefenderColumns  = [model.NearestCount]string{"closest_defender_1", "closest_defender_2", "closest_defender_3"}    //nolint:gochecknoglobals // read-only schema
	ClosestOffensiveColumns = [model.NearestCount]string{"closest_offensive_1", "closest_offensive_2", "closest_offensive_3"} //nolint:gochecknoglobals // read-only schema
)

// Scalar feature column names of the output table.
const (
	ColBallCarrierClosest = "ballcarrier_closest_indicator"
	ColBlockersBetween    = "num_off_player_between"
	// ColFeatureError holds the failure reason of a row without features.
	ColFeatureError = "feature_error"
)

// RowFeatures is the outcome of one input row. Err is empty when Vector
// holds its features. Skip leaves the row out of the output.
type RowFeatures struct {
	Vector model.FeatureVector
	Err    string
	Skip   bool
}

// WriteAugmented writes t back with the feature columns appended, one row
// per input row in input order. Feature columns already present in the
// input are overwritten in place. Rows with an Err get empty feature cells.
func WriteAugmented(w io.Writer, t *EventTable, rows []RowFeatures) error {
	if len(rows) != t.Len() {
		return fmt.Errorf("%w: %d rows, %d results", ErrLengthMismatch, t.Len(), len(rows))
	}

	keep := make([]int, 0, len(rows))
	for i, r := range rows {
		if !r.Skip {
			keep = append(keep, i)
		}
	}
	df := t.raw
	if len(keep) < len(rows) {
		df = df.Subset(keep)
	}

	text := func(name string, cell func(RowFeatures) string) series.Series {
		vals := make([]string, len(keep))
		for i, row := range keep {
			if rows[row].Err == "" {
				vals[i] = cell(rows[row])
			}
		}
		return series.New(vals, series.String, name)
	}
	var cols []series.Series
	for k := 0; k < model.NearestCount; k++ {
		cols = append(cols, text(ClosestDefenderColumns[k], func(r RowFeatures) string { return formatFloat(r.Vector.ClosestDefenders[k]) }))
	}
	for k := 0; k < model.NearestCount; k++ {
		cols = append(cols, text(ClosestOffensiveColumns[k], func(r RowFeatures) string { return formatFloat(r.Vector.ClosestOffensive[k]) }))
	}
	cols = append(cols,
		text(ColBallCarrierClosest, func(r RowFeatures) string { return strconv.Itoa(r.Vector.BallCarrierClosest) }),
		text(ColBlockersBetween, func(r RowFeatures) string { return strconv.Itoa(r.Vector.BlockersBetween) }),
	)
	reasons := make([]string, len(keep))
	for i, row := range keep {
		reasons[i] = rows[row].Err
	}
	cols = append(cols, series.New(reasons, series.String, ColFeatureError))

	for _, c := range cols {
		df = df.Mutate(c)
	}
	if df.Err != nil {
		return fmt.Errorf("build feature table: %w", df.Err)
	}
	if err := df.WriteCSV(w, dataframe.WriteHeader(true)); err != nil {
		return fmt.Errorf("write feature table: %w", err)
	}
	return nil
}

// formatFloat renders v with the shortest exact representation; NaN is
// empty and infinities are spelled inf and -inf.
func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return ""
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	default:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
}
