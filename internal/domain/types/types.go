// Package types contains the JSON shapes shared by the API and publishers.
package types

import (
	"math"

	"github.com/okian/tackle/internal/domain/model"
)

// Features is the wire form of one extracted feature vector. Distances
// that are NaN or infinite are encoded as null.
type Features struct {
	EventID            string     `json:"event_id"`
	RunID              string     `json:"run_id,omitempty"`
	GameID             int64      `json:"gameId"`
	PlayID             int64      `json:"playId"`
	FrameID            int64      `json:"frameId"`
	TacklerID          int64      `json:"tacklerId"`
	BallCarrierID      int64      `json:"ballCarrierId"`
	ClosestDefenders   []*float64 `json:"closest_defenders"`
	ClosestOffensive   []*float64 `json:"closest_offensive"`
	BallCarrierClosest int        `json:"ballcarrier_closest_indicator"`
	BlockersBetween    int        `json:"num_off_player_between"`
}

// NewFeatures converts an event and its vector to the wire form.
func NewFeatures(e model.TackleEvent, v model.FeatureVector) Features {
	return Features{
		EventID:            e.ID(),
		GameID:             e.GameID,
		PlayID:             e.PlayID,
		FrameID:            e.FrameID,
		TacklerID:          e.TacklerID,
		BallCarrierID:      e.BallCarrierID,
		ClosestDefenders:   Distances(v.ClosestDefenders[:]),
		ClosestOffensive:   Distances(v.ClosestOffensive[:]),
		BallCarrierClosest: v.BallCarrierClosest,
		BlockersBetween:    v.BlockersBetween,
	}
}

// Distances maps non-finite values to nil.
func Distances(vals []float64) []*float64 {
	out := make([]*float64, len(vals))
	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		v := v
		out[i] = &v
	}
	return out
}

// Failure describes an event that produced no vector.
type Failure struct {
	EventID   string `json:"event_id"`
	GameID    int64  `json:"gameId"`
	PlayID    int64  `json:"playId"`
	FrameID   int64  `json:"frameId"`
	TacklerID int64  `json:"tacklerId"`
	Reason    string `json:"reason"`
	Message   string `json:"message"`
}

// BatchResult is the response of a batch extraction.
type BatchResult struct {
	RunID      string     `json:"run_id"`
	Results    []Features `json:"results"`
	Failures   []Failure  `json:"failures"`
	Duplicates int        `json:"duplicates"`
}
