package model

import "fmt"

// TackleEvent is one labeled tackle: who tackled whom, where, and when.
// Coordinates are taken from the event record, not re-derived from tracking.
type TackleEvent struct {
	GameID        int64   `json:"gameId"`
	PlayID        int64   `json:"playId"`
	FrameID       int64   `json:"frameId"`
	TacklerID     int64   `json:"tacklerId"`
	BallCarrierID int64   `json:"ballCarrierId"`
	TacklerX      float64 `json:"x_tackler"`
	TacklerY      float64 `json:"y_tackler"`
	BallCarrierX  float64 `json:"x_ballCarrier"`
	BallCarrierY  float64 `json:"y_ballCarrier"`
}

// Key returns the snapshot group the event must be evaluated against.
func (e TackleEvent) Key() Key {
	return Key{GameID: e.GameID, PlayID: e.PlayID, FrameID: e.FrameID}
}

// ID identifies the event for idempotency and failure reporting.
func (e TackleEvent) ID() string {
	return fmt.Sprintf("%d_%d_%d_%d", e.GameID, e.PlayID, e.FrameID, e.TacklerID)
}

// NearestCount is the number of closest players kept per side.
const NearestCount = 3

// FeatureVector holds the derived spatial features of one tackle event.
// Slots without a candidate player hold the configured padding value.
type FeatureVector struct {
	ClosestDefenders   [NearestCount]float64 `json:"closest_defenders"`
	ClosestOffensive   [NearestCount]float64 `json:"closest_offensive"`
	BallCarrierClosest int                   `json:"ballcarrier_closest_indicator"`
	BlockersBetween    int                   `json:"num_off_player_between"`
}
