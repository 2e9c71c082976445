package model

// Prediction is a model output for one tackler at one frame: the predicted
// and the actual yards gained on the play.
type Prediction struct {
	GameID         int64
	PlayID         int64
	FrameID        int64
	TacklerID      int64
	PredPlayResult float64
	PlayResult     float64
}

// Play carries the play-level context needed to annotate a frame sequence.
type Play struct {
	GameID                 int64
	PlayID                 int64
	BallCarrierID          int64
	BallCarrierDisplayName string
	PossessionTeam         string
	DefensiveTeam          string
	Quarter                int
	Down                   int
	YardsToGo              int
	YardlineNumber         int
	AbsoluteYardlineNumber float64
	PreSnapHomeScore       int
	PreSnapVisitorScore    int
	PlayDescription        string
}

// Game is the subset of the schedule used for play headers.
type Game struct {
	GameID          int64
	Week            int
	HomeTeamAbbr    string
	VisitorTeamAbbr string
}

// PlayDirection is the direction the offense moves on the field.
type PlayDirection string

// Known play directions.
const (
	DirectionLeft  PlayDirection = "left"
	DirectionRight PlayDirection = "right"
)
