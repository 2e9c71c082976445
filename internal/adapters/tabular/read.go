package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/go-gota/gota/dataframe"

	"github.com/okian/tackle/internal/domain/model"
)

// Column names of the input tables.
const (
	colGameID        = "gameId"
	colPlayID        = "playId"
	colFrameID       = "frameId"
	colNFLID         = "nflId"
	colClub          = "club"
	colX             = "x"
	colY             = "y"
	colPlayDirection = "playDirection"

	colTacklerID      = "tacklerId"
	colBallCarrierID  = "ballCarrierId"
	colTacklerX       = "x_tackler"
	colTacklerY       = "y_tackler"
	colBallCarrierX   = "x_ballCarrier"
	colBallCarrierY   = "y_ballCarrier"
	colPredPlayResult = "pred_playResult"
	colPlayResult     = "playResult"
)

var trackingNumeric = []string{colGameID, colPlayID, colFrameID, colNFLID, colX, colY} //nolint:gochecknoglobals // read-only schema

// ReadTracking reads a tracking table. nflId may be missing for the ball.
func ReadTracking(r io.Reader) ([]model.PlayerRow, error) {
	df := dataframe.ReadCSV(r, loadOptions(trackingNumeric...)...)
	return trackingRows(df)
}

// ReadPlayTracking reads only the rows of one play from a tracking table.
// Rows are filtered while streaming so a whole week file is never held as
// a data frame.
func ReadPlayTracking(r io.Reader, gameID, playID int64) ([]model.PlayerRow, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	gi, pi := indexOf(header, colGameID), indexOf(header, colPlayID)
	if gi < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, colGameID)
	}
	if pi < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, colPlayID)
	}

	records := [][]string{header}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if matchID(rec[gi], gameID) && matchID(rec[pi], playID) {
			records = append(records, rec)
		}
	}
	if len(records) == 1 {
		return nil, nil
	}
	return trackingRows(dataframe.LoadRecords(records, loadOptions(trackingNumeric...)...))
}

func trackingRows(df dataframe.DataFrame) ([]model.PlayerRow, error) {
	f, err := newFrame(df, colGameID, colPlayID, colFrameID, colNFLID, colClub, colX, colY)
	if err != nil {
		return nil, err
	}
	games, err := f.ids(colGameID)
	if err != nil {
		return nil, err
	}
	plays, err := f.ids(colPlayID)
	if err != nil {
		return nil, err
	}
	frames, err := f.ids(colFrameID)
	if err != nil {
		return nil, err
	}
	nflIDs, err := f.nullableIDs(colNFLID)
	if err != nil {
		return nil, err
	}
	clubs, xs, ys := f.strings(colClub), f.floats(colX), f.floats(colY)
	dirs := f.strings(colPlayDirection)

	out := make([]model.PlayerRow, f.rows())
	for i := range out {
		out[i] = model.PlayerRow{
			GameID:    games[i],
			PlayID:    plays[i],
			FrameID:   frames[i],
			NFLID:     nflIDs[i],
			Club:      clubs[i],
			X:         xs[i],
			Y:         ys[i],
			Direction: model.PlayDirection(dirs[i]),
		}
	}
	return out, nil
}

// ReadPredictions reads model predictions per (game, play, frame, tackler).
func ReadPredictions(r io.Reader) ([]model.Prediction, error) {
	df := dataframe.ReadCSV(r, loadOptions(colGameID, colPlayID, colFrameID, colTacklerID, colPredPlayResult, colPlayResult)...)
	f, err := newFrame(df, colGameID, colPlayID, colFrameID, colTacklerID, colPredPlayResult, colPlayResult)
	if err != nil {
		return nil, err
	}

	cols := make(map[string][]int64, 4)
	for _, c := range []string{colGameID, colPlayID, colFrameID, colTacklerID} {
		if cols[c], err = f.ids(c); err != nil {
			return nil, err
		}
	}
	pred, actual := f.floats(colPredPlayResult), f.floats(colPlayResult)

	out := make([]model.Prediction, f.rows())
	for i := range out {
		out[i] = model.Prediction{
			GameID:         cols[colGameID][i],
			PlayID:         cols[colPlayID][i],
			FrameID:        cols[colFrameID][i],
			TacklerID:      cols[colTacklerID][i],
			PredPlayResult: pred[i],
			PlayResult:     actual[i],
		}
	}
	return out, nil
}

// ReadPlays reads the play table.
func ReadPlays(r io.Reader) ([]model.Play, error) {
	numeric := []string{colGameID, colPlayID, colBallCarrierID, "quarter", "down", "yardsToGo", "yardlineNumber",
		"absoluteYardlineNumber", "preSnapHomeScore", "preSnapVisitorScore"}
	df := dataframe.ReadCSV(r, loadOptions(numeric...)...)
	f, err := newFrame(df, colGameID, colPlayID, colBallCarrierID, "possessionTeam", "down", "yardsToGo",
		"absoluteYardlineNumber")
	if err != nil {
		return nil, err
	}
	games, err := f.ids(colGameID)
	if err != nil {
		return nil, err
	}
	plays, err := f.ids(colPlayID)
	if err != nil {
		return nil, err
	}
	carriers, err := f.ids(colBallCarrierID)
	if err != nil {
		return nil, err
	}

	var (
		names       = f.strings("ballCarrierDisplayName")
		possession  = f.strings("possessionTeam")
		defense     = f.strings("defensiveTeam")
		quarter     = f.ints("quarter")
		down        = f.ints("down")
		toGo        = f.ints("yardsToGo")
		yardline    = f.ints("yardlineNumber")
		absYardline = f.floats("absoluteYardlineNumber")
		home        = f.ints("preSnapHomeScore")
		visitor     = f.ints("preSnapVisitorScore")
		description = f.strings("playDescription")
	)

	out := make([]model.Play, f.rows())
	for i := range out {
		out[i] = model.Play{
			GameID:                 games[i],
			PlayID:                 plays[i],
			BallCarrierID:          carriers[i],
			BallCarrierDisplayName: names[i],
			PossessionTeam:         possession[i],
			DefensiveTeam:          defense[i],
			Quarter:                quarter[i],
			Down:                   down[i],
			YardsToGo:              toGo[i],
			YardlineNumber:         yardline[i],
			AbsoluteYardlineNumber: absYardline[i],
			PreSnapHomeScore:       home[i],
			PreSnapVisitorScore:    visitor[i],
			PlayDescription:        description[i],
		}
	}
	return out, nil
}

// ReadGames reads the game schedule.
func ReadGames(r io.Reader) ([]model.Game, error) {
	df := dataframe.ReadCSV(r, loadOptions(colGameID, "week")...)
	f, err := newFrame(df, colGameID, "week", "homeTeamAbbr", "visitorTeamAbbr")
	if err != nil {
		return nil, err
	}
	games, err := f.ids(colGameID)
	if err != nil {
		return nil, err
	}
	weeks, home, visitor := f.ints("week"), f.strings("homeTeamAbbr"), f.strings("visitorTeamAbbr")

	out := make([]model.Game, f.rows())
	for i := range out {
		out[i] = model.Game{GameID: games[i], Week: weeks[i], HomeTeamAbbr: home[i], VisitorTeamAbbr: visitor[i]}
	}
	return out, nil
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

func matchID(cell string, want int64) bool {
	v, err := strconv.ParseFloat(cell, 64)
	return err == nil && v == float64(want)
}
