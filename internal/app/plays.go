package service

import (
	"context"
	"fmt"

	"github.com/okian/tackle/internal/domain/model"
	"github.com/okian/tackle/internal/domain/playfeed"
	"github.com/okian/tackle/pkg/metrics"
)

// PlayLoader returns the tracking rows of a single play.
type PlayLoader interface {
	LoadPlay(ctx context.Context, gameID, playID int64) ([]model.PlayerRow, error)
}

type playKey struct {
	gameID int64
	playID int64
}

// Plays builds play feeds from the play table, the schedule, the model
// predictions and a loader for tracking rows. It is read-only after
// construction.
type Plays struct {
	loader      PlayLoader
	plays       map[playKey]model.Play
	games       map[int64]model.Game
	predictions map[playKey][]model.Prediction
	season      int
}

// NewPlays indexes the tables. Predictions keep their input order.
func NewPlays(loader PlayLoader, plays []model.Play, games []model.Game, predictions []model.Prediction) *Plays {
	p := &Plays{
		loader:      loader,
		plays:       make(map[playKey]model.Play, len(plays)),
		games:       make(map[int64]model.Game, len(games)),
		predictions: make(map[playKey][]model.Prediction),
		season:      playfeed.DefaultSeason,
	}
	for _, pl := range plays {
		p.plays[playKey{pl.GameID, pl.PlayID}] = pl
	}
	for _, g := range games {
		p.games[g.GameID] = g
	}
	for _, pr := range predictions {
		k := playKey{pr.GameID, pr.PlayID}
		p.predictions[k] = append(p.predictions[k], pr)
	}
	return p
}

// Feed builds the feed of a play for a tackler. A zero tacklerID selects
// the first tackler with a prediction on the play.
func (p *Plays) Feed(ctx context.Context, gameID, playID, tacklerID int64) (playfeed.Feed, error) {
	k := playKey{gameID, playID}
	play, ok := p.plays[k]
	if !ok {
		return playfeed.Feed{}, fmt.Errorf("%w: game %d play %d", ErrPlayNotFound, gameID, playID)
	}
	game, ok := p.games[gameID]
	if !ok {
		return playfeed.Feed{}, fmt.Errorf("%w: %d", ErrGameNotFound, gameID)
	}
	preds := p.predictions[k]
	if tacklerID == 0 {
		if len(preds) == 0 {
			return playfeed.Feed{}, fmt.Errorf("%w: game %d play %d", ErrNoTackler, gameID, playID)
		}
		tacklerID = preds[0].TacklerID
	}

	rows, err := p.loader.LoadPlay(ctx, gameID, playID)
	if err != nil {
		return playfeed.Feed{}, err
	}
	feed, err := playfeed.Build(playfeed.Input{
		Rows:        rows,
		Play:        play,
		Game:        game,
		TacklerID:   tacklerID,
		Predictions: preds,
		Season:      p.season,
	})
	if err != nil {
		return playfeed.Feed{}, fmt.Errorf("game %d play %d: %w", gameID, playID, err)
	}
	metrics.RecordPlayFeedServed()
	return feed, nil
}

// Len returns the number of indexed plays.
func (p *Plays) Len() int { return len(p.plays) }
