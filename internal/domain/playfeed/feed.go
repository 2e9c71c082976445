// Package playfeed turns the tracking rows of a single play into an
// annotated frame sequence a renderer can draw without further lookups.
package playfeed

import (
	"fmt"
	"slices"
	"strings"

	"github.com/okian/tackle/internal/domain/model"
)

// Dot is one marker on the field.
type Dot struct {
	NFLID *int64  `json:"nflId,omitempty"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// Frame holds the markers of one frame of the play.
type Frame struct {
	FrameID     int64 `json:"frameId"`
	Offense     []Dot `json:"offense"`
	Defense     []Dot `json:"defense"`
	Ball        *Dot  `json:"ball,omitempty"`
	Tackler     *Dot  `json:"tackler,omitempty"`
	BallCarrier *Dot  `json:"ballCarrier,omitempty"`
	// PredictedTackleLine is set when a prediction exists for this frame.
	PredictedTackleLine *float64 `json:"predictedTackleLine,omitempty"`
}

// Feed is a play annotated with its lines and header text.
type Feed struct {
	GameID           int64               `json:"gameId"`
	PlayID           int64               `json:"playId"`
	TacklerID        int64               `json:"tacklerId"`
	BallCarrierID    int64               `json:"ballCarrierId"`
	BallCarrierName  string              `json:"ballCarrierName,omitempty"`
	Direction        model.PlayDirection `json:"playDirection"`
	OffenseClub      string              `json:"offenseClub"`
	DefenseClub      string              `json:"defenseClub"`
	LineOfScrimmage  float64             `json:"lineOfScrimmage"`
	FirstDownLine    float64             `json:"firstDownLine"`
	ActualTackleLine *float64            `json:"actualTackleLine,omitempty"`
	Title            string              `json:"title"`
	Subtitle         []string            `json:"subtitle"`
	Frames           []Frame             `json:"frames"`
}

// Input is everything Build needs for one play.
type Input struct {
	Rows        []model.PlayerRow
	Play        model.Play
	Game        model.Game
	TacklerID   int64
	Predictions []model.Prediction
	// Season defaults to DefaultSeason.
	Season int
}

// Build assembles the feed of a play. Rows may be in any order; frames
// come out sorted by frame id.
func Build(in Input) (Feed, error) {
	if len(in.Rows) == 0 {
		return Feed{}, ErrNoRows
	}
	offense, defense, err := clubs(in.Rows, in.Play.PossessionTeam)
	if err != nil {
		return Feed{}, err
	}

	dir := in.Rows[0].Direction
	los := lineOfScrimmage(in.Play, dir)
	f := Feed{
		GameID:          in.Play.GameID,
		PlayID:          in.Play.PlayID,
		TacklerID:       in.TacklerID,
		BallCarrierID:   in.Play.BallCarrierID,
		BallCarrierName: in.Play.BallCarrierDisplayName,
		Direction:       dir,
		OffenseClub:     offense,
		DefenseClub:     defense,
		LineOfScrimmage: los,
		FirstDownLine:   advance(in.Play.AbsoluteYardlineNumber, float64(in.Play.YardsToGo), dir),
		Title:           Title(in.Game, in.Play, in.Season),
		Subtitle:        wrap(Subtitle(in.Play), wrapWidth),
	}

	byFrame := make(map[int64]model.Prediction)
	for _, p := range in.Predictions {
		if p.GameID != in.Play.GameID || p.PlayID != in.Play.PlayID || p.TacklerID != in.TacklerID {
			continue
		}
		if f.ActualTackleLine == nil {
			line := advance(los, p.PlayResult, dir)
			f.ActualTackleLine = &line
		}
		if _, ok := byFrame[p.FrameID]; !ok {
			byFrame[p.FrameID] = p
		}
	}

	frames := make(map[int64]*Frame)
	var order []int64
	for _, r := range in.Rows {
		fr, ok := frames[r.FrameID]
		if !ok {
			fr = &Frame{FrameID: r.FrameID, Offense: []Dot{}, Defense: []Dot{}}
			frames[r.FrameID] = fr
			order = append(order, r.FrameID)
		}
		dot := Dot{NFLID: r.NFLID, X: r.X, Y: r.Y}
		switch {
		case r.Club == model.FootballClub:
			if fr.Ball == nil {
				fr.Ball = &dot
			}
		case r.HasID(in.TacklerID):
			if fr.Tackler == nil {
				fr.Tackler = &dot
			}
		case r.HasID(in.Play.BallCarrierID):
			if fr.BallCarrier == nil {
				fr.BallCarrier = &dot
			}
		case r.Club == offense:
			fr.Offense = append(fr.Offense, dot)
		case r.Club == defense:
			fr.Defense = append(fr.Defense, dot)
		}
	}

	slices.Sort(order)
	f.Frames = make([]Frame, 0, len(order))
	for _, id := range order {
		fr := frames[id]
		if p, ok := byFrame[id]; ok {
			line := advance(los, p.PredPlayResult, dir)
			fr.PredictedTackleLine = &line
		}
		f.Frames = append(f.Frames, *fr)
	}
	return f, nil
}

// clubs returns the two teams of the play, offense first. The offense is
// the possession team; if neither matches, the second team seen is used.
func clubs(rows []model.PlayerRow, possession string) (string, string, error) {
	var teams []string
	for _, r := range rows {
		if r.Club == model.FootballClub || r.Club == "" || slices.Contains(teams, r.Club) {
			continue
		}
		teams = append(teams, r.Club)
	}
	if len(teams) != 2 {
		return "", "", fmt.Errorf("%w: found %d", ErrClubs, len(teams))
	}
	if teams[0] != possession {
		return teams[1], teams[0], nil
	}
	return teams[0], teams[1], nil
}

// lineOfScrimmage shifts long-yardage plays back by the yards beyond ten.
func lineOfScrimmage(p model.Play, dir model.PlayDirection) float64 {
	if p.YardsToGo > 10 {
		return advance(p.AbsoluteYardlineNumber, -float64(p.YardsToGo-10), dir)
	}
	return p.AbsoluteYardlineNumber
}

// advance moves a yard line by yards in the offense's direction.
func advance(line, yards float64, dir model.PlayDirection) float64 {
	if dir == model.DirectionLeft {
		return line - yards
	}
	return line + yards
}

// Title renders "2022 Week 1: KC 0 - ARI 7".
func Title(g model.Game, p model.Play, season int) string {
	if season == 0 {
		season = DefaultSeason
	}
	return fmt.Sprintf("%d Week %d: %s %d - %s %d",
		season, g.Week, g.HomeTeamAbbr, p.PreSnapHomeScore, g.VisitorTeamAbbr, p.PreSnapVisitorScore)
}

// Subtitle renders the down, distance and quarter ahead of the play
// description.
func Subtitle(p model.Play) string {
	return fmt.Sprintf("(%d%s & %d)(Q%d) %s", p.Down, ordinal(p.Down), p.YardsToGo, p.Quarter, p.PlayDescription)
}

func ordinal(n int) string {
	switch n {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}

// wrap breaks s into lines of at most width runes on word boundaries.
// Words longer than width are split.
func wrap(s string, width int) []string {
	var (
		lines []string
		line  []rune
	)
	for _, word := range strings.Fields(s) {
		w := []rune(word)
		for len(w) > width {
			if len(line) > 0 {
				lines = append(lines, string(line))
				line = line[:0]
			}
			lines = append(lines, string(w[:width]))
			w = w[width:]
		}
		switch {
		case len(line) == 0:
			line = append(line, w...)
		case len(line)+1+len(w) <= width:
			line = append(append(line, ' '), w...)
		default:
			lines = append(lines, string(line))
			line = append(line[:0], w...)
		}
	}
	if len(line) > 0 {
		lines = append(lines, string(line))
	}
	return lines
}
