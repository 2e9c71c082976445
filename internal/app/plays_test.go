package service_test

import (
	"context"
	"errors"
	"testing"

	service "github.com/okian/tackle/internal/app"
	"github.com/okian/tackle/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type stubLoader struct {
	rows  []model.PlayerRow
	err   error
	calls int
}

func (l *stubLoader) LoadPlay(ctx context.Context, gameID, playID int64) ([]model.PlayerRow, error) {
	l.calls++
	return l.rows, l.err
}

func TestPlays_Feed(t *testing.T) {
	Convey("Given indexed play tables", t, func() {
		ctx := context.Background()
		rows := snapshot()
		for i := range rows {
			rows[i].Direction = model.DirectionRight
		}
		loader := &stubLoader{rows: rows}
		plays := service.NewPlays(loader,
			[]model.Play{{GameID: 1, PlayID: 1, BallCarrierID: 20, PossessionTeam: "OFF", Down: 3, YardsToGo: 4, AbsoluteYardlineNumber: 30, Quarter: 4}},
			[]model.Game{{GameID: 1, Week: 3, HomeTeamAbbr: "OFF", VisitorTeamAbbr: "DEF"}},
			[]model.Prediction{
				{GameID: 1, PlayID: 1, FrameID: 1, TacklerID: 11, PredPlayResult: 2, PlayResult: 3},
				{GameID: 1, PlayID: 1, FrameID: 2, TacklerID: 10, PredPlayResult: 5, PlayResult: 3},
			},
		)
		So(plays.Len(), ShouldEqual, 1)

		Convey("When a feed is requested for a tackler", func() {
			feed, err := plays.Feed(ctx, 1, 1, 10)
			So(err, ShouldBeNil)

			Convey("Then it is annotated for that tackler", func() {
				So(feed.TacklerID, ShouldEqual, int64(10))
				So(feed.OffenseClub, ShouldEqual, "OFF")
				So(feed.Title, ShouldEqual, "2022 Week 3: OFF 0 - DEF 0")
				So(feed.Frames, ShouldHaveLength, 2)
				So(feed.Frames[0].PredictedTackleLine, ShouldBeNil)
				So(*feed.Frames[1].PredictedTackleLine, ShouldEqual, 35.0)
			})
		})

		Convey("When no tackler is given", func() {
			feed, err := plays.Feed(ctx, 1, 1, 0)
			So(err, ShouldBeNil)
			So(feed.TacklerID, ShouldEqual, int64(11))
		})

		Convey("When the play is unknown", func() {
			_, err := plays.Feed(ctx, 1, 2, 10)
			So(errors.Is(err, service.ErrPlayNotFound), ShouldBeTrue)
			So(loader.calls, ShouldEqual, 0)
		})

		Convey("When the loader fails", func() {
			boom := errors.New("boom")
			loader.err = boom
			_, err := plays.Feed(ctx, 1, 1, 10)
			So(errors.Is(err, boom), ShouldBeTrue)
		})
	})

	Convey("Given a play without schedule or predictions", t, func() {
		plays := service.NewPlays(&stubLoader{},
			[]model.Play{{GameID: 1, PlayID: 1}, {GameID: 2, PlayID: 1}},
			[]model.Game{{GameID: 2}}, nil)

		_, err := plays.Feed(context.Background(), 1, 1, 10)
		So(errors.Is(err, service.ErrGameNotFound), ShouldBeTrue)

		_, err = plays.Feed(context.Background(), 2, 1, 0)
		So(errors.Is(err, service.ErrNoTackler), ShouldBeTrue)
	})
}
