package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/tackle/internal/adapters/tabular"
	"github.com/okian/tackle/internal/adapters/weekly"
	"github.com/okian/tackle/internal/config"
	"github.com/okian/tackle/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewService(t *testing.T) {
	convey.Convey("Given the default configuration", t, func() {
		cfg := config.New()

		convey.Convey("Then a service can be built and started", func() {
			svc, err := newService(cfg, logger.Get())
			convey.So(err, convey.ShouldBeNil)
			convey.So(svc.Start(context.Background()), convey.ShouldBeNil)
			defer svc.Stop()

			stats := svc.GetStats()
			convey.So(stats["started"], convey.ShouldEqual, true)
			convey.So(stats["workerCount"], convey.ShouldEqual, cfg.WorkerCount)
			convey.So(stats["shardCount"], convey.ShouldEqual, cfg.ShardCount)
		})

		convey.Convey("When the padding is invalid", func() {
			cfg.Padding = "zero"

			convey.Convey("Then no service is built", func() {
				svc, err := newService(cfg, logger.Get())
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(svc, convey.ShouldBeNil)
			})
		})
	})
}

func TestReadTable(t *testing.T) {
	convey.Convey("Given a games table on disk", t, func() {
		dir := t.TempDir()
		path := writeFile(t, dir, "games.csv", "gameId,week,homeTeamAbbr,visitorTeamAbbr\n100,1,KC,BUF\n")

		convey.Convey("Then it is read through the tabular reader", func() {
			games, err := readTable(path, tabular.ReadGames)
			convey.So(err, convey.ShouldBeNil)
			convey.So(games, convey.ShouldHaveLength, 1)
			convey.So(games[0].HomeTeamAbbr, convey.ShouldEqual, "KC")
		})

		convey.Convey("Then a missing file names its path", func() {
			_, err := readTable(filepath.Join(dir, "missing.csv"), tabular.ReadGames)
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "missing.csv")
		})

		convey.Convey("Then an optional table without a path is empty", func() {
			preds, err := readOptionalTable("", tabular.ReadPredictions)
			convey.So(err, convey.ShouldBeNil)
			convey.So(preds, convey.ShouldBeEmpty)
		})
	})
}

func TestNewPlays(t *testing.T) {
	convey.Convey("Given a data directory with one week and the play tables", t, func() {
		dir := t.TempDir()
		writeFile(t, dir, weekly.WeekFile(1),
			"gameId,playId,nflId,displayName,frameId,club,playDirection,x,y\n"+
				"100,1,7,A,1,KC,right,30,20\n"+
				"100,1,9,B,1,BUF,right,35,22\n"+
				"100,1,NA,football,1,football,right,30,20\n")

		cfg := config.New()
		cfg.DataDir = dir
		cfg.WeekEnd = 1
		cfg.PlaysPath = writeFile(t, dir, "plays.csv",
			"gameId,playId,ballCarrierId,possessionTeam,defensiveTeam,quarter,down,yardsToGo,absoluteYardlineNumber\n"+
				"100,1,7,KC,BUF,1,1,10,30\n")
		cfg.GamesPath = writeFile(t, dir, "games.csv", "gameId,week,homeTeamAbbr,visitorTeamAbbr\n100,1,KC,BUF\n")
		cfg.PredictionsPath = writeFile(t, dir, "predictions.csv",
			"gameId,playId,frameId,tacklerId,pred_playResult,playResult\n100,1,1,9,4,5\n")

		convey.Convey("When the play feeds are prepared", func() {
			plays, err := newPlays(context.Background(), cfg, logger.Get())
			convey.So(err, convey.ShouldBeNil)
			convey.So(plays.Len(), convey.ShouldEqual, 1)

			convey.Convey("Then a feed is served for the predicted tackler", func() {
				feed, err := plays.Feed(context.Background(), 100, 1, 0)
				convey.So(err, convey.ShouldBeNil)
				convey.So(feed.TacklerID, convey.ShouldEqual, int64(9))
				convey.So(feed.OffenseClub, convey.ShouldEqual, "KC")
				convey.So(feed.Frames, convey.ShouldHaveLength, 1)
			})
		})

		convey.Convey("When a week file is missing", func() {
			cfg.WeekEnd = 2

			convey.Convey("Then preparation fails", func() {
				_, err := newPlays(context.Background(), cfg, logger.Get())
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given a started service", t, func() {
		svc, err := newService(config.New(), logger.Get())
		convey.So(err, convey.ShouldBeNil)
		convey.So(svc.Start(context.Background()), convey.ShouldBeNil)
		defer svc.Stop()

		convey.Convey("Then the one-shot updates do not panic", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
			convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)
		})

		convey.Convey("Then the loops return once the context is done", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			done := make(chan struct{})
			go func() {
				startSystemMetricsUpdater(ctx)
				startServiceMetricsUpdater(ctx, svc)
				close(done)
			}()

			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("metrics updaters did not stop")
			}
		})
	})

	convey.Convey("Given a service that was never started", t, func() {
		svc, err := newService(config.New(), logger.Get())
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then updating its metrics is a no-op", func() {
			convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)
		})
	})
}
