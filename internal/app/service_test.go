package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/tackle/internal/adapters/sink"
	service "github.com/okian/tackle/internal/app"
	"github.com/okian/tackle/internal/domain/features"
	"github.com/okian/tackle/internal/domain/model"
	"github.com/okian/tackle/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func player(frame, id int64, club string, x, y float64) model.PlayerRow {
	return model.PlayerRow{GameID: 1, PlayID: 1, FrameID: frame, NFLID: model.ID(id), Club: club, X: x, Y: y}
}

// snapshot has two frames. In each, defender 10 tackles carrier 20 with
// one blocker 21 between them.
func snapshot() []model.PlayerRow {
	var rows []model.PlayerRow
	for _, f := range []int64{1, 2} {
		rows = append(rows,
			player(f, 10, "DEF", 10, 10),
			player(f, 11, "DEF", 13, 14),
			player(f, 20, "OFF", 20, 10),
			player(f, 21, "OFF", 15, 10),
			model.PlayerRow{GameID: 1, PlayID: 1, FrameID: f, Club: model.FootballClub, X: 20, Y: 10},
		)
	}
	return rows
}

func event(frame, tackler int64) model.TackleEvent {
	return model.TackleEvent{
		GameID: 1, PlayID: 1, FrameID: frame,
		TacklerID: tackler, BallCarrierID: 20,
		TacklerX: 10, TacklerY: 10, BallCarrierX: 20, BallCarrierY: 10,
	}
}

func started(ctx context.Context, opts ...service.Option) *service.Service {
	svc := service.New(append([]service.Option{service.WithWorkerCount(2), service.WithQueueSize(4)}, opts...)...)
	So(svc.Start(ctx), ShouldBeNil)
	So(svc.LoadSnapshot(ctx, snapshot()), ShouldBeNil)
	return svc
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
			stats := svc.GetStats()
			So(stats["shardCount"], ShouldEqual, 16)
			So(stats["dedupeSize"], ShouldEqual, 50000)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithWorkerCount(8),
			service.WithQueueSize(50_000),
			service.WithDedupeSize(25_000),
			service.WithShardCount(2),
		)

		Convey("Then the options should be applied", func() {
			stats := svc.GetStats()
			So(stats["workerCount"], ShouldEqual, 8)
			So(stats["queueSize"], ShouldEqual, 50_000)
			So(stats["shardCount"], ShouldEqual, 2)
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New()
		defer svc.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		Convey("When the service is not started", func() {
			_, err := svc.Extract(ctx, event(1, 10))
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(errors.Is(svc.LoadSnapshot(ctx, snapshot()), service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.Run(ctx, nil)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})

		Convey("When starting the service", func() {
			So(svc.Start(ctx), ShouldBeNil)

			Convey("Then it should be marked as started", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["queueLength"], ShouldEqual, 0)
			})

			Convey("Then starting again is a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})

			Convey("Then stopping marks it stopped", func() {
				svc.Stop()
				So(svc.GetStats()["started"], ShouldEqual, false)
				So(svc.Shutdown(ctx), ShouldBeNil)
			})
		})
	})
}

func TestService_SeenAndRecord(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := service.New()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When checking the same event ID twice", func() {
			So(svc.SeenAndRecord(ctx, "1_1_1_10"), ShouldBeFalse)
			So(svc.SeenAndRecord(ctx, "1_1_1_10"), ShouldBeTrue)

			Convey("Then unrecording allows it again", func() {
				svc.Unrecord(ctx, "1_1_1_10")
				So(svc.SeenAndRecord(ctx, "1_1_1_10"), ShouldBeFalse)
			})
		})
	})
}

func TestService_Extract(t *testing.T) {
	Convey("Given a started service with a snapshot", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		svc := started(ctx)
		defer svc.Stop()

		Convey("When a valid event is extracted", func() {
			fv, err := svc.Extract(ctx, event(1, 10))
			So(err, ShouldBeNil)

			Convey("Then the features describe the frame", func() {
				So(fv.ClosestDefenders[0], ShouldEqual, 5.0)
				So(fv.ClosestOffensive[0], ShouldEqual, 5.0)
				So(fv.BlockersBetween, ShouldEqual, 1)
			})
		})

		Convey("When the frame is not loaded", func() {
			_, err := svc.Extract(ctx, event(9, 10))
			So(features.Reason(err), ShouldEqual, features.ReasonGroupNotFound)
		})

		Convey("Then the snapshot shows in the stats", func() {
			stats := svc.GetStats()
			So(stats["snapshotGroups"], ShouldEqual, 2)
			So(stats["snapshotRows"], ShouldEqual, 10)
		})
	})
}

func TestService_Run(t *testing.T) {
	Convey("Given a started service writing to memory", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		out := sink.NewMemory()
		svc := started(ctx, service.WithSink(out))
		defer svc.Stop()

		events := []model.TackleEvent{
			event(1, 10),
			event(2, 10),
			event(1, 10), // duplicate
			event(3, 10), // frame not loaded
			event(2, 99), // unknown tackler
			event(1, 11),
			event(2, 11),
			event(1, 10), // duplicate
		}

		Convey("When the events are run", func() {
			rep, err := svc.Run(ctx, events)
			So(err, ShouldBeNil)

			Convey("Then every event is accounted for", func() {
				So(rep.RunID, ShouldNotBeEmpty)
				So(rep.Total, ShouldEqual, len(events))
				So(rep.Succeeded, ShouldEqual, 4)
				So(rep.Duplicates, ShouldEqual, 2)
				So(rep.Failed, ShouldHaveLength, 2)
			})

			Convey("Then failures are attributed and ordered by input position", func() {
				So(rep.Failed[0].Seq, ShouldEqual, 3)
				So(rep.Failed[0].Reason, ShouldEqual, features.ReasonGroupNotFound)
				So(rep.Failed[0].Key, ShouldResemble, model.Key{GameID: 1, PlayID: 1, FrameID: 3})
				So(rep.Failed[1].Seq, ShouldEqual, 4)
				So(rep.Failed[1].TacklerID, ShouldEqual, int64(99))
				So(rep.Failed[1].Reason, ShouldEqual, features.ReasonIdentifierNotFound)
				So(svc.Failures(), ShouldResemble, rep.Failed)
			})

			Convey("Then the sink received the successful records", func() {
				recs := out.Records()
				So(recs, ShouldHaveLength, 4)
				So(recs[0].Seq, ShouldEqual, 0)
				So(recs[0].RunID, ShouldEqual, rep.RunID)
			})

			Convey("Then a second run does not treat the events as duplicates", func() {
				again, err := svc.Run(ctx, events[:2])
				So(err, ShouldBeNil)
				So(again.Duplicates, ShouldEqual, 0)
				So(again.Succeeded, ShouldEqual, 2)
				So(again.RunID, ShouldNotEqual, rep.RunID)
			})
		})

		Convey("When an empty run is submitted", func() {
			rep, err := svc.Run(ctx, nil)
			So(err, ShouldBeNil)
			So(rep.Total, ShouldEqual, 0)
		})

		Convey("When the context is already cancelled", func() {
			cctx, ccancel := context.WithCancel(ctx)
			ccancel()
			_, err := svc.Run(cctx, events)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

// accountingSink is a memory sink that also keeps the events without a
// record.
type accountingSink struct {
	*sink.Memory
	mu       sync.Mutex
	outcomes map[int]sink.Outcome
}

func (a *accountingSink) WriteOutcome(_ context.Context, o sink.Outcome) error { //nolint:gocritic // hugeParam: test double
	a.mu.Lock()
	a.outcomes[o.Seq] = o
	a.mu.Unlock()
	return nil
}

func TestService_RunOutcomes(t *testing.T) {
	Convey("Given a started service whose sink accounts for every event", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		acc := &accountingSink{Memory: sink.NewMemory(), outcomes: make(map[int]sink.Outcome)}
		svc := started(ctx, service.WithSink(sink.NewMulti(acc)))
		defer svc.Stop()

		Convey("When a run has a duplicate and a failure", func() {
			rep, err := svc.Run(ctx, []model.TackleEvent{event(1, 10), event(3, 10), event(1, 10)})
			So(err, ShouldBeNil)

			Convey("Then records and outcomes cover every input position", func() {
				So(acc.Records(), ShouldHaveLength, 1)
				So(acc.outcomes, ShouldHaveLength, 2)

				failed := acc.outcomes[1]
				So(failed.Duplicate, ShouldBeFalse)
				So(failed.Reason, ShouldEqual, features.ReasonGroupNotFound)
				So(failed.RunID, ShouldEqual, rep.RunID)

				dup := acc.outcomes[2]
				So(dup.Duplicate, ShouldBeTrue)
				So(dup.DuplicateOf, ShouldEqual, 0)
			})
		})

		Convey("When a batch is extracted instead", func() {
			_, err := svc.ExtractBatch(ctx, []model.TackleEvent{event(3, 10), event(3, 10)})
			So(err, ShouldBeNil)

			Convey("Then the sink hears nothing", func() {
				So(acc.outcomes, ShouldBeEmpty)
			})
		})
	})
}

func TestService_ExtractBatch(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		out := sink.NewMemory()
		svc := started(ctx, service.WithSink(out))
		defer svc.Stop()

		Convey("When a batch is extracted", func() {
			res, err := svc.ExtractBatch(ctx, []model.TackleEvent{event(2, 11), event(3, 10), event(1, 10)})
			So(err, ShouldBeNil)

			Convey("Then results come back in input order", func() {
				So(res.Results, ShouldHaveLength, 2)
				So(res.Results[0].EventID, ShouldEqual, "1_1_2_11")
				So(res.Results[1].EventID, ShouldEqual, "1_1_1_10")
				So(res.Results[0].RunID, ShouldEqual, res.RunID)
			})

			Convey("Then failures carry the event identity", func() {
				So(res.Failures, ShouldHaveLength, 1)
				So(res.Failures[0].EventID, ShouldEqual, "1_1_3_10")
				So(res.Failures[0].Reason, ShouldEqual, features.ReasonGroupNotFound)
				So(res.Failures[0].Message, ShouldNotBeEmpty)
			})

			Convey("Then the configured sink is bypassed", func() {
				So(out.Records(), ShouldBeEmpty)
			})
		})
	})
}
