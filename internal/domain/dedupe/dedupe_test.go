package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tackle/internal/domain/dedupe"
	"github.com/okian/tackle/internal/domain/model"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		ctx := context.Background()

		Convey("When recording event ids", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("Then a new id should not be seen", func() {
				So(d.SeenAndRecord(ctx, "1_1_1_100"), ShouldBeFalse)
				So(d.Size(), ShouldEqual, int64(1))
			})

			Convey("Then a repeated id should be seen", func() {
				d.SeenAndRecord(ctx, "1_1_1_100")
				So(d.SeenAndRecord(ctx, "1_1_1_100"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, int64(1))
			})
		})

		Convey("When keying by tackle event", func() {
			d := dedupe.NewInMemoryDeduper()
			event := model.TackleEvent{GameID: 1, PlayID: 2, FrameID: 3, TacklerID: 4}

			Convey("Then the same record twice should be a duplicate", func() {
				So(dedupe.SeenEvent(ctx, d, event), ShouldBeFalse)
				So(dedupe.SeenEvent(ctx, d, event), ShouldBeTrue)
			})

			Convey("Then a different tackler on the same frame should not be", func() {
				dedupe.SeenEvent(ctx, d, event)
				other := event
				other.TacklerID = 5
				So(dedupe.SeenEvent(ctx, d, other), ShouldBeFalse)
			})
		})

		Convey("When unrecording ids", func() {
			d := dedupe.NewInMemoryDeduper()
			d.SeenAndRecord(ctx, "a")
			d.SeenAndRecord(ctx, "b")
			d.Unrecord(ctx, "a")
			d.Unrecord(ctx, "missing")

			Convey("Then only existing ids should be removed", func() {
				So(d.Size(), ShouldEqual, int64(1))
				So(d.SeenAndRecord(ctx, "a"), ShouldBeFalse)
				So(d.SeenAndRecord(ctx, "b"), ShouldBeTrue)
			})
		})

		Convey("When resetting", func() {
			d := dedupe.NewInMemoryDeduper()
			d.SeenAndRecord(ctx, "a")
			d.Reset(ctx)

			Convey("Then everything should be forgotten", func() {
				So(d.Size(), ShouldEqual, int64(0))
				So(d.SeenAndRecord(ctx, "a"), ShouldBeFalse)
			})
		})

		Convey("When the bounded set is at capacity", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
			for _, id := range []string{"e1", "e2", "e3"} {
				So(d.SeenAndRecord(ctx, id), ShouldBeFalse)
			}
			So(d.SeenAndRecord(ctx, "e4"), ShouldBeFalse)

			Convey("Then the oldest id should have been evicted", func() {
				So(d.Size(), ShouldEqual, int64(3))
				So(d.SeenAndRecord(ctx, "e4"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "e3"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "e1"), ShouldBeFalse)
				So(d.Size(), ShouldEqual, int64(3))
			})
		})

		Convey("When unbounded", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
			const numEvents = 1000
			for i := 0; i < numEvents; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("event-%d", i))
			}

			Convey("Then nothing should be evicted", func() {
				So(d.Size(), ShouldEqual, int64(numEvents))
				So(d.SeenAndRecord(ctx, "event-0"), ShouldBeTrue)
			})
		})
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given a deduper with concurrent access", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(1000))
		const numGoroutines = 10
		const eventsPerGoroutine = 100

		Convey("When multiple goroutines record events concurrently", func() {
			var wg sync.WaitGroup
			for i := 0; i < numGoroutines; i++ {
				wg.Add(1)
				go func(goroutineID int) {
					defer wg.Done()
					for j := 0; j < eventsPerGoroutine; j++ {
						d.SeenAndRecord(context.Background(), fmt.Sprintf("event-%d-%d", goroutineID, j))
					}
				}(i)
			}
			wg.Wait()

			Convey("Then all events should be recorded", func() {
				So(d.Size(), ShouldEqual, int64(numGoroutines*eventsPerGoroutine))
			})
		})
	})
}
