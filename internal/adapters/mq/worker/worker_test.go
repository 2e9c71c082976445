package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/tackle/internal/adapters/mq/queue"
	"github.com/okian/tackle/internal/adapters/mq/worker"
	"github.com/okian/tackle/internal/adapters/sink"
	"github.com/okian/tackle/internal/domain/model"
	logging "github.com/okian/tackle/pkg/logger"
)

var errNoGroup = errors.New("no group")

// Mock implementations for testing.
type mockExtractor struct {
	mu    sync.Mutex
	fail  map[int64]error
	calls int
}

func newMockExtractor() *mockExtractor {
	return &mockExtractor{fail: make(map[int64]error)}
}

func (m *mockExtractor) Extract(ctx context.Context, e model.TackleEvent) (model.FeatureVector, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err, ok := m.fail[e.TacklerID]; ok {
		return model.FeatureVector{}, err
	}
	return model.FeatureVector{BlockersBetween: int(e.TacklerID)}, nil
}

type mockSink struct {
	mu   sync.Mutex
	recs []sink.Record
	err  error
}

func (m *mockSink) Write(ctx context.Context, rec sink.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.recs = append(m.recs, rec)
	return nil
}

func (m *mockSink) records() []sink.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sink.Record(nil), m.recs...)
}

type mockTracker struct {
	wg   sync.WaitGroup
	mu   sync.Mutex
	errs map[int]error
}

func newMockTracker(expected int) *mockTracker {
	t := &mockTracker{errs: make(map[int]error)}
	t.wg.Add(expected)
	return t
}

func (m *mockTracker) Done(ctx context.Context, job queue.Job, err error) {
	m.mu.Lock()
	m.errs[job.Seq] = err
	m.mu.Unlock()
	m.wg.Done()
}

func (m *mockTracker) wait(t *testing.T) bool {
	done := make(chan struct{})
	go func() { m.wg.Wait(); close(done) }()
	select {
	case <-done:
		return true
	case <-time.After(2 * time.Second):
		t.Log("timed out waiting for jobs")
		return false
	}
}

func submit(q *queue.InMemoryQueue, tacklers ...int64) {
	for i, id := range tacklers {
		q.Enqueue(context.Background(), queue.Job{RunID: "r", Seq: i, Event: model.TackleEvent{GameID: 1, PlayID: 1, FrameID: 1, TacklerID: id}})
	}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a single worker", t, func() {
		_ = logging.Init()
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		extractor := newMockExtractor()
		out := &mockSink{}
		tracker := newMockTracker(3)
		w := worker.NewInMemoryWorker(q, extractor, out, worker.WithName("test-worker"), worker.WithTracker(tracker))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When one of three events cannot be extracted", func() {
			extractor.fail[2] = errNoGroup
			submit(q, 1, 2, 3)
			convey.So(tracker.wait(t), convey.ShouldBeTrue)

			convey.Convey("Then the other two should reach the sink", func() {
				recs := out.records()
				convey.So(len(recs), convey.ShouldEqual, 2)
				convey.So(recs[0].RunID, convey.ShouldEqual, "r")
			})

			convey.Convey("Then the tracker should see the failure", func() {
				convey.So(errors.Is(tracker.errs[1], errNoGroup), convey.ShouldBeTrue)
				convey.So(tracker.errs[0], convey.ShouldBeNil)
				convey.So(tracker.errs[2], convey.ShouldBeNil)
			})
		})

		convey.Convey("When the sink fails", func() {
			out.err = errors.New("disk full")
			submit(q, 1, 2, 3)
			convey.So(tracker.wait(t), convey.ShouldBeTrue)

			convey.Convey("Then every job should report the write error", func() {
				for seq := 0; seq < 3; seq++ {
					convey.So(tracker.errs[seq], convey.ShouldNotBeNil)
					convey.So(tracker.errs[seq].Error(), convey.ShouldContainSubstring, "disk full")
				}
			})
		})

		convey.Convey("When shut down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()

			convey.Convey("Then it should stop and tolerate a second call", func() {
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a worker pool", t, func() {
		_ = logging.Init()
		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		extractor := newMockExtractor()
		out := &mockSink{}

		convey.Convey("When created with a non-positive count", func() {
			pool := worker.NewPool(0, q, extractor, out, nil)

			convey.Convey("Then it should size itself to the machine", func() {
				convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When processing many events concurrently", func() {
			const n = 50
			tracker := newMockTracker(n)
			pool := worker.NewPool(4, q, extractor, out, tracker)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			pool.Start(ctx)

			ids := make([]int64, n)
			for i := range ids {
				ids[i] = int64(i + 1)
			}
			submit(q, ids...)
			convey.So(tracker.wait(t), convey.ShouldBeTrue)

			convey.Convey("Then every event should be written exactly once", func() {
				recs := out.records()
				convey.So(len(recs), convey.ShouldEqual, n)
				seen := make(map[int]bool)
				for _, r := range recs {
					convey.So(seen[r.Seq], convey.ShouldBeFalse)
					seen[r.Seq] = true
					convey.So(r.Vector.BlockersBetween, convey.ShouldEqual, int(r.Event.TacklerID))
				}
				convey.So(pool.Processed(), convey.ShouldEqual, int64(n))
			})

			convey.Convey("Then shutdown should drain and return", func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
				defer shutdownCancel()
				convey.So(pool.Shutdown(shutdownCtx), convey.ShouldBeNil)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})
}
