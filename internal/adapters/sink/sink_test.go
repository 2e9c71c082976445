package sink

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tackle/internal/adapters/tabular"
	"github.com/okian/tackle/internal/domain/model"
	"github.com/okian/tackle/internal/domain/types"
)

func record(seq int, tackler int64, d1 float64) Record {
	return Record{
		RunID: "run-1",
		Seq:   seq,
		Event: model.TackleEvent{GameID: 1, PlayID: 2, FrameID: 3, TacklerID: tackler, BallCarrierID: 9,
			TacklerX: 1, TacklerY: 2, BallCarrierX: 3, BallCarrierY: 4},
		Vector: model.FeatureVector{
			ClosestDefenders:   [3]float64{d1, 2, math.NaN()},
			ClosestOffensive:   [3]float64{1, 1.5, math.Inf(1)},
			BallCarrierClosest: 1,
			BlockersBetween:    2,
		},
	}
}

type failingSink struct{ closed bool }

func (f *failingSink) Write(context.Context, Record) error { return errors.New("down") }
func (f *failingSink) Close() error                        { f.closed = true; return errors.New("close failed") }

func TestMemoryAndMulti(t *testing.T) {
	Convey("Given a memory sink fed out of order", t, func() {
		ctx := context.Background()
		mem := NewMemory()
		So(mem.Write(ctx, record(2, 12, 1)), ShouldBeNil)
		So(mem.Write(ctx, record(0, 10, 1)), ShouldBeNil)
		So(mem.Write(ctx, record(1, 11, 1)), ShouldBeNil)

		Convey("Then records should come back in input order", func() {
			recs := mem.Records()
			So(len(recs), ShouldEqual, 3)
			So(recs[0].Seq, ShouldEqual, 0)
			So(recs[2].Event.TacklerID, ShouldEqual, int64(12))
		})

		Convey("When fanned out with a failing sink", func() {
			bad := &failingSink{}
			other := NewMemory()
			multi := NewMulti(bad, nil, other)

			Convey("Then the healthy sink should still receive the record", func() {
				So(multi.Write(ctx, record(0, 10, 1)), ShouldNotBeNil)
				So(len(other.Records()), ShouldEqual, 1)
			})

			Convey("Then every sink should be closed", func() {
				So(multi.Close(), ShouldNotBeNil)
				So(bad.closed, ShouldBeTrue)
			})
		})
	})
}

const eventCSV = `gameId,playId,frameId,tacklerId,ballCarrierId,x_tackler,y_tackler,note
1,2,3,10,9,1,2,a
1,2,3,11,9,1,2,b
1,2,4,10,9,1,2,c
1,2,3,10,9,1,2,d
1,2,5,NA,9,1,2,e
1,2,6,12,9,1,2,f
`

func TestCSVSink(t *testing.T) {
	Convey("Given a CSV sink over an event table", t, func() {
		ctx := context.Background()
		table, err := tabular.ReadEventTable(strings.NewReader(eventCSV))
		So(err, ShouldBeNil)
		So(table.Events(), ShouldHaveLength, 5)

		var buf bytes.Buffer
		s := NewCSVSink(&buf, table)

		// Events 0 and 1 succeed, 2 fails, 3 repeats 0 and 4 (row 6) never
		// finishes.
		feed := func() {
			So(s.Write(ctx, record(1, 11, 0.25)), ShouldBeNil)
			So(s.Write(ctx, record(0, 10, 0.5)), ShouldBeNil)
			So(s.WriteOutcome(ctx, Outcome{Seq: 2, Reason: "group_not_found"}), ShouldBeNil)
			So(s.WriteOutcome(ctx, Outcome{Seq: 3, Duplicate: true, DuplicateOf: 0}), ShouldBeNil)
		}
		lines := func() []string {
			return strings.Split(strings.TrimSpace(buf.String()), "\n")
		}

		Convey("When the run is closed", func() {
			feed()
			So(s.Close(), ShouldBeNil)
			out := lines()

			Convey("Then every input row comes back in input order with its own columns", func() {
				So(out, ShouldHaveLength, 7)
				So(out[0], ShouldStartWith, "gameId,playId,frameId,tacklerId,ballCarrierId,x_tackler,y_tackler,note,closest_defender_1")
				So(out[1], ShouldEqual, "1,2,3,10,9,1,2,a,0.5,2,,1,1.5,inf,1,2,")
				So(out[2], ShouldStartWith, "1,2,3,11,9,1,2,b,0.25,")
			})

			Convey("Then failures and duplicates are explained", func() {
				So(out[3], ShouldEqual, "1,2,4,10,9,1,2,c,,,,,,,,,group_not_found")
				So(out[4], ShouldEqual, "1,2,3,10,9,1,2,d,0.5,2,,1,1.5,inf,1,2,")
				So(out[5], ShouldEndWith, ",e,,,,,,,,,"+ReasonInvalidRecord)
				So(out[6], ShouldEndWith, ",f,,,,,,,,,"+ReasonNotProcessed)
			})

			Convey("Then later writes should be refused", func() {
				So(errors.Is(s.Write(ctx, record(2, 12, 1)), ErrClosed), ShouldBeTrue)
				So(errors.Is(s.WriteOutcome(ctx, Outcome{Seq: 4}), ErrClosed), ShouldBeTrue)
				So(s.Close(), ShouldBeNil)
			})
		})

		Convey("When duplicates are dropped", func() {
			s = NewCSVSink(&buf, table, WithDropDuplicates(true))
			feed()
			So(s.Close(), ShouldBeNil)

			Convey("Then only the repeated row is missing", func() {
				out := lines()
				So(out, ShouldHaveLength, 6)
				So(strings.Join(out, "\n"), ShouldNotContainSubstring, ",d,")
			})
		})

		Convey("When fanned out through a multi sink", func() {
			multi := NewMulti(NewMemory(), s)
			So(multi.WriteOutcome(ctx, Outcome{Seq: 2, Reason: "empty_group"}), ShouldBeNil)
			So(multi.Close(), ShouldBeNil)

			Convey("Then the outcome reaches the csv sink", func() {
				So(lines()[3], ShouldEndWith, ",empty_group")
			})
		})
	})

	Convey("Given no event table", t, func() {
		_, err := NewCSVFileSink(filepath.Join(t.TempDir(), "out.csv"), nil)

		Convey("Then the file sink is refused", func() {
			So(errors.Is(err, ErrMissingEndpoint), ShouldBeTrue)
		})
	})
}

func TestSQLSink(t *testing.T) {
	Convey("Given an in-memory sqlite sink", t, func() {
		ctx := context.Background()
		s, err := OpenSQLSink(ctx, DialectSQLite, ":memory:")
		So(err, ShouldBeNil)
		Reset(func() { _ = s.Close() })

		Convey("When a record is written twice with new values", func() {
			So(s.Write(ctx, record(0, 10, 0.5)), ShouldBeNil)
			So(s.Write(ctx, record(0, 10, 0.75)), ShouldBeNil)

			Convey("Then a single upserted row should remain", func() {
				var n int
				So(s.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM "+FeatureTable).Scan(&n), ShouldBeNil)
				So(n, ShouldEqual, 1)

				var d1 float64
				var d3, o3 sql.NullFloat64
				var runID string
				So(s.DB().QueryRowContext(ctx,
					"SELECT run_id, closest_defender_1, closest_defender_3, closest_offensive_3 FROM "+FeatureTable+" WHERE event_id = ?",
					"1_2_3_10").Scan(&runID, &d1, &d3, &o3), ShouldBeNil)
				So(runID, ShouldEqual, "run-1")
				So(d1, ShouldEqual, 0.75)
				So(d3.Valid, ShouldBeFalse)
				So(o3.Valid, ShouldBeFalse)
			})
		})

		Convey("When the sink is closed", func() {
			So(s.Close(), ShouldBeNil)

			Convey("Then writes should fail", func() {
				So(errors.Is(s.Write(ctx, record(0, 10, 1)), ErrClosed), ShouldBeTrue)
			})
		})
	})

	Convey("Given dialect specific statements", t, func() {
		Convey("Then postgres should use numbered placeholders", func() {
			stmt := upsertStatement(DialectPostgres)
			So(stmt, ShouldContainSubstring, "$1, $2")
			So(stmt, ShouldContainSubstring, "$16)")
			So(stmt, ShouldContainSubstring, "ON CONFLICT (event_id) DO UPDATE SET run_id = excluded.run_id")
		})

		Convey("Then sqlite should use question marks", func() {
			So(upsertStatement(DialectSQLite), ShouldContainSubstring, "VALUES (?, ?")
		})

		Convey("Then unknown dialects and empty dsns should be rejected", func() {
			_, err := OpenSQLSink(context.Background(), Dialect("oracle"), "x")
			So(errors.Is(err, ErrUnknownDialect), ShouldBeTrue)
			_, err = OpenSQLSink(context.Background(), DialectPostgres, "")
			So(errors.Is(err, ErrMissingEndpoint), ShouldBeTrue)
		})
	})
}

func TestRedisSinkConfig(t *testing.T) {
	Convey("Given redis sink settings", t, func() {
		Convey("Then an empty url should be rejected", func() {
			_, err := NewRedisSink(context.Background(), "", "")
			So(errors.Is(err, ErrMissingEndpoint), ShouldBeTrue)
		})

		Convey("Then a malformed url should be rejected", func() {
			_, err := NewRedisSink(context.Background(), "http://not-redis", "")
			So(err, ShouldNotBeNil)
		})

		Convey("Then the default stream should apply", func() {
			s := NewRedisStreamSink(nil, "")
			So(s.stream, ShouldEqual, DefaultStream)
			So(s.Close(), ShouldBeNil)
		})
	})
}

func TestRedisSinkWrite(t *testing.T) {
	mr := miniredis.RunT(t)

	Convey("Given a redis sink on a live server", t, func() {
		mr.FlushAll()
		ctx := context.Background()
		s, err := NewRedisSink(ctx, "redis://"+mr.Addr(), "")
		So(err, ShouldBeNil)
		Reset(func() { _ = s.Close() })

		Convey("When a record is written", func() {
			So(s.Write(ctx, record(0, 10, 0.5)), ShouldBeNil)

			Convey("Then the stream should carry its JSON payload", func() {
				entries, err := mr.Stream(DefaultStream)
				So(err, ShouldBeNil)
				So(entries, ShouldHaveLength, 1)

				fields := map[string]string{}
				for i := 0; i+1 < len(entries[0].Values); i += 2 {
					fields[entries[0].Values[i]] = entries[0].Values[i+1]
				}
				So(fields, ShouldContainKey, "timestamp")

				var got types.Features
				So(json.Unmarshal([]byte(fields["data"]), &got), ShouldBeNil)
				So(got.EventID, ShouldEqual, "1_2_3_10")
				So(got.RunID, ShouldEqual, "run-1")
				So(got.BlockersBetween, ShouldEqual, 2)
				So(*got.ClosestDefenders[0], ShouldEqual, 0.5)
				So(got.ClosestDefenders[2], ShouldBeNil)
				So(got.ClosestOffensive[2], ShouldBeNil)
			})
		})

		Convey("When the server goes away", func() {
			mr.Close()
			Reset(func() { _ = mr.Restart() })

			Convey("Then Write should fail with the stream name", func() {
				err := s.Write(ctx, record(0, 10, 0.5))
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, DefaultStream)
			})
		})
	})
}
