package config_test

import (
	"errors"
	"math"
	"runtime"
	"testing"

	"github.com/okian/tackle/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.LogFormat, convey.ShouldEqual, "text")
			convey.So(cfg.EventQueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
			convey.So(cfg.ShardCount, convey.ShouldEqual, 16)
			convey.So(cfg.LateralMargin, convey.ShouldEqual, 2.0)
			convey.So(cfg.WeekStart, convey.ShouldEqual, 1)
			convey.So(cfg.WeekEnd, convey.ShouldEqual, 9)
			convey.So(cfg.Sink, convey.ShouldEqual, config.SinkCSV)
			convey.So(cfg.RedisStream, convey.ShouldEqual, "tackle.features")
		})

		convey.Convey("And the defaults should be valid", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with one invalid setting", t, func() {
		cases := map[string]func(*config.Config){
			"empty addr":        func(c *config.Config) { c.Addr = " " },
			"zero queue":        func(c *config.Config) { c.EventQueueSize = 0 },
			"negative workers":  func(c *config.Config) { c.WorkerCount = -1 },
			"zero dedupe":       func(c *config.Config) { c.DedupeSize = 0 },
			"zero shards":       func(c *config.Config) { c.ShardCount = 0 },
			"negative margin":   func(c *config.Config) { c.LateralMargin = -1 },
			"inverted weeks":    func(c *config.Config) { c.WeekStart, c.WeekEnd = 5, 2 },
			"negative interval": func(c *config.Config) { c.StreamIntervalMS = -1 },
			"unknown padding":   func(c *config.Config) { c.Padding = "zero" },
			"unknown sink":      func(c *config.Config) { c.Sink = "kafka" },
			"unknown format":    func(c *config.Config) { c.LogFormat = "xml" },
			"sqlite without dsn": func(c *config.Config) {
				c.Sink = config.SinkSQLite
			},
		}

		for name, mutate := range cases {
			convey.Convey("Then validation rejects "+name, func() {
				cfg := config.New()
				mutate(cfg)
				err := cfg.Validate()
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})

	convey.Convey("Given a postgres sink with a DSN", t, func() {
		cfg := config.New()
		cfg.Sink = config.SinkPostgres
		cfg.DatabaseDSN = "postgres://localhost/tackle?sslmode=disable"
		convey.So(cfg.Validate(), convey.ShouldBeNil)
	})
}

func TestConfig_Helpers(t *testing.T) {
	convey.Convey("Given padding settings", t, func() {
		cfg := config.New()

		v, err := cfg.PaddingValue()
		convey.So(err, convey.ShouldBeNil)
		convey.So(math.IsNaN(v), convey.ShouldBeTrue)

		cfg.Padding = "INF"
		v, err = cfg.PaddingValue()
		convey.So(err, convey.ShouldBeNil)
		convey.So(math.IsInf(v, 1), convey.ShouldBeTrue)
	})

	convey.Convey("Given CORS origins", t, func() {
		cfg := config.New()
		convey.So(cfg.Origins(), convey.ShouldBeEmpty)

		cfg.CORSOrigins = "http://a.example, ,http://b.example"
		convey.So(cfg.Origins(), convey.ShouldResemble, []string{"http://a.example", "http://b.example"})
	})
}
