package seed_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/pulse/internal/adapters/repository"
	"github.com/okian/pulse/internal/adapters/seed"
	service "github.com/okian/pulse/internal/app"
	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/internal/domain/ranking"
	"github.com/okian/pulse/pkg/logger"
)

func TestFixture(t *testing.T) {
	Convey("Given the sample fixture", t, func() {
		f, err := seed.ReadFile("testdata/fixture.yaml")
		So(err, ShouldBeNil)

		Convey("Then every section is decoded", func() {
			So(f.Athletes, ShouldHaveLength, 3)
			So(f.Staff, ShouldHaveLength, 1)
			So(f.Workouts, ShouldHaveLength, 3)
			So(f.Ideals, ShouldHaveLength, 3)
			So(f.Attempts, ShouldHaveLength, 5)
			So(f.Workouts[0].Weights[model.Strength], ShouldEqual, 0.7)
			So(f.Workouts[1].Movements[0].Pattern, ShouldEqual, model.PatternSquat)
		})

		Convey("When applied and replayed", func() {
			now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
			st := repository.NewStore()
			svc := service.New(service.WithStore(st), service.WithClock(func() time.Time { return now }))
			So(f.Apply(st), ShouldBeNil)
			n, err := f.Replay(context.Background(), svc, now, logger.Discard())

			Convey("Then attempts reach their declared states", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 5)
				stats := st.Stats()
				So(stats.Athletes, ShouldEqual, 3)
				So(stats.Attempts, ShouldEqual, 5)
				So(stats.Results, ShouldEqual, 4)
			})

			Convey("Then the gym ideal drives the north gym score", func() {
				lb, err := svc.Leaderboard(context.Background(), ranking.Query{
					WorkoutID: "wod-deadlift", Scope: model.ScopeCommunity, Period: model.PeriodAllTime, Scale: model.ScaleRX,
				})
				So(err, ShouldBeNil)
				So(lb.Entries, ShouldHaveLength, 1)
				// 150 against the 180 gym ideal
				So(lb.Entries[0].BestScoreNorm, ShouldEqual, 83.33)
			})

			Convey("Then Fran ranks the faster athlete first", func() {
				lb, err := svc.Leaderboard(context.Background(), ranking.Query{
					WorkoutID: "wod-fran", Scope: model.ScopeGym, Period: model.PeriodD30, Scale: model.ScaleRX, CallerID: "usr-ben",
				})
				So(err, ShouldBeNil)
				So(lb.Entries, ShouldHaveLength, 2)
				So(lb.Entries[0].AthleteID, ShouldEqual, "ath-ana")
				So(*lb.MyRank, ShouldEqual, 2)
			})
		})
	})

	Convey("Given a document with an unknown field", t, func() {
		_, err := seed.Decode(strings.NewReader("athletes:\n  - {id: a, nickname: x}\n"))

		Convey("Then decoding fails", func() {
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given a test workout with bad weights", t, func() {
		f, err := seed.Decode(strings.NewReader(`
workouts:
  - id: w
    isTest: true
    type: BLOCKS
    scales: [RX]
    weights: {STRENGTH: 0.5}
`))
		So(err, ShouldBeNil)

		Convey("Then applying it is a validation error", func() {
			err := f.Apply(repository.NewStore())
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})
	})

	Convey("Given an empty document", t, func() {
		f, err := seed.Decode(strings.NewReader(""))

		Convey("Then an empty fixture is returned", func() {
			So(err, ShouldBeNil)
			So(f.Athletes, ShouldBeEmpty)
		})
	})

	Convey("Given a missing file", t, func() {
		_, err := seed.ReadFile("testdata/missing.yaml")

		Convey("Then an error is returned", func() {
			So(err, ShouldNotBeNil)
		})
	})
}
