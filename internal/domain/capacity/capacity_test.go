package capacity_test

import (
	"math"
	"testing"
	"time"

	"github.com/okian/pulse/internal/domain/capacity"
	"github.com/okian/pulse/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func scored(id string, norm float64, age time.Duration, w *model.Workout) model.ScoredAttempt {
	return model.ScoredAttempt{
		Attempt: model.Attempt{ID: id, AthleteID: "a1", PerformedAt: now.Add(-age), Status: model.AttemptValidated},
		Result:  model.AttemptResult{AttemptID: id, ScoreNorm: norm},
		Workout: w,
	}
}

func strengthOnly() *model.Workout {
	return &model.Workout{ID: "w1", Title: "Max Deadlift", Weights: model.CapacityWeights{model.Strength: 1}}
}

func TestWeights(t *testing.T) {
	Convey("Given workouts without declared weights", t, func() {
		cases := []struct {
			title string
			want  model.CapacityWeights
		}{
			{"Farmer Carry + Sled Push", model.CapacityWeights{model.WorkCapacity: 0.8, model.MuscularEndurance: 0.2}},
			{"Deadlift to Farmer", model.CapacityWeights{model.Strength: 0.6, model.WorkCapacity: 0.4}},
			{"Back SQUAT ladder", model.CapacityWeights{model.Strength: 0.4, model.MuscularEndurance: 0.6}},
			{"Push Press", model.CapacityWeights{model.MuscularEndurance: 0.7, model.Strength: 0.3}},
			{"Strict pull-ups", model.CapacityWeights{model.RelativeStrength: 0.8, model.MuscularEndurance: 0.2}},
			{"Rowing 2k", model.CapacityWeights{model.Strength: 0.25, model.MuscularEndurance: 0.25, model.RelativeStrength: 0.25, model.WorkCapacity: 0.25}},
		}
		for _, tc := range cases {
			Convey("Then "+tc.title+" matches its title rule", func() {
				So(capacity.Weights(&model.Workout{Title: tc.title}), ShouldResemble, tc.want)
			})
		}

		Convey("When the title matches two rules", func() {
			Convey("Then the first rule wins", func() {
				got := capacity.Weights(&model.Workout{Title: "farmer sled squat"})
				So(got[model.WorkCapacity], ShouldEqual, 0.8)
				_, hasStrength := got[model.Strength]
				So(hasStrength, ShouldBeFalse)
			})
		})
	})

	Convey("Given a workout with a declared table", t, func() {
		Convey("Then the table is used regardless of the title", func() {
			So(capacity.Weights(strengthOnly()), ShouldResemble, model.CapacityWeights{model.Strength: 1})
		})
	})
}

func TestAggregator_Compute(t *testing.T) {
	Convey("Given a default aggregator", t, func() {
		agg := capacity.NewAggregator()

		Convey("When a single attempt was performed just now", func() {
			got := agg.Compute("a1", now, []model.ScoredAttempt{scored("x", 80, 0, strengthOnly())}, nil)

			Convey("Then strength equals the score and unweighted capacities stay 0", func() {
				So(got[0].Capacity, ShouldEqual, model.Strength)
				So(got[0].Value, ShouldAlmostEqual, 80, 1e-9)
				So(got[1].Value, ShouldEqual, 0)
				So(got[0].Confidence, ShouldEqual, model.ConfidenceLow)
				So(got[0].LastUpdatedAt, ShouldEqual, now)
				So(got[3].AthleteID, ShouldEqual, "a1")
			})
		})

		Convey("When two attempts are given out of order", func() {
			w := strengthOnly()
			got := agg.Compute("a1", now, []model.ScoredAttempt{
				scored("new", 100, 0, w),
				scored("old", 50, 0, w),
			}, nil)

			Convey("Then they are folded oldest first", func() {
				// Equal timestamps keep input order: seed 100, then 0.3*50 + 0.7*100.
				So(got[0].Value, ShouldAlmostEqual, 85, 1e-9)
			})

			got = agg.Compute("a1", now, []model.ScoredAttempt{
				scored("new", 100, time.Hour, w),
				scored("old", 50, 2*time.Hour, w),
			}, nil)
			d1, d2 := agg.Decay(now, now.Add(-time.Hour)), agg.Decay(now, now.Add(-2*time.Hour))
			So(got[0].Value, ShouldAlmostEqual, 0.3*100*d1+0.7*50*d2, 1e-9)
		})

		Convey("When the same score is recent versus 60 days old", func() {
			recent := agg.Compute("a1", now, []model.ScoredAttempt{scored("x", 90, 0, strengthOnly())}, nil)
			old := agg.Compute("a1", now, []model.ScoredAttempt{scored("x", 90, 60*24*time.Hour, strengthOnly())}, nil)

			Convey("Then the older contribution is decayed by e^-1", func() {
				So(recent[0].Value, ShouldBeGreaterThan, old[0].Value)
				So(old[0].Value, ShouldAlmostEqual, 90*math.Exp(-1), 1e-9)
			})
		})

		Convey("When an attempt lies in the future", func() {
			got := agg.Compute("a1", now, []model.ScoredAttempt{scored("x", 70, -48*time.Hour, strengthOnly())}, nil)

			Convey("Then it is not amplified", func() {
				So(got[0].Value, ShouldAlmostEqual, 70, 1e-9)
			})
		})

		Convey("When no attempt contributes to a capacity", func() {
			prev := map[model.Capacity]float64{model.WorkCapacity: 42, model.Strength: 10}
			got := agg.Compute("a1", now, nil, prev)

			Convey("Then the previous value is kept", func() {
				So(got[3].Value, ShouldEqual, 42)
				So(got[0].Value, ShouldEqual, 10)
				So(got[1].Value, ShouldEqual, 0)
			})
		})
	})
}

func TestAggregator_Confidence(t *testing.T) {
	Convey("Given attempts of different ages", t, func() {
		agg := capacity.NewAggregator()
		w := strengthOnly()
		day := 24 * time.Hour
		mk := func(n int, age time.Duration) []model.ScoredAttempt {
			out := make([]model.ScoredAttempt, n)
			for i := range out {
				out[i] = scored("x", 50, age, w)
			}
			return out
		}

		So(agg.Confidence(now, mk(1, day)), ShouldEqual, model.ConfidenceLow)
		So(agg.Confidence(now, mk(2, day)), ShouldEqual, model.ConfidenceMed)
		So(agg.Confidence(now, mk(4, day)), ShouldEqual, model.ConfidenceMed)
		So(agg.Confidence(now, mk(5, day)), ShouldEqual, model.ConfidenceHigh)

		Convey("Then attempts outside the window do not count", func() {
			So(agg.Confidence(now, mk(6, 61*day)), ShouldEqual, model.ConfidenceLow)
		})

		Convey("Then custom thresholds apply", func() {
			custom := capacity.NewAggregator(capacity.WithConfidenceThresholds(1, 2), capacity.WithConfidenceWindow(day*365))
			So(custom.Confidence(now, mk(1, 61*day)), ShouldEqual, model.ConfidenceMed)
			So(custom.Confidence(now, mk(2, 61*day)), ShouldEqual, model.ConfidenceHigh)
		})
	})
}

func TestAggregator_Options(t *testing.T) {
	Convey("Given an aggregator with alpha 1 and a short decay", t, func() {
		agg := capacity.NewAggregator(capacity.WithAlpha(1), capacity.WithDecayDays(1))
		w := strengthOnly()

		Convey("Then only the newest contribution survives", func() {
			got := agg.Compute("a1", now, []model.ScoredAttempt{
				scored("a", 100, 0, w),
				scored("b", 20, 0, w),
			}, nil)
			So(got[0].Value, ShouldAlmostEqual, 20, 1e-9)
		})

		Convey("Then a one-day-old contribution decays by e^-1", func() {
			So(agg.Decay(now, now.Add(-24*time.Hour)), ShouldAlmostEqual, math.Exp(-1), 1e-12)
		})
	})
}
