package pulse_test

import (
	"testing"
	"time"

	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/internal/domain/pulse"
	. "github.com/smartystreets/goconvey/convey"
)

func caps(values [4]float64, confs [4]model.Confidence) [4]model.AthleteCapacity {
	var out [4]model.AthleteCapacity
	for i, c := range model.Capacities {
		out[i] = model.AthleteCapacity{AthleteID: "a1", Capacity: c, Value: values[i], Confidence: confs[i]}
	}
	return out
}

func TestCompute(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	Convey("Given four capacities with mixed confidence", t, func() {
		in := caps([4]float64{80, 60, 40, 20}, [4]model.Confidence{
			model.ConfidenceLow, model.ConfidenceHigh, model.ConfidenceHigh, model.ConfidenceHigh,
		})
		got := pulse.Compute("a1", now, in)

		Convey("Then the value is the mean", func() {
			So(got.Value, ShouldAlmostEqual, 50, 1e-9)
			So(got.ComputedAt, ShouldEqual, now)
			So(got.AthleteID, ShouldEqual, "a1")
		})

		Convey("Then confidence is the weakest", func() {
			So(got.Confidence, ShouldEqual, model.ConfidenceLow)
		})

		Convey("Then explain lists capacities in order", func() {
			So(len(got.Explain), ShouldEqual, 4)
			So(got.Explain[0], ShouldResemble, model.ExplainItem{Key: "STRENGTH", Message: "value=80.00; confidence=LOW"})
			So(got.Explain[3].Key, ShouldEqual, "WORK_CAPACITY")
			So(got.Explain[3].Message, ShouldEqual, "value=20.00; confidence=HIGH")
		})
	})

	Convey("Given capacities that are all MED or HIGH", t, func() {
		got := pulse.Compute("a1", now, caps([4]float64{100, 100, 100, 100}, [4]model.Confidence{
			model.ConfidenceHigh, model.ConfidenceMed, model.ConfidenceHigh, model.ConfidenceHigh,
		}))

		Convey("Then MED is reported", func() {
			So(got.Confidence, ShouldEqual, model.ConfidenceMed)
			So(got.Value, ShouldEqual, 100)
		})
	})
}
