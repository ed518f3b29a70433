package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNewManager(t *testing.T) {
	Convey("Given a manager on its own registry", t, func() {
		reg := prometheus.NewRegistry()
		m := NewManager(
			WithPrometheusRegistry(reg),
			WithNamespace("test"),
			WithSubsystem("unit"),
			WithHistogramBuckets([]float64{1, 10}),
			WithConstLabels(map[string]string{"env": "test"}),
		)

		Convey("When collectors are used", func() {
			m.resultsScored.WithLabelValues("gym").Inc()
			m.snapshotsMaterialized.Set(12)

			Convey("Then they are exposed with namespace and labels", func() {
				expected := `
# HELP test_unit_snapshots_materialized Leaderboard snapshots produced by the last full recompute
# TYPE test_unit_snapshots_materialized gauge
test_unit_snapshots_materialized{env="test"} 12
`
				So(testutil.GatherAndCompare(reg, strings.NewReader(expected), "test_unit_snapshots_materialized"), ShouldBeNil)
				So(testutil.ToFloat64(m.resultsScored.WithLabelValues("gym")), ShouldEqual, 1)
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global manager after Init", t, func() {
		Init()
		reg := GetRegistry()

		Convey("When recording domain events", func() {
			RecordResultScored("community")
			RecordResultScored("community")
			RecordScoringError()
			RecordAttemptTransition("VALIDATED")
			RecordCapacityRecompute(3)
			RecordLeaderboardComputation("snapshot", 1.5)
			UpdateSnapshotCount(8)
			RecordSnapshotSinkError("redis")
			RecordEventIngested("SUBMIT")
			RecordEventDuplicate()
			UpdateQueueSize(3)
			UpdateQueueCapacity(10)
			UpdateQueueUtilization(0.3)
			RecordQueueEnqueueError()
			RecordQueueProcessingLatency(2)
			UpdateWorkerCount(4)
			UpdateWorkerActiveCount(1)
			RecordWorkerError()
			RecordHTTPRequest("/rankings/{workoutId}", "GET", "200")
			RecordHTTPRequestDuration("/rankings/{workoutId}", "GET", "200", 4)
			RecordErrorByComponent("worker", "apply")

			Convey("Then the registry exposes them", func() {
				n, err := testutil.GatherAndCount(reg, "pulse_engine_results_scored_total")
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
				So(testutil.ToFloat64(globalManager.resultsScored.WithLabelValues("community")), ShouldEqual, 2)
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 3)
			})
		})
	})

	Convey("Given metrics are disabled", t, func() {
		Init(WithMetricsEnabled(false))
		RecordScoringError()
		UpdateQueueSize(99)

		Convey("Then nothing is recorded", func() {
			So(testutil.ToFloat64(globalManager.scoringErrors), ShouldEqual, 0)
			So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 0)
		})

		Reset(func() { Init() })
	})
}
