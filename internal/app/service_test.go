package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/pulse/internal/adapters/repository"
	service "github.com/okian/pulse/internal/app"
	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/internal/domain/ranking"
	"github.com/okian/pulse/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingSink struct {
	mu    sync.Mutex
	calls [][]types.Leaderboard
	err   error
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Export(_ context.Context, s []types.Leaderboard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
	return r.err
}

func seedStore() *repository.Store {
	st := repository.NewStore()
	_ = st.Update(func(tx *repository.Tx) error {
		for _, a := range []model.Athlete{
			{ID: "a1", UserID: "u1", DisplayName: "Ana", GymID: "g1"},
			{ID: "a2", UserID: "u2", DisplayName: "Ben", GymID: "g1"},
			{ID: "a3", UserID: "u3", DisplayName: "Cy", GymID: "g2"},
		} {
			if err := tx.PutAthlete(a); err != nil {
				return err
			}
		}
		tx.SetStaffGym("coach", "g1")
		if err := tx.PutWorkout(&model.Workout{
			ID: "w1", Title: "Deadlift 1RM", IsTest: true, Type: model.WorkoutBlocks,
			Scales: []model.ScaleCode{model.ScaleRX, model.ScaleScaled},
			Weights: model.CapacityWeights{
				model.Strength: 1, model.MuscularEndurance: 0, model.RelativeStrength: 0, model.WorkCapacity: 0,
			},
			Movements: []model.Movement{{ID: "dl", Pattern: model.PatternHinge, Reps: 1}},
		}); err != nil {
			return err
		}
		if err := tx.PutWorkout(&model.Workout{
			ID: "w2", Title: "Fran", Type: model.WorkoutForTime,
			Scales: []model.ScaleCode{model.ScaleRX},
		}); err != nil {
			return err
		}
		tx.PutIdeal(model.IdealProfile{WorkoutID: "w1", Scope: model.ScopeCommunity, BaseValue: 200})
		return nil
	})
	return st
}

func newService(c *clock, opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithStore(seedStore()),
		service.WithClock(c.Now),
		service.WithRecompute(0, false),
	}
	return service.New(append(base, opts...)...)
}

// scored creates, submits and validates an attempt at the given age.
func scored(ctx context.Context, svc *service.Service, athlete, workout string, scale model.ScaleCode, age time.Duration, reps int) string {
	a, err := svc.CreateAttempt(ctx, service.NewAttempt{
		AthleteID: athlete, WorkoutID: workout, Scale: scale, PerformedAt: testNow.Add(-age),
	})
	So(err, ShouldBeNil)
	_, err = svc.Submit(ctx, a.ID, model.Reps{Reps: reps}, nil)
	So(err, ShouldBeNil)
	_, err = svc.Validate(ctx, a.ID, "coach")
	So(err, ShouldBeNil)
	return a.ID
}

func TestService_AttemptLifecycle(t *testing.T) {
	Convey("Given a seeded service", t, func() {
		ctx := context.Background()
		c := &clock{now: testNow}
		svc := newService(c)

		Convey("When an attempt is created", func() {
			a, err := svc.CreateAttempt(ctx, service.NewAttempt{AthleteID: "a1", WorkoutID: "w1", Scale: model.ScaleRX})

			Convey("Then it is a draft performed now", func() {
				So(err, ShouldBeNil)
				So(a.ID, ShouldNotBeEmpty)
				So(a.Status, ShouldEqual, model.AttemptDraft)
				So(a.PerformedAt, ShouldEqual, testNow)
			})

			Convey("And a result is submitted", func() {
				st, err := svc.Submit(ctx, a.ID, model.Reps{Reps: 100}, map[string]float64{"loadKgTotal": 0})

				Convey("Then it is scored against the community ideal", func() {
					So(err, ShouldBeNil)
					So(st.Status, ShouldEqual, model.AttemptSubmitted)
					So(st.Result.ScoreBase, ShouldEqual, 100)
					So(st.Result.ScoreNorm, ShouldEqual, 50)
				})

				Convey("And validated", func() {
					v, err := svc.Validate(ctx, a.ID, "coach")
					So(err, ShouldBeNil)

					Convey("Then validation state is recorded", func() {
						So(v.Status, ShouldEqual, model.AttemptValidated)
						So(v.Result.ValidatedBy, ShouldEqual, "coach")
						So(*v.Result.ValidatedAt, ShouldEqual, testNow)
						So(v.Result.Quality, ShouldEqual, model.QualityOK)
					})

					Convey("Then the athlete's strength reflects the attempt", func() {
						d, err := svc.Dashboard(ctx, "a1")
						So(err, ShouldBeNil)
						So(d.Capacities[0].Capacity, ShouldEqual, model.Strength)
						So(d.Capacities[0].Value, ShouldEqual, 50)
						So(d.Tests7d, ShouldEqual, 1)
						So(d.Tests30d, ShouldEqual, 1)
					})

					Convey("Then validating again is a validation error", func() {
						_, err := svc.Validate(ctx, a.ID, "coach")
						So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
					})

					Convey("Then re-submission returns it to SUBMITTED", func() {
						st, err := svc.Submit(ctx, a.ID, model.Reps{Reps: 120}, nil)
						So(err, ShouldBeNil)
						So(st.Status, ShouldEqual, model.AttemptSubmitted)
						So(st.Result.ValidatedAt, ShouldBeNil)
						So(st.Result.ValidatedBy, ShouldBeEmpty)
					})
				})

				Convey("And rejected", func() {
					r, err := svc.Reject(ctx, a.ID, "coach", "  no video ")

					Convey("Then the reason is kept and validation cleared", func() {
						So(err, ShouldBeNil)
						So(r.Status, ShouldEqual, model.AttemptRejected)
						So(r.Result.RejectReason, ShouldEqual, "no video")
						So(r.Result.ValidatedAt, ShouldBeNil)
					})
				})
			})

			Convey("Then validating a draft fails", func() {
				_, err := svc.Validate(ctx, a.ID, "coach")
				So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
			})

			Convey("Then rejecting without a result fails", func() {
				_, err := svc.Reject(ctx, a.ID, "coach", "x")
				So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
			})

			Convey("Then a disallowed result kind is rejected", func() {
				_, err := svc.Submit(ctx, a.ID, model.Time{Seconds: 300}, nil)
				So(err, ShouldBeNil) // BLOCKS accepts every kind
				a2, _ := svc.CreateAttempt(ctx, service.NewAttempt{AthleteID: "a1", WorkoutID: "w2", Scale: model.ScaleRX})
				_, err = svc.Submit(ctx, a2.ID, model.Reps{Reps: 10}, nil)
				So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
			})

			Convey("Then a missing primary result is rejected", func() {
				_, err := svc.Submit(ctx, a.ID, nil, nil)
				So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
			})
		})

		Convey("When creating against unknown references", func() {
			_, errAthlete := svc.CreateAttempt(ctx, service.NewAttempt{AthleteID: "nope", WorkoutID: "w1", Scale: model.ScaleRX})
			_, errWorkout := svc.CreateAttempt(ctx, service.NewAttempt{AthleteID: "a1", WorkoutID: "nope", Scale: model.ScaleRX})
			_, errScale := svc.CreateAttempt(ctx, service.NewAttempt{AthleteID: "a1", WorkoutID: "w2", Scale: model.ScaleScaled})

			Convey("Then the errors are typed", func() {
				So(errors.Is(errAthlete, model.ErrNotFound), ShouldBeTrue)
				So(errors.Is(errWorkout, model.ErrNotFound), ShouldBeTrue)
				So(errors.Is(errScale, model.ErrValidation), ShouldBeTrue)
			})
		})

		Convey("When acting on an unknown attempt", func() {
			_, e1 := svc.Submit(ctx, "missing", model.Reps{Reps: 1}, nil)
			_, e2 := svc.Validate(ctx, "missing", "coach")
			_, e3 := svc.Reject(ctx, "missing", "coach", "r")

			Convey("Then every operation reports not found", func() {
				So(errors.Is(e1, model.ErrNotFound), ShouldBeTrue)
				So(errors.Is(e2, model.ErrNotFound), ShouldBeTrue)
				So(errors.Is(e3, model.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestService_Capacities(t *testing.T) {
	Convey("Given an athlete with a validated test", t, func() {
		ctx := context.Background()
		c := &clock{now: testNow}
		svc := newService(c)
		id := scored(ctx, svc, "a1", "w1", model.ScaleRX, 0, 200)

		Convey("When capacities are recomputed twice", func() {
			p1, err1 := svc.RecomputeCapacitiesAndPulse(ctx, "a1")
			p2, err2 := svc.RecomputeCapacitiesAndPulse(ctx, "a1")

			Convey("Then the result is stable", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(p1.Value, ShouldEqual, p2.Value)
				// strength 100, others 0
				So(p1.Value, ShouldEqual, 25)
				So(p1.Confidence, ShouldEqual, model.ConfidenceLow)
				So(p1.Explain, ShouldHaveLength, 4)
			})
		})

		Convey("When the validated attempt is rejected", func() {
			_, err := svc.Reject(ctx, id, "coach", "bad form")
			So(err, ShouldBeNil)

			Convey("Then the capacity keeps its previous value", func() {
				d, _ := svc.Dashboard(ctx, "a1")
				So(d.Capacities[0].Value, ShouldEqual, 100)
			})
		})

		Convey("When thirty one days pass and the athlete retests", func() {
			c.Advance(31 * 24 * time.Hour)
			_ = scored(ctx, svc, "a1", "w1", model.ScaleRX, -31*24*time.Hour, 200)

			Convey("Then the trend compares against the sample from a month ago", func() {
				d, err := svc.Dashboard(ctx, "a1")
				So(err, ShouldBeNil)
				strength := d.Capacities[0].Value
				// the older attempt has decayed, so the blend drops below 100
				So(strength, ShouldBeLessThan, 100)
				So(d.Trends[0].Capacity, ShouldEqual, model.Strength)
				So(d.Trends[0].Delta, ShouldAlmostEqual, strength-100, 0.011)
				So(d.Trends[1].Delta, ShouldEqual, 0)
				So(d.Tests30d, ShouldEqual, 1)
				So(d.Tests7d, ShouldEqual, 1)
			})
		})

		Convey("When the athlete is unknown", func() {
			_, err := svc.RecomputeCapacitiesAndPulse(ctx, "ghost")
			_, errD := svc.Dashboard(ctx, "ghost")

			Convey("Then not found is returned", func() {
				So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
				So(errors.Is(errD, model.ErrNotFound), ShouldBeTrue)
			})
		})
	})

	Convey("Given an athlete with no validated attempts", t, func() {
		svc := newService(&clock{now: testNow})

		Convey("Then the dashboard shows defaults", func() {
			d, err := svc.Dashboard(context.Background(), "a2")
			So(err, ShouldBeNil)
			So(d.Pulse.Value, ShouldEqual, 0)
			So(d.Pulse.Confidence, ShouldEqual, model.ConfidenceLow)
			So(d.Capacities, ShouldHaveLength, 4)
			for _, c := range d.Capacities {
				So(c.Value, ShouldEqual, 0)
				So(c.Confidence, ShouldEqual, model.ConfidenceLow)
			}
		})
	})
}

func TestService_Leaderboards(t *testing.T) {
	Convey("Given validated attempts from three athletes", t, func() {
		ctx := context.Background()
		c := &clock{now: testNow}
		sink := &recordingSink{}
		svc := newService(c, service.WithSinks(sink))

		scored(ctx, svc, "a1", "w1", model.ScaleRX, 40*24*time.Hour, 180)
		best := scored(ctx, svc, "a1", "w1", model.ScaleRX, 24*time.Hour, 150)
		scored(ctx, svc, "a2", "w1", model.ScaleRX, 2*24*time.Hour, 100)
		scored(ctx, svc, "a3", "w1", model.ScaleRX, 3*24*time.Hour, 120)
		scored(ctx, svc, "a2", "w1", model.ScaleScaled, time.Hour, 190)

		Convey("When the community all-time board is read", func() {
			lb, err := svc.Leaderboard(ctx, ranking.Query{
				WorkoutID: "w1", Scope: model.ScopeCommunity, Period: model.PeriodAllTime, Scale: model.ScaleRX, CallerID: "u3",
			})

			Convey("Then each athlete appears once with their best score", func() {
				So(err, ShouldBeNil)
				So(lb.Entries, ShouldHaveLength, 3)
				So(lb.Entries[0].AthleteID, ShouldEqual, "a1")
				So(lb.Entries[0].BestScoreNorm, ShouldEqual, 90)
				So(lb.Entries[1].AthleteID, ShouldEqual, "a3")
				So(lb.Entries[2].AthleteID, ShouldEqual, "a2")
				So(*lb.MyRank, ShouldEqual, 2)
			})
		})

		Convey("When the D30 board is read", func() {
			lb, err := svc.Leaderboard(ctx, ranking.Query{
				WorkoutID: "w1", Scope: model.ScopeCommunity, Period: model.PeriodD30, Scale: model.ScaleRX,
			})

			Convey("Then the old attempt no longer counts", func() {
				So(err, ShouldBeNil)
				So(lb.Entries[0].AthleteID, ShouldEqual, "a1")
				So(lb.Entries[0].BestScoreNorm, ShouldEqual, 75)
				So(lb.Entries[0].BestAttemptID, ShouldEqual, best)
				So(lb.MyRank, ShouldBeNil)
			})
		})

		Convey("When a gym board is read", func() {
			q := ranking.Query{WorkoutID: "w1", Scope: model.ScopeGym, Period: model.PeriodAllTime, Scale: model.ScaleRX}

			Convey("Then an anonymous caller is unauthorized", func() {
				_, err := svc.Leaderboard(ctx, q)
				So(errors.Is(err, model.ErrUnauthorized), ShouldBeTrue)
			})

			Convey("Then a caller without a gym is forbidden", func() {
				q.CallerID = "stranger"
				_, err := svc.Leaderboard(ctx, q)
				So(errors.Is(err, model.ErrForbidden), ShouldBeTrue)
			})

			Convey("Then the coach sees only their gym", func() {
				q.CallerID = "coach"
				lb, err := svc.Leaderboard(ctx, q)
				So(err, ShouldBeNil)
				So(lb.Identity.GymID, ShouldEqual, "g1")
				So(lb.Entries, ShouldHaveLength, 2)
			})
		})

		Convey("When an unknown workout is ranked", func() {
			_, err := svc.Leaderboard(ctx, ranking.Query{WorkoutID: "none", Scope: model.ScopeCommunity, Period: model.PeriodAllTime, Scale: model.ScaleRX})

			Convey("Then not found is returned", func() {
				So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When all snapshots are recomputed", func() {
			n, err := svc.RecomputeAll(ctx)

			Convey("Then every identity is materialized and exported", func() {
				So(err, ShouldBeNil)
				// w1: 2 scales, w2: 1 scale; 2 periods; community + g1 + g2
				So(n, ShouldEqual, (2+1)*2*3)
				So(sink.calls, ShouldHaveLength, 1)
				So(sink.calls[0], ShouldHaveLength, n)
			})

			Convey("Then a snapshot matches the on-demand board", func() {
				id := types.Identity{WorkoutID: "w1", Scope: model.ScopeCommunity, Period: model.PeriodAllTime, Scale: model.ScaleRX}
				snap, err := svc.Snapshot(ctx, id)
				So(err, ShouldBeNil)
				live, _ := svc.Leaderboard(ctx, ranking.Query{WorkoutID: "w1", Scope: model.ScopeCommunity, Period: model.PeriodAllTime, Scale: model.ScaleRX})
				So(snap.Entries, ShouldResemble, live.Entries)
			})

			Convey("Then a missing snapshot is not found", func() {
				_, err := svc.Snapshot(ctx, types.Identity{WorkoutID: "zzz"})
				So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
			})

			Convey("Then stats report the run", func() {
				stats := svc.GetStats()
				So(stats["snapshots"], ShouldEqual, n)
				So(stats["lastRecompute"], ShouldEqual, testNow)
			})

			Convey("And every athlete leaves g2 before the next run", func() {
				g2 := types.Identity{WorkoutID: "w1", Scope: model.ScopeGym, GymID: "g2", Period: model.PeriodAllTime, Scale: model.ScaleRX}
				_, err := svc.Snapshot(ctx, g2)
				So(err, ShouldBeNil)

				So(svc.Store().Update(func(tx *repository.Tx) error {
					return tx.PutAthlete(model.Athlete{ID: "a3", UserID: "u3", DisplayName: "Cy", GymID: "g1"})
				}), ShouldBeNil)
				again, err := svc.RecomputeAll(ctx)
				So(err, ShouldBeNil)

				Convey("Then the stale g2 snapshots are gone", func() {
					So(again, ShouldEqual, (2+1)*2*2)
					_, err := svc.Snapshot(ctx, g2)
					So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
					So(svc.Store().Stats().Snapshots, ShouldEqual, again)
				})
			})
		})

		Convey("When a sink fails", func() {
			sink.err = errors.New("down")
			n, err := svc.RecomputeAll(ctx)

			Convey("Then the recompute still succeeds", func() {
				So(err, ShouldBeNil)
				So(n, ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestService_Impact(t *testing.T) {
	Convey("Given a workout with movements", t, func() {
		svc := newService(&clock{now: testNow})

		Convey("When its impact is requested", func() {
			m, err := svc.WorkoutImpact(context.Background(), "w1")

			Convey("Then the vector sums to one", func() {
				So(err, ShouldBeNil)
				sum := 0.0
				for _, v := range m {
					sum += v
				}
				So(sum, ShouldAlmostEqual, 1, 1e-9)
			})
		})

		Convey("When the workout is unknown", func() {
			_, err := svc.WorkoutImpact(context.Background(), "none")
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestService_Ingest(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		c := &clock{now: testNow}
		svc := newService(c, service.WithWorkerCount(2), service.WithQueueSize(16))

		Convey("Then ingest before start fails", func() {
			err := svc.Ingest(ctx, model.Event{EventID: "e0", Type: model.EventSubmit, AttemptID: "x"})
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})

		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() { _ = svc.Stop(ctx) })

		a, err := svc.CreateAttempt(ctx, service.NewAttempt{AthleteID: "a1", WorkoutID: "w1", Scale: model.ScaleRX})
		So(err, ShouldBeNil)

		Convey("When a submit event is delivered twice", func() {
			e := model.Event{
				EventID: "e1", Type: model.EventSubmit, AttemptID: a.ID,
				Primary: model.ResultEnvelope{PrimaryResult: model.Reps{Reps: 80}},
			}
			So(svc.Ingest(ctx, e), ShouldBeNil)
			So(svc.Ingest(ctx, e), ShouldBeNil)

			Convey("Then it is applied once", func() {
				So(svc.Stop(ctx), ShouldBeNil)
				stats := svc.GetStats()
				So(stats["started"], ShouldBeFalse)
				_, err := svc.Validate(ctx, a.ID, "coach")
				So(err, ShouldBeNil)
			})
		})

		Convey("When an event is malformed", func() {
			errID := svc.Ingest(ctx, model.Event{Type: model.EventSubmit, AttemptID: a.ID})
			errType := svc.Ingest(ctx, model.Event{EventID: "e2", Type: "DELETE", AttemptID: a.ID})

			Convey("Then it is rejected up front", func() {
				So(errors.Is(errID, model.ErrValidation), ShouldBeTrue)
				So(errors.Is(errType, model.ErrValidation), ShouldBeTrue)
			})
		})

		Convey("When events are applied directly", func() {
			err1 := svc.Apply(ctx, model.Event{EventID: "s", Type: model.EventSubmit, AttemptID: a.ID,
				Primary: model.ResultEnvelope{PrimaryResult: model.Reps{Reps: 50}}})
			err2 := svc.Apply(ctx, model.Event{EventID: "r", Type: model.EventReject, AttemptID: a.ID, ValidatorID: "coach", Reason: "late"})
			err3 := svc.Apply(ctx, model.Event{EventID: "v", Type: model.EventValidate, AttemptID: a.ID, ValidatorID: "coach"})

			Convey("Then the lifecycle rules still hold", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(errors.Is(err3, model.ErrValidation), ShouldBeTrue)
			})
		})

		Convey("Then stats include the pipeline", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldBeTrue)
			So(stats["workerCount"], ShouldEqual, 2)
			So(stats, ShouldContainKey, "queueLength")
		})
	})
}

func TestService_IngestOrdering(t *testing.T) {
	Convey("Given a started service with four workers", t, func() {
		ctx := context.Background()
		svc := newService(&clock{now: testNow}, service.WithWorkerCount(4), service.WithQueueSize(1000))
		So(svc.Start(ctx), ShouldBeNil)

		athletes := []string{"a1", "a2", "a3"}
		ids := make([]string, 300)
		for i := range ids {
			a, err := svc.CreateAttempt(ctx, service.NewAttempt{
				AthleteID: athletes[i%len(athletes)], WorkoutID: "w1", Scale: model.ScaleRX,
			})
			So(err, ShouldBeNil)
			ids[i] = a.ID
		}

		Convey("When every attempt gets SUBMIT then VALIDATE back to back", func() {
			for i, id := range ids {
				So(svc.Ingest(ctx, model.Event{
					EventID: fmt.Sprintf("s-%d", i), Type: model.EventSubmit, AttemptID: id,
					Primary: model.ResultEnvelope{PrimaryResult: model.Reps{Reps: 10 + i%90}},
				}), ShouldBeNil)
				So(svc.Ingest(ctx, model.Event{
					EventID: fmt.Sprintf("v-%d", i), Type: model.EventValidate, AttemptID: id, ValidatorID: "coach",
				}), ShouldBeNil)
			}
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then every attempt ends up validated", func() {
				var notValidated []string
				_ = svc.Store().View(func(tx *repository.Tx) error {
					for _, id := range ids {
						if a, _ := tx.Attempt(id); a.Status != model.AttemptValidated {
							notValidated = append(notValidated, id)
						}
					}
					return nil
				})
				So(notValidated, ShouldBeEmpty)
			})
		})
	})
}
