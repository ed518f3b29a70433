package service

import (
	"context"
	"math"
	"time"

	"github.com/okian/pulse/internal/adapters/repository"
	"github.com/okian/pulse/internal/domain/impact"
	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/internal/domain/pulse"
	"github.com/okian/pulse/pkg/logger"
	"github.com/okian/pulse/pkg/metrics"
)

const (
	trendWindow = 30 * 24 * time.Hour
	weekWindow  = 7 * 24 * time.Hour
)

// Trend is the change of one capacity over the trend window.
type Trend struct {
	Capacity model.Capacity `json:"type"`
	Delta    float64        `json:"delta30d"`
}

// Dashboard is the athlete overview.
type Dashboard struct {
	AthleteID  string                  `json:"athleteId"`
	Pulse      model.AthletePulse      `json:"pulse"`
	Capacities []model.AthleteCapacity `json:"capacities"`
	Tests7d    int                     `json:"tests7d"`
	Tests30d   int                     `json:"tests30d"`
	Trends     []Trend                 `json:"trends"`
}

// RecomputeCapacitiesAndPulse folds the athlete's validated attempts into
// fresh capacities and pulse.
func (s *Service) RecomputeCapacitiesAndPulse(ctx context.Context, athleteID string) (model.AthletePulse, error) {
	var out model.AthletePulse
	start := time.Now()
	err := s.store.Update(func(tx *repository.Tx) error {
		if _, ok := tx.Athlete(athleteID); !ok {
			return model.NotFoundf("athlete %s", athleteID)
		}
		out = s.recomputeLocked(tx, athleteID)
		return nil
	})
	if err != nil {
		return model.AthletePulse{}, err
	}
	metrics.RecordCapacityRecompute(float64(time.Since(start).Microseconds()) / 1000)
	s.logger.Debug(ctx, "capacities recomputed",
		logger.String("athlete_id", athleteID),
		logger.Float64("pulse", out.Value),
		logger.String("confidence", string(out.Confidence)),
	)
	return out, nil
}

// recomputeLocked runs inside an Update closure.
func (s *Service) recomputeLocked(tx *repository.Tx, athleteID string) model.AthletePulse {
	now := s.now()
	caps := s.aggregator.Compute(athleteID, now, tx.ValidatedAttemptsOf(athleteID), tx.CapacityValues(athleteID))
	for _, c := range caps {
		tx.PutCapacity(c)
	}
	p := pulse.Compute(athleteID, now, caps)
	tx.PutPulse(p)
	return p
}

// Dashboard summarizes an athlete's current state.
func (s *Service) Dashboard(_ context.Context, athleteID string) (Dashboard, error) {
	var out Dashboard
	err := s.store.View(func(tx *repository.Tx) error {
		if _, ok := tx.Athlete(athleteID); !ok {
			return model.NotFoundf("athlete %s", athleteID)
		}
		now := s.now()
		caps, _ := tx.Capacities(athleteID)
		p, ok := tx.Pulse(athleteID)
		if !ok {
			p = model.AthletePulse{AthleteID: athleteID, Confidence: model.ConfidenceLow, ComputedAt: now, Explain: []model.ExplainItem{}}
		}
		p.Value = round2(p.Value)

		out = Dashboard{AthleteID: athleteID, Pulse: p}
		for _, c := range caps {
			c.Value = round2(c.Value)
			out.Capacities = append(out.Capacities, c)
		}
		for _, sa := range tx.ValidatedAttemptsOf(athleteID) {
			if !sa.Attempt.PerformedAt.Before(now.Add(-trendWindow)) {
				out.Tests30d++
			}
			if !sa.Attempt.PerformedAt.Before(now.Add(-weekWindow)) {
				out.Tests7d++
			}
		}
		for _, c := range caps {
			delta := 0.0
			if base, ok := tx.SampleAtOrBefore(athleteID, c.Capacity, now.Add(-trendWindow)); ok {
				delta = c.Value - base.Value
			}
			out.Trends = append(out.Trends, Trend{Capacity: c.Capacity, Delta: round2(delta)})
		}
		return nil
	})
	return out, err
}

// WorkoutImpact returns the normalized capacity stimulus of a workout.
func (s *Service) WorkoutImpact(_ context.Context, workoutID string) (map[model.Capacity]float64, error) {
	var out map[model.Capacity]float64
	err := s.store.View(func(tx *repository.Tx) error {
		w, ok := tx.Workout(workoutID)
		if !ok {
			return model.NotFoundf("workout %s", workoutID)
		}
		out = impact.Transform(w.Movements).Map()
		return nil
	})
	return out, err
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
