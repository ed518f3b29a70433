// Package capacity folds an athlete's validated, scored attempts into the
// four capacity estimates.
package capacity

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/internal/domain/scoring"
)

const (
	defaultDecayDays = 60.0
	defaultAlpha     = 0.3
	defaultWindow    = 60 * 24 * time.Hour
	defaultLowBelow  = 2
	defaultMedBelow  = 5

	maxValue = 100
)

// fallbackRule maps title keywords to a weight table. All keywords must occur.
type fallbackRule struct {
	keywords []string
	weights  model.CapacityWeights
}

// Rules are evaluated in order; the first match wins.
var fallbackRules = []fallbackRule{
	{[]string{"farmer", "sled"}, model.CapacityWeights{model.WorkCapacity: 0.8, model.MuscularEndurance: 0.2}},
	{[]string{"deadlift", "farmer"}, model.CapacityWeights{model.Strength: 0.6, model.WorkCapacity: 0.4}},
	{[]string{"squat"}, model.CapacityWeights{model.Strength: 0.4, model.MuscularEndurance: 0.6}},
	{[]string{"press"}, model.CapacityWeights{model.MuscularEndurance: 0.7, model.Strength: 0.3}},
	{[]string{"pull"}, model.CapacityWeights{model.RelativeStrength: 0.8, model.MuscularEndurance: 0.2}},
}

// Aggregator computes capacity estimates. It is stateless apart from its
// configuration.
type Aggregator struct {
	decayDays float64
	alpha     float64
	window    time.Duration
	lowBelow  int
	medBelow  int
}

// NewAggregator creates an aggregator with configuration options.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{
		decayDays: defaultDecayDays,
		alpha:     defaultAlpha,
		window:    defaultWindow,
		lowBelow:  defaultLowBelow,
		medBelow:  defaultMedBelow,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Weights returns the workout's declared table, or a table derived from its
// title when none is declared.
func Weights(w *model.Workout) model.CapacityWeights {
	if len(w.Weights) > 0 {
		return w.Weights
	}
	title := strings.ToLower(w.Title)
	for _, r := range fallbackRules {
		if containsAll(title, r.keywords) {
			return r.weights
		}
	}
	return model.CapacityWeights{
		model.Strength:          0.25,
		model.MuscularEndurance: 0.25,
		model.RelativeStrength:  0.25,
		model.WorkCapacity:      0.25,
	}
}

func containsAll(s string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(s, w) {
			return false
		}
	}
	return true
}

// Compute derives all four capacities for one athlete at now. attempts are
// the athlete's validated attempts; those without a workout are ignored.
// previous holds the last stored value per capacity and is kept when no
// attempt contributes.
func (a *Aggregator) Compute(athleteID string, now time.Time, attempts []model.ScoredAttempt, previous map[model.Capacity]float64) [4]model.AthleteCapacity {
	attempts = slices.Clone(attempts)
	slices.SortStableFunc(attempts, func(x, y model.ScoredAttempt) int {
		return x.Attempt.PerformedAt.Compare(y.Attempt.PerformedAt)
	})
	conf := a.Confidence(now, attempts)

	var out [4]model.AthleteCapacity
	for i, c := range model.Capacities {
		value, ok := a.ema(now, c, attempts)
		if !ok {
			value = previous[c]
		}
		out[i] = model.AthleteCapacity{
			AthleteID:     athleteID,
			Capacity:      c,
			Value:         scoring.Clamp(value, 0, maxValue),
			Confidence:    conf,
			LastUpdatedAt: now,
		}
	}
	return out
}

func (a *Aggregator) ema(now time.Time, c model.Capacity, attempts []model.ScoredAttempt) (float64, bool) {
	var (
		acc  float64
		seen bool
	)
	for _, sa := range attempts {
		if sa.Workout == nil {
			continue
		}
		weight, ok := Weights(sa.Workout)[c]
		if !ok {
			continue
		}
		v := sa.Result.ScoreNorm * weight * a.Decay(now, sa.Attempt.PerformedAt)
		if !seen {
			acc, seen = v, true
			continue
		}
		acc = a.alpha*v + (1-a.alpha)*acc
	}
	return acc, seen
}

// Decay weights a contribution by its age. Future timestamps count as age 0.
func (a *Aggregator) Decay(now, performedAt time.Time) float64 {
	days := math.Max(now.Sub(performedAt).Hours()/24, 0)
	return math.Exp(-days / a.decayDays)
}

// Confidence grades the number of attempts performed inside the window.
func (a *Aggregator) Confidence(now time.Time, attempts []model.ScoredAttempt) model.Confidence {
	since := now.Add(-a.window)
	n := 0
	for _, sa := range attempts {
		if !sa.Attempt.PerformedAt.Before(since) {
			n++
		}
	}
	switch {
	case n < a.lowBelow:
		return model.ConfidenceLow
	case n < a.medBelow:
		return model.ConfidenceMed
	default:
		return model.ConfidenceHigh
	}
}
