// Package scoring converts a submitted primary result into a base score and
// normalizes it against an ideal reference.
package scoring

import (
	"math"

	"github.com/okian/pulse/internal/domain/model"
)

// Default scoring configuration constants.
const (
	defaultLoadKey       = "loadKgTotal"
	defaultTimeNumerator = 100_000
	roundValue           = 1000
	maxScoreValue        = 100
)

// allowedKinds is the fixed table of result kinds each workout type accepts.
var allowedKinds = map[model.WorkoutType][]model.ResultKind{
	model.WorkoutAMRAP:     {model.KindReps, model.KindMeters, model.KindRoundsMeters},
	model.WorkoutEMOM:      {model.KindReps},
	model.WorkoutForTime:   {model.KindTime},
	model.WorkoutIntervals: {model.KindReps, model.KindMeters, model.KindTime, model.KindRoundsMeters},
	model.WorkoutBlocks:    {model.KindReps, model.KindMeters, model.KindTime, model.KindRoundsMeters},
}

// Reference tells which ideal a normalized score was computed against.
type Reference string

const (
	ReferenceGym       Reference = "gym"
	ReferenceCommunity Reference = "community"
	ReferenceNone      Reference = "none"
)

// IdealLookup resolves a coach-declared ideal base score for a workout.
// gymID is ignored for community scope.
type IdealLookup interface {
	Ideal(workoutID string, scope model.Scope, gymID string) (float64, bool)
}

// Option applies a configuration option to the Calculator.
type Option func(*Calculator)

// WithLoadKey sets the inputs key whose positive value scales the score.
func WithLoadKey(key string) Option {
	return func(c *Calculator) {
		if key != "" {
			c.loadKey = key
		}
	}
}

// WithTimeNumerator sets the constant divided by the time in seconds.
func WithTimeNumerator(n float64) Option {
	return func(c *Calculator) {
		if n > 0 {
			c.timeNumerator = n
		}
	}
}

// Input abstracts the submission fields needed for scoring.
type Input struct {
	Workout *model.Workout
	GymID   string // athlete's current gym
	Primary model.PrimaryResult
	Inputs  map[string]float64
}

// Result contains the computed scores for a submission.
type Result struct {
	Base      float64
	Norm      float64
	Reference Reference
}

// Calculator scores submissions. It holds no mutable state and is safe for
// concurrent use.
type Calculator struct {
	loadKey       string
	timeNumerator float64
}

// NewCalculator creates a calculator with configuration options.
func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{
		loadKey:       defaultLoadKey,
		timeNumerator: defaultTimeNumerator,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Allowed fails with a validation error when kind is not accepted by the
// workout type.
func Allowed(t model.WorkoutType, kind model.ResultKind) error {
	for _, k := range allowedKinds[t] {
		if k == kind {
			return nil
		}
	}
	return model.Validationf("primary result type %s is not valid for workout type %s", kind, t)
}

// Score validates the result kind, computes the base score and normalizes it.
func (c *Calculator) Score(in Input, ideals IdealLookup) (Result, error) {
	if in.Workout == nil || in.Primary == nil {
		return Result{}, model.Validationf("workout and primary result are required")
	}
	if err := Allowed(in.Workout.Type, in.Primary.Kind()); err != nil {
		return Result{}, err
	}
	base, err := c.Base(in.Primary, in.Inputs)
	if err != nil {
		return Result{}, err
	}
	norm, ref := c.Normalize(base, in.Workout.ID, in.GymID, ideals)
	return Result{Base: base, Norm: norm, Reference: ref}, nil
}

// Base computes the raw score for a primary result.
func (c *Calculator) Base(pr model.PrimaryResult, inputs map[string]float64) (float64, error) {
	load := c.loadFactor(inputs)
	switch v := pr.(type) {
	case model.Reps:
		return float64(v.Reps) * load, nil
	case model.Meters:
		return float64(v.Meters) * load, nil
	case model.Time:
		if v.Seconds <= 0 {
			return 0, model.Validationf("timeSeconds must be > 0")
		}
		return c.timeNumerator / float64(v.Seconds), nil
	case model.RoundsMeters:
		return float64(v.Rounds*roundValue+v.Meters) * load, nil
	default:
		return 0, model.Validationf("unsupported primary result payload %T", pr)
	}
}

// Normalize rescales base against the gym ideal, then the community ideal,
// then falls back to clamping the base itself.
func (c *Calculator) Normalize(base float64, workoutID, gymID string, ideals IdealLookup) (float64, Reference) {
	if ideals != nil {
		if gymID != "" {
			if ideal, ok := ideals.Ideal(workoutID, model.ScopeGym, gymID); ok && ideal > 0 {
				return Clamp(base/ideal*maxScoreValue, 0, maxScoreValue), ReferenceGym
			}
		}
		if ideal, ok := ideals.Ideal(workoutID, model.ScopeCommunity, ""); ok && ideal > 0 {
			return Clamp(base/ideal*maxScoreValue, 0, maxScoreValue), ReferenceCommunity
		}
	}
	return Clamp(base, 0, maxScoreValue), ReferenceNone
}

func (c *Calculator) loadFactor(inputs map[string]float64) float64 {
	if v, ok := inputs[c.loadKey]; ok && v > 0 && !math.IsInf(v, 0) {
		return v
	}
	return 1.0
}

// Clamp bounds x to [lo, hi]. NaN clamps to lo.
func Clamp(x, lo, hi float64) float64 {
	if math.IsNaN(x) {
		return lo
	}
	return math.Max(lo, math.Min(hi, x))
}
