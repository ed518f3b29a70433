package model

import (
	"math"
	"time"
)

// weightSumTolerance bounds how far a test workout's weights may drift from 1.
const weightSumTolerance = 0.01

// CapacityWeights maps a capacity to its share of a workout's stimulus.
type CapacityWeights map[Capacity]float64

// Movement is one logged movement of a workout with its prescribed volume.
type Movement struct {
	ID       string          `json:"id" yaml:"id"`
	Pattern  MovementPattern `json:"pattern" yaml:"pattern"`
	Reps     int             `json:"reps,omitempty" yaml:"reps"`
	Meters   int             `json:"meters,omitempty" yaml:"meters"`
	Seconds  int             `json:"seconds,omitempty" yaml:"seconds"`
	Calories int             `json:"calories,omitempty" yaml:"calories"`
}

// Workout is the read-only view of a workout definition the engine needs.
type Workout struct {
	ID        string
	Title     string
	IsTest    bool
	Type      WorkoutType
	Scales    []ScaleCode
	Weights   CapacityWeights // empty for most non-test workouts
	Movements []Movement
}

// OffersScale reports whether the workout prescribes scale.
func (w *Workout) OffersScale(scale ScaleCode) bool {
	for _, s := range w.Scales {
		if s == scale {
			return true
		}
	}
	return false
}

// ValidateWeights checks the capacity-weight schema: each weight in [0,1]
// and, for test workouts, all four present and summing to 1.00 ± 0.01.
func ValidateWeights(isTest bool, weights CapacityWeights) error {
	sum := 0.0
	for c, w := range weights {
		if w < 0 || w > 1 || math.IsNaN(w) {
			return Validationf("capacity weight %s=%v outside [0,1]", c, w)
		}
		sum += w
	}
	if !isTest {
		return nil
	}
	for _, c := range Capacities {
		if _, ok := weights[c]; !ok {
			return Validationf("test workout missing capacity weight %s", c)
		}
	}
	if math.Abs(sum-1) > weightSumTolerance {
		return Validationf("test workout capacity weights sum to %.3f, want 1.00", sum)
	}
	return nil
}

// IdealProfile is a coach-declared reference base score.
type IdealProfile struct {
	WorkoutID string
	Scope     Scope
	GymID     string // empty for community ideals
	BaseValue float64
}

// Athlete is the membership view of an athlete.
type Athlete struct {
	ID          string
	UserID      string
	DisplayName string
	GymID       string
	CreatedAt   time.Time
}
