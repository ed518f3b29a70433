package model

import "time"

// Attempt is one athlete's try at a workout.
type Attempt struct {
	ID          string        `json:"id"`
	AthleteID   string        `json:"athleteId"`
	WorkoutID   string        `json:"workoutId"`
	PerformedAt time.Time     `json:"performedAt"`
	Scale       ScaleCode     `json:"scaleCode"`
	Status      AttemptStatus `json:"status"`
}

// AttemptResult holds the submitted outcome and its derived scores.
// At most one of the validated and rejected states is populated.
type AttemptResult struct {
	ID           string             `json:"id"`
	AttemptID    string             `json:"attemptId"`
	Primary      ResultEnvelope     `json:"primaryResult"`
	Inputs       map[string]float64 `json:"inputs"`
	ScoreBase    float64            `json:"scoreBase"`
	ScoreNorm    float64            `json:"scoreNorm"`
	Quality      DataQuality        `json:"dataQuality"`
	ValidatedBy  string             `json:"validatedBy,omitempty"`
	ValidatedAt  *time.Time         `json:"validatedAt,omitempty"`
	RejectReason string             `json:"rejectReason,omitempty"`
}

// ScoredAttempt pairs an attempt with its result and workout for aggregation.
type ScoredAttempt struct {
	Attempt Attempt
	Result  AttemptResult
	Workout *Workout
}
