package model

import "time"

// AthleteCapacity is the current estimate for one athlete and dimension.
type AthleteCapacity struct {
	AthleteID     string     `json:"athleteId"`
	Capacity      Capacity   `json:"type"`
	Value         float64    `json:"value"`
	Confidence    Confidence `json:"confidence"`
	LastUpdatedAt time.Time  `json:"lastUpdatedAt"`
}

// CapacitySample is one append-only history point.
type CapacitySample struct {
	AthleteID string
	Capacity  Capacity
	At        time.Time
	Value     float64
}

// ExplainItem is one line of a pulse explanation.
type ExplainItem struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

// AthletePulse is the composite of the four capacities.
type AthletePulse struct {
	AthleteID  string        `json:"athleteId"`
	Value      float64       `json:"value"`
	Confidence Confidence    `json:"confidence"`
	ComputedAt time.Time     `json:"computedAt"`
	Explain    []ExplainItem `json:"explain"`
}
