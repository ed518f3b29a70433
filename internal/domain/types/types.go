// Package types contains common types used across the application
package types

import (
	"strings"
	"time"

	"github.com/okian/pulse/internal/domain/model"
)

// Entry represents a leaderboard entry
type Entry struct {
	Rank          int       `json:"rank"`
	AthleteID     string    `json:"athleteId"`
	DisplayName   string    `json:"displayName"`
	BestScoreNorm float64   `json:"bestScoreNorm"`
	BestAttemptID string    `json:"bestAttemptId"`
	PerformedAt   time.Time `json:"performedAt"`
}

// Identity names exactly one ranked list.
type Identity struct {
	WorkoutID string          `json:"workoutId"`
	Scope     model.Scope     `json:"scope"`
	GymID     string          `json:"gymId,omitempty"` // set only for GYM scope
	Period    model.Period    `json:"period"`
	Scale     model.ScaleCode `json:"scaleCode"`
}

// Key renders the identity as a stable, colon-separated string. Community
// identities use "-" in the gym slot.
func (id Identity) Key() string {
	gym := id.GymID
	if id.Scope != model.ScopeGym || gym == "" {
		gym = "-"
	}
	return strings.Join([]string{id.WorkoutID, string(id.Scope), gym, string(id.Period), string(id.Scale)}, ":")
}

// Leaderboard is one computed or materialized ranked list.
type Leaderboard struct {
	Identity  Identity  `json:"identity"`
	Entries   []Entry   `json:"entries"`
	MyRank    *int      `json:"myRank,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}
