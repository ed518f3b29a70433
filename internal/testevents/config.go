package testevents

import (
	"time"

	"github.com/okian/pulse/pkg/logger"
)

// Config holds configuration for the event test.
type Config struct {
	BaseURL            string        // base URL of the service
	WorkoutID          string        // workout every attempt targets
	Scale              string        // scale code of the attempts
	Athletes           []string      // athlete ids known to the service
	AttemptsPerAthlete int           // attempts generated per athlete
	MaxReps            int           // upper bound of generated rep counts
	Seed               uint64        // generator seed
	ValidatorID        string        // validator recorded on VALIDATE events
	Workers            int           // concurrent HTTP workers
	Timeout            time.Duration // HTTP request timeout
	DrainTimeout       time.Duration // how long to wait for the workers to apply events
	PollInterval       time.Duration // /stats polling interval while draining
	Logger             logger.Logger
}

// Attempt is one generated attempt and the result it will be submitted with.
type Attempt struct {
	ID        string
	AthleteID string
	Reps      int
}

// Event mirrors the POST /events body.
type Event struct {
	EventID     string         `json:"eventId"`
	Type        string         `json:"type"`
	AttemptID   string         `json:"attemptId"`
	Primary     map[string]any `json:"primaryResult,omitempty"`
	ValidatorID string         `json:"validatorId,omitempty"`
	TS          string         `json:"ts"`
}

// Entry is a leaderboard row as served by the API.
type Entry struct {
	Rank          int     `json:"rank"`
	AthleteID     string  `json:"athleteId"`
	BestScoreNorm float64 `json:"bestScoreNorm"`
	BestAttemptID string  `json:"bestAttemptId"`
}

// Leaderboard is the GET /rankings response.
type Leaderboard struct {
	Entries []Entry `json:"entries"`
}

// Stats holds test statistics.
type Stats struct {
	AttemptsCreated    int
	EventsSubmitted    int
	EventsAccepted     int
	EventsFailed       int
	LeaderboardEntries int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
