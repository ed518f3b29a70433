package testevents

import (
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

const minReps = 1

// plan draws the rep count of every attempt. The same seed yields the same
// plan.
func plan(config *Config) []Attempt {
	rng := rand.New(rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15))
	maxReps := max(config.MaxReps, minReps)

	out := make([]Attempt, 0, len(config.Athletes)*config.AttemptsPerAthlete)
	for _, athlete := range config.Athletes {
		for range config.AttemptsPerAthlete {
			out = append(out, Attempt{AthleteID: athlete, Reps: minReps + rng.IntN(maxReps)})
		}
	}
	return out
}

func submitEvent(a Attempt) Event {
	return Event{
		EventID:   uuid.NewString(),
		Type:      "SUBMIT",
		AttemptID: a.ID,
		Primary:   map[string]any{"type": "REPS", "repsTotal": a.Reps},
		TS:        time.Now().UTC().Format(time.RFC3339),
	}
}

func validateEvent(a Attempt, validatorID string) Event {
	return Event{
		EventID:     uuid.NewString(),
		Type:        "VALIDATE",
		AttemptID:   a.ID,
		ValidatorID: validatorID,
		TS:          time.Now().UTC().Format(time.RFC3339),
	}
}

// expectedBest is the highest generated rep count per athlete.
func expectedBest(attempts []Attempt) map[string]int {
	best := make(map[string]int)
	for _, a := range attempts {
		if a.Reps > best[a.AthleteID] {
			best[a.AthleteID] = a.Reps
		}
	}
	return best
}
