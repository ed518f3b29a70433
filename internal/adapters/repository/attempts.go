package repository

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/okian/pulse/internal/domain/model"
)

// PutAttempt inserts or replaces an attempt.
func (tx *Tx) PutAttempt(a model.Attempt) error {
	if a.ID == "" {
		return fmt.Errorf("%w: attempt id is empty", ErrInvalidRecord)
	}
	tx.attempts[a.ID] = a
	return nil
}

// Attempt returns a copy of the attempt with id.
func (tx *Tx) Attempt(id string) (model.Attempt, bool) {
	a, ok := tx.attempts[id]
	return a, ok
}

// PutResult inserts or replaces the result of its attempt.
func (tx *Tx) PutResult(r model.AttemptResult) error {
	if r.AttemptID == "" {
		return fmt.Errorf("%w: result has no attempt id", ErrInvalidRecord)
	}
	r.Inputs = maps.Clone(r.Inputs)
	tx.results[r.AttemptID] = r
	return nil
}

// Result returns a copy of the result attached to attemptID.
func (tx *Tx) Result(attemptID string) (model.AttemptResult, bool) {
	r, ok := tx.results[attemptID]
	if ok {
		r.Inputs = maps.Clone(r.Inputs)
	}
	return r, ok
}

// ValidatedAttempts implements ranking.Source.
func (tx *Tx) ValidatedAttempts(workoutID string) []model.ScoredAttempt {
	return tx.validated(func(a model.Attempt) bool { return a.WorkoutID == workoutID })
}

// ValidatedAttemptsOf returns the athlete's validated attempts that have a
// result and a known workout, ordered by performedAt then id.
func (tx *Tx) ValidatedAttemptsOf(athleteID string) []model.ScoredAttempt {
	return tx.validated(func(a model.Attempt) bool { return a.AthleteID == athleteID })
}

func (tx *Tx) validated(keep func(model.Attempt) bool) []model.ScoredAttempt {
	var out []model.ScoredAttempt
	for _, a := range tx.attempts {
		if a.Status != model.AttemptValidated || !keep(a) {
			continue
		}
		r, ok := tx.results[a.ID]
		if !ok {
			continue
		}
		w, ok := tx.workouts[a.WorkoutID]
		if !ok {
			continue
		}
		out = append(out, model.ScoredAttempt{Attempt: a, Result: r, Workout: w})
	}
	slices.SortFunc(out, func(x, y model.ScoredAttempt) int {
		if c := x.Attempt.PerformedAt.Compare(y.Attempt.PerformedAt); c != 0 {
			return c
		}
		return cmp.Compare(x.Attempt.ID, y.Attempt.ID)
	})
	return out
}
