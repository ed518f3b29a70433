package service

import (
	"context"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/pulse/internal/adapters/repository"
	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/internal/domain/scoring"
	"github.com/okian/pulse/pkg/logger"
	"github.com/okian/pulse/pkg/metrics"
)

// NewAttempt describes an attempt to create. PerformedAt defaults to now.
type NewAttempt struct {
	AthleteID   string          `json:"athleteId"`
	WorkoutID   string          `json:"workoutId"`
	Scale       model.ScaleCode `json:"scaleCode"`
	PerformedAt time.Time       `json:"performedAt"`
}

// AttemptState is an attempt together with its result, if any.
type AttemptState struct {
	model.Attempt
	Result *model.AttemptResult `json:"result,omitempty"`
}

// CreateAttempt registers a DRAFT attempt.
func (s *Service) CreateAttempt(ctx context.Context, in NewAttempt) (model.Attempt, error) {
	var out model.Attempt
	err := s.store.Update(func(tx *repository.Tx) error {
		if _, ok := tx.Athlete(in.AthleteID); !ok {
			return model.NotFoundf("athlete %s", in.AthleteID)
		}
		w, ok := tx.Workout(in.WorkoutID)
		if !ok {
			return model.NotFoundf("workout %s", in.WorkoutID)
		}
		if !w.OffersScale(in.Scale) {
			return model.Validationf("scale %q not offered by workout %s", in.Scale, w.ID)
		}
		performedAt := in.PerformedAt.UTC()
		if in.PerformedAt.IsZero() {
			performedAt = s.now()
		}
		out = model.Attempt{
			ID:          uuid.NewString(),
			AthleteID:   in.AthleteID,
			WorkoutID:   in.WorkoutID,
			PerformedAt: performedAt,
			Scale:       in.Scale,
			Status:      model.AttemptDraft,
		}
		return tx.PutAttempt(out)
	})
	if err != nil {
		return model.Attempt{}, err
	}
	metrics.RecordAttemptTransition(string(model.AttemptDraft))
	s.logger.Debug(ctx, "attempt created",
		logger.String("attempt_id", out.ID),
		logger.String("athlete_id", out.AthleteID),
		logger.String("workout_id", out.WorkoutID),
	)
	return out, nil
}

// Submit scores a primary result and stores it on the attempt, replacing any
// earlier submission. The attempt moves to SUBMITTED.
func (s *Service) Submit(ctx context.Context, attemptID string, pr model.PrimaryResult, inputs map[string]float64) (AttemptState, error) {
	var (
		out     AttemptState
		scored  scoring.Result
		elapsed time.Duration
	)
	err := s.store.Update(func(tx *repository.Tx) error {
		a, ok := tx.Attempt(attemptID)
		if !ok {
			return model.NotFoundf("attempt %s", attemptID)
		}
		if pr == nil {
			return model.Validationf("primary result is required")
		}
		w, ok := tx.Workout(a.WorkoutID)
		if !ok {
			return model.NotFoundf("workout %s", a.WorkoutID)
		}
		gymID := ""
		if ath, ok := tx.Athlete(a.AthleteID); ok {
			gymID = ath.GymID
		}

		var err error
		scored, err = s.calculator.Score(scoring.Input{Workout: w, GymID: gymID, Primary: pr, Inputs: inputs}, tx)
		if err != nil {
			return err
		}

		res, exists := tx.Result(a.ID)
		if !exists {
			res = model.AttemptResult{ID: uuid.NewString(), AttemptID: a.ID, Quality: model.QualityOK}
		}
		res.Primary = model.ResultEnvelope{PrimaryResult: pr}
		res.Inputs = maps.Clone(inputs)
		if res.Inputs == nil {
			res.Inputs = map[string]float64{}
		}
		res.ScoreBase = scored.Base
		res.ScoreNorm = scored.Norm
		res.RejectReason = ""
		res.ValidatedBy = ""
		res.ValidatedAt = nil
		if err := tx.PutResult(res); err != nil {
			return err
		}

		wasValidated := a.Status == model.AttemptValidated
		a.Status = model.AttemptSubmitted
		if err := tx.PutAttempt(a); err != nil {
			return err
		}
		if wasValidated {
			// leaving the validated set changes the aggregation input
			start := time.Now()
			s.recomputeLocked(tx, a.AthleteID)
			elapsed = time.Since(start)
		}
		out = AttemptState{Attempt: a, Result: &res}
		return nil
	})
	if err != nil {
		if isValidation(err) {
			metrics.RecordScoringError()
		}
		return AttemptState{}, err
	}
	if elapsed > 0 {
		metrics.RecordCapacityRecompute(float64(elapsed.Microseconds()) / 1000)
	}
	metrics.RecordResultScored(string(scored.Reference))
	metrics.RecordAttemptTransition(string(model.AttemptSubmitted))
	s.logger.Debug(ctx, "attempt result submitted",
		logger.String("attempt_id", attemptID),
		logger.Float64("score_base", scored.Base),
		logger.Float64("score_norm", scored.Norm),
		logger.String("reference", string(scored.Reference)),
	)
	return out, nil
}

// Validate accepts a submitted attempt and refreshes the athlete's
// capacities and pulse.
func (s *Service) Validate(ctx context.Context, attemptID, validatorID string) (AttemptState, error) {
	var out AttemptState
	start := time.Now()
	err := s.store.Update(func(tx *repository.Tx) error {
		a, ok := tx.Attempt(attemptID)
		if !ok {
			return model.NotFoundf("attempt %s", attemptID)
		}
		if a.Status != model.AttemptSubmitted {
			return model.Validationf("attempt %s is %s, only SUBMITTED attempts can be validated", a.ID, a.Status)
		}
		if _, ok := tx.Athlete(a.AthleteID); !ok {
			return model.NotFoundf("athlete %s", a.AthleteID)
		}
		res, ok := tx.Result(a.ID)
		if !ok {
			return model.Validationf("attempt %s has no result", a.ID)
		}

		now := s.now()
		res.ValidatedBy = strings.TrimSpace(validatorID)
		res.ValidatedAt = &now
		res.RejectReason = ""
		res.Quality = model.QualityOK
		if err := tx.PutResult(res); err != nil {
			return err
		}
		a.Status = model.AttemptValidated
		if err := tx.PutAttempt(a); err != nil {
			return err
		}
		s.recomputeLocked(tx, a.AthleteID)
		out = AttemptState{Attempt: a, Result: &res}
		return nil
	})
	if err != nil {
		return AttemptState{}, err
	}
	metrics.RecordCapacityRecompute(float64(time.Since(start).Microseconds()) / 1000)
	metrics.RecordAttemptTransition(string(model.AttemptValidated))
	s.logger.Info(ctx, "attempt validated",
		logger.String("attempt_id", attemptID),
		logger.String("athlete_id", out.AthleteID),
		logger.String("validator_id", validatorID),
	)
	return out, nil
}

// Reject marks an attempt with a result as REJECTED.
func (s *Service) Reject(ctx context.Context, attemptID, validatorID, reason string) (AttemptState, error) {
	var out AttemptState
	err := s.store.Update(func(tx *repository.Tx) error {
		a, ok := tx.Attempt(attemptID)
		if !ok {
			return model.NotFoundf("attempt %s", attemptID)
		}
		res, ok := tx.Result(a.ID)
		if !ok {
			return model.Validationf("attempt %s has no result", a.ID)
		}
		res.RejectReason = strings.TrimSpace(reason)
		res.ValidatedBy = ""
		res.ValidatedAt = nil
		if err := tx.PutResult(res); err != nil {
			return err
		}
		wasValidated := a.Status == model.AttemptValidated
		a.Status = model.AttemptRejected
		if err := tx.PutAttempt(a); err != nil {
			return err
		}
		if wasValidated {
			s.recomputeLocked(tx, a.AthleteID)
		}
		out = AttemptState{Attempt: a, Result: &res}
		return nil
	})
	if err != nil {
		return AttemptState{}, err
	}
	metrics.RecordAttemptTransition(string(model.AttemptRejected))
	s.logger.Info(ctx, "attempt rejected",
		logger.String("attempt_id", attemptID),
		logger.String("validator_id", validatorID),
		logger.String("reason", reason),
	)
	return out, nil
}
