// Package seed loads YAML fixtures into the store and replays their attempts
// through the engine.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/okian/pulse/internal/adapters/repository"
	service "github.com/okian/pulse/internal/app"
	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/pkg/logger"
)

// Fixture is the document layout.
type Fixture struct {
	Athletes []Athlete `yaml:"athletes"`
	Staff    []Staff   `yaml:"staff"`
	Workouts []Workout `yaml:"workouts"`
	Ideals   []Ideal   `yaml:"ideals"`
	Attempts []Attempt `yaml:"attempts"`
}

// Athlete is a member profile with its current gym.
type Athlete struct {
	ID          string `yaml:"id"`
	UserID      string `yaml:"userId"`
	DisplayName string `yaml:"displayName"`
	GymID       string `yaml:"gymId"`
}

// Staff grants a non-athlete user a gym.
type Staff struct {
	UserID string `yaml:"userId"`
	GymID  string `yaml:"gymId"`
}

// Workout is a workout definition; test workouts need a full weight table.
type Workout struct {
	ID        string                     `yaml:"id"`
	Title     string                     `yaml:"title"`
	IsTest    bool                       `yaml:"isTest"`
	Type      model.WorkoutType          `yaml:"type"`
	Scales    []model.ScaleCode          `yaml:"scales"`
	Weights   map[model.Capacity]float64 `yaml:"weights"`
	Movements []model.Movement           `yaml:"movements"`
}

// Ideal is a coach-declared reference base score.
type Ideal struct {
	WorkoutID string      `yaml:"workoutId"`
	Scope     model.Scope `yaml:"scope"`
	GymID     string      `yaml:"gymId"`
	BaseValue float64     `yaml:"baseValue"`
}

// Attempt is replayed as create, submit and then validate or reject.
type Attempt struct {
	AthleteID   string              `yaml:"athleteId"`
	WorkoutID   string              `yaml:"workoutId"`
	Scale       model.ScaleCode     `yaml:"scale"`
	DaysAgo     float64             `yaml:"daysAgo"`
	Result      *Result             `yaml:"result"`
	Inputs      map[string]float64  `yaml:"inputs"`
	Status      model.AttemptStatus `yaml:"status"`
	ValidatorID string              `yaml:"validatorId"`
	Reason      string              `yaml:"reason"`
}

// Result mirrors the tagged primary result form.
type Result struct {
	Type        model.ResultKind `yaml:"type" json:"type"`
	RepsTotal   *int             `yaml:"repsTotal" json:"repsTotal,omitempty"`
	MetersTotal *int             `yaml:"metersTotal" json:"metersTotal,omitempty"`
	TimeSeconds *int             `yaml:"timeSeconds" json:"timeSeconds,omitempty"`
	Rounds      *int             `yaml:"rounds" json:"rounds,omitempty"`
	Meters      *int             `yaml:"meters" json:"meters,omitempty"`
}

// Primary converts the document form.
func (r Result) Primary() (model.PrimaryResult, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return model.DecodePrimaryResult(raw)
}

// Lifecycle is the part of the engine a replay drives.
type Lifecycle interface {
	CreateAttempt(ctx context.Context, in service.NewAttempt) (model.Attempt, error)
	Submit(ctx context.Context, attemptID string, pr model.PrimaryResult, inputs map[string]float64) (service.AttemptState, error)
	Validate(ctx context.Context, attemptID, validatorID string) (service.AttemptState, error)
	Reject(ctx context.Context, attemptID, validatorID, reason string) (service.AttemptState, error)
}

// Decode reads a fixture document.
func Decode(r io.Reader) (*Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	return &f, nil
}

// ReadFile decodes the fixture at path.
func ReadFile(path string) (*Fixture, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer fh.Close()
	return Decode(fh)
}

// Apply writes the reference data in one transaction.
func (f *Fixture) Apply(st *repository.Store) error {
	return st.Update(func(tx *repository.Tx) error {
		for _, a := range f.Athletes {
			if err := tx.PutAthlete(model.Athlete{ID: a.ID, UserID: a.UserID, DisplayName: a.DisplayName, GymID: a.GymID}); err != nil {
				return fmt.Errorf("athlete %s: %w", a.ID, err)
			}
		}
		for _, s := range f.Staff {
			tx.SetStaffGym(s.UserID, s.GymID)
		}
		for _, w := range f.Workouts {
			if err := model.ValidateWeights(w.IsTest, w.Weights); err != nil {
				return fmt.Errorf("workout %s: %w", w.ID, err)
			}
			if err := tx.PutWorkout(&model.Workout{
				ID: w.ID, Title: w.Title, IsTest: w.IsTest, Type: w.Type,
				Scales: w.Scales, Weights: w.Weights, Movements: w.Movements,
			}); err != nil {
				return fmt.Errorf("workout %s: %w", w.ID, err)
			}
		}
		for _, i := range f.Ideals {
			tx.PutIdeal(model.IdealProfile{WorkoutID: i.WorkoutID, Scope: i.Scope, GymID: i.GymID, BaseValue: i.BaseValue})
		}
		return nil
	})
}

// Replay runs the fixture attempts through the engine. Attempts without a
// result stay DRAFT; those without a status stay SUBMITTED.
func (f *Fixture) Replay(ctx context.Context, eng Lifecycle, now time.Time, log logger.Logger) (int, error) {
	n := 0
	for i, a := range f.Attempts {
		performed := now.Add(-time.Duration(a.DaysAgo * float64(24*time.Hour)))
		created, err := eng.CreateAttempt(ctx, service.NewAttempt{
			AthleteID: a.AthleteID, WorkoutID: a.WorkoutID, Scale: a.Scale, PerformedAt: performed,
		})
		if err != nil {
			return n, fmt.Errorf("attempt %d: %w", i, err)
		}
		n++
		if a.Result == nil {
			continue
		}
		pr, err := a.Result.Primary()
		if err != nil {
			return n, fmt.Errorf("attempt %d result: %w", i, err)
		}
		if _, err := eng.Submit(ctx, created.ID, pr, a.Inputs); err != nil {
			return n, fmt.Errorf("attempt %d submit: %w", i, err)
		}
		switch a.Status {
		case model.AttemptValidated:
			_, err = eng.Validate(ctx, created.ID, a.ValidatorID)
		case model.AttemptRejected:
			_, err = eng.Reject(ctx, created.ID, a.ValidatorID, a.Reason)
		}
		if err != nil {
			return n, fmt.Errorf("attempt %d %s: %w", i, a.Status, err)
		}
	}
	if log != nil {
		log.Info(ctx, "fixture replayed", logger.Int("attempts", n))
	}
	return n, nil
}
