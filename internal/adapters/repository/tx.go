package repository

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/internal/domain/types"
)

type capacityKey struct {
	athleteID string
	capacity  model.Capacity
}

type idealKey struct {
	workoutID string
	scope     model.Scope
	gymID     string
}

// Tx is the locked state handed to Update and View callbacks. It implements
// scoring.IdealLookup, ranking.Source and ranking.MembershipResolver.
type Tx struct {
	athletes      map[string]model.Athlete
	athleteByUser map[string]string
	staffGyms     map[string]string // non-athlete users, e.g. coaches
	workouts      map[string]*model.Workout
	ideals        map[idealKey]float64
	attempts      map[string]model.Attempt
	results       map[string]model.AttemptResult // by attempt id
	capacities    map[capacityKey]model.AthleteCapacity
	history       map[capacityKey][]model.CapacitySample
	pulses        map[string]model.AthletePulse
	snapshots     map[string]types.Leaderboard
}

// Stats counts stored entities.
type Stats struct {
	Athletes  int `json:"athletes"`
	Workouts  int `json:"workouts"`
	Attempts  int `json:"attempts"`
	Results   int `json:"results"`
	Snapshots int `json:"snapshots"`
}

func newTx() *Tx {
	return &Tx{
		athletes:      make(map[string]model.Athlete),
		athleteByUser: make(map[string]string),
		staffGyms:     make(map[string]string),
		workouts:      make(map[string]*model.Workout),
		ideals:        make(map[idealKey]float64),
		attempts:      make(map[string]model.Attempt),
		results:       make(map[string]model.AttemptResult),
		capacities:    make(map[capacityKey]model.AthleteCapacity),
		history:       make(map[capacityKey][]model.CapacitySample),
		pulses:        make(map[string]model.AthletePulse),
		snapshots:     make(map[string]types.Leaderboard),
	}
}

func (tx *Tx) stats() Stats {
	return Stats{
		Athletes:  len(tx.athletes),
		Workouts:  len(tx.workouts),
		Attempts:  len(tx.attempts),
		Results:   len(tx.results),
		Snapshots: len(tx.snapshots),
	}
}

// PutAthlete inserts or replaces an athlete profile.
func (tx *Tx) PutAthlete(a model.Athlete) error {
	if a.ID == "" {
		return fmt.Errorf("%w: athlete id is empty", ErrInvalidRecord)
	}
	if prev, ok := tx.athletes[a.ID]; ok && prev.UserID != "" {
		delete(tx.athleteByUser, prev.UserID)
	}
	tx.athletes[a.ID] = a
	if a.UserID != "" {
		tx.athleteByUser[a.UserID] = a.ID
	}
	return nil
}

// Athlete returns the athlete with id.
func (tx *Tx) Athlete(id string) (*model.Athlete, bool) {
	a, ok := tx.athletes[id]
	if !ok {
		return nil, false
	}
	return &a, true
}

// SetStaffGym records the gym of a user who is not an athlete.
func (tx *Tx) SetStaffGym(userID, gymID string) {
	if gymID == "" {
		delete(tx.staffGyms, userID)
		return
	}
	tx.staffGyms[userID] = gymID
}

// AthleteOfUser implements ranking.MembershipResolver.
func (tx *Tx) AthleteOfUser(userID string) (string, bool) {
	id, ok := tx.athleteByUser[userID]
	return id, ok
}

// GymOfUser implements ranking.MembershipResolver. Athletes resolve to their
// current gym, staff to the gym they were assigned.
func (tx *Tx) GymOfUser(userID string) (string, bool) {
	if id, ok := tx.athleteByUser[userID]; ok {
		g := tx.athletes[id].GymID
		return g, g != ""
	}
	g, ok := tx.staffGyms[userID]
	return g, ok
}

// Gyms returns the distinct current gyms of all athletes, sorted.
func (tx *Tx) Gyms() []string {
	set := make(map[string]struct{})
	for _, a := range tx.athletes {
		if a.GymID != "" {
			set[a.GymID] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(set))
}

// PutWorkout inserts or replaces a workout definition.
func (tx *Tx) PutWorkout(w *model.Workout) error {
	if w == nil || w.ID == "" {
		return fmt.Errorf("%w: workout id is empty", ErrInvalidRecord)
	}
	tx.workouts[w.ID] = w
	return nil
}

// Workout implements ranking.Source.
func (tx *Tx) Workout(id string) (*model.Workout, bool) {
	w, ok := tx.workouts[id]
	return w, ok
}

// Workouts returns all workouts ordered by id.
func (tx *Tx) Workouts() []*model.Workout {
	out := slices.Collect(maps.Values(tx.workouts))
	slices.SortFunc(out, func(a, b *model.Workout) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// PutIdeal inserts or replaces an ideal profile. The gym id is ignored for
// community scope.
func (tx *Tx) PutIdeal(p model.IdealProfile) {
	tx.ideals[newIdealKey(p.WorkoutID, p.Scope, p.GymID)] = p.BaseValue
}

// Ideal implements scoring.IdealLookup.
func (tx *Tx) Ideal(workoutID string, scope model.Scope, gymID string) (float64, bool) {
	v, ok := tx.ideals[newIdealKey(workoutID, scope, gymID)]
	return v, ok
}

func newIdealKey(workoutID string, scope model.Scope, gymID string) idealKey {
	if scope != model.ScopeGym {
		gymID = ""
	}
	return idealKey{workoutID: workoutID, scope: scope, gymID: gymID}
}
