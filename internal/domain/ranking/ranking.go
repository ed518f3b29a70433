// Package ranking builds deduplicated, ranked leaderboards from validated
// attempts.
package ranking

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/internal/domain/types"
)

// recentWindow bounds the D30 period.
const recentWindow = 30 * 24 * time.Hour

// Source exposes the read side of the store that rankings are computed from.
type Source interface {
	Workout(id string) (*model.Workout, bool)
	Athlete(id string) (*model.Athlete, bool)
	// ValidatedAttempts returns the workout's validated attempts with their
	// results, ordered by performedAt then attempt id.
	ValidatedAttempts(workoutID string) []model.ScoredAttempt
}

// MembershipResolver maps an authenticated user to the athlete profile and
// gym they currently belong to.
type MembershipResolver interface {
	AthleteOfUser(userID string) (string, bool)
	GymOfUser(userID string) (string, bool)
}

// Query is an on-demand leaderboard request.
type Query struct {
	WorkoutID string
	Scope     model.Scope
	Period    model.Period
	Scale     model.ScaleCode
	CallerID  string // authenticated user id, empty when anonymous
}

// Resolve validates q and turns it into a leaderboard identity. GYM scope
// needs an authenticated caller with a gym.
func Resolve(src Source, members MembershipResolver, q Query) (types.Identity, error) {
	if _, ok := src.Workout(q.WorkoutID); !ok {
		return types.Identity{}, model.NotFoundf("workout %s", q.WorkoutID)
	}
	id := types.Identity{WorkoutID: q.WorkoutID, Scope: q.Scope, Period: q.Period, Scale: q.Scale}
	if q.Scope != model.ScopeGym {
		return id, nil
	}
	if q.CallerID == "" {
		return types.Identity{}, fmt.Errorf("%w: gym ranking requires an authenticated caller", model.ErrUnauthorized)
	}
	gym, ok := members.GymOfUser(q.CallerID)
	if !ok || gym == "" {
		return types.Identity{}, fmt.Errorf("%w: caller has no gym", model.ErrForbidden)
	}
	id.GymID = gym
	return id, nil
}

// candidate is an athlete's best attempt so far.
type candidate struct {
	athlete *model.Athlete
	attempt model.Attempt
	score   float64
}

// Compute ranks the athletes matching id at now. callerAthleteID, when set,
// fills MyRank if that athlete is ranked.
func Compute(src Source, id types.Identity, now time.Time, callerAthleteID string) types.Leaderboard {
	since := now.Add(-recentWindow)
	best := make(map[string]*candidate)
	order := make([]*candidate, 0)

	for _, sa := range src.ValidatedAttempts(id.WorkoutID) {
		a := sa.Attempt
		if a.Scale != id.Scale {
			continue
		}
		if id.Period == model.PeriodD30 && a.PerformedAt.Before(since) {
			continue
		}
		athlete, ok := src.Athlete(a.AthleteID)
		if !ok {
			continue
		}
		if id.Scope == model.ScopeGym && athlete.GymID != id.GymID {
			continue
		}
		cur, seen := best[athlete.ID]
		if !seen {
			c := &candidate{athlete: athlete, attempt: a, score: sa.Result.ScoreNorm}
			best[athlete.ID] = c
			order = append(order, c)
			continue
		}
		// Strictly greater: the first attempt reaching a score keeps it.
		if sa.Result.ScoreNorm > cur.score {
			cur.attempt, cur.score = a, sa.Result.ScoreNorm
		}
	}

	// ordering uses full precision; entries carry the score rounded to 2 dp
	slices.SortFunc(order, func(x, y *candidate) int {
		if c := cmp.Compare(y.score, x.score); c != 0 {
			return c
		}
		if c := x.attempt.PerformedAt.Compare(y.attempt.PerformedAt); c != 0 {
			return c
		}
		return cmp.Compare(x.athlete.ID, y.athlete.ID)
	})

	lb := types.Leaderboard{
		Identity:  id,
		Entries:   make([]types.Entry, len(order)),
		UpdatedAt: now,
	}
	for i, c := range order {
		rank := i + 1
		name := c.athlete.DisplayName
		if name == "" {
			name = c.athlete.ID
		}
		lb.Entries[i] = types.Entry{
			Rank:          rank,
			AthleteID:     c.athlete.ID,
			DisplayName:   name,
			BestScoreNorm: math.Round(c.score*100) / 100,
			BestAttemptID: c.attempt.ID,
			PerformedAt:   c.attempt.PerformedAt,
		}
		if callerAthleteID != "" && c.athlete.ID == callerAthleteID {
			lb.MyRank = &rank
		}
	}
	return lb
}

// Identities enumerates every leaderboard materialized by a full recompute:
// each workout, each of its scales, both periods, community plus every gym.
// gyms must be distinct; they are visited in sorted order.
func Identities(workouts []*model.Workout, gyms []string) []types.Identity {
	gyms = slices.Sorted(slices.Values(gyms))
	out := make([]types.Identity, 0, len(workouts)*2*(1+len(gyms)))
	for _, w := range workouts {
		for _, scale := range w.Scales {
			for _, period := range model.Periods {
				out = append(out, types.Identity{WorkoutID: w.ID, Scope: model.ScopeCommunity, Period: period, Scale: scale})
				for _, g := range gyms {
					out = append(out, types.Identity{WorkoutID: w.ID, Scope: model.ScopeGym, GymID: g, Period: period, Scale: scale})
				}
			}
		}
	}
	return out
}
