package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/internal/domain/ranking"
	"github.com/okian/pulse/internal/domain/types"
)

type recomputeResponse struct {
	Status     string `json:"status"`
	Recomputed int    `json:"recomputed"`
}

// parseQuery reads scope, period and scale with COMMUNITY, ALL_TIME and RX
// as defaults.
func parseQuery(r *http.Request) (ranking.Query, error) {
	q := r.URL.Query()
	scope, err := model.ParseScope(strings.ToUpper(valueOr(q.Get("scope"), string(model.ScopeCommunity))))
	if err != nil {
		return ranking.Query{}, err
	}
	period, err := model.ParsePeriod(strings.ToUpper(valueOr(q.Get("period"), string(model.PeriodAllTime))))
	if err != nil {
		return ranking.Query{}, err
	}
	scale, err := model.ParseScale(strings.ToUpper(valueOr(q.Get("scale"), string(model.ScaleRX))))
	if err != nil {
		return ranking.Query{}, err
	}
	return ranking.Query{
		WorkoutID: chi.URLParam(r, "workoutID"),
		Scope:     scope,
		Period:    period,
		Scale:     scale,
		CallerID:  strings.TrimSpace(r.Header.Get(CallerHeader)),
	}, nil
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// handleLeaderboard handles GET /rankings/{workoutID}.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	q, err := parseQuery(r)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	lb, err := s.engine.Leaderboard(r.Context(), q)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

// handleSnapshot handles GET /rankings/{workoutID}/snapshot. GYM snapshots
// take the gym from the gymId query parameter.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_snapshot"
	q, err := parseQuery(r)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	id := types.Identity{WorkoutID: q.WorkoutID, Scope: q.Scope, Period: q.Period, Scale: q.Scale}
	if q.Scope == model.ScopeGym {
		id.GymID = r.URL.Query().Get("gymId")
		if id.GymID == "" {
			s.fail(w, r, WrapKind(op, ErrBadRequest, model.Validationf("gymId is required for GYM scope")))
			return
		}
	}
	lb, err := s.engine.Snapshot(r.Context(), id)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

// handleRecompute handles POST /rankings/recompute.
func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	const op = "api.recompute_rankings"
	n, err := s.engine.RecomputeAll(r.Context())
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, recomputeResponse{Status: "ok", Recomputed: n})
}
