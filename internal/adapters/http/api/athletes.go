package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleDashboard handles GET /athletes/{athleteID}/dashboard.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.engine.Dashboard(r.Context(), chi.URLParam(r, "athleteID"))
	if err != nil {
		s.fail(w, r, Wrap("api.get_dashboard", err))
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleRecomputeAthlete handles POST /athletes/{athleteID}/recompute.
func (s *Server) handleRecomputeAthlete(w http.ResponseWriter, r *http.Request) {
	p, err := s.engine.RecomputeCapacitiesAndPulse(r.Context(), chi.URLParam(r, "athleteID"))
	if err != nil {
		s.fail(w, r, Wrap("api.recompute_athlete", err))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleImpact handles GET /workouts/{workoutID}/impact.
func (s *Server) handleImpact(w http.ResponseWriter, r *http.Request) {
	m, err := s.engine.WorkoutImpact(r.Context(), chi.URLParam(r, "workoutID"))
	if err != nil {
		s.fail(w, r, Wrap("api.get_impact", err))
		return
	}
	writeJSON(w, http.StatusOK, m)
}
