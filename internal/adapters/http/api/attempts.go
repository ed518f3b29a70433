package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/pulse/internal/app"
	"github.com/okian/pulse/internal/domain/model"
)

type createAttemptRequest struct {
	AthleteID string          `json:"athleteId"`
	WorkoutID string          `json:"workoutId"`
	Scale     model.ScaleCode `json:"scaleCode"`
}

type submitRequest struct {
	Primary model.ResultEnvelope `json:"primaryResult"`
	Inputs  map[string]float64   `json:"inputs"`
}

type validateRequest struct {
	ValidatorID string `json:"validatorId"`
}

type rejectRequest struct {
	ValidatorID string `json:"validatorId"`
	Reason      string `json:"reason"`
}

// handleCreateAttempt handles POST /attempts.
func (s *Server) handleCreateAttempt(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_attempt"
	var req createAttemptRequest
	if err := decode(r, op, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.AthleteID) == "" || strings.TrimSpace(req.WorkoutID) == "" {
		s.fail(w, r, WrapKind(op, ErrBadRequest, model.Validationf("athleteId and workoutId are required")))
		return
	}
	a, err := s.engine.CreateAttempt(r.Context(), service.NewAttempt{
		AthleteID: req.AthleteID, WorkoutID: req.WorkoutID, Scale: req.Scale,
	})
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// handleSubmit handles POST /attempts/{attemptID}/result.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_result"
	var req submitRequest
	if err := decode(r, op, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	st, err := s.engine.Submit(r.Context(), chi.URLParam(r, "attemptID"), req.Primary.PrimaryResult, req.Inputs)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleValidate handles POST /attempts/{attemptID}/validate.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	const op = "api.validate_attempt"
	var req validateRequest
	if err := decode(r, op, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	st, err := s.engine.Validate(r.Context(), chi.URLParam(r, "attemptID"), req.ValidatorID)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleReject handles POST /attempts/{attemptID}/reject.
func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	const op = "api.reject_attempt"
	var req rejectRequest
	if err := decode(r, op, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	st, err := s.engine.Reject(r.Context(), chi.URLParam(r, "attemptID"), req.ValidatorID, req.Reason)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, st)
}
