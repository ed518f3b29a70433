// Package api exposes the engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	service "github.com/okian/pulse/internal/app"
	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/internal/domain/ranking"
	"github.com/okian/pulse/internal/domain/types"
	"github.com/okian/pulse/pkg/logger"
)

// CallerHeader carries the authenticated user id.
const CallerHeader = "X-User-ID"

// Engine is the set of service operations the handlers use.
type Engine interface {
	CreateAttempt(ctx context.Context, in service.NewAttempt) (model.Attempt, error)
	Submit(ctx context.Context, attemptID string, pr model.PrimaryResult, inputs map[string]float64) (service.AttemptState, error)
	Validate(ctx context.Context, attemptID, validatorID string) (service.AttemptState, error)
	Reject(ctx context.Context, attemptID, validatorID, reason string) (service.AttemptState, error)
	RecomputeCapacitiesAndPulse(ctx context.Context, athleteID string) (model.AthletePulse, error)
	Dashboard(ctx context.Context, athleteID string) (service.Dashboard, error)
	WorkoutImpact(ctx context.Context, workoutID string) (map[model.Capacity]float64, error)
	Leaderboard(ctx context.Context, q ranking.Query) (types.Leaderboard, error)
	RecomputeAll(ctx context.Context) (int, error)
	Snapshot(ctx context.Context, id types.Identity) (types.Leaderboard, error)
	Ingest(ctx context.Context, e model.Event) error
}

// Server wires HTTP routes for the business API.
type Server struct {
	engine  Engine
	stats   StatsProvider
	logger  logger.Logger
	health  *HealthHandler
	statsH  *StatsHandler
	events  *EventsHandler
	mounted []func(chi.Router)
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request error logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMount registers extra routes, such as API docs.
func WithMount(fn func(chi.Router)) Option {
	return func(s *Server) {
		if fn != nil {
			s.mounted = append(s.mounted, fn)
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(engine Engine, stats StatsProvider, opts ...Option) *Server {
	s := &Server{
		engine: engine,
		stats:  stats,
		logger: logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.health = NewHealthHandler()
	s.statsH = NewStatsHandler(stats)
	s.events = NewEventsHandler(engine, s.logger)
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(Metrics)

	r.Get("/healthz", s.health.HandleHealth)
	r.Get("/stats", s.statsH.HandleStats)
	r.Post("/events", s.events.HandlePostEvent)

	r.Route("/attempts", func(r chi.Router) {
		r.Post("/", s.handleCreateAttempt)
		r.Post("/{attemptID}/result", s.handleSubmit)
		r.Post("/{attemptID}/validate", s.handleValidate)
		r.Post("/{attemptID}/reject", s.handleReject)
	})
	r.Route("/rankings", func(r chi.Router) {
		r.Post("/recompute", s.handleRecompute)
		r.Get("/{workoutID}", s.handleLeaderboard)
		r.Get("/{workoutID}/snapshot", s.handleSnapshot)
	})
	r.Get("/athletes/{athleteID}/dashboard", s.handleDashboard)
	r.Post("/athletes/{athleteID}/recompute", s.handleRecomputeAthlete)
	r.Get("/workouts/{workoutID}/impact", s.handleImpact)

	for _, fn := range s.mounted {
		fn(r)
	}
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fail writes err with the status its kind maps to.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("request_id", middleware.GetReqID(r.Context())),
			logger.Error(err),
		)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: err.Error()})
}

func decode(r *http.Request, op string, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return WrapKind(op, ErrBadRequest, err)
	}
	return nil
}
