package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/pkg/logger"
)

// EventIngester accepts attempt events for async processing.
type EventIngester interface {
	Ingest(ctx context.Context, e model.Event) error
}

// EventsHandler handles event requests.
type EventsHandler struct {
	ingester EventIngester
	logger   logger.Logger
}

type ackResponse struct {
	Status string `json:"status"`
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(ingester EventIngester, l logger.Logger) *EventsHandler {
	return &EventsHandler{ingester: ingester, logger: l}
}

// HandlePostEvent handles POST /events. Duplicates are acknowledged like
// fresh events.
func (h *EventsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_event"
	var e model.Event
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		h.write(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.ingester.Ingest(r.Context(), e); err != nil {
		h.write(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}

func (h *EventsHandler) write(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "event rejected", logger.Error(err))
	}
	writeJSON(w, status, errorResponse{Code: code, Message: err.Error()})
}
