package service

import (
	"context"
	"fmt"

	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/pkg/logger"
	"github.com/okian/pulse/pkg/metrics"
)

// Ingest deduplicates an event by id and queues it for the workers.
// Duplicates are dropped silently.
func (s *Service) Ingest(ctx context.Context, e model.Event) error {
	if e.EventID == "" {
		return model.Validationf("event id is required")
	}
	if e.AttemptID == "" {
		return model.Validationf("event %s has no attempt id", e.EventID)
	}
	switch e.Type {
	case model.EventSubmit, model.EventValidate, model.EventReject:
	default:
		return model.Validationf("event %s has unknown type %q", e.EventID, e.Type)
	}

	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}

	if s.deduper.SeenAndRecord(ctx, e.EventID) {
		metrics.RecordEventDuplicate()
		s.logger.Debug(ctx, "duplicate event dropped", logger.String("event_id", e.EventID))
		return nil
	}
	if err := s.queue.Enqueue(ctx, e); err != nil {
		// let a redelivery through
		s.deduper.Unrecord(ctx, e.EventID)
		return fmt.Errorf("enqueue event %s: %w", e.EventID, err)
	}
	metrics.RecordEventIngested(string(e.Type))
	return nil
}

// Apply executes one event against the engine. It is the worker handler.
func (s *Service) Apply(ctx context.Context, e model.Event) error {
	var err error
	switch e.Type {
	case model.EventSubmit:
		_, err = s.Submit(ctx, e.AttemptID, e.Primary.PrimaryResult, e.Inputs)
	case model.EventValidate:
		_, err = s.Validate(ctx, e.AttemptID, e.ValidatorID)
	case model.EventReject:
		_, err = s.Reject(ctx, e.AttemptID, e.ValidatorID, e.Reason)
	default:
		err = model.Validationf("unknown event type %q", e.Type)
	}
	if err != nil {
		return fmt.Errorf("apply %s event %s: %w", e.Type, e.EventID, err)
	}
	return nil
}
