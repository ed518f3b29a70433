package model

import "time"

// EventType names an ingested attempt event.
type EventType string

const (
	EventSubmit   EventType = "SUBMIT"
	EventValidate EventType = "VALIDATE"
	EventReject   EventType = "REJECT"
)

// Event is an attempt event delivered by the ingest pipeline.
type Event struct {
	EventID     string             `json:"eventId"`       // unique id for idempotency
	Type        EventType          `json:"type"`          // what to apply
	AttemptID   string             `json:"attemptId"`     // subject attempt
	Primary     ResultEnvelope     `json:"primaryResult"` // SUBMIT only
	Inputs      map[string]float64 `json:"inputs"`        // SUBMIT only
	ValidatorID string             `json:"validatorId"`   // VALIDATE and REJECT
	Reason      string             `json:"reason"`        // REJECT only
	TS          time.Time          `json:"ts"`            // producer timestamp
}
