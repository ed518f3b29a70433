package model

import (
	"encoding/json"
	"fmt"
)

// ResultKind names a PrimaryResult variant.
type ResultKind string

const (
	KindReps         ResultKind = "REPS"
	KindMeters       ResultKind = "METERS"
	KindTime         ResultKind = "TIME"
	KindRoundsMeters ResultKind = "ROUNDS_METERS"
)

// PrimaryResult is the closed set of submitted outcomes. Only the types in
// this file implement it.
type PrimaryResult interface {
	Kind() ResultKind
	isPrimaryResult()
}

// Reps is a repetition count.
type Reps struct {
	Reps int
}

// Meters is a distance covered.
type Meters struct {
	Meters int
}

// Time is a completion time; lower is better.
type Time struct {
	Seconds int
}

// RoundsMeters is completed rounds plus the distance into the next one.
type RoundsMeters struct {
	Rounds int
	Meters int
}

func (Reps) Kind() ResultKind         { return KindReps }
func (Meters) Kind() ResultKind       { return KindMeters }
func (Time) Kind() ResultKind         { return KindTime }
func (RoundsMeters) Kind() ResultKind { return KindRoundsMeters }

func (Reps) isPrimaryResult()         {}
func (Meters) isPrimaryResult()       {}
func (Time) isPrimaryResult()         {}
func (RoundsMeters) isPrimaryResult() {}

// wireResult is the flattened JSON form, discriminated by Type.
type wireResult struct {
	Type        ResultKind `json:"type"`
	RepsTotal   *int       `json:"repsTotal,omitempty"`
	MetersTotal *int       `json:"metersTotal,omitempty"`
	TimeSeconds *int       `json:"timeSeconds,omitempty"`
	Rounds      *int       `json:"rounds,omitempty"`
	Meters      *int       `json:"meters,omitempty"`
}

// DecodePrimaryResult parses the tagged JSON form, e.g.
// {"type":"ROUNDS_METERS","rounds":5,"meters":120}.
func DecodePrimaryResult(data []byte) (PrimaryResult, error) {
	var w wireResult
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, Validationf("malformed primary result: %v", err)
	}
	missing := func(field string) error {
		return Validationf("primary result %s requires %s", w.Type, field)
	}
	switch w.Type {
	case KindReps:
		if w.RepsTotal == nil {
			return nil, missing("repsTotal")
		}
		return Reps{Reps: *w.RepsTotal}, nil
	case KindMeters:
		if w.MetersTotal == nil {
			return nil, missing("metersTotal")
		}
		return Meters{Meters: *w.MetersTotal}, nil
	case KindTime:
		if w.TimeSeconds == nil {
			return nil, missing("timeSeconds")
		}
		return Time{Seconds: *w.TimeSeconds}, nil
	case KindRoundsMeters:
		if w.Rounds == nil {
			return nil, missing("rounds")
		}
		if w.Meters == nil {
			return nil, missing("meters")
		}
		return RoundsMeters{Rounds: *w.Rounds, Meters: *w.Meters}, nil
	default:
		return nil, Validationf("unsupported primary result type %q", w.Type)
	}
}

// EncodePrimaryResult renders the tagged JSON form.
func EncodePrimaryResult(pr PrimaryResult) ([]byte, error) {
	w := wireResult{}
	switch v := pr.(type) {
	case Reps:
		w.Type, w.RepsTotal = KindReps, &v.Reps
	case Meters:
		w.Type, w.MetersTotal = KindMeters, &v.Meters
	case Time:
		w.Type, w.TimeSeconds = KindTime, &v.Seconds
	case RoundsMeters:
		w.Type, w.Rounds, w.Meters = KindRoundsMeters, &v.Rounds, &v.Meters
	default:
		return nil, fmt.Errorf("encode primary result: unexpected %T", pr)
	}
	return json.Marshal(w)
}

// ResultEnvelope carries a PrimaryResult through JSON documents.
type ResultEnvelope struct {
	PrimaryResult
}

// MarshalJSON implements json.Marshaler.
func (e ResultEnvelope) MarshalJSON() ([]byte, error) {
	if e.PrimaryResult == nil {
		return []byte("null"), nil
	}
	return EncodePrimaryResult(e.PrimaryResult)
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *ResultEnvelope) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		e.PrimaryResult = nil
		return nil
	}
	pr, err := DecodePrimaryResult(data)
	if err != nil {
		return err
	}
	e.PrimaryResult = pr
	return nil
}
