package repository

import (
	"time"

	"github.com/okian/pulse/internal/domain/model"
)

// Capacities returns the athlete's stored capacities in enumeration order.
// ok is false when none were ever computed.
func (tx *Tx) Capacities(athleteID string) (caps [4]model.AthleteCapacity, ok bool) {
	for i, c := range model.Capacities {
		v, found := tx.capacities[capacityKey{athleteID, c}]
		if found {
			ok = true
		} else {
			v = model.AthleteCapacity{AthleteID: athleteID, Capacity: c, Confidence: model.ConfidenceLow}
		}
		caps[i] = v
	}
	return caps, ok
}

// CapacityValues returns the stored value per capacity, omitting missing ones.
func (tx *Tx) CapacityValues(athleteID string) map[model.Capacity]float64 {
	out := make(map[model.Capacity]float64, len(model.Capacities))
	for _, c := range model.Capacities {
		if v, ok := tx.capacities[capacityKey{athleteID, c}]; ok {
			out[c] = v.Value
		}
	}
	return out
}

// PutCapacity stores the estimate and appends a history sample for it.
// History is never pruned.
func (tx *Tx) PutCapacity(c model.AthleteCapacity) {
	k := capacityKey{c.AthleteID, c.Capacity}
	tx.capacities[k] = c
	tx.history[k] = append(tx.history[k], model.CapacitySample{
		AthleteID: c.AthleteID,
		Capacity:  c.Capacity,
		At:        c.LastUpdatedAt,
		Value:     c.Value,
	})
}

// SampleAtOrBefore returns the latest history sample taken at or before t.
func (tx *Tx) SampleAtOrBefore(athleteID string, c model.Capacity, t time.Time) (model.CapacitySample, bool) {
	h := tx.history[capacityKey{athleteID, c}]
	for i := len(h) - 1; i >= 0; i-- {
		if !h[i].At.After(t) {
			return h[i], true
		}
	}
	return model.CapacitySample{}, false
}

// History returns a copy of the samples of one capacity, oldest first.
func (tx *Tx) History(athleteID string, c model.Capacity) []model.CapacitySample {
	h := tx.history[capacityKey{athleteID, c}]
	out := make([]model.CapacitySample, len(h))
	copy(out, h)
	return out
}

// PutPulse stores the athlete's pulse.
func (tx *Tx) PutPulse(p model.AthletePulse) {
	tx.pulses[p.AthleteID] = p
}

// Pulse returns the athlete's pulse.
func (tx *Tx) Pulse(athleteID string) (model.AthletePulse, bool) {
	p, ok := tx.pulses[athleteID]
	return p, ok
}
