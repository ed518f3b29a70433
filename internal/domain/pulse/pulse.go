// Package pulse composes the four capacity estimates into a single score.
package pulse

import (
	"fmt"
	"time"

	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/internal/domain/scoring"
)

// Compute returns the athlete's pulse at now: the clamped mean of the
// capacities, the weakest confidence among them and one explanation line per
// capacity in enumeration order.
func Compute(athleteID string, now time.Time, caps [4]model.AthleteCapacity) model.AthletePulse {
	sum := 0.0
	conf := model.ConfidenceHigh
	explain := make([]model.ExplainItem, 0, len(caps))
	for _, c := range caps {
		sum += c.Value
		if c.Confidence.Rank() < conf.Rank() {
			conf = c.Confidence
		}
		explain = append(explain, model.ExplainItem{
			Key:     string(c.Capacity),
			Message: fmt.Sprintf("value=%.2f; confidence=%s", c.Value, c.Confidence),
		})
	}
	return model.AthletePulse{
		AthleteID:  athleteID,
		Value:      scoring.Clamp(sum/float64(len(caps)), 0, 100),
		Confidence: conf,
		ComputedAt: now,
		Explain:    explain,
	}
}
