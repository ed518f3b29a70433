// Package impact maps logged movements to a distribution over the four
// capacity dimensions.
package impact

import "github.com/okian/pulse/internal/domain/model"

// Volume conversion factors into a dimensionless magnitude.
const (
	metersPerUnit  = 10.0
	secondsPerUnit = 30.0
	unitsPerCal    = 2.0
	uniformShare   = 1.0 / float64(len(model.Capacities))
)

// Vector is an impact value per capacity, indexed in model.Capacities order.
type Vector [4]float64

// patternWeights holds each pattern's fixed weight vector; every row sums to 1.
var patternWeights = map[model.MovementPattern]Vector{
	model.PatternSquat:      {0.55, 0.25, 0.15, 0.05},
	model.PatternHinge:      {0.55, 0.20, 0.20, 0.05},
	model.PatternPush:       {0.35, 0.45, 0.15, 0.05},
	model.PatternPull:       {0.25, 0.20, 0.50, 0.05},
	model.PatternCarry:      {0.25, 0.20, 0.10, 0.45},
	model.PatternCore:       {0.05, 0.40, 0.20, 0.35},
	model.PatternLocomotion: {0.05, 0.25, 0.10, 0.60},
	model.PatternOther:      Uniform(),
}

// Uniform returns the 0.25-each distribution.
func Uniform() Vector {
	return Vector{uniformShare, uniformShare, uniformShare, uniformShare}
}

// Weights returns the pattern's weight vector; unknown patterns are uniform.
func Weights(p model.MovementPattern) Vector {
	if w, ok := patternWeights[p]; ok {
		return w
	}
	return Uniform()
}

// Magnitude converts logged volume into a single count. A movement with no
// measured volume still counts once.
func Magnitude(m model.Movement) float64 {
	v := float64(m.Reps) +
		float64(m.Meters)/metersPerUnit +
		float64(m.Seconds)/secondsPerUnit +
		float64(m.Calories)*unitsPerCal
	if v <= 0 {
		return 1.0
	}
	return v
}

// Raw is the movement's weight vector scaled by its magnitude.
func Raw(m model.Movement) Vector {
	w := Weights(m.Pattern)
	mag := Magnitude(m)
	for i := range w {
		w[i] *= mag
	}
	return w
}

// Normalize rescales raw impact to sum to 1. A zero or negative total
// yields the uniform distribution.
func Normalize(raw Vector) Vector {
	total := 0.0
	for _, v := range raw {
		total += v
	}
	if total <= 0 {
		return Uniform()
	}
	for i := range raw {
		raw[i] /= total
	}
	return raw
}

// Transform sums the raw impact of every movement and normalizes it.
// An empty list is uniform.
func Transform(movements []model.Movement) Vector {
	if len(movements) == 0 {
		return Uniform()
	}
	var sum Vector
	for _, m := range movements {
		r := Raw(m)
		for i := range sum {
			sum[i] += r[i]
		}
	}
	return Normalize(sum)
}

// Map keys the vector by capacity.
func (v Vector) Map() map[model.Capacity]float64 {
	out := make(map[model.Capacity]float64, len(v))
	for i, c := range model.Capacities {
		out[c] = v[i]
	}
	return out
}
