// Package model contains domain models passed between layers.
package model

// Capacity is one of the four physical-capacity dimensions.
type Capacity string

const (
	Strength          Capacity = "STRENGTH"
	MuscularEndurance Capacity = "MUSCULAR_ENDURANCE"
	RelativeStrength  Capacity = "RELATIVE_STRENGTH"
	WorkCapacity      Capacity = "WORK_CAPACITY"
)

// Capacities lists every dimension in enumeration order. Aggregations and
// explanations iterate in this order.
var Capacities = [4]Capacity{Strength, MuscularEndurance, RelativeStrength, WorkCapacity}

// Confidence grades how much evidence backs a capacity estimate.
type Confidence string

const (
	ConfidenceLow  Confidence = "LOW"
	ConfidenceMed  Confidence = "MED"
	ConfidenceHigh Confidence = "HIGH"
)

// Rank orders confidences LOW < MED < HIGH. Unknown values rank lowest.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 2
	case ConfidenceMed:
		return 1
	default:
		return 0
	}
}

// WorkoutType drives which primary result kinds a workout accepts.
type WorkoutType string

const (
	WorkoutAMRAP     WorkoutType = "AMRAP"
	WorkoutEMOM      WorkoutType = "EMOM"
	WorkoutForTime   WorkoutType = "FORTIME"
	WorkoutIntervals WorkoutType = "INTERVALS"
	WorkoutBlocks    WorkoutType = "BLOCKS"
)

// ScaleCode identifies the prescription an attempt was performed at.
type ScaleCode string

const (
	ScaleRX     ScaleCode = "RX"
	ScaleScaled ScaleCode = "SCALED"
)

// AttemptStatus tracks an attempt through submission and review.
type AttemptStatus string

const (
	AttemptDraft     AttemptStatus = "DRAFT"
	AttemptSubmitted AttemptStatus = "SUBMITTED"
	AttemptValidated AttemptStatus = "VALIDATED"
	AttemptRejected  AttemptStatus = "REJECTED"
)

// DataQuality flags a result for review.
type DataQuality string

const (
	QualityOK         DataQuality = "OK"
	QualityOutlier    DataQuality = "OUTLIER"
	QualityIncomplete DataQuality = "INCOMPLETE"
)

// Scope selects community-wide or single-gym data.
type Scope string

const (
	ScopeCommunity Scope = "COMMUNITY"
	ScopeGym       Scope = "GYM"
)

// Period bounds how far back a leaderboard looks.
type Period string

const (
	PeriodAllTime Period = "ALL_TIME"
	PeriodD30     Period = "D30"
)

// Periods lists the materialized leaderboard periods.
var Periods = [2]Period{PeriodAllTime, PeriodD30}

// MovementPattern classifies a movement for impact weighting.
type MovementPattern string

const (
	PatternSquat      MovementPattern = "SQUAT"
	PatternHinge      MovementPattern = "HINGE"
	PatternPush       MovementPattern = "PUSH"
	PatternPull       MovementPattern = "PULL"
	PatternCarry      MovementPattern = "CARRY"
	PatternCore       MovementPattern = "CORE"
	PatternLocomotion MovementPattern = "LOCOMOTION"
	PatternOther      MovementPattern = "OTHER"
)

// ParseScope validates a scope string.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeCommunity, ScopeGym:
		return Scope(s), nil
	}
	return "", Validationf("unknown scope %q", s)
}

// ParsePeriod validates a period string.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case PeriodAllTime, PeriodD30:
		return Period(s), nil
	}
	return "", Validationf("unknown period %q", s)
}

// ParseScale validates a scale code string.
func ParseScale(s string) (ScaleCode, error) {
	switch ScaleCode(s) {
	case ScaleRX, ScaleScaled:
		return ScaleCode(s), nil
	}
	return "", Validationf("unknown scale code %q", s)
}
