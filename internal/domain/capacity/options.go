package capacity

import "time"

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithDecayDays sets the recency decay constant in days.
func WithDecayDays(days float64) Option {
	return func(a *Aggregator) {
		if days > 0 {
			a.decayDays = days
		}
	}
}

// WithAlpha sets the EMA smoothing factor applied to each new contribution.
func WithAlpha(alpha float64) Option {
	return func(a *Aggregator) {
		if alpha > 0 && alpha <= 1 {
			a.alpha = alpha
		}
	}
}

// WithConfidenceWindow sets how far back validated attempts count toward
// confidence.
func WithConfidenceWindow(window time.Duration) Option {
	return func(a *Aggregator) {
		if window > 0 {
			a.window = window
		}
	}
}

// WithConfidenceThresholds sets the attempt counts below which confidence is
// LOW and MED respectively.
func WithConfidenceThresholds(low, med int) Option {
	return func(a *Aggregator) {
		if low > 0 && med >= low {
			a.lowBelow = low
			a.medBelow = med
		}
	}
}
