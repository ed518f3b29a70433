package worker

import (
	"github.com/okian/pulse/pkg/logger"
)

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithCount sets the number of workers.
func WithCount(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.count = n
		}
	}
}

// WithLogger sets a custom logger for the pool.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}
