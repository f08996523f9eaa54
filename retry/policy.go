package retry

import (
	"math"
	"time"
)

// DefaultPolicy is the policy used for steps that do not configure their own.
var DefaultPolicy = Policy{
	InitialInterval: 100 * time.Millisecond,
	MaxInterval:     1 * time.Hour,
	Multiplier:      2.0,
	MaxAttempts:     3,
}

// Policy describes the bounded retry behavior of a single step.
//
// The delay between attempts grows exponentially from InitialInterval by
// Multiplier, capped at MaxInterval. After MaxAttempts failed attempts the
// last error is returned to the caller.
type Policy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxAttempts     int
}

// IsZero returns true if p is the zero-value policy.
func (p Policy) IsZero() bool {
	return p == Policy{}
}

// Delay returns the time to wait before the attempt that follows the n'th
// failed attempt, where n is 1-based.
func (p Policy) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}

	s := math.Pow(p.Multiplier, float64(n-1)) * p.InitialInterval.Seconds()

	if max := p.MaxInterval.Seconds(); s > max {
		s = max
	}

	return time.Duration(
		s * float64(time.Second),
	)
}
