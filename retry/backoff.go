// Package retry computes backoff delays for the Strategy Manager's
// priority-1 strategy.
package retry

import (
	"math"
	"math/rand"
	"time"
)

// Policy carries the exponential-backoff parameters of spec.md §4.7.
type Policy struct {
	MaxAttempts int           // remaining-attempts budget, default 3
	BaseDelay   time.Duration // "base" in base * multiplier^attempt
	Multiplier  float64
	MaxDelay    time.Duration
}

// DefaultPolicy matches spec.md §8 scenario 3 (backoff "1s, 2s").
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Multiplier:  2.0,
		MaxDelay:    30 * time.Second,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.Multiplier < 1.0 {
		p.Multiplier = 2.0
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	return p
}

// Delay computes the backoff delay for the given zero-based attempt number
// (0 = first retry), applying full jitter in [0.5x, 1.0x] as spec.md §4.7
// requires — not the teacher's symmetric +/-25% jitter.
func Delay(p Policy, attempt int) time.Duration {
	p = p.normalized()
	raw := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt))
	if raw > float64(p.MaxDelay) {
		raw = float64(p.MaxDelay)
	}
	jittered := raw * (0.5 + rand.Float64()*0.5)
	if jittered < float64(p.BaseDelay)*0.5 {
		jittered = float64(p.BaseDelay) * 0.5
	}
	return time.Duration(jittered)
}

// Exhausted reports whether attempt (0-based, already performed) has used
// up the policy's retry budget.
func Exhausted(p Policy, attempt int) bool {
	p = p.normalized()
	return attempt >= p.MaxAttempts
}
