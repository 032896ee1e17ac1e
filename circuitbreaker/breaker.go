// Package circuitbreaker implements the per-target breaker state machine
// of the Strategy Manager's priority-0 strategy.
package circuitbreaker

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rcc-sub005/llmrouter/core"
)

// State is one of the three breaker states.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config carries the thresholds named in spec.md §4.7.
type Config struct {
	FailureThreshold int           // failures within window before OPEN
	VolumeThreshold  int           // minimum requests in window before OPEN can trigger
	RecoveryTimeout  time.Duration // OPEN -> HALF_OPEN wait
	SuccessThreshold int           // consecutive HALF_OPEN successes before CLOSED
	HalfOpenAttempts int           // concurrent probes allowed while HALF_OPEN
	MonitoringWindow time.Duration // rolling window for failure-count/volume
}

// DefaultConfig uses the failure, volume and success thresholds of spec.md
// §8 scenario 4 (3, 3, 2) with a 30s recovery timeout.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		VolumeThreshold:  3,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 2,
		HalfOpenAttempts: 1,
		MonitoringWindow: 60 * time.Second,
	}
}

// Breaker is the per-target state machine.
type Breaker struct {
	config Config
	logger *zap.Logger

	mu                   sync.Mutex
	state                State
	failureCount         int
	requestCountInWindow int
	windowStart          time.Time
	successCount         int // consecutive successes while HALF_OPEN
	halfOpenInFlight     int
	lastFailureTime      time.Time
	lastStateChangeTime  time.Time
}

// New creates a breaker starting CLOSED.
func New(config Config, logger *zap.Logger) *Breaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 3
	}
	if config.VolumeThreshold <= 0 {
		config.VolumeThreshold = config.FailureThreshold
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 30 * time.Second
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	if config.HalfOpenAttempts <= 0 {
		config.HalfOpenAttempts = 1
	}
	if config.MonitoringWindow <= 0 {
		config.MonitoringWindow = 60 * time.Second
	}
	return &Breaker{
		config:              config,
		logger:              logger,
		state:               Closed,
		windowStart:         time.Now(),
		lastStateChangeTime: time.Now(),
	}
}

// Allow reports whether a request may be sent to this target right now.
// It performs the OPEN -> HALF_OPEN transition as a side effect once the
// recovery timeout has elapsed, and reserves one of the limited HALF_OPEN
// probe slots if the breaker is probing.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollWindowLocked()

	switch b.state {
	case Closed:
		return nil
	case Open:
		if time.Since(b.lastStateChangeTime) >= b.config.RecoveryTimeout {
			b.transitionLocked(HalfOpen)
			b.halfOpenInFlight = 1
			return nil
		}
		return core.NewError(core.KindCircuitOpen, "target circuit is open").WithRetryable(false)
	case HalfOpen:
		if b.halfOpenInFlight >= b.config.HalfOpenAttempts {
			return core.NewError(core.KindCircuitOpen, "half-open probe budget exhausted").WithRetryable(false)
		}
		b.halfOpenInFlight++
		return nil
	default:
		return nil
	}
}

// RecordSuccess notifies the breaker of a successful call, advancing
// HALF_OPEN toward CLOSED once SuccessThreshold consecutive successes
// have been observed.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.failureCount = 0
	case HalfOpen:
		b.successCount++
		b.halfOpenInFlight--
		if b.halfOpenInFlight < 0 {
			b.halfOpenInFlight = 0
		}
		if b.successCount >= b.config.SuccessThreshold {
			b.transitionLocked(Closed)
			b.failureCount = 0
			b.successCount = 0
			b.requestCountInWindow = 0
			b.windowStart = time.Now()
		}
	}
}

// RecordFailure notifies the breaker of a failed call.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollWindowLocked()
	b.lastFailureTime = time.Now()
	b.requestCountInWindow++

	switch b.state {
	case Closed:
		b.failureCount++
		if b.failureCount >= b.config.FailureThreshold && b.requestCountInWindow >= b.config.VolumeThreshold {
			b.logger.Warn("circuit breaker opening",
				zap.Int("failure_count", b.failureCount),
				zap.Int("request_count", b.requestCountInWindow))
			b.transitionLocked(Open)
		}
	case HalfOpen:
		b.halfOpenInFlight--
		if b.halfOpenInFlight < 0 {
			b.halfOpenInFlight = 0
		}
		b.successCount = 0
		b.transitionLocked(Open)
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the breaker back to CLOSED, used by operator intervention.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transitionLocked(Closed)
	b.failureCount = 0
	b.successCount = 0
	b.requestCountInWindow = 0
	b.halfOpenInFlight = 0
	b.windowStart = time.Now()
}

func (b *Breaker) transitionLocked(to State) {
	from := b.state
	b.state = to
	b.lastStateChangeTime = time.Now()
	if from != to {
		b.logger.Info("circuit breaker transition", zap.String("from", from.String()), zap.String("to", to.String()))
	}
}

// rollWindowLocked resets the volume/failure counters once the monitoring
// window has elapsed, so stale failures from a prior window do not count
// toward a new OPEN decision. Callers hold b.mu.
func (b *Breaker) rollWindowLocked() {
	if b.state != Closed {
		return
	}
	if time.Since(b.windowStart) >= b.config.MonitoringWindow {
		b.failureCount = 0
		b.requestCountInWindow = 0
		b.windowStart = time.Now()
	}
}
