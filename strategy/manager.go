// Package strategy composes the Circuit Breaker, Retry, and Fallback
// strategies into the priority-ordered decision pipeline spec.md §4.7
// names the Strategy Manager. Grounded on the teacher's
// llm/resilient_provider.go decorator composition (circuit breaker wraps
// retry wraps the call) and llm/middleware.go's chain-of-responsibility
// shape, generalized from a fixed two-strategy wrapper into an ordered,
// pluggable chain with an explicit decision result instead of a bare error.
package strategy

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rcc-sub005/llmrouter/circuitbreaker"
	"github.com/rcc-sub005/llmrouter/core"
	"github.com/rcc-sub005/llmrouter/retry"
)

// DecisionAction is what the caller should do next after a failed attempt.
type DecisionAction string

const (
	DecisionProceed          DecisionAction = "proceed"
	DecisionRetrySameTarget  DecisionAction = "retry-same-target"
	DecisionRetryNewTarget   DecisionAction = "retry-new-target"
	DecisionFallbackResult   DecisionAction = "fallback-result"
	DecisionGiveUp           DecisionAction = "give-up"
)

// Decision is the Strategy Manager's verdict for a failed attempt.
type Decision struct {
	Action     DecisionAction
	Delay      time.Duration
	NextTarget string
	Result     *core.Response
	Err        error
}

// Manager composes circuit breaker (priority 0), retry (priority 1), and
// fallback (priority 2) strategies, consulting each in that order.
type Manager struct {
	breakers *circuitbreaker.Manager
	retry    retry.Policy
	fallback *FallbackChain
	logger   *zap.Logger
}

// NewManager builds a Strategy Manager.
func NewManager(breakers *circuitbreaker.Manager, retryPolicy retry.Policy, fallback *FallbackChain, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{breakers: breakers, retry: retryPolicy, fallback: fallback, logger: logger}
}

// BeforeAttempt is consulted before issuing a request against target; it
// enforces the circuit breaker's admission control, priority 0 in the
// strategy chain.
func (m *Manager) BeforeAttempt(target string) error {
	if m.breakers == nil {
		return nil
	}
	return m.breakers.For(target).Allow()
}

// AfterSuccess records a successful attempt's outcome with the circuit
// breaker for target.
func (m *Manager) AfterSuccess(target string) {
	if m.breakers == nil {
		return
	}
	m.breakers.For(target).RecordSuccess()
}

// AfterFailure decides what to do after a failed attempt against target,
// consulting retry (priority 1) before fallback (priority 2). The circuit
// breaker's failure bookkeeping happens here too, so a request that opens
// the breaker mid-chain is reflected in the very next BeforeAttempt call.
func (m *Manager) AfterFailure(ctx context.Context, ec *core.ExecutionContext, req *core.Request, target string, cause error) Decision {
	if m.breakers != nil {
		m.breakers.For(target).RecordFailure()
	}

	coreErr, isCoreErr := cause.(*core.Error)
	retryable := !isCoreErr || coreErr.Retryable

	if retryable && !retry.Exhausted(m.retry, ec.Attempt()) {
		delay := retry.Delay(m.retry, ec.Attempt())
		m.logger.Debug("strategy: retrying same target",
			zap.String("target", target), zap.Duration("delay", delay), zap.Int("attempt", ec.Attempt()))
		return Decision{Action: DecisionRetrySameTarget, Delay: delay}
	}

	if m.fallback != nil {
		decision := m.fallback.Run(ctx, ec, req, cause)
		if decision.Action != DecisionGiveUp {
			return decision
		}
	}

	return Decision{Action: DecisionGiveUp, Err: cause}
}
