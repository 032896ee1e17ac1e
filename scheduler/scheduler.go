package scheduler

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rcc-sub005/llmrouter/circuitbreaker"
	"github.com/rcc-sub005/llmrouter/config"
	"github.com/rcc-sub005/llmrouter/core"
)

// Scheduler admits requests under a bounded concurrency limit, resolves a
// virtual model to a target using the configured load-balancing policy,
// and tracks in-flight connection counts for least-connections selection.
// Grounded on the teacher's router.go lifecycle (health checks feeding
// selection) and health_monitor.go's QPS counters, generalized from a
// DB-backed provider table to config.Store's in-memory snapshot.
type Scheduler struct {
	store    *config.Store
	breakers *circuitbreaker.Manager
	logger   *zap.Logger

	admission chan struct{}

	mu          sync.Mutex
	connections map[string]int64
	rrCursors   map[string]*atomic.Int64
	limiters    map[string]*rate.Limiter
	limiterRPS  float64
}

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithPerTargetRateLimit bounds outbound requests per target to rps,
// grounded on the pack-wide enrichment decision to replace the teacher's
// hand-rolled QPS counters with golang.org/x/time/rate.
func WithPerTargetRateLimit(rps float64) Option {
	return func(s *Scheduler) { s.limiterRPS = rps }
}

// New builds a Scheduler admitting at most maxConcurrency requests at once.
func New(store *config.Store, breakers *circuitbreaker.Manager, maxConcurrency int, logger *zap.Logger, opts ...Option) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		store:       store,
		breakers:    breakers,
		logger:      logger,
		admission:   make(chan struct{}, maxConcurrency),
		connections: make(map[string]int64),
		rrCursors:   make(map[string]*atomic.Int64),
		limiters:    make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Admit blocks until a concurrency slot is free or ctx is cancelled. A ctx
// that is already done on entry fails with Cancelled without taking a
// slot; one that ends while waiting fails with Backpressure. The
// returned release func must be called exactly once.
func (s *Scheduler) Admit(ctx context.Context) (release func(), err error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewError(core.KindCancelled, "cancelled before admission").WithCause(err)
	}
	select {
	case s.admission <- struct{}{}:
		return func() { <-s.admission }, nil
	case <-ctx.Done():
		return nil, core.NewError(core.KindBackpressure, "admission queue deadline exceeded").WithCause(ctx.Err())
	}
}

// Resolve picks a target for virtualModelID, excluding ec's already-tried
// targets and any target whose circuit breaker currently rejects calls.
func (s *Scheduler) Resolve(ctx context.Context, virtualModelID string, ec *core.ExecutionContext, healthScores map[string]float64) (config.Target, error) {
	snap := s.store.Load()
	vm, ok := snap.VirtualModels[virtualModelID]
	if !ok {
		return config.Target{}, core.NewError(core.KindUnknownModel, "unknown virtual model "+virtualModelID)
	}

	excluded := make(map[string]bool)
	for _, t := range ec.TriedTargets() {
		excluded[t] = true
	}
	if s.breakers != nil {
		for _, t := range vm.Targets {
			if s.breakers.IsOpen(t.ID) {
				excluded[t.ID] = true
			}
		}
	}

	selector := SelectorFor(vm.Policy)
	in := SelectionInput{
		Excluded:         excluded,
		ConnectionCounts: s.connectionSnapshot(),
		HealthScores:     healthScores,
		RoundRobinCursor: s.nextRoundRobinCursor,
	}
	target, ok := selector.Select(vm, in)
	if !ok {
		if len(excluded) >= len(vm.Targets) && len(ec.TriedTargets()) > 0 {
			return config.Target{}, core.NewError(core.KindExhaustedTargets, "every target for "+virtualModelID+" has been tried").
				WithAttemptedTargets(ec.TriedTargets())
		}
		return config.Target{}, core.NewError(core.KindNoHealthyTarget, "no healthy target available for "+virtualModelID)
	}
	return target, nil
}

// Await blocks until targetID's outbound rate limiter allows another call.
func (s *Scheduler) Await(ctx context.Context, targetID string) error {
	if s.limiterRPS <= 0 {
		return nil
	}
	limiter := s.limiterFor(targetID)
	if err := limiter.Wait(ctx); err != nil {
		return core.NewError(core.KindBackpressure, "rate limit wait failed").WithCause(err).WithTarget(targetID)
	}
	return nil
}

func (s *Scheduler) limiterFor(targetID string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[targetID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(s.limiterRPS), int(s.limiterRPS)+1)
		s.limiters[targetID] = l
	}
	return l
}

// BeginCall increments targetID's in-flight connection count; the returned
// func must be called once the call completes.
func (s *Scheduler) BeginCall(targetID string) (end func()) {
	s.mu.Lock()
	s.connections[targetID]++
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		if s.connections[targetID] > 0 {
			s.connections[targetID]--
		}
		s.mu.Unlock()
	}
}

func (s *Scheduler) connectionSnapshot() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.connections))
	for k, v := range s.connections {
		out[k] = v
	}
	return out
}

func (s *Scheduler) nextRoundRobinCursor(vmID string) int64 {
	s.mu.Lock()
	cursor, ok := s.rrCursors[vmID]
	if !ok {
		cursor = &atomic.Int64{}
		s.rrCursors[vmID] = cursor
	}
	s.mu.Unlock()
	return cursor.Add(1) - 1
}
