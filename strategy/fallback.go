package strategy

import (
	"context"

	"go.uber.org/zap"

	"github.com/rcc-sub005/llmrouter/auth"
	"github.com/rcc-sub005/llmrouter/core"
)

// FallbackActionKind enumerates spec.md §4.7's fallback actions, tried in
// the configured order until one succeeds or all are exhausted.
type FallbackActionKind string

const (
	FallbackTokenRefresh        FallbackActionKind = "token_refresh"
	FallbackAlternativeProvider FallbackActionKind = "alternative_provider"
	FallbackCachedResponse      FallbackActionKind = "cached_response"
	FallbackGracefulDegradation FallbackActionKind = "graceful_degradation"
)

// FallbackOutcome is what a single fallback action decided.
type FallbackOutcome struct {
	Handled  bool
	Decision Decision
}

// FallbackChain runs the configured fallback actions, in order, against a
// failed request, stopping at the first one that handles it.
type FallbackChain struct {
	actions       []FallbackActionKind
	authCenter    *auth.Center
	cache         *ResponseCache
	alternateFn   func(ctx context.Context, ec *core.ExecutionContext) (string, bool)
	degradedFn    func(ctx context.Context, ec *core.ExecutionContext) (*core.Response, bool)
	logger        *zap.Logger
}

// FallbackChainConfig wires the collaborators each action needs. Any of
// these may be nil, in which case the corresponding action is a no-op.
type FallbackChainConfig struct {
	Actions    []FallbackActionKind
	AuthCenter *auth.Center
	Cache      *ResponseCache
	// AlternateTarget returns a not-yet-tried target id, if one exists.
	AlternateTarget func(ctx context.Context, ec *core.ExecutionContext) (string, bool)
	// Degraded produces a reduced-capability response (spec.md's
	// "graceful_degradation", e.g. a smaller model or a canned reply).
	Degraded func(ctx context.Context, ec *core.ExecutionContext) (*core.Response, bool)
	Logger   *zap.Logger
}

// NewFallbackChain builds a FallbackChain from cfg.
func NewFallbackChain(cfg FallbackChainConfig) *FallbackChain {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackChain{
		actions:     cfg.Actions,
		authCenter:  cfg.AuthCenter,
		cache:       cfg.Cache,
		alternateFn: cfg.AlternateTarget,
		degradedFn:  cfg.Degraded,
		logger:      logger,
	}
}

// Run tries each configured action in order against the failed request,
// returning the first handled outcome. If none handle it, the returned
// Decision is DecisionGiveUp.
func (f *FallbackChain) Run(ctx context.Context, ec *core.ExecutionContext, req *core.Request, cause error) Decision {
	for _, kind := range f.actions {
		outcome := f.try(ctx, ec, req, kind)
		if outcome.Handled {
			f.logger.Info("fallback action handled request", zap.String("action", string(kind)))
			return outcome.Decision
		}
	}
	return Decision{Action: DecisionGiveUp, Err: cause}
}

func (f *FallbackChain) try(ctx context.Context, ec *core.ExecutionContext, req *core.Request, kind FallbackActionKind) FallbackOutcome {
	switch kind {
	case FallbackTokenRefresh:
		return f.tryTokenRefresh(ctx, ec)
	case FallbackAlternativeProvider:
		return f.tryAlternativeProvider(ctx, ec)
	case FallbackCachedResponse:
		return f.tryCachedResponse(ctx, req)
	case FallbackGracefulDegradation:
		return f.tryGracefulDegradation(ctx, ec)
	default:
		return FallbackOutcome{}
	}
}

func (f *FallbackChain) tryTokenRefresh(ctx context.Context, ec *core.ExecutionContext) FallbackOutcome {
	if f.authCenter == nil {
		return FallbackOutcome{}
	}
	target := ec.Target()
	if target == "" {
		return FallbackOutcome{}
	}
	if _, err := f.authCenter.Token(ctx, target); err != nil {
		return FallbackOutcome{}
	}
	return FallbackOutcome{Handled: true, Decision: Decision{Action: DecisionRetrySameTarget}}
}

func (f *FallbackChain) tryAlternativeProvider(ctx context.Context, ec *core.ExecutionContext) FallbackOutcome {
	if f.alternateFn == nil {
		return FallbackOutcome{}
	}
	if target, ok := f.alternateFn(ctx, ec); ok {
		return FallbackOutcome{Handled: true, Decision: Decision{Action: DecisionRetryNewTarget, NextTarget: target}}
	}
	return FallbackOutcome{}
}

func (f *FallbackChain) tryCachedResponse(ctx context.Context, req *core.Request) FallbackOutcome {
	if f.cache == nil {
		return FallbackOutcome{}
	}
	key, err := Fingerprint(req)
	if err != nil {
		return FallbackOutcome{}
	}
	resp, ok := f.cache.Get(ctx, key)
	if !ok {
		return FallbackOutcome{}
	}
	return FallbackOutcome{Handled: true, Decision: Decision{Action: DecisionFallbackResult, Result: resp}}
}

func (f *FallbackChain) tryGracefulDegradation(ctx context.Context, ec *core.ExecutionContext) FallbackOutcome {
	if f.degradedFn == nil {
		return FallbackOutcome{}
	}
	resp, ok := f.degradedFn(ctx, ec)
	if !ok {
		return FallbackOutcome{}
	}
	return FallbackOutcome{Handled: true, Decision: Decision{Action: DecisionFallbackResult, Result: resp}}
}
