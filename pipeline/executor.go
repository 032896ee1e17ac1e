// Package pipeline wires the Scheduler, the four staged transforms
// (Protocol Switch, Streaming Workflow, Compatibility Mapper, Provider
// Adapter), and the Strategy Manager into the single fixed pass that
// serves a request. Grounded on llm/resilient_provider.go's
// wrap-call-unwrap orchestration: the teacher composes idempotency,
// circuit breaker, and caching as decorators around one provider call;
// the Executor generalizes this into a fixed forward pass through four
// stages and a reverse pass back, re-entering the whole pass on a
// Strategy Manager retry/fallback decision instead of decorating a
// single call.
package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/rcc-sub005/llmrouter/auth"
	"github.com/rcc-sub005/llmrouter/config"
	"github.com/rcc-sub005/llmrouter/core"
	"github.com/rcc-sub005/llmrouter/iotracker"
	"github.com/rcc-sub005/llmrouter/scheduler"
	"github.com/rcc-sub005/llmrouter/stage/compatibility"
	"github.com/rcc-sub005/llmrouter/stage/protocolswitch"
	"github.com/rcc-sub005/llmrouter/stage/provideradapter"
	"github.com/rcc-sub005/llmrouter/stage/tokenbudget"
	"github.com/rcc-sub005/llmrouter/stage/workflow"
	"github.com/rcc-sub005/llmrouter/strategy"
)

// ClientFactory builds (or returns a cached) provideradapter.Client for a
// provider, so the Executor doesn't own HTTP client lifecycle decisions.
type ClientFactory func(provider config.Provider) *provideradapter.Client

// Executor runs the fixed four-stage pipeline for one request, retrying
// and falling over across targets under the Strategy Manager's
// direction.
type Executor struct {
	store      *config.Store
	scheduler  *scheduler.Scheduler
	strategy   *strategy.Manager
	workflow   *workflow.Stage
	compat     *compatibility.Mapper
	authCenter *auth.Center
	clients    ClientFactory
	tracker    *iotracker.Tracker
	logger     *zap.Logger

	maxAttempts int
}

// Config collects an Executor's dependencies.
type Config struct {
	Store         *config.Store
	Scheduler     *scheduler.Scheduler
	Strategy      *strategy.Manager
	Workflow      *workflow.Stage
	Compatibility *compatibility.Mapper
	AuthCenter    *auth.Center
	Clients       ClientFactory
	Tracker       *iotracker.Tracker
	Logger        *zap.Logger
	MaxAttempts   int
}

// New builds an Executor from cfg.
func New(cfg Config) *Executor {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 8
	}
	wf := cfg.Workflow
	if wf == nil {
		wf = workflow.New(workflow.Config{})
	}
	compat := cfg.Compatibility
	if compat == nil {
		compat = compatibility.NewMapper(nil)
	}
	tracker := cfg.Tracker
	if tracker == nil {
		tracker = iotracker.New(0, 0, logger)
	}
	return &Executor{
		store:       cfg.Store,
		scheduler:   cfg.Scheduler,
		strategy:    cfg.Strategy,
		workflow:    wf,
		compat:      compat,
		authCenter:  cfg.AuthCenter,
		clients:     cfg.Clients,
		tracker:     tracker,
		logger:      logger,
		maxAttempts: maxAttempts,
	}
}

// Execute admits req under the Scheduler's concurrency bound, resolves a
// target, and runs the forward/reverse pipeline pass, retrying and
// falling over per the Strategy Manager's decisions until a response is
// produced, the request is exhausted, or ctx is cancelled. Exactly one of
// the returned *core.Response / *core.ChunkSequence is non-nil on success.
func (e *Executor) Execute(ctx context.Context, req *core.Request, virtualModelID, sessionID, requestID string, deadline time.Time) (*core.Response, *core.ChunkSequence, error) {
	release, err := e.scheduler.Admit(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	ec := core.NewExecutionContext(sessionID, requestID, virtualModelID, deadline)
	defer e.tracker.Capture(ec)

	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			ec.MarkCancelled()
			return nil, nil, core.NewError(core.KindCancelled, "context cancelled").WithCause(ctx.Err())
		}
		if ec.Expired() {
			return nil, nil, core.NewError(core.KindTimeout, "execution deadline exceeded")
		}

		target, err := e.scheduler.Resolve(ctx, virtualModelID, ec, nil)
		if err != nil {
			return nil, nil, err
		}
		ec.SetTarget(target.ID)

		if err := e.strategy.BeforeAttempt(target.ID); err != nil {
			decision := e.strategy.AfterFailure(ctx, ec, req, target.ID, err)
			resp, chunks, done, derr := e.applyDecision(ctx, ec, decision)
			if done {
				return resp, chunks, derr
			}
			continue
		}

		end := e.scheduler.BeginCall(target.ID)
		resp, chunks, callErr := e.runOnce(ctx, ec, req, target)
		end()

		if callErr == nil {
			e.strategy.AfterSuccess(target.ID)
			return resp, chunks, nil
		}

		ec.IncrementAttempt()
		decision := e.strategy.AfterFailure(ctx, ec, req, target.ID, callErr)
		resp, chunks, done, derr := e.applyDecision(ctx, ec, decision)
		if done {
			return resp, chunks, derr
		}
	}

	return nil, nil, core.NewError(core.KindExhaustedTargets, "max attempts exceeded").WithAttemptedTargets(ec.TriedTargets())
}

// applyDecision interprets a Strategy Manager Decision. done is true when
// the caller should stop looping and return resp/chunks/err as-is;
// false means continue to the next attempt (same or a new target,
// after waiting Delay).
func (e *Executor) applyDecision(ctx context.Context, ec *core.ExecutionContext, d strategy.Decision) (resp *core.Response, chunks *core.ChunkSequence, done bool, err error) {
	switch d.Action {
	case strategy.DecisionRetrySameTarget, strategy.DecisionRetryNewTarget:
		if d.Delay > 0 {
			timer := time.NewTimer(d.Delay)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return nil, nil, true, core.NewError(core.KindCancelled, "cancelled during retry backoff").WithCause(ctx.Err())
			case <-timer.C:
			}
		}
		return nil, nil, false, nil
	case strategy.DecisionFallbackResult:
		return d.Result, nil, true, nil
	default:
		return nil, nil, true, d.Err
	}
}

// runOnce executes the fixed four-stage forward pass and its reverse
// counterpart against one resolved target.
func (e *Executor) runOnce(ctx context.Context, ec *core.ExecutionContext, req *core.Request, target config.Target) (*core.Response, *core.ChunkSequence, error) {
	snap := e.store.Load()
	provider, ok := snap.Providers[target.ProviderID]
	if !ok {
		return nil, nil, core.NewError(core.KindInvalidRequest, "unknown provider "+target.ProviderID).WithTarget(target.ID)
	}

	providerReq := req.Clone()
	providerReq.Model = target.ModelID

	providerReq, err := tokenbudget.Clamp(providerReq, provider)
	if err != nil {
		return nil, nil, err
	}

	converter, err := protocolswitch.For(provider.Protocol)
	if err != nil {
		return nil, nil, err
	}

	prepared := e.workflow.PrepareRequest(providerReq, ec, provider.SupportsStreaming)

	wire, err := e.recordStage(ec, "protocol-switch", "out", func() (protocolswitch.WireRequest, error) {
		return converter.ToWire(prepared)
	})
	if err != nil {
		return nil, nil, err
	}

	wire.Body, err = e.mapRequestFields(target.ProviderID, wire.Body, ec)
	if err != nil {
		return nil, nil, err
	}

	client := e.clients(provider)
	streaming, _ := ec.StreamMode()
	wantStream := streaming && prepared.Stream

	if wantStream {
		return e.runStreaming(ctx, ec, client, converter, wire)
	}
	return e.runComplete(ctx, ec, client, converter, target.ProviderID, wire)
}

func (e *Executor) runComplete(ctx context.Context, ec *core.ExecutionContext, client *provideradapter.Client, converter protocolswitch.Converter, providerID string, wire protocolswitch.WireRequest) (*core.Response, *core.ChunkSequence, error) {
	body, err := e.recordStage(ec, "provider-adapter", "in", func() ([]byte, error) {
		return client.ExecuteRequest(ctx, wire)
	})
	if err != nil {
		return nil, nil, err
	}

	body, err = e.mapResponseFields(providerID, body, ec)
	if err != nil {
		return nil, nil, err
	}

	resp, err := converter.FromWire(body)
	if err != nil {
		return nil, nil, err
	}

	adaptedResp, adaptedChunks, err := e.workflow.AdaptResponse(ec, resp, nil)
	return adaptedResp, adaptedChunks, err
}

func (e *Executor) runStreaming(ctx context.Context, ec *core.ExecutionContext, client *provideradapter.Client, converter protocolswitch.Converter, wire protocolswitch.WireRequest) (*core.Response, *core.ChunkSequence, error) {
	seq, err := client.ExecuteStreamingRequest(ctx, wire, converter.NewStreamDecoder())
	if err != nil {
		return nil, nil, err
	}
	adaptedResp, adaptedChunks, err := e.workflow.AdaptResponse(ec, nil, &seq)
	return adaptedResp, adaptedChunks, err
}

func (e *Executor) mapRequestFields(providerID string, body []byte, ec *core.ExecutionContext) ([]byte, error) {
	var doc compatibility.Doc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, core.NewError(core.KindInvalidRequest, "decode wire request for compatibility mapping").WithCause(err)
	}
	mapped, err := e.compat.MapRequest(providerID, doc, ec)
	if err != nil {
		return nil, err
	}
	return json.Marshal(mapped)
}

func (e *Executor) mapResponseFields(providerID string, body []byte, ec *core.ExecutionContext) ([]byte, error) {
	var doc compatibility.Doc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, core.NewError(core.KindMalformedResponse, "decode wire response for compatibility mapping").WithCause(err)
	}
	mapped, err := e.compat.MapResponse(providerID, doc, ec)
	if err != nil {
		return nil, err
	}
	return json.Marshal(mapped)
}

// recordStage times fn and appends an IORecord to ec's append-only I/O
// log, so Monitoring can later reconstruct per-stage handling time
// without every stage needing its own instrumentation.
func (e *Executor) recordStage[T any](ec *core.ExecutionContext, stage, direction string, fn func() (T, error)) (T, error) {
	start := time.Now()
	out, err := fn()
	ec.AppendIORecord(core.IORecord{
		Stage:      stage,
		Direction:  direction,
		DurationMS: float64(time.Since(start).Microseconds()) / 1000,
	})
	return out, err
}
