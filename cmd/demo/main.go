// =============================================================================
// llmrouter demo
// =============================================================================
// Minimal wiring example: builds a single in-memory config.Snapshot with one
// virtual model backed by an OpenAI-compatible target, constructs the full
// Scheduler -> Strategy Manager -> Pipeline Executor stack, and issues one
// demo chat request against it. Ingress (an HTTP frontend accepting real
// traffic) is out of scope here; this only proves the wiring compiles and
// runs end to end against whatever provider the operator points it at.
//
// Usage:
//
//	llmrouter-demo --provider-url https://api.openai.com/v1/chat/completions --api-key sk-...
// =============================================================================
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rcc-sub005/llmrouter/auth"
	"github.com/rcc-sub005/llmrouter/circuitbreaker"
	"github.com/rcc-sub005/llmrouter/config"
	"github.com/rcc-sub005/llmrouter/core"
	"github.com/rcc-sub005/llmrouter/iotracker"
	"github.com/rcc-sub005/llmrouter/pipeline"
	"github.com/rcc-sub005/llmrouter/providers/openai"
	"github.com/rcc-sub005/llmrouter/retry"
	"github.com/rcc-sub005/llmrouter/scheduler"
	"github.com/rcc-sub005/llmrouter/stage/compatibility"
	"github.com/rcc-sub005/llmrouter/stage/provideradapter"
	"github.com/rcc-sub005/llmrouter/stage/workflow"
	"github.com/rcc-sub005/llmrouter/strategy"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	fs := flag.NewFlagSet("llmrouter-demo", flag.ExitOnError)
	providerURL := fs.String("provider-url", "https://api.openai.com/v1/chat/completions", "Base URL of the OpenAI-protocol endpoint to call")
	apiKey := fs.String("api-key", os.Getenv("LLMROUTER_DEMO_API_KEY"), "API key for the demo provider")
	model := fs.String("model", openai.DefaultModel, "Model ID to request")
	prompt := fs.String("prompt", "Say hello in one short sentence.", "User prompt to send")
	version := fs.Bool("version", false, "Print version and exit")
	fs.Parse(os.Args[1:])

	if *version {
		fmt.Printf("llmrouter-demo %s (%s)\n", Version, BuildTime)
		return
	}

	logger := mustLogger()
	defer logger.Sync()

	if *apiKey == "" {
		logger.Warn("no api key supplied; the demo request will almost certainly be rejected upstream")
	}

	snap := buildSnapshot(*providerURL, *apiKey, *model)
	store := config.NewStore(snap)

	breakers := circuitbreaker.NewManager(circuitbreaker.DefaultConfig(), logger)
	sched := scheduler.New(store, breakers, 16, logger)
	strat := strategy.NewManager(breakers, retry.DefaultPolicy(), nil, logger)
	tracker := iotracker.New(256, time.Hour, logger)
	authCenter := auth.NewCenter("", time.Minute, logger)

	exec := pipeline.New(pipeline.Config{
		Store:         store,
		Scheduler:     sched,
		Strategy:      strat,
		Workflow:      workflow.New(workflow.Config{}),
		Compatibility: compatibility.NewMapper(nil),
		AuthCenter:    authCenter,
		Tracker:       tracker,
		Logger:        logger,
		MaxAttempts:   4,
		Clients: func(p config.Provider) *provideradapter.Client {
			return provideradapter.NewClient(p, authCenter, nil, logger)
		},
	})

	req := &core.Request{
		Model: *model,
		Messages: []core.Message{
			{Role: core.RoleUser, Content: *prompt},
		},
		MaxTokens: 256,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	requestID := "demo-" + time.Now().UTC().Format("150405.000000000")
	resp, chunks, err := exec.Execute(ctx, req, "chat-default", "demo-session", requestID, time.Now().Add(30*time.Second))
	if err != nil {
		logger.Error("demo request failed", zap.Error(err))
		if trace, ok := tracker.Lookup(requestID); ok {
			logIORecords(logger, trace)
		}
		os.Exit(1)
	}

	if chunks != nil {
		printStream(logger, *chunks)
	} else if resp != nil {
		printResponse(logger, resp)
	}

	if trace, ok := tracker.Lookup(requestID); ok {
		logIORecords(logger, trace)
	}
}

// buildSnapshot assembles the smallest config.Snapshot capable of serving
// one virtual model through one OpenAI-protocol target.
func buildSnapshot(baseURL, apiKey, model string) *config.Snapshot {
	provider := openai.Preset("openai-demo", baseURL, config.APIKeyEntry{Key: apiKey, Label: "demo", Priority: 1, Weight: 1})

	return &config.Snapshot{
		VirtualModels: map[string]config.VirtualModel{
			"chat-default": {
				ID:           "chat-default",
				DisplayName:  "Demo Chat",
				Capabilities: []string{"chat", "streaming"},
				Policy:       config.PolicyPriority,
				Targets: []config.Target{
					{ID: "openai-demo/" + model, ProviderID: provider.ID, ModelID: model, Status: config.TargetActive, Priority: 1, Weight: 1},
				},
			},
		},
		Providers: map[string]config.Provider{
			provider.ID: provider,
		},
	}
}

func printResponse(logger *zap.Logger, resp *core.Response) {
	fmt.Println("--- response ---")
	for _, choice := range resp.Choices {
		fmt.Printf("[%s] %s\n", choice.Message.Role, choice.Message.Content)
	}
	logger.Info("demo request completed", zap.String("model", resp.Model), zap.Int("prompt_tokens", resp.Usage.PromptTokens), zap.Int("completion_tokens", resp.Usage.CompletionTokens))
}

func printStream(logger *zap.Logger, seq core.ChunkSequence) {
	fmt.Println("--- stream ---")
	for {
		chunk, ok := seq.Next()
		if !ok {
			break
		}
		fmt.Print(chunk.Delta.Content)
	}
	fmt.Println()
	logger.Info("demo stream completed")
}

func logIORecords(logger *zap.Logger, trace iotracker.Trace) {
	for _, rec := range trace.Records {
		logger.Info("stage recorded",
			zap.String("request_id", trace.RequestID),
			zap.String("stage", rec.Stage),
			zap.String("direction", rec.Direction),
			zap.Float64("duration_ms", rec.DurationMS),
		)
	}
}

func mustLogger() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}
