// Package provideradapter implements the pipeline's fourth stage: the
// authenticated outbound HTTP call to an upstream provider, response
// parsing (complete or streaming via SSE), and the HTTP/transport error
// taxonomy the Strategy Manager keys its recovery decisions on.
//
// Grounded on providers/anthropic/provider.go's Completion/Stream HTTP
// plumbing and llm/providers/common.go's MapHTTPError/ReadErrorMessage,
// generalized from a single hard-coded provider into a Client configured
// by config.Provider so one implementation serves every protocol family
// — the wire-shape differences were already resolved upstream by
// stage/protocolswitch and stage/compatibility by the time a request
// reaches this stage.
package provideradapter

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rcc-sub005/llmrouter/auth"
	"github.com/rcc-sub005/llmrouter/config"
	"github.com/rcc-sub005/llmrouter/core"
	"github.com/rcc-sub005/llmrouter/stage/protocolswitch"
)

const defaultRequestTimeout = 30 * time.Second

// Client issues requests to one Provider.
type Client struct {
	provider config.Provider
	http     *http.Client
	auth     *auth.Center
	logger   *zap.Logger
}

// NewClient builds a Client for provider. A nil httpClient gets a
// default built from provider.RequestTimeout (streaming calls bypass
// this client-level timeout and rely on ctx's deadline instead, per
// spec.md §4.6's "no-idle-timeout read with an upper-bound wall-clock
// deadline").
func NewClient(provider config.Provider, authCenter *auth.Center, httpClient *http.Client, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		timeout := provider.RequestTimeout
		if timeout <= 0 {
			timeout = defaultRequestTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{provider: provider, http: httpClient, auth: authCenter, logger: logger}
}

// ExecuteRequest issues a non-streaming POST and returns the raw
// response body for the reverse pass (compatibility + protocol switch)
// to decode.
func (c *Client) ExecuteRequest(ctx context.Context, wire protocolswitch.WireRequest) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.provider.BaseURL, bytes.NewReader(wire.Body))
	if err != nil {
		return nil, core.NewError(core.KindInvalidRequest, "build request").WithCause(err).WithTarget(c.provider.ID)
	}
	if err := c.applyHeaders(ctx, httpReq, wire); err != nil {
		return nil, err
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err, c.provider.ID)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewError(core.KindNetwork, "read response body").WithCause(err).WithTarget(c.provider.ID)
	}
	if resp.StatusCode >= 400 {
		return nil, mapHTTPError(resp.StatusCode, body, c.provider.ID)
	}
	return body, nil
}

// ExecuteStreamingRequest issues a streaming POST and returns a
// core.ChunkSequence fed by decoder, one core.Chunk per emitted SSE
// event. Providers whose config.Provider.SupportsStreaming is false
// fail fast with StreamingUnsupported rather than attempting the call.
func (c *Client) ExecuteStreamingRequest(ctx context.Context, wire protocolswitch.WireRequest, decoder protocolswitch.StreamDecoder) (core.ChunkSequence, error) {
	if !c.provider.SupportsStreaming {
		return core.ChunkSequence{}, core.NewError(core.KindStreamingUnsupported, "provider "+c.provider.ID+" does not support streaming").WithTarget(c.provider.ID)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.provider.BaseURL, bytes.NewReader(wire.Body))
	if err != nil {
		return core.ChunkSequence{}, core.NewError(core.KindInvalidRequest, "build streaming request").WithCause(err).WithTarget(c.provider.ID)
	}
	if err := c.applyHeaders(ctx, httpReq, wire); err != nil {
		return core.ChunkSequence{}, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	streamClient := *c.http
	streamClient.Timeout = 0
	resp, err := streamClient.Do(httpReq)
	if err != nil {
		return core.ChunkSequence{}, classifyTransportError(err, c.provider.ID)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return core.ChunkSequence{}, mapHTTPError(resp.StatusCode, body, c.provider.ID)
	}

	ch := make(chan core.Chunk)
	go c.pumpSSE(resp.Body, decoder, ch)
	seq := core.NewChunkSequence(ch)
	return seq, nil
}

func (c *Client) pumpSSE(body io.ReadCloser, decoder protocolswitch.StreamDecoder, ch chan<- core.Chunk) {
	defer body.Close()
	defer close(ch)

	for line := range sseDataLines(body) {
		if line.err != nil {
			ch <- core.Chunk{Err: line.err}
			return
		}
		if line.done {
			return
		}
		chunk, emit, err := decoder.Decode(line.data)
		if err != nil {
			ch <- core.Chunk{Err: err}
			return
		}
		if emit {
			ch <- chunk
		}
	}
}

// applyHeaders sets Content-Type, the authorization header per the
// provider's AuthScheme, and any extra headers stage/protocolswitch
// attached to the wire request (e.g. Anthropic's anthropic-version).
func (c *Client) applyHeaders(ctx context.Context, httpReq *http.Request, wire protocolswitch.WireRequest) error {
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range wire.Extra {
		httpReq.Header.Set(k, v)
	}

	token, headerName, err := c.credential(ctx)
	if err != nil {
		return err
	}
	if token != "" {
		httpReq.Header.Set(headerName, token)
	}
	return nil
}

// credential resolves the outbound credential and the header it belongs
// in. A per-request auth.CredentialOverride takes priority over the
// Auth Center's stored bundle, grounded on the teacher's
// llm/credentials.go context-override pattern.
func (c *Client) credential(ctx context.Context) (value, headerName string, err error) {
	if override, ok := auth.CredentialOverrideFromContext(ctx); ok {
		switch c.provider.AuthScheme {
		case config.AuthAPIKey:
			return override.APIKey, "x-api-key", nil
		default:
			return "Bearer " + override.Bearer, "Authorization", nil
		}
	}

	switch c.provider.AuthScheme {
	case config.AuthNone:
		return "", "", nil
	case config.AuthAPIKey:
		token, err := c.token(ctx)
		if err != nil {
			return "", "", err
		}
		return token, "x-api-key", nil
	case config.AuthBearer, config.AuthOAuthDeviceFlow:
		token, err := c.token(ctx)
		if err != nil {
			return "", "", err
		}
		return "Bearer " + token, "Authorization", nil
	default:
		return "", "", nil
	}
}

func (c *Client) token(ctx context.Context) (string, error) {
	if c.auth == nil {
		return "", core.NewError(core.KindAuthFailed, "no auth center configured for provider "+c.provider.ID).WithTarget(c.provider.ID)
	}
	token, err := c.auth.Token(ctx, c.provider.ID)
	if err != nil {
		return "", core.NewError(core.KindAuthFailed, "token retrieval failed").WithCause(err).WithTarget(c.provider.ID)
	}
	return token, nil
}

// HealthCheck issues a short-timeout GET against the provider's declared
// health endpoint.
func (c *Client) HealthCheck(ctx context.Context) (healthy bool, responseTime time.Duration, err error) {
	if c.provider.HealthEndpoint == "" {
		return false, 0, core.NewError(core.KindInvalidRequest, "provider "+c.provider.ID+" declares no health endpoint").WithTarget(c.provider.ID)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	req, buildErr := http.NewRequestWithContext(ctx, http.MethodGet, c.provider.HealthEndpoint, nil)
	if buildErr != nil {
		return false, 0, core.NewError(core.KindInvalidRequest, "build health check request").WithCause(buildErr).WithTarget(c.provider.ID)
	}
	resp, doErr := c.http.Do(req)
	elapsed := time.Since(start)
	if doErr != nil {
		return false, elapsed, classifyTransportError(doErr, c.provider.ID)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode < 400, elapsed, nil
}

func containsAny(s string, markers ...string) bool {
	lower := strings.ToLower(s)
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
