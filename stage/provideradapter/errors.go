package provideradapter

import (
	"errors"
	"net"
	"net/http"

	"github.com/rcc-sub005/llmrouter/core"
)

var authMarkers = []string{"unauthorized", "invalid api key", "invalid_api_key", "authentication"}
var rateLimitMarkers = []string{"rate limit", "rate_limit", "too many requests"}

// mapHTTPError implements spec.md §4.6's provider error taxonomy table,
// grounded on llm/providers/common.go's MapHTTPError and
// providers/anthropic/provider.go's mapClaudeError (which the generic
// table already subsumes — Claude's 529 "overloaded" case falls into the
// same 5xx→ProviderUnavailable bucket here since spec.md's table has no
// separate row for it).
func mapHTTPError(status int, body []byte, provider string) *core.Error {
	msg := string(body)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden || containsAny(msg, authMarkers...):
		return core.NewError(core.KindAuthFailed, msg).WithTarget(provider)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return core.NewError(core.KindTimeout, msg).WithTarget(provider)
	case status == http.StatusTooManyRequests || containsAny(msg, rateLimitMarkers...):
		return core.NewError(core.KindRateLimited, msg).WithTarget(provider)
	case status == http.StatusInternalServerError || status == http.StatusBadGateway || status == http.StatusServiceUnavailable:
		return core.NewError(core.KindProviderUnavailable, msg).WithTarget(provider)
	case status >= 400 && status < 500:
		return core.NewError(core.KindInvalidRequest, msg).WithTarget(provider)
	default:
		return core.NewError(core.KindProviderUnavailable, msg).WithTarget(provider)
	}
}

// classifyTransportError distinguishes timeouts, DNS failures, and
// connection resets/refusals from a generic network error, per spec.md
// §4.6's table row "connection reset/refused, DNS failure → Network".
func classifyTransportError(err error, provider string) *core.Error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return core.NewError(core.KindTimeout, err.Error()).WithCause(err).WithTarget(provider)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return core.NewError(core.KindNetwork, err.Error()).WithCause(err).WithTarget(provider)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return core.NewError(core.KindNetwork, err.Error()).WithCause(err).WithTarget(provider)
	}
	return core.NewError(core.KindNetwork, err.Error()).WithCause(err).WithTarget(provider)
}
