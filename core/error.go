// Package core holds the normalized request/response shapes and the error
// taxonomy shared by every stage of the pipeline.
package core

import (
	"errors"
	"fmt"
)

// ErrorKind is the taxonomy of §7: a closed set of error kinds the
// Scheduler, Strategy Manager, and stages branch on explicitly.
type ErrorKind string

const (
	KindInvalidRequest       ErrorKind = "InvalidRequest"
	KindUnknownModel         ErrorKind = "UnknownModel"
	KindBackpressure         ErrorKind = "Backpressure"
	KindNoHealthyTarget      ErrorKind = "NoHealthyTarget"
	KindExhaustedTargets     ErrorKind = "ExhaustedTargets"
	KindAuthFailed           ErrorKind = "AuthFailed"
	KindTimeout              ErrorKind = "Timeout"
	KindNetwork              ErrorKind = "Network"
	KindRateLimited          ErrorKind = "RateLimited"
	KindProviderUnavailable  ErrorKind = "ProviderUnavailable"
	KindCircuitOpen          ErrorKind = "CircuitOpen"
	KindMalformedResponse    ErrorKind = "MalformedResponse"
	KindMalformedStream      ErrorKind = "MalformedStream"
	KindUnsupportedConv      ErrorKind = "UnsupportedConversion"
	KindCancelled            ErrorKind = "Cancelled"
	KindStreamingUnsupported ErrorKind = "StreamingUnsupported"
	KindInternal             ErrorKind = "InternalError"
)

// transientKinds are retried by the Strategy Manager's Retry strategy.
var transientKinds = map[ErrorKind]bool{
	KindTimeout:             true,
	KindNetwork:             true,
	KindRateLimited:         true,
	KindProviderUnavailable: true,
}

// Error is the structured error type threaded through every component.
// It implements error and Unwrap so callers can use errors.As/errors.Is
// against the Cause chain while still branching on Kind directly.
type Error struct {
	Kind              ErrorKind `json:"kind"`
	Message           string    `json:"message"`
	HTTPStatus        int       `json:"http_status,omitempty"`
	Retryable         bool      `json:"retryable"`
	Target            string    `json:"target,omitempty"`
	AttemptedTargets  []string  `json:"attempted_targets,omitempty"`
	RetryAfterSeconds float64   `json:"retry_after,omitempty"`
	Details           any       `json:"details,omitempty"`
	Cause             error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds an Error, deriving Retryable from the kind's default
// transience unless overridden later with WithRetryable.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message, Retryable: transientKinds[kind]}
}

func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

func (e *Error) WithTarget(target string) *Error {
	e.Target = target
	return e
}

func (e *Error) WithAttemptedTargets(targets []string) *Error {
	e.AttemptedTargets = targets
	return e
}

func (e *Error) WithRetryAfter(seconds float64) *Error {
	e.RetryAfterSeconds = seconds
	return e
}

// IsRetryable reports whether err is a *Error marked retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetKind extracts the ErrorKind from err, or "" if err is not a *Error.
func GetKind(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsTransient reports whether the kind is one the Retry strategy triggers on.
func IsTransient(kind ErrorKind) bool {
	return transientKinds[kind]
}
