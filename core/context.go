package core

import (
	"sync"
	"time"
)

// IORecord is one entry in an ExecutionContext's append-only I/O log,
// written by the Pipeline Executor after the stages it times (the
// protocol-switch request conversion and the non-streaming provider call).
type IORecord struct {
	Stage           string    `json:"stage"`
	Direction       string    `json:"direction"` // "in" | "out"
	SizeBytes       int       `json:"size_bytes"`
	DurationMS      float64   `json:"duration_ms"`
	PayloadHash     string    `json:"payload_hash,omitempty"`
	PayloadExcerpt  string    `json:"payload_excerpt,omitempty"`
	RecordedAt      time.Time `json:"recorded_at"`
}

// ExecutionContext is the per-request state carried through the pipeline.
// One is created by the Pipeline Executor after admission and surrendered to
// Monitoring once the response terminates. Only the Scheduler/Executor
// mutate Target and Attempt; every other field is read-only to stages
// once set, with the exception of IORecords (append-only) and Warnings
// (append-only, written by stages recording non-reversible transforms).
type ExecutionContext struct {
	SessionID string
	RequestID string
	RoutingID string // resolved virtual-model-id

	StartTime time.Time
	Deadline  time.Time

	mu             sync.Mutex
	target         string // "provider-id/model-id"
	attempt        int
	triedTargets   map[string]bool
	streamMode     bool
	reStreamNeeded bool
	cancelled      bool

	ioMu      sync.Mutex
	ioRecords []IORecord

	warnMu   sync.Mutex
	warnings []string

	Metadata map[string]any
}

// NewExecutionContext constructs a context for a freshly admitted request.
func NewExecutionContext(sessionID, requestID, routingID string, deadline time.Time) *ExecutionContext {
	return &ExecutionContext{
		SessionID:    sessionID,
		RequestID:    requestID,
		RoutingID:    routingID,
		StartTime:    time.Now(),
		Deadline:     deadline,
		triedTargets: make(map[string]bool),
		Metadata:     make(map[string]any),
	}
}

// Target returns the currently resolved target identifier.
func (c *ExecutionContext) Target() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// SetTarget records the target chosen for the current attempt and marks
// it as tried, so the Scheduler's exclusion set grows monotonically.
func (c *ExecutionContext) SetTarget(target string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = target
	c.triedTargets[target] = true
}

// TriedTargets returns a snapshot of targets already attempted for this
// request, used by the Scheduler to exclude them on retry/failover.
func (c *ExecutionContext) TriedTargets() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.triedTargets))
	for t := range c.triedTargets {
		out = append(out, t)
	}
	return out
}

// HasTried reports whether target was already attempted this request.
func (c *ExecutionContext) HasTried(target string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.triedTargets[target]
}

// Attempt returns the current attempt counter (0 on first try).
func (c *ExecutionContext) Attempt() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempt
}

// IncrementAttempt bumps the attempt counter and returns the new value.
func (c *ExecutionContext) IncrementAttempt() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempt++
	return c.attempt
}

// SetStreamMode records whether this request is being served in streaming
// mode, and whether the Workflow stage had to force re-streaming because
// the resolved target lacks native streaming support.
func (c *ExecutionContext) SetStreamMode(streaming, reStreamNeeded bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streamMode = streaming
	c.reStreamNeeded = reStreamNeeded
}

func (c *ExecutionContext) StreamMode() (streaming, reStreamNeeded bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streamMode, c.reStreamNeeded
}

// MarkCancelled flips the cancellation flag exactly once; returns true
// the first time it is called so callers can append a cancellation record
// without duplicating it.
func (c *ExecutionContext) MarkCancelled() (first bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelled {
		return false
	}
	c.cancelled = true
	return true
}

func (c *ExecutionContext) Cancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

// Expired reports whether the context's deadline has already elapsed.
func (c *ExecutionContext) Expired() bool {
	return !c.Deadline.IsZero() && time.Now().After(c.Deadline)
}

// AppendIORecord adds a record to the append-only I/O log.
func (c *ExecutionContext) AppendIORecord(rec IORecord) {
	rec.RecordedAt = time.Now()
	c.ioMu.Lock()
	defer c.ioMu.Unlock()
	c.ioRecords = append(c.ioRecords, rec)
}

// IORecords returns a snapshot of the I/O log accumulated so far.
func (c *ExecutionContext) IORecords() []IORecord {
	c.ioMu.Lock()
	defer c.ioMu.Unlock()
	out := make([]IORecord, len(c.ioRecords))
	copy(out, c.ioRecords)
	return out
}

// AppendWarning records a non-reversible transform or other soft failure
// that should be surfaced to the caller without failing the request.
func (c *ExecutionContext) AppendWarning(msg string) {
	c.warnMu.Lock()
	defer c.warnMu.Unlock()
	c.warnings = append(c.warnings, msg)
}

func (c *ExecutionContext) Warnings() []string {
	c.warnMu.Lock()
	defer c.warnMu.Unlock()
	out := make([]string, len(c.warnings))
	copy(out, c.warnings)
	return out
}
