// Package iotracker is the I/O Tracker leaf service of spec.md §2: it
// ingests the per-stage core.IORecord entries an Executor run appends to
// its core.ExecutionContext and retains them, keyed by request id, for
// observability and replay after the request itself has finished and its
// ExecutionContext has gone out of scope. Grounded on monitoring/events.go's
// EventLog shape (bounded capacity + age, multi-producer/single-consumer,
// oldest-evicted-first, never-blocks-the-caller) — the same retention
// discipline applied to per-request I/O traces instead of error events.
package iotracker

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rcc-sub005/llmrouter/core"
)

// Trace is one request's full ordered I/O record list plus the metadata
// needed to find it again.
type Trace struct {
	RequestID  string
	SessionID  string
	RoutingID  string
	RecordedAt time.Time
	Records    []core.IORecord
}

// Tracker retains the most recent request traces in a bounded ring,
// evicting the oldest entry once Capacity is reached — the same
// never-block, oldest-evicted-first discipline as monitoring.EventLog,
// since I/O Tracker sits on the same per-request hot path every stage
// writes into via core.ExecutionContext.AppendIORecord.
type Tracker struct {
	mu           sync.Mutex
	traces       []Trace
	byRequestID  map[string]int // index into traces, for O(1) lookup
	capacity     int
	retentionAge time.Duration
	dropped      uint64
	logger       *zap.Logger
}

// New builds a Tracker bounded by capacity traces and maxAge.
func New(capacity int, maxAge time.Duration, logger *zap.Logger) *Tracker {
	if capacity <= 0 {
		capacity = 5000
	}
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		capacity:     capacity,
		retentionAge: maxAge,
		byRequestID:  make(map[string]int),
		logger:       logger,
	}
}

// Capture snapshots ec's accumulated I/O records into a retained Trace.
// Called once by the Executor after a request terminates (success,
// failure, or cancellation) — the ExecutionContext itself is not retained,
// only this point-in-time copy of what it recorded.
func (t *Tracker) Capture(ec *core.ExecutionContext) {
	trace := Trace{
		RequestID:  ec.RequestID,
		SessionID:  ec.SessionID,
		RoutingID:  ec.RoutingID,
		RecordedAt: time.Now(),
		Records:    ec.IORecords(),
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.evictExpiredLocked()
	if len(t.traces) >= t.capacity {
		t.evictOldestLocked()
	}
	t.traces = append(t.traces, trace)
	t.byRequestID[trace.RequestID] = len(t.traces) - 1
}

// Lookup returns the retained Trace for requestID, if still within the
// retention window.
func (t *Tracker) Lookup(requestID string) (Trace, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx, ok := t.byRequestID[requestID]
	if !ok || idx >= len(t.traces) {
		return Trace{}, false
	}
	return t.traces[idx], true
}

// Recent returns up to n of the most recently captured traces, newest
// first.
func (t *Tracker) Recent(n int) []Trace {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n <= 0 || n > len(t.traces) {
		n = len(t.traces)
	}
	out := make([]Trace, n)
	for i := 0; i < n; i++ {
		out[i] = t.traces[len(t.traces)-1-i]
	}
	return out
}

// Dropped reports how many traces were evicted before their retention
// window naturally elapsed, due to the capacity bound.
func (t *Tracker) Dropped() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}

func (t *Tracker) evictOldestLocked() {
	if len(t.traces) == 0 {
		return
	}
	evicted := t.traces[0]
	t.traces = t.traces[1:]
	delete(t.byRequestID, evicted.RequestID)
	t.dropped++
	t.reindexLocked()
}

func (t *Tracker) evictExpiredLocked() {
	cutoff := time.Now().Add(-t.retentionAge)
	trimmed := 0
	for trimmed < len(t.traces) && t.traces[trimmed].RecordedAt.Before(cutoff) {
		delete(t.byRequestID, t.traces[trimmed].RequestID)
		trimmed++
	}
	if trimmed > 0 {
		t.traces = t.traces[trimmed:]
		t.reindexLocked()
	}
}

func (t *Tracker) reindexLocked() {
	for i, tr := range t.traces {
		t.byRequestID[tr.RequestID] = i
	}
}
