// Package monitoring records Error Events, aggregates metrics, computes
// health scores, and runs adaptive recovery pattern matching per spec.md
// §4.9, grounded on the teacher's llm/health_monitor.go and
// llm/observability/metrics.go (reworked from GORM-table scans to an
// in-memory rolling window).
package monitoring

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Severity of an Error Event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// ErrorEvent is the append-only record spec.md §3 names.
type ErrorEvent struct {
	ErrorID            string
	Timestamp          time.Time
	ErrorType          string
	Message            string
	Severity           Severity
	Category           string
	ModuleID           string
	Component           string
	Target             string
	RecoveryAttempted  bool
	RecoverySuccessful bool
	StrategyUsed       string
	HandlingTime       time.Duration
}

// EventLog is the multi-producer, single-consumer queue of spec.md §5:
// producers never block; when full, the oldest unconsumed event is
// evicted and DroppedEvents is incremented. Retention is also bounded by
// count and age — whichever trims first (spec.md §4.9).
type EventLog struct {
	mu            sync.Mutex
	events        []ErrorEvent
	capacity      int
	retentionAge  time.Duration
	droppedEvents uint64
	logger        *zap.Logger

	subscribers []chan ErrorEvent
}

// NewEventLog builds a log bounded by capacity entries and maxAge.
func NewEventLog(capacity int, maxAge time.Duration, logger *zap.Logger) *EventLog {
	if capacity <= 0 {
		capacity = 10000
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventLog{capacity: capacity, retentionAge: maxAge, logger: logger}
}

// Record appends ev, evicting the oldest entry if the log is at capacity
// and trimming anything past the age bound. Never blocks.
func (l *EventLog) Record(ev ErrorEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	l.mu.Lock()
	if len(l.events) >= l.capacity {
		l.events = l.events[1:]
		l.droppedEvents++
	}
	l.events = append(l.events, ev)
	l.trimAgedLocked()
	subs := append([]chan ErrorEvent(nil), l.subscribers...)
	l.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
			// Subscriber is a secondary observer (e.g. anomaly detection);
			// a full subscriber channel must never block the producer.
		}
	}
}

func (l *EventLog) trimAgedLocked() {
	cutoff := time.Now().Add(-l.retentionAge)
	i := 0
	for i < len(l.events) && l.events[i].Timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		l.events = l.events[i:]
	}
}

// Snapshot returns a copy of the currently retained events.
func (l *EventLog) Snapshot() []ErrorEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trimAgedLocked()
	out := make([]ErrorEvent, len(l.events))
	copy(out, l.events)
	return out
}

// DroppedEvents returns the eviction counter.
func (l *EventLog) DroppedEvents() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.droppedEvents
}

// Subscribe registers a non-blocking observer channel of the given
// buffer size, used by the anomaly detector and adaptive pattern matcher.
func (l *EventLog) Subscribe(buffer int) <-chan ErrorEvent {
	ch := make(chan ErrorEvent, buffer)
	l.mu.Lock()
	l.subscribers = append(l.subscribers, ch)
	l.mu.Unlock()
	return ch
}
