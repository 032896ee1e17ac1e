package circuitbreaker

import (
	"sync"

	"go.uber.org/zap"
)

// Manager owns one Breaker per target, created lazily on first use and
// kept for the life of the process (spec.md §3 Circuit Breaker State
// lifecycle).
type Manager struct {
	config Config
	logger *zap.Logger

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewManager builds a Manager that creates breakers with config on demand.
func NewManager(config Config, logger *zap.Logger) *Manager {
	return &Manager{
		config:   config,
		logger:   logger,
		breakers: make(map[string]*Breaker),
	}
}

// For returns the Breaker for target, creating it if this is the first
// reference.
func (m *Manager) For(target string) *Breaker {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.breakers[target]
	if !ok {
		b = New(m.config, m.logger)
		m.breakers[target] = b
	}
	return b
}

// IsOpen reports whether target's breaker currently rejects requests,
// without reserving a half-open probe slot (used by the Scheduler's
// "reachable" predicate, which must not consume probe budget on a read).
func (m *Manager) IsOpen(target string) bool {
	m.mu.Lock()
	b, ok := m.breakers[target]
	m.mu.Unlock()
	if !ok {
		return false
	}
	return b.State() == Open
}

// Snapshot returns the state of every known breaker, for health reporting.
func (m *Manager) Snapshot() map[string]State {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]State, len(m.breakers))
	for target, b := range m.breakers {
		out[target] = b.State()
	}
	return out
}
