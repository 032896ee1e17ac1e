package monitoring

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rcc-sub005/llmrouter/core"
)

// AlertType classifies what condition produced an Alert (spec.md §4.9).
type AlertType string

const (
	AlertErrorRate         AlertType = "error_rate"
	AlertConsecutiveErrors AlertType = "consecutive_errors"
	AlertHandlingTime      AlertType = "handling_time"
	AlertHealthCheck       AlertType = "health_check"
	AlertAnomalyDetection  AlertType = "anomaly_detection"
)

// Alert is a raised condition, tracked until explicitly resolved.
type Alert struct {
	ID        string
	Type      AlertType
	Severity  Severity
	Timestamp time.Time
	Message   string
	Details   map[string]any
	Resolved  bool
}

// AlertThresholds configures when the Manager raises each alert type.
type AlertThresholds struct {
	MaxErrorRatePerMinute   float64
	MaxConsecutiveErrors    int
	MaxAverageHandling      time.Duration
	UnhealthyTriggersAlert  bool
}

// DefaultAlertThresholds mirrors the conservative defaults spec.md implies
// for a freshly configured deployment.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		MaxErrorRatePerMinute:  10,
		MaxConsecutiveErrors:   5,
		MaxAverageHandling:     5 * time.Second,
		UnhealthyTriggersAlert: true,
	}
}

// Manager raises and tracks Alerts derived from rolling snapshots,
// per-provider metrics, and anomaly detections. Alerts are deduplicated by
// (type, target) while unresolved: a breach that is already alerting does
// not spawn a second Alert.
type Manager struct {
	mu        sync.Mutex
	thresh    AlertThresholds
	logger    *zap.Logger
	active    map[string]*Alert
	history   []Alert
	historyCap int
}

// NewManager builds an alert Manager with the given thresholds.
func NewManager(thresh AlertThresholds, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{thresh: thresh, logger: logger, active: make(map[string]*Alert), historyCap: 1000}
}

func alertKey(t AlertType, target string) string {
	return string(t) + "|" + target
}

func (m *Manager) raise(t AlertType, target string, severity Severity, message string, details map[string]any) {
	key := alertKey(t, target)
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.active[key]; ok && !existing.Resolved {
		return
	}
	a := Alert{
		ID:        core.NewRequestID(),
		Type:      t,
		Severity:  severity,
		Timestamp: time.Now(),
		Message:   message,
		Details:   details,
	}
	m.active[key] = &a
	m.appendHistoryLocked(a)
	m.logger.Warn("alert raised", zap.String("type", string(t)), zap.String("target", target), zap.String("message", message))
}

func (m *Manager) appendHistoryLocked(a Alert) {
	if len(m.history) >= m.historyCap {
		m.history = m.history[1:]
	}
	m.history = append(m.history, a)
}

// Resolve clears an active alert of the given type/target, if any.
func (m *Manager) Resolve(t AlertType, target string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := alertKey(t, target)
	if a, ok := m.active[key]; ok {
		a.Resolved = true
		delete(m.active, key)
	}
}

// Active returns the currently unresolved alerts.
func (m *Manager) Active() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Alert, 0, len(m.active))
	for _, a := range m.active {
		out = append(out, *a)
	}
	return out
}

// History returns the full raised-alert history, including resolved ones.
func (m *Manager) History() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Alert, len(m.history))
	copy(out, m.history)
	return out
}

// EvaluateSnapshot inspects a RollingSnapshot and raises or resolves
// alerts for error-rate, per-provider consecutive-errors, and
// handling-time breaches.
func (m *Manager) EvaluateSnapshot(snap RollingSnapshot) {
	windowMinutes := snap.WindowEnd.Sub(snap.WindowStart).Minutes()
	if windowMinutes <= 0 {
		windowMinutes = 1
	}
	rate := float64(snap.TotalErrors) / windowMinutes
	if rate > m.thresh.MaxErrorRatePerMinute {
		m.raise(AlertErrorRate, "", SeverityWarning, "error rate exceeds threshold", map[string]any{"rate_per_minute": rate})
	} else {
		m.Resolve(AlertErrorRate, "")
	}

	if m.thresh.MaxAverageHandling > 0 && snap.AverageHandling > m.thresh.MaxAverageHandling {
		m.raise(AlertHandlingTime, "", SeverityWarning, "average handling time exceeds threshold", map[string]any{"average_handling": snap.AverageHandling.String()})
	} else {
		m.Resolve(AlertHandlingTime, "")
	}

	for target, pm := range snap.ByProvider {
		if pm.ConsecutiveErrors >= m.thresh.MaxConsecutiveErrors {
			m.raise(AlertConsecutiveErrors, target, SeverityError, "consecutive errors exceed threshold", map[string]any{"consecutive_errors": pm.ConsecutiveErrors})
		} else {
			m.Resolve(AlertConsecutiveErrors, target)
		}
	}
}

// EvaluateHealth raises a health_check alert when overall status goes
// unhealthy, and resolves it once the status recovers.
func (m *Manager) EvaluateHealth(report HealthReport) {
	if !m.thresh.UnhealthyTriggersAlert {
		return
	}
	if report.Status == StatusUnhealthy {
		m.raise(AlertHealthCheck, "", SeverityCritical, "overall health unhealthy", map[string]any{"score": report.OverallScore})
	} else {
		m.Resolve(AlertHealthCheck, "")
	}
}

// EvaluateAnomaly raises an anomaly_detection alert for a Detector hit.
func (m *Manager) EvaluateAnomaly(a Anomaly) {
	m.raise(AlertAnomalyDetection, a.Target, SeverityWarning, "metric deviates from rolling baseline", map[string]any{
		"kind": a.Kind, "z_score": a.ZScore, "value": a.Value, "mean": a.Mean,
	})
}
