package monitoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_EvaluateSnapshot_RaisesAndResolvesErrorRate(t *testing.T) {
	m := NewManager(AlertThresholds{MaxErrorRatePerMinute: 1, MaxConsecutiveErrors: 100, MaxAverageHandling: time.Hour}, nil)
	now := time.Now()
	snap := RollingSnapshot{WindowStart: now.Add(-time.Minute), WindowEnd: now, TotalErrors: 10}
	m.EvaluateSnapshot(snap)
	active := m.Active()
	require.Len(t, active, 1)
	assert.Equal(t, AlertErrorRate, active[0].Type)

	m.EvaluateSnapshot(RollingSnapshot{WindowStart: now.Add(-time.Minute), WindowEnd: now, TotalErrors: 0})
	assert.Empty(t, m.Active())
}

func TestManager_EvaluateSnapshot_Dedupes(t *testing.T) {
	m := NewManager(AlertThresholds{MaxErrorRatePerMinute: 1, MaxConsecutiveErrors: 100, MaxAverageHandling: time.Hour}, nil)
	now := time.Now()
	snap := RollingSnapshot{WindowStart: now.Add(-time.Minute), WindowEnd: now, TotalErrors: 10}
	m.EvaluateSnapshot(snap)
	m.EvaluateSnapshot(snap)
	assert.Len(t, m.Active(), 1, "repeated breaches must not duplicate an active alert")
}

func TestManager_EvaluateSnapshot_ConsecutiveErrorsPerTarget(t *testing.T) {
	m := NewManager(AlertThresholds{MaxErrorRatePerMinute: 1000, MaxConsecutiveErrors: 3, MaxAverageHandling: time.Hour}, nil)
	snap := RollingSnapshot{
		ByProvider: map[string]ProviderMetrics{
			"providerA:model1": {ConsecutiveErrors: 5},
		},
	}
	m.EvaluateSnapshot(snap)
	active := m.Active()
	require.Len(t, active, 1)
	assert.Equal(t, AlertConsecutiveErrors, active[0].Type)
}

func TestManager_EvaluateHealth_UnhealthyRaisesCriticalAlert(t *testing.T) {
	m := NewManager(DefaultAlertThresholds(), nil)
	m.EvaluateHealth(HealthReport{Status: StatusUnhealthy, OverallScore: 10})
	active := m.Active()
	require.Len(t, active, 1)
	assert.Equal(t, SeverityCritical, active[0].Severity)

	m.EvaluateHealth(HealthReport{Status: StatusHealthy, OverallScore: 95})
	assert.Empty(t, m.Active())
}
