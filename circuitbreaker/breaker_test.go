package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBreaker_OpensAfterThresholdWithinVolume(t *testing.T) {
	cfg := Config{
		FailureThreshold: 3,
		VolumeThreshold:  3,
		RecoveryTimeout:  50 * time.Millisecond,
		SuccessThreshold: 2,
		HalfOpenAttempts: 1,
		MonitoringWindow: time.Minute,
	}
	b := New(cfg, zap.NewNop())

	require.NoError(t, b.Allow())
	b.RecordFailure()
	require.NoError(t, b.Allow())
	b.RecordFailure()
	require.NoError(t, b.Allow())
	b.RecordFailure()

	assert.Equal(t, Open, b.State())
	err := b.Allow()
	require.Error(t, err)
}

func TestBreaker_RecoversThroughHalfOpen(t *testing.T) {
	cfg := Config{
		FailureThreshold: 3,
		VolumeThreshold:  3,
		RecoveryTimeout:  10 * time.Millisecond,
		SuccessThreshold: 2,
		HalfOpenAttempts: 1,
		MonitoringWindow: time.Minute,
	}
	b := New(cfg, zap.NewNop())
	for i := 0; i < 3; i++ {
		_ = b.Allow()
		b.RecordFailure()
	}
	require.Equal(t, Open, b.State())

	time.Sleep(15 * time.Millisecond)

	require.NoError(t, b.Allow())
	assert.Equal(t, HalfOpen, b.State())
	b.RecordSuccess()
	assert.Equal(t, HalfOpen, b.State(), "needs success-threshold consecutive successes")

	require.NoError(t, b.Allow())
	b.RecordSuccess()
	assert.Equal(t, Closed, b.State())
}

func TestBreaker_HalfOpenFailureReOpens(t *testing.T) {
	cfg := Config{
		FailureThreshold: 1,
		VolumeThreshold:  1,
		RecoveryTimeout:  10 * time.Millisecond,
		SuccessThreshold: 2,
		HalfOpenAttempts: 1,
		MonitoringWindow: time.Minute,
	}
	b := New(cfg, zap.NewNop())
	require.NoError(t, b.Allow())
	b.RecordFailure()
	require.Equal(t, Open, b.State())

	time.Sleep(15 * time.Millisecond)
	require.NoError(t, b.Allow())
	require.Equal(t, HalfOpen, b.State())

	b.RecordFailure()
	assert.Equal(t, Open, b.State())
}

func TestManager_LazyCreatesPerTarget(t *testing.T) {
	m := NewManager(DefaultConfig(), zap.NewNop())
	a := m.For("providerA/modelX")
	b := m.For("providerB/modelY")
	assert.NotSame(t, a, b)
	assert.Same(t, a, m.For("providerA/modelX"))
	assert.False(t, m.IsOpen("providerA/modelX"))
}
