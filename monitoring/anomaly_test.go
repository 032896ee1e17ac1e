package monitoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDetector_FlagsOutlierAfterWarmup(t *testing.T) {
	d := NewDetector(2.5, 20)
	now := time.Now()
	for i := 0; i < 10; i++ {
		anomaly := d.Observe("providerA:model1", AnomalyHandlingTime, 1.0, now)
		assert.Nil(t, anomaly)
	}
	anomaly := d.Observe("providerA:model1", AnomalyHandlingTime, 50.0, now)
	assert.NotNil(t, anomaly)
	assert.Equal(t, "providerA:model1", anomaly.Target)
	assert.GreaterOrEqual(t, anomaly.ZScore, 2.5)
}

func TestDetector_NoFlagBelowWarmupSampleCount(t *testing.T) {
	d := NewDetector(2.5, 20)
	now := time.Now()
	d.Observe("providerA:model1", AnomalyHandlingTime, 1.0, now)
	anomaly := d.Observe("providerA:model1", AnomalyHandlingTime, 100.0, now)
	assert.Nil(t, anomaly, "too few samples to estimate variance reliably")
}

func TestDetector_ObserveEvent_SkipsEmptyTarget(t *testing.T) {
	d := NewDetector(2.5, 20)
	anomaly := d.ObserveEvent(ErrorEvent{Target: "", HandlingTime: time.Second})
	assert.Nil(t, anomaly)
}
