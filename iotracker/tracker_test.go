package iotracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcc-sub005/llmrouter/core"
)

func ecFixture(requestID string) *core.ExecutionContext {
	ec := core.NewExecutionContext("sess1", requestID, "chat-default", time.Now().Add(time.Minute))
	ec.AppendIORecord(core.IORecord{Stage: "protocol-switch", Direction: "out"})
	ec.AppendIORecord(core.IORecord{Stage: "provider-adapter", Direction: "in"})
	return ec
}

func TestCapture_ThenLookupReturnsRecordedTrace(t *testing.T) {
	tr := New(10, time.Hour, nil)
	tr.Capture(ecFixture("req1"))

	trace, ok := tr.Lookup("req1")
	require.True(t, ok)
	assert.Equal(t, "req1", trace.RequestID)
	assert.Len(t, trace.Records, 2)
	assert.Equal(t, "protocol-switch", trace.Records[0].Stage)
}

func TestLookup_UnknownRequestIDReturnsFalse(t *testing.T) {
	tr := New(10, time.Hour, nil)
	_, ok := tr.Lookup("missing")
	assert.False(t, ok)
}

func TestCapture_EvictsOldestWhenCapacityExceeded(t *testing.T) {
	tr := New(2, time.Hour, nil)
	tr.Capture(ecFixture("req1"))
	tr.Capture(ecFixture("req2"))
	tr.Capture(ecFixture("req3"))

	_, ok := tr.Lookup("req1")
	assert.False(t, ok)
	_, ok = tr.Lookup("req3")
	assert.True(t, ok)
	assert.Equal(t, uint64(1), tr.Dropped())
}

func TestRecent_ReturnsNewestFirst(t *testing.T) {
	tr := New(10, time.Hour, nil)
	tr.Capture(ecFixture("req1"))
	tr.Capture(ecFixture("req2"))

	recent := tr.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "req2", recent[0].RequestID)
	assert.Equal(t, "req1", recent[1].RequestID)
}

func TestCapture_EvictsExpiredTracesByAge(t *testing.T) {
	tr := New(10, time.Millisecond, nil)
	tr.Capture(ecFixture("req1"))
	time.Sleep(5 * time.Millisecond)
	tr.Capture(ecFixture("req2"))

	_, ok := tr.Lookup("req1")
	assert.False(t, ok)
	_, ok = tr.Lookup("req2")
	assert.True(t, ok)
}
