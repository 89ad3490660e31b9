package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinkEmitAndSubscribe(t *testing.T) {
	sink := NewSink("sess-1")
	ch := sink.Subscribe(4)

	ok := sink.Emit(TypeRoundStarted, 0, map[string]int{"round": 1})
	require.True(t, ok)

	select {
	case ev := <-ch:
		assert.Equal(t, TypeRoundStarted, ev.Type)
		assert.Equal(t, int64(1), ev.Sequence)
		assert.Equal(t, "sess-1", ev.SessionID)
	case <-time.After(time.Second):
		t.Fatal("expected event on subscriber channel")
	}
}

func TestSinkSequenceIsMonotonic(t *testing.T) {
	sink := NewSink("sess-1")
	sink.Emit(TypeRoundStarted, 0, nil)
	sink.Emit(TypeContribution, 0, nil)
	sink.Emit(TypeRoundSummary, 0, nil)

	log := sink.Log()
	require.Len(t, log, 3)
	for i, ev := range log {
		assert.Equal(t, int64(i+1), ev.Sequence)
	}
}

func TestSinkRateLimiting(t *testing.T) {
	sink := NewSink("sess-1", WithMinInterval(time.Hour))
	ch := sink.Subscribe(4)

	sink.Emit(TypeHeartbeat, 0, nil)
	ok := sink.Emit(TypeHeartbeat, 0, nil)
	assert.False(t, ok, "second heartbeat within the interval should be suppressed from fan-out")

	// both are still logged for replay even though the second was suppressed
	assert.Len(t, sink.Log(), 2)

	select {
	case <-ch:
	default:
		t.Fatal("expected first heartbeat to be delivered")
	}
	select {
	case <-ch:
		t.Fatal("second heartbeat should not have been delivered")
	default:
	}
}

func TestSinkDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	sink := &Sink{sessionID: "sess-1", config: cfg, log: nil, lastEmit: make(map[Type]time.Time)}

	ok := sink.Emit(TypeError, 0, "boom")
	assert.False(t, ok)
	assert.Empty(t, sink.Log())
}

func TestSinkCloseClosesSubscribers(t *testing.T) {
	sink := NewSink("sess-1")
	ch := sink.Subscribe(1)
	sink.Close()

	_, open := <-ch
	assert.False(t, open)
}
