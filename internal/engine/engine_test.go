package engine

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardofone/internal/config"
	"boardofone/internal/events"
	"boardofone/internal/graph"
)

func withDummyCredentials(t *testing.T) {
	t.Helper()
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test-dummy")
	os.Unsetenv("OPENAI_API_KEY")
	os.Unsetenv("VOYAGE_API_KEY")
}

func TestNewWiresEveryComponent(t *testing.T) {
	withDummyCredentials(t)

	cfg := config.Default()
	cfg.Embeddings.Enabled = false // avoid requiring a Voyage key for this test

	c, err := New(cfg)
	require.NoError(t, err)

	assert.NotNil(t, c.Broker)
	assert.NotNil(t, c.Embedder)
	assert.NotNil(t, c.VectorStore)
	assert.NotNil(t, c.Checkpoint)
	assert.NotNil(t, c.Catalog)
	assert.NotNil(t, c.Driver)
	assert.NotNil(t, c.Sessions)

	assert.NoError(t, c.Close())
}

func TestNewRequiresProviderAPIKey(t *testing.T) {
	os.Unsetenv("ANTHROPIC_API_KEY")
	os.Unsetenv("OPENAI_API_KEY")
	os.Unsetenv("VOYAGE_API_KEY")

	_, err := New(config.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ANTHROPIC_API_KEY")
}

func TestSubscribeReceivesDispatchedEvents(t *testing.T) {
	withDummyCredentials(t)
	cfg := config.Default()
	cfg.Embeddings.Enabled = false
	c, err := New(cfg)
	require.NoError(t, err)

	ch := c.Subscribe("sess-1", 4)

	c.dispatchEvent(graph.Event{SessionID: "sess-1", SubProblemIndex: 2, Type: events.TypeRoundStarted, Payload: "round 1"})

	select {
	case ev := <-ch:
		assert.Equal(t, "sess-1", ev.SessionID)
		assert.EqualValues(t, events.TypeRoundStarted, ev.Type)
		assert.Equal(t, 2, ev.SubProblemIndex)
		assert.Equal(t, "round 1", ev.Payload)
	case <-time.After(time.Second):
		t.Fatal("expected a dispatched event")
	}
}

func TestDispatchEventIgnoresSessionsWithNoSubscriber(t *testing.T) {
	withDummyCredentials(t)
	cfg := config.Default()
	cfg.Embeddings.Enabled = false
	c, err := New(cfg)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		c.dispatchEvent(graph.Event{SessionID: "nobody-listening", Type: events.TypeRoundStarted})
	})
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	withDummyCredentials(t)
	cfg := config.Default()
	cfg.Embeddings.Enabled = false
	c, err := New(cfg)
	require.NoError(t, err)

	ch := c.Subscribe("sess-2", 1)
	c.Unsubscribe("sess-2")

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after Unsubscribe")
}
