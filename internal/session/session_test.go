package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardofone/internal/checkpoint"
	"boardofone/internal/config"
	"boardofone/internal/embeddings"
	"boardofone/internal/graph"
	"boardofone/internal/judge"
	"boardofone/internal/llmbroker"
	"boardofone/internal/persona"
	"boardofone/internal/quality"
	"boardofone/internal/round"
	"boardofone/internal/types"
	"boardofone/internal/vectorstore"
)

type routedClient struct {
	model   string
	byField map[string]string
	def     string
}

func (r *routedClient) Model() string { return r.model }
func (r *routedClient) Complete(ctx context.Context, req llmbroker.Request) (*llmbroker.Response, error) {
	for marker, content := range r.byField {
		if containsSubstr(req.System, marker) {
			return &llmbroker.Response{Content: content}, nil
		}
		for _, m := range req.Messages {
			if containsSubstr(m.Content, marker) {
				return &llmbroker.Response{Content: content}, nil
			}
		}
	}
	return &llmbroker.Response{Content: r.def}, nil
}

func containsSubstr(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	contribContent := `<thinking>t</thinking><contribution>focused recommendation</contribution>`
	voteContent := `{"recommendation":"proceed","confidence":0.75,"rationale":"acceptable risk"}`
	facilitateVote := `{"action":"VOTE","reasoning":"sufficient exploration"}`

	fast := &routedClient{
		model:   "fast",
		byField: map[string]string{"recommendation, your confidence": voteContent},
		def:     contribContent,
	}
	strong := &routedClient{
		model:   "strong",
		byField: map[string]string{"Choose the next facilitator action": facilitateVote},
		def:     "synthesized recommendation",
	}

	broker, err := llmbroker.New(llmbroker.Config{Fast: fast, Strong: strong, MaxRetries: 1})
	require.NoError(t, err)

	embedder := embeddings.NewMockEmbedder(8)
	store, err := vectorstore.New(vectorstore.Config{Embedder: embedder})
	require.NoError(t, err)

	runner := round.New(broker, embedder, store, judge.New(broker), quality.DefaultConfig())
	cat := persona.DefaultCatalog()

	cfg := config.Default()
	cfg.Safety.MinRounds = 1
	cfg.Safety.MaxRounds = 4

	driver := graph.NewDriver(cfg, broker, cat, runner, nil)
	return New(driver, cfg, checkpoint.NewMemoryStore())
}

func waitForStatus(t *testing.T, m *Manager, sessionID string, want Status, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		got, err := m.Status(sessionID)
		require.NoError(t, err)
		if got == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session did not reach status %s within %s", want, timeout)
}

func TestStartRunsSessionToCompletion(t *testing.T) {
	m := newTestManager(t)
	sessionID, err := m.Start(context.Background(), &types.Problem{ID: "p1", Statement: "Should we raise prices by 10%?"})
	require.NoError(t, err)

	waitForStatus(t, m, sessionID, StatusComplete, 2*time.Second)

	result, err := m.Result(sessionID)
	require.NoError(t, err)
	assert.NotEmpty(t, result.MetaSynthesis)
}

func TestKillAbortsRunningSession(t *testing.T) {
	m := newTestManager(t)
	sessionID, err := m.Start(context.Background(), &types.Problem{ID: "p1", Statement: "Should we expand internationally?"})
	require.NoError(t, err)

	require.NoError(t, m.Kill(sessionID, "test abort"))
	waitForStatus(t, m, sessionID, StatusAborted, 2*time.Second)
}

func TestPauseThenResumeCompletesSession(t *testing.T) {
	m := newTestManager(t)
	sessionID, err := m.Start(context.Background(), &types.Problem{ID: "p1", Statement: "Should we raise prices?"})
	require.NoError(t, err)

	require.NoError(t, m.Pause(sessionID))
	status, err := m.Status(sessionID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaused, status)

	require.NoError(t, m.Resume(sessionID))
	waitForStatus(t, m, sessionID, StatusComplete, 2*time.Second)
}

func TestMetricsReportsProgress(t *testing.T) {
	m := newTestManager(t)
	sessionID, err := m.Start(context.Background(), &types.Problem{ID: "p1", Statement: "Should we raise prices?"})
	require.NoError(t, err)

	waitForStatus(t, m, sessionID, StatusComplete, 2*time.Second)

	metrics, err := m.Metrics(sessionID)
	require.NoError(t, err)
	assert.Equal(t, metrics.SubProblemsTotal, metrics.SubProblemsDone)
}

func TestStatusOnUnknownSessionErrors(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Status("does-not-exist")
	assert.Error(t, err)
}
