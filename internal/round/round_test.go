package round

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardofone/internal/embeddings"
	"boardofone/internal/judge"
	"boardofone/internal/llmbroker"
	"boardofone/internal/persona"
	"boardofone/internal/quality"
	"boardofone/internal/types"
	"boardofone/internal/vectorstore"
)

type fakeClient struct {
	model string
}

func (f *fakeClient) Model() string { return f.model }

// Complete echoes the user message (the speaker's persona prompt) as the
// contribution, so each speaker's content, and so its embedding, differs.
func (f *fakeClient) Complete(ctx context.Context, req llmbroker.Request) (*llmbroker.Response, error) {
	content := "a fresh perspective on risk"
	if len(req.Messages) > 0 {
		content = req.Messages[0].Content
	}
	return &llmbroker.Response{Content: "<thinking>t</thinking><contribution>" + content + "</contribution>"}, nil
}

// untaggedClient answers without any <contribution> tag.
type untaggedClient struct {
	model string
}

func (f *untaggedClient) Model() string { return f.model }
func (f *untaggedClient) Complete(ctx context.Context, req llmbroker.Request) (*llmbroker.Response, error) {
	return &llmbroker.Response{Content: "a plain answer without tags"}, nil
}

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	b, err := llmbroker.New(llmbroker.Config{
		Fast:       &fakeClient{model: "fast"},
		Strong:     &fakeClient{model: "strong"},
		MaxRetries: 1,
	})
	require.NoError(t, err)

	embedder := embeddings.NewMockEmbedder(8)
	store, err := vectorstore.New(vectorstore.Config{Embedder: embedder})
	require.NoError(t, err)

	j := judge.New(b)
	return New(b, embedder, store, j, quality.DefaultConfig())
}

func TestRunGeneratesOneContributionPerSpeaker(t *testing.T) {
	runner := newTestRunner(t)
	cat := persona.DefaultCatalog()
	speakers := cat.Filter(func(e persona.Entry) bool { return !e.Persona.IsModerator })[:3]

	out, err := runner.Run(context.Background(), Input{
		SubProblem: &types.SubProblem{ID: "sp1", Description: "pick a market"},
		Round:      1,
		MaxRounds:  6,
		Speakers:   speakers,
	}, "session1", nil, nil)

	require.NoError(t, err)
	assert.Len(t, out.Retained, 3)
	assert.NotNil(t, out.Summary)
	for _, sp := range speakers {
		assert.Contains(t, out.ExpertMemory, sp.Persona.ID)
	}
}

func TestPhaseForRoundTransitionsByThirds(t *testing.T) {
	assert.Equal(t, types.PhaseExploration, PhaseForRound(1, 9))
	assert.Equal(t, types.PhaseChallenge, PhaseForRound(4, 9))
	assert.Equal(t, types.PhaseConvergence, PhaseForRound(8, 9))
}

func TestExtractTagFallsBackToRawContentWhenAbsent(t *testing.T) {
	b, err := llmbroker.New(llmbroker.Config{
		Fast:       &untaggedClient{model: "fast"},
		Strong:     &untaggedClient{model: "strong"},
		MaxRetries: 1,
	})
	require.NoError(t, err)
	embedder := embeddings.NewMockEmbedder(8)
	store, err := vectorstore.New(vectorstore.Config{Embedder: embedder})
	require.NoError(t, err)
	runner := New(b, embedder, store, judge.New(b), quality.DefaultConfig())
	cat := persona.DefaultCatalog()
	speakers := []persona.Entry{mustLookup(t, cat, "strategist")}

	out, err := runner.Run(context.Background(), Input{
		SubProblem: &types.SubProblem{ID: "sp2", Description: "goal"},
		Round:      1,
		MaxRounds:  6,
		Speakers:   speakers,
	}, "session2", nil, nil)
	require.NoError(t, err)
	require.Len(t, out.Retained, 1)
	assert.NotEmpty(t, out.Retained[0].Content)
	assert.Equal(t, "a plain answer without tags", out.Retained[0].Content)
}

func mustLookup(t *testing.T, cat *persona.Catalog, code string) persona.Entry {
	t.Helper()
	e, ok := cat.Lookup(code)
	require.True(t, ok)
	return e
}
