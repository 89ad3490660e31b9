package summarizer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardofone/internal/llmbroker"
	"boardofone/internal/types"
)

type fakeClient struct {
	content string
	err     error
}

func (f *fakeClient) Model() string { return "fake" }
func (f *fakeClient) Complete(ctx context.Context, req llmbroker.Request) (*llmbroker.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llmbroker.Response{Content: f.content}, nil
}

func newTestSummarizer(t *testing.T, content string) *Summarizer {
	t.Helper()
	b, err := llmbroker.New(llmbroker.Config{
		Fast:       &fakeClient{content: content},
		Strong:     &fakeClient{content: content},
		MaxRetries: 1,
	})
	require.NoError(t, err)
	return New(b)
}

func TestRoundParsesSummaryAndThemes(t *testing.T) {
	s := newTestSummarizer(t, "<summary>the group converged on a phased rollout</summary><themes>budget; timeline; risk</themes>")
	retained := []*types.Contribution{
		{PersonaID: "strategist", Content: "phase the rollout over two quarters"},
		{PersonaID: "skeptic", Content: "budget risk if phase one slips"},
	}

	summary, themes := s.Round(context.Background(), retained)
	assert.Equal(t, "the group converged on a phased rollout", summary)
	assert.Equal(t, []string{"budget", "timeline", "risk"}, themes)
}

func TestRoundFallsBackToHeuristicOnMalformedResponse(t *testing.T) {
	s := newTestSummarizer(t, "no tags here")
	retained := []*types.Contribution{{PersonaID: "strategist", Content: "a clear recommendation"}}

	summary, themes := s.Round(context.Background(), retained)
	assert.Contains(t, summary, "a clear recommendation")
	assert.Len(t, themes, 1)
}

func TestRoundOnEmptyRetainedReturnsEmpty(t *testing.T) {
	s := newTestSummarizer(t, "")
	summary, themes := s.Round(context.Background(), nil)
	assert.Empty(t, summary)
	assert.Nil(t, themes)
}

func TestPersonaFoldsNewContributionIntoMemory(t *testing.T) {
	s := newTestSummarizer(t, "favors a phased rollout, watching budget risk")
	mem := s.Persona(context.Background(), "strategist", "previously neutral on timing", "now recommends phasing the rollout")
	assert.Equal(t, "favors a phased rollout, watching budget risk", mem)
}

func TestPersonaKeepsPriorMemoryOnBrokerError(t *testing.T) {
	b, err := llmbroker.New(llmbroker.Config{
		Fast:       &fakeClient{err: assert.AnError},
		Strong:     &fakeClient{err: assert.AnError},
		MaxRetries: 1,
	})
	require.NoError(t, err)
	s := New(b)

	mem := s.Persona(context.Background(), "strategist", "prior memory survives", "a new point")
	assert.Equal(t, "prior memory survives", mem)
}

func TestPersonaIgnoresEmptyNewContribution(t *testing.T) {
	s := newTestSummarizer(t, "should not be called")
	mem := s.Persona(context.Background(), "strategist", "unchanged memory", "")
	assert.Equal(t, "unchanged memory", mem)
}
