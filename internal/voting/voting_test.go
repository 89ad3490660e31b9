package voting

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardofone/internal/llmbroker"
	"boardofone/internal/persona"
	"boardofone/internal/types"
)

type fakeClient struct {
	model string
	resp  *llmbroker.Response
	err   error
}

func (f *fakeClient) Model() string { return f.model }
func (f *fakeClient) Complete(ctx context.Context, req llmbroker.Request) (*llmbroker.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func newTestCollector(t *testing.T, fastContent, strongContent string) *Collector {
	t.Helper()
	b, err := llmbroker.New(llmbroker.Config{
		Fast:       &fakeClient{model: "fast", resp: &llmbroker.Response{Content: fastContent}},
		Strong:     &fakeClient{model: "strong", resp: &llmbroker.Response{Content: strongContent}},
		MaxRetries: 1,
	})
	require.NoError(t, err)
	return New(b)
}

func testVoters(t *testing.T) []persona.Entry {
	t.Helper()
	cat := persona.DefaultCatalog()
	return cat.Filter(func(e persona.Entry) bool { return !e.Persona.IsModerator })[:3]
}

func TestCollectVotesOnePerVoter(t *testing.T) {
	content := `{"recommendation":"go with option A","confidence":0.8,"rationale":"lower risk"}`
	c := newTestCollector(t, content, "synthesis")
	votes := c.CollectVotes(context.Background(), "sp1", "transcript", testVoters(t))
	assert.Len(t, votes, 3)
	for _, v := range votes {
		assert.Equal(t, "go with option A", v.Recommendation)
		assert.False(t, v.Dissent)
	}
}

func TestCollectVotesSkipsFailedCalls(t *testing.T) {
	b, err := llmbroker.New(llmbroker.Config{
		Fast:       &fakeClient{model: "fast", err: assert.AnError},
		Strong:     &fakeClient{model: "strong"},
		MaxRetries: 1,
	})
	require.NoError(t, err)
	c := New(b)
	votes := c.CollectVotes(context.Background(), "sp1", "transcript", testVoters(t))
	assert.Empty(t, votes)
}

func TestMarkDissentFlagsMinority(t *testing.T) {
	votes := []types.Vote{
		{PersonaID: "a", Recommendation: "Option A"},
		{PersonaID: "b", Recommendation: "option a"},
		{PersonaID: "c", Recommendation: "Option B"},
	}
	markDissent(votes)
	assert.False(t, votes[0].Dissent)
	assert.False(t, votes[1].Dissent)
	assert.True(t, votes[2].Dissent)
}

func TestCalibratePullsOutliersTowardMean(t *testing.T) {
	votes := []types.Vote{
		{PersonaID: "a", Confidence: 0.9},
		{PersonaID: "b", Confidence: 0.9},
		{PersonaID: "c", Confidence: 0.1},
	}
	calibrated := Calibrate(votes)
	assert.Less(t, calibrated[2].Confidence, 0.5)
	assert.Greater(t, calibrated[2].Confidence, 0.1)
}

func TestTallyPicksPluralityWithMargin(t *testing.T) {
	votes := []types.Vote{
		{PersonaID: "a", Recommendation: "A", Confidence: 0.9},
		{PersonaID: "b", Recommendation: "A", Confidence: 0.8},
		{PersonaID: "c", Recommendation: "B", Confidence: 0.5},
	}
	rec, confidence := Tally(votes)
	assert.Equal(t, "A", rec)
	assert.Greater(t, confidence, 0.5)
}

func TestTallyOnEmptyVotesReturnsNeutralConfidence(t *testing.T) {
	rec, confidence := Tally(nil)
	assert.Empty(t, rec)
	assert.Equal(t, 0.5, confidence)
}

func TestSynthesizeFallsBackToTallyOnlyOnRepeatedFailure(t *testing.T) {
	b, err := llmbroker.New(llmbroker.Config{
		Fast:       &fakeClient{model: "fast"},
		Strong:     &fakeClient{model: "strong", err: assert.AnError},
		MaxRetries: 1,
	})
	require.NoError(t, err)
	c := New(b)

	votes := []types.Vote{{PersonaID: "a", Recommendation: "A", Confidence: 0.7}}
	result, err := c.Synthesize(context.Background(), "sp1", 4, votes, "")
	require.NoError(t, err)
	assert.Contains(t, result.Summary, "Plurality recommendation")
	assert.Equal(t, "A", result.Recommendation)
}

func TestMetaSynthesizeRequiresAtLeastTwoResults(t *testing.T) {
	c := newTestCollector(t, "x", "combined recommendation")
	_, err := c.MetaSynthesize(context.Background(), "pick a market", []*types.SubProblemResult{
		{SubProblemID: "sp1"},
	})
	assert.Error(t, err)
}

func TestMetaSynthesizeCombinesResults(t *testing.T) {
	c := newTestCollector(t, "x", "combined recommendation")
	out, err := c.MetaSynthesize(context.Background(), "pick a market", []*types.SubProblemResult{
		{SubProblemID: "sp1", Recommendation: "A", Confidence: 0.8},
		{SubProblemID: "sp2", Recommendation: "B", Confidence: 0.6},
	})
	require.NoError(t, err)
	assert.Equal(t, "combined recommendation", out)
}
