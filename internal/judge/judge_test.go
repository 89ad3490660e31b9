package judge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardofone/internal/llmbroker"
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

func newTestJudge(t *testing.T, content string, callErr error) *Judge {
	t.Helper()
	b, err := llmbroker.New(llmbroker.Config{
		Fast:       &fakeClient{model: "fast", resp: &llmbroker.Response{Content: content}, err: callErr},
		Strong:     &fakeClient{model: "strong"},
		MaxRetries: 1,
	})
	require.NoError(t, err)
	return New(b)
}

func TestScoreAveragesCoverage(t *testing.T) {
	content := `{"coverage":{
		"problem_clarity":"deep","objectives":"deep","options_alternatives":"shallow",
		"risks_failure_modes":"shallow","constraints":"none","stakeholders":"none",
		"dependencies_unknowns":"shallow"
	}}`
	j := newTestJudge(t, content, nil)

	result, err := j.Score(context.Background(), "goal", "transcript")
	require.NoError(t, err)
	assert.InDelta(t, (1+1+0.5+0.5+0+0+0.5)/7.0, result.Exploration, 1e-9)
	assert.Contains(t, result.MissingCriticalAspects, AspectConstraints)
	assert.False(t, result.Malformed)
}

func TestScoreDefaultsOnMalformedOutput(t *testing.T) {
	j := newTestJudge(t, "not json", nil)

	result, err := j.Score(context.Background(), "goal", "transcript")
	require.NoError(t, err)
	assert.Equal(t, 0.5, result.Exploration)
	assert.True(t, result.Malformed)
}

func TestScoreDefaultsOnBrokerFailure(t *testing.T) {
	j := newTestJudge(t, "", assert.AnError)
	j.broker = newFailingBroker(t)

	result, err := j.Score(context.Background(), "goal", "transcript")
	require.NoError(t, err)
	assert.Equal(t, 0.5, result.Exploration)
	assert.True(t, result.Malformed)
}

func newFailingBroker(t *testing.T) *llmbroker.Broker {
	t.Helper()
	b, err := llmbroker.New(llmbroker.Config{
		Fast:       &fakeClient{model: "fast", err: assert.AnError},
		Strong:     &fakeClient{model: "strong"},
		MaxRetries: 1,
	})
	require.NoError(t, err)
	return b
}
