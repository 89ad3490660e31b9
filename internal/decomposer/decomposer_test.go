package decomposer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardofone/internal/complexity"
	"boardofone/internal/llmbroker"
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

func newTestBroker(t *testing.T, strongContent string) *llmbroker.Broker {
	t.Helper()
	b, err := llmbroker.New(llmbroker.Config{
		Fast:          &fakeClient{model: "fast"},
		FastPricing:   llmbroker.Pricing{},
		Strong:        &fakeClient{model: "strong", resp: &llmbroker.Response{Content: strongContent}},
		StrongPricing: llmbroker.Pricing{},
		MaxRetries:    1,
	})
	require.NoError(t, err)
	return b
}

func TestDecomposeAtomicForLowComplexity(t *testing.T) {
	d := New(newTestBroker(t, ""))
	problem := &types.Problem{ID: "p1", Statement: "Postgres or MySQL?"}

	plan, err := d.Decompose(context.Background(), problem, complexity.Assessment{Overall: 0.16})
	require.NoError(t, err)
	assert.Len(t, plan.SubProblems, 1)
}

func TestDecomposeBuildsDependencyOrder(t *testing.T) {
	content := `{"sub_problems":[
		{"goal":"Assess EU market","rationale":"first","expertise_tags":["market"]},
		{"goal":"Assess GDPR/product fit","rationale":"second","expertise_tags":["legal"],"depends_on_indices":[0]},
		{"goal":"Assess finance","rationale":"third","expertise_tags":["finance"],"depends_on_indices":[0,1]}
	]}`
	d := New(newTestBroker(t, content))
	problem := &types.Problem{ID: "p2", Statement: "Should we expand to the EU?"}

	plan, err := d.Decompose(context.Background(), problem, complexity.Assessment{Overall: 0.55})
	require.NoError(t, err)
	require.Len(t, plan.SubProblems, 3)

	for i, sp := range plan.SubProblems {
		assert.Equal(t, i, sp.Index)
	}
	assert.Empty(t, plan.SubProblems[0].DependsOn)
	assert.Contains(t, plan.SubProblems[1].DependsOn, plan.SubProblems[0].ID)
}

func TestDecomposeFallsBackAtomicOnMalformedOutput(t *testing.T) {
	d := New(newTestBroker(t, "not json"))
	problem := &types.Problem{ID: "p3", Statement: "Should we pivot?"}

	plan, err := d.Decompose(context.Background(), problem, complexity.Assessment{Overall: 0.5})
	require.NoError(t, err)
	assert.Len(t, plan.SubProblems, 1)
}

func TestDecomposeFallsBackAtomicOnCycle(t *testing.T) {
	content := `{"sub_problems":[
		{"goal":"A","rationale":"r","depends_on_indices":[1]},
		{"goal":"B","rationale":"r","depends_on_indices":[0]}
	]}`
	d := New(newTestBroker(t, content))
	problem := &types.Problem{ID: "p4", Statement: "Cyclic test"}

	plan, err := d.Decompose(context.Background(), problem, complexity.Assessment{Overall: 0.5})
	require.NoError(t, err)
	assert.Len(t, plan.SubProblems, 1)
}
