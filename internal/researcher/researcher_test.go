package researcher

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

func newTestResearcher(t *testing.T, content string, limit int) *Researcher {
	t.Helper()
	b, err := llmbroker.New(llmbroker.Config{
		Fast:       &fakeClient{model: "fast", resp: &llmbroker.Response{Content: content}},
		Strong:     &fakeClient{model: "strong"},
		MaxRetries: 1,
	})
	require.NoError(t, err)
	return New(b, limit)
}

func TestResearchReturnsParsedFindings(t *testing.T) {
	content := `{"sources":["source A"],"key_findings":["finding 1"],"implications":["implies X"]}`
	r := newTestResearcher(t, content, 2)

	findings, err := r.Research(context.Background(), "EU GDPR requirements for SaaS")
	require.NoError(t, err)
	assert.Equal(t, []string{"source A"}, findings.Sources)
	assert.Equal(t, 1, r.CallsRemaining())
}

func TestResearchEnforcesCallLimit(t *testing.T) {
	content := `{"sources":[],"key_findings":[],"implications":[]}`
	r := newTestResearcher(t, content, 1)

	_, err := r.Research(context.Background(), "q1")
	require.NoError(t, err)
	assert.Equal(t, 0, r.CallsRemaining())

	_, err = r.Research(context.Background(), "q2")
	assert.Error(t, err)
}

func TestResearchReturnsErrorOnMalformedOutput(t *testing.T) {
	r := newTestResearcher(t, "not json", 2)
	_, err := r.Research(context.Background(), "q1")
	assert.Error(t, err)
}
