// Package researcher makes a bounded, single-shot research call on behalf
// of a sub-problem's deliberation (spec §4.13), returning structured
// findings that are appended to the transcript as a system contribution
// rather than a persona turn.
package researcher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"boardofone/internal/llmbroker"
)

// Findings is the structured result of one research call.
type Findings struct {
	Sources      []string `json:"sources"`
	KeyFindings  []string `json:"key_findings"`
	Implications []string `json:"implications"`
}

// DefaultCallLimit is the hard per-sub-problem call limit (spec §4.13).
const DefaultCallLimit = 2

// Researcher performs bounded research calls for a single sub-problem.
// A fresh Researcher should be constructed per sub-problem so CallLimit
// tracking doesn't leak across sub-problems.
type Researcher struct {
	broker    *llmbroker.Broker
	callLimit int
	calls     int
}

// New returns a Researcher bounded to callLimit calls (DefaultCallLimit if
// callLimit <= 0).
func New(broker *llmbroker.Broker, callLimit int) *Researcher {
	if callLimit <= 0 {
		callLimit = DefaultCallLimit
	}
	return &Researcher{broker: broker, callLimit: callLimit}
}

// CallsRemaining reports how many research calls this sub-problem has left.
func (r *Researcher) CallsRemaining() int {
	remaining := r.callLimit - r.calls
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Research answers query with a structured findings block. Failure is
// non-fatal: callers should log the error and continue the deliberation
// without the findings (spec §4.13). A call beyond the limit returns an
// error without dispatching to the broker.
func (r *Researcher) Research(ctx context.Context, query string) (*Findings, error) {
	if r.calls >= r.callLimit {
		return nil, fmt.Errorf("researcher: call limit (%d) reached for this sub-problem", r.callLimit)
	}
	r.calls++

	resp, _, err := r.broker.Dispatch(ctx, llmbroker.TierFast, llmbroker.Request{
		Messages: []llmbroker.Message{{
			Role:    llmbroker.RoleUser,
			Content: fmt.Sprintf("Research query: %s\n\nReturn sources, key findings, and implications for the deliberation.", query),
		}},
		Schema: findingsSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("researcher: call failed: %w", err)
	}

	var findings Findings
	if err := json.Unmarshal([]byte(resp.Content), &findings); err != nil {
		return nil, fmt.Errorf("researcher: malformed findings output: %w", err)
	}
	return &findings, nil
}

var findingsSchema = mustFindingsSchema()

func mustFindingsSchema() *llmbroker.Schema {
	strArray := &jsonschema.Schema{Type: "array", Items: &jsonschema.Schema{Type: "string"}}
	raw := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"sources":      strArray,
			"key_findings": strArray,
			"implications": strArray,
		},
		Required: []string{"sources", "key_findings", "implications"},
	}
	s, err := llmbroker.NewSchema(raw)
	if err != nil {
		panic(fmt.Sprintf("researcher: invalid built-in schema: %v", err))
	}
	return s
}
