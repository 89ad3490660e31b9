package decomposer

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"boardofone/internal/llmbroker"
)

func decomposerSchema() *llmbroker.Schema {
	raw := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"sub_problems": {
				Type: "array",
				Items: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"goal":               {Type: "string"},
						"context":            {Type: "string"},
						"key_questions":      {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
						"risks":              {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
						"alternatives":       {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
						"expertise_tags":     {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
						"success_criteria":   {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
						"rationale":          {Type: "string"},
						"depends_on_indices": {Type: "array", Items: &jsonschema.Schema{Type: "integer"}},
					},
					Required: []string{"goal", "rationale"},
				},
			},
		},
		Required: []string{"sub_problems"},
	}
	s, err := llmbroker.NewSchema(raw)
	if err != nil {
		// Built from a literal above; a resolution failure here is a
		// programming error, not a runtime condition.
		panic(fmt.Sprintf("decomposer: invalid built-in schema: %v", err))
	}
	return s
}

type draftsEnvelope struct {
	SubProblems []Draft `json:"sub_problems"`
}

func parseDrafts(content string) ([]Draft, error) {
	var env draftsEnvelope
	if err := json.Unmarshal([]byte(content), &env); err != nil {
		return nil, fmt.Errorf("decomposer: malformed decomposition output: %w", err)
	}
	if len(env.SubProblems) == 0 {
		return nil, fmt.Errorf("decomposer: decomposition output has no sub-problems")
	}
	return env.SubProblems, nil
}
