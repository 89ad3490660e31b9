package llmbroker

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Schema wraps a JSON Schema used to constrain and then validate a
// provider's structured-output response (spec §4.2's "judge emits scores
// as a typed object, not free text" requirement). Resolution happens once,
// at construction, so repeated Validate calls on a persona/judge call site
// don't re-walk the schema tree on every turn.
type Schema struct {
	raw      *jsonschema.Schema
	resolved *jsonschema.Resolved
}

// NewSchema resolves a JSON Schema definition for reuse across calls.
func NewSchema(s *jsonschema.Schema) (*Schema, error) {
	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("llmbroker: resolve schema: %w", err)
	}
	return &Schema{raw: s, resolved: resolved}, nil
}

// Raw returns the underlying schema, for providers (e.g. OpenAI's
// structured-output mode) that need to send it as part of the request.
func (s *Schema) Raw() *jsonschema.Schema {
	return s.raw
}

// Validate parses content as JSON and checks it against the schema.
func (s *Schema) Validate(content string) error {
	var instance any
	if err := json.Unmarshal([]byte(content), &instance); err != nil {
		return fmt.Errorf("response is not valid JSON: %w", err)
	}
	if err := s.resolved.Validate(instance); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	return nil
}
