package llmbroker

import (
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func objectSchema(properties map[string]string) *jsonschema.Schema {
	props := make(map[string]*jsonschema.Schema, len(properties))
	required := make([]string, 0, len(properties))
	for name, typ := range properties {
		props[name] = &jsonschema.Schema{Type: typ}
		required = append(required, name)
	}
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

func TestSchemaValidateAcceptsConformingJSON(t *testing.T) {
	schema, err := NewSchema(objectSchema(map[string]string{"score": "number"}))
	require.NoError(t, err)

	assert.NoError(t, schema.Validate(`{"score": 0.8}`))
}

func TestSchemaValidateRejectsMalformedJSON(t *testing.T) {
	schema, err := NewSchema(objectSchema(map[string]string{"score": "number"}))
	require.NoError(t, err)

	assert.Error(t, schema.Validate("not json at all"))
}

func TestSchemaValidateRejectsMissingRequiredField(t *testing.T) {
	schema, err := NewSchema(objectSchema(map[string]string{"score": "number"}))
	require.NoError(t, err)

	assert.Error(t, schema.Validate(`{"other": 1}`))
}
