package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/weave/pkg/schema"
)

func newValidator(t *testing.T) *DocumentValidator {
	t.Helper()
	v, err := NewDocumentValidator()
	require.NoError(t, err)
	return v
}

func TestValidateSourceCleanDocument(t *testing.T) {
	v := newValidator(t)
	result := v.ValidateSource(`[
		{"id": "v1", "type": "variable", "name": "n", "value": 3},
		{"id": "l1", "type": "log", "message": "n is {{n}}"}
	]`, "")
	assert.True(t, result.Valid())
	assert.Empty(t, result.Warnings)
}

func TestValidateSourceNoBlock(t *testing.T) {
	v := newValidator(t)
	result := v.ValidateSource("just prose, no workflow here", "")
	require.False(t, result.Valid())
	assert.Equal(t, CodeParseFailed, result.Errors[0].Code)
}

func TestValidateSourceUnknownTypeWarns(t *testing.T) {
	v := newValidator(t)
	result := v.ValidateSource(`[
		{"id": "l1", "type": "log", "message": "hi"},
		{"id": "x1", "type": "hologram", "message": "future"}
	]`, "")
	assert.True(t, result.Valid())
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, CodeUnknownType, result.Warnings[0].Code)
}

func TestValidateSourceDanglingSuccessor(t *testing.T) {
	v := newValidator(t)
	result := v.ValidateSource(`[
		{"id": "l1", "type": "log", "message": "hi", "next": "ghost"}
	]`, "")
	require.False(t, result.Valid())
	assert.Equal(t, CodeParseFailed, result.Errors[0].Code)
}

func TestValidateSourceBackEdgeToNonWhile(t *testing.T) {
	v := newValidator(t)
	result := v.ValidateSource(`[
		{"id": "a", "type": "log", "message": "one"},
		{"id": "b", "type": "log", "message": "two", "next": "a"}
	]`, "")
	require.False(t, result.Valid())
}

func TestValidateSourceUnreachableWarns(t *testing.T) {
	v := newValidator(t)
	result := v.ValidateSource(`[
		{"id": "a", "type": "log", "message": "one", "next": "end"},
		{"id": "b", "type": "log", "message": "orphan", "next": "end"}
	]`, "")
	assert.True(t, result.Valid())
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, CodeUnreachableNode, result.Warnings[0].Code)
	assert.Contains(t, result.Warnings[0].Message, "b")
}

func TestValidateStepsRejectsMissingType(t *testing.T) {
	v := newValidator(t)
	result := v.ValidateSource(`[
		{"id": "a"}
	]`, "")
	require.False(t, result.Valid())
}

func TestValidateInputAgainstSchema(t *testing.T) {
	v := newValidator(t)
	schemaBytes := []byte(`{
		"type": "object",
		"required": ["topic"],
		"properties": {"topic": {"type": "string"}}
	}`)

	require.NoError(t, v.ValidateInput(map[string]any{"topic": "caching"}, schemaBytes))

	err := v.ValidateInput(map[string]any{}, schemaBytes)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
}

func TestValidateInputNoSchemaIsNoop(t *testing.T) {
	v := newValidator(t)
	require.NoError(t, v.ValidateInput(nil, nil))
}
