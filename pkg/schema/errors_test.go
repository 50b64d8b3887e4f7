package schema

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeaveError_Message(t *testing.T) {
	err := NewError(ErrCodeHandlerFailed, "request refused")
	assert.Equal(t, "[HANDLER_FAILED] request refused", err.Error())

	err = NewErrorf(ErrCodeIterationLimit, "limit of %d exceeded", 1000).WithNode("loop-1")
	assert.Equal(t, "[ITERATION_LIMIT] node loop-1: limit of 1000 exceeded", err.Error())
}

func TestWeaveError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewError(ErrCodeTool, "tool call failed").WithCause(cause)

	require.ErrorIs(t, err, cause)
}

func TestCodeOf(t *testing.T) {
	err := NewError(ErrCodeCancelled, "stopped")
	assert.Equal(t, ErrCodeCancelled, CodeOf(err))
	assert.Equal(t, ErrCodeCancelled, CodeOf(fmt.Errorf("run: %w", err)))
	assert.Empty(t, CodeOf(errors.New("plain")))
	assert.Empty(t, CodeOf(nil))
}

func TestStepRecord_Unmarshal(t *testing.T) {
	data := []byte(`{
		"id": "fetch",
		"type": "http_request",
		"next": "store",
		"url": "https://example.com",
		"timeout": 30,
		"verbose": true,
		"headers": {"Accept": "application/json"}
	}`)

	var rec StepRecord
	require.NoError(t, rec.UnmarshalJSON(data))

	assert.Equal(t, "fetch", rec.ID)
	assert.Equal(t, "http_request", rec.Type)
	assert.Equal(t, "store", rec.Next)
	assert.Equal(t, "https://example.com", rec.Props["url"])
	assert.Equal(t, "30", rec.Props["timeout"])
	assert.Equal(t, "true", rec.Props["verbose"])
	assert.JSONEq(t, `{"Accept":"application/json"}`, rec.Props["headers"])
	assert.NotContains(t, rec.Props, "id")
	assert.NotContains(t, rec.Props, "next")
}

func TestStepRecord_UnmarshalBranchFields(t *testing.T) {
	data := []byte(`{"id":"check","type":"if","condition":"{{n}} > 0","trueNext":"yes","falseNext":"end"}`)

	var rec StepRecord
	require.NoError(t, rec.UnmarshalJSON(data))

	assert.Equal(t, "yes", rec.TrueNext)
	assert.Equal(t, EndSentinel, rec.FalseNext)
	assert.Equal(t, "{{n}} > 0", rec.Props["condition"])
}

func TestValidationResult(t *testing.T) {
	var res ValidationResult
	assert.True(t, res.Valid())
	require.NoError(t, res.ToError())

	res.AddWarning("nodes[2]", "unknown_type", "record skipped")
	assert.True(t, res.Valid())

	res.AddError("nodes[0].next", "dangling_ref", "unknown node id")
	assert.False(t, res.Valid())

	err := res.ToError()
	require.Error(t, err)
	assert.Equal(t, ErrCodeValidation, CodeOf(err))
}
