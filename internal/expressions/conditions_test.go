package expressions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/weave/pkg/schema"
)

func newConditions(t *testing.T) *Conditions {
	t.Helper()
	c, err := NewConditions()
	require.NoError(t, err)
	return c
}

func TestConditions_SimpleLanguage(t *testing.T) {
	c := newConditions(t)
	vars := map[string]any{"n": float64(5)}

	got, err := c.Evaluate(context.Background(), "", "{{n}} <= 10", vars)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = c.Evaluate(context.Background(), "simple", "{{n}} > 10", vars)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestConditions_ExprLanguage(t *testing.T) {
	c := newConditions(t)
	vars := map[string]any{"n": float64(5), "status": "ok"}

	got, err := c.Evaluate(context.Background(), "expr", `n > 2 && status == "ok"`, vars)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestConditions_CELLanguage(t *testing.T) {
	c := newConditions(t)
	vars := map[string]any{"n": float64(5)}

	got, err := c.Evaluate(context.Background(), "cel", "vars.n < 10.0", vars)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestConditions_NonBoolResultFails(t *testing.T) {
	c := newConditions(t)

	_, err := c.Evaluate(context.Background(), "expr", "1 + 1", nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeExecution, schema.CodeOf(err))
}

func TestConditions_UnknownLanguageFails(t *testing.T) {
	c := newConditions(t)

	_, err := c.Evaluate(context.Background(), "prolog", "true", nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
}

func TestGoJQEngine_Transform(t *testing.T) {
	e := NewGoJQEngine()

	out, err := e.Evaluate(context.Background(), ".items | length",
		map[string]any{"items": []any{1, 2, 3}})
	require.NoError(t, err)
	assert.EqualValues(t, 3, out)
}

func TestGoJQEngine_MultipleOutputsCollected(t *testing.T) {
	e := NewGoJQEngine()

	out, err := e.Evaluate(context.Background(), ".items[]",
		map[string]any{"items": []any{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, out)
}

func TestGoJQEngine_ParseErrorFails(t *testing.T) {
	e := NewGoJQEngine()

	_, err := e.Evaluate(context.Background(), ".items[", nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
}
