package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/weave/pkg/schema"
)

func TestExecRunnerRoundtrip(t *testing.T) {
	r := &ExecRunner{Command: []string{"cat"}}

	out, err := r.Run(context.Background(), "hello runner", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello runner", out)
}

func TestExecRunnerEnvHints(t *testing.T) {
	r := &ExecRunner{Command: []string{"sh", "-c", "printf '%s|%s' \"$WEAVE_MODEL\" \"$WEAVE_TOOLS\""}}

	out, err := r.Run(context.Background(), "", "fast", []string{"search", "fetch"})
	require.NoError(t, err)
	assert.Equal(t, "fast|search,fetch", out)
}

func TestExecRunnerFailureCarriesStderr(t *testing.T) {
	r := &ExecRunner{Command: []string{"sh", "-c", "echo boom >&2; exit 1"}}

	_, err := r.Run(context.Background(), "", "", nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeHandlerFailed, schema.CodeOf(err))
	assert.Contains(t, err.Error(), "boom")
}

func TestExecRunnerUnconfigured(t *testing.T) {
	r := &ExecRunner{}

	_, err := r.Run(context.Background(), "prompt", "", nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeExecution, schema.CodeOf(err))
}

func TestTerminalPrompterReview(t *testing.T) {
	var out bytes.Buffer
	p := &TerminalPrompter{In: strings.NewReader("too long\n"), Out: &out}

	answer, err := p.Prompt(context.Background(), "review", map[string]string{
		"output":  "the draft",
		"message": "check tone",
	})
	require.NoError(t, err)
	require.NotNil(t, answer)
	assert.Equal(t, "too long", *answer)
	assert.Contains(t, out.String(), "the draft")
	assert.Contains(t, out.String(), "check tone")
}

func TestTerminalPrompterEOFDismisses(t *testing.T) {
	var out bytes.Buffer
	p := &TerminalPrompter{In: strings.NewReader(""), Out: &out}

	answer, err := p.Prompt(context.Background(), "text", map[string]string{"message": "name"})
	require.NoError(t, err)
	assert.Nil(t, answer)
}

func TestTerminalPrompterEmptyLineIsAcceptance(t *testing.T) {
	var out bytes.Buffer
	p := &TerminalPrompter{In: strings.NewReader("\n"), Out: &out}

	answer, err := p.Prompt(context.Background(), "review", map[string]string{"output": "x"})
	require.NoError(t, err)
	require.NotNil(t, answer)
	assert.Equal(t, "", *answer)
}
