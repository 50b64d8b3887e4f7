package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/weave/internal/graph"
	"github.com/rendis/weave/pkg/schema"
)

type fakeRunner struct {
	prompts []string
	output  string
	err     error
}

func (f *fakeRunner) Run(ctx context.Context, prompt, model string, tools []string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.output, f.err
}

type fakePrompter struct {
	answers []*string
	kinds   []string
	err     error
}

func (f *fakePrompter) Prompt(ctx context.Context, kind string, params map[string]string) (*string, error) {
	f.kinds = append(f.kinds, kind)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.answers) == 0 {
		return nil, nil
	}
	a := f.answers[0]
	f.answers = f.answers[1:]
	return a, nil
}

func strPtr(s string) *string { return &s }

func commandNode(prompt, output string) *graph.Node {
	return &graph.Node{
		ID:     "cmd1",
		Type:   graph.NodeCommand,
		Config: &graph.CommandConfig{Prompt: prompt, Output: output},
	}
}

func TestCommandHandlerStoresOutput(t *testing.T) {
	runner := &fakeRunner{output: "summary text"}
	h := &CommandHandler{Runner: runner}
	ec := newTestContext(t)
	ec.SetVar("topic", "storage")

	out, err := h.Execute(context.Background(), commandNode("summarize {{topic}}", "summary"), ec)
	require.NoError(t, err)
	assert.Equal(t, Continue, out)
	assert.Equal(t, "summary text", ec.Variables["summary"])

	require.Len(t, runner.prompts, 1)
	assert.Equal(t, "summarize storage", runner.prompts[0])

	require.NotNil(t, ec.LastCommand)
	assert.Equal(t, "cmd1", ec.LastCommand.NodeID)
	assert.Equal(t, "summary text", ec.LastCommand.Output)
}

func TestCommandHandlerDefaultOutputVariable(t *testing.T) {
	h := &CommandHandler{Runner: &fakeRunner{output: "ok"}}
	ec := newTestContext(t)

	_, err := h.Execute(context.Background(), commandNode("do it", ""), ec)
	require.NoError(t, err)
	assert.Equal(t, "ok", ec.Variables["response"])
}

func TestCommandHandlerAugmentsOnRegenerate(t *testing.T) {
	runner := &fakeRunner{output: "second draft"}
	h := &CommandHandler{Runner: runner}
	ec := newTestContext(t)
	ec.Regenerate = &RegenerateInfo{
		CommandNodeID:  "cmd1",
		Feedback:       "make it shorter",
		PreviousOutput: "first draft",
	}

	_, err := h.Execute(context.Background(), commandNode("write a report", "report"), ec)
	require.NoError(t, err)

	require.Len(t, runner.prompts, 1)
	assert.Contains(t, runner.prompts[0], "write a report")
	assert.Contains(t, runner.prompts[0], "first draft")
	assert.Contains(t, runner.prompts[0], "make it shorter")
	assert.Nil(t, ec.Regenerate, "regenerate request is one-shot")
}

func TestCommandHandlerIgnoresRegenerateForOtherNode(t *testing.T) {
	runner := &fakeRunner{output: "out"}
	h := &CommandHandler{Runner: runner}
	ec := newTestContext(t)
	ec.Regenerate = &RegenerateInfo{CommandNodeID: "other", PreviousOutput: "x"}

	_, err := h.Execute(context.Background(), commandNode("plain prompt", ""), ec)
	require.NoError(t, err)
	assert.Equal(t, "plain prompt", runner.prompts[0])
	assert.NotNil(t, ec.Regenerate)
}

func TestCommandHandlerRunnerError(t *testing.T) {
	h := &CommandHandler{Runner: &fakeRunner{err: errors.New("model unavailable")}}
	ec := newTestContext(t)

	_, err := h.Execute(context.Background(), commandNode("prompt", ""), ec)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeHandlerFailed, schema.CodeOf(err))
}

func TestReviewHandlerAcceptContinues(t *testing.T) {
	h := &ReviewHandler{Prompter: &fakePrompter{answers: []*string{strPtr("")}}}
	ec := newTestContext(t)
	ec.LastCommand = &LastCommandInfo{NodeID: "cmd1", Output: "draft"}

	node := &graph.Node{ID: "rev1", Type: graph.NodeReview, Config: &graph.ReviewConfig{Message: "ok?"}}
	out, err := h.Execute(context.Background(), node, ec)
	require.NoError(t, err)
	assert.Nil(t, out.Regenerate)
}

func TestReviewHandlerFeedbackRequestsRegenerate(t *testing.T) {
	h := &ReviewHandler{Prompter: &fakePrompter{answers: []*string{strPtr("add a conclusion")}}}
	ec := newTestContext(t)
	ec.LastCommand = &LastCommandInfo{NodeID: "cmd1", Output: "draft"}

	node := &graph.Node{ID: "rev1", Type: graph.NodeReview, Config: &graph.ReviewConfig{}}
	out, err := h.Execute(context.Background(), node, ec)
	require.NoError(t, err)
	require.NotNil(t, out.Regenerate)
	assert.Equal(t, "add a conclusion", out.Regenerate.Feedback)
}

func TestReviewHandlerDismissalFails(t *testing.T) {
	h := &ReviewHandler{Prompter: &fakePrompter{}}
	ec := newTestContext(t)
	ec.LastCommand = &LastCommandInfo{NodeID: "cmd1", Output: "draft"}

	node := &graph.Node{ID: "rev1", Type: graph.NodeReview, Config: &graph.ReviewConfig{}}
	_, err := h.Execute(context.Background(), node, ec)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeCancelled, schema.CodeOf(err))
}

func TestReviewHandlerWithoutCommandFails(t *testing.T) {
	h := &ReviewHandler{Prompter: &fakePrompter{answers: []*string{strPtr("")}}}
	ec := newTestContext(t)

	node := &graph.Node{ID: "rev1", Type: graph.NodeReview, Config: &graph.ReviewConfig{}}
	_, err := h.Execute(context.Background(), node, ec)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeExecution, schema.CodeOf(err))
}
