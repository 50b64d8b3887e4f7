package handlers

import (
	"context"

	"github.com/rendis/weave/internal/graph"
	"github.com/rendis/weave/pkg/schema"
)

const defaultPromptOutput = "answer"

// UserPromptHandler asks the user for input and stores the answer. A nil
// answer means the user dismissed the prompt and the execution fails.
type UserPromptHandler struct {
	Prompter UserPrompter
}

func (h *UserPromptHandler) Type() graph.NodeType { return graph.NodeUserPrompt }

func (h *UserPromptHandler) Execute(ctx context.Context, node *graph.Node, ec *Context) (Outcome, error) {
	if h.Prompter == nil {
		return Continue, schema.NewError(schema.ErrCodeExecution, "no user prompter configured").WithNode(node.ID)
	}
	cfg := node.Config.(*graph.UserPromptConfig)

	kind := cfg.Kind
	if kind == "" {
		kind = "text"
	}
	params := map[string]string{
		"message": ec.Resolve(cfg.Message),
	}
	if cfg.Options != "" {
		params["options"] = ec.Resolve(cfg.Options)
	}

	answer, err := h.Prompter.Prompt(ctx, kind, params)
	if err != nil {
		return Continue, schema.NewErrorf(schema.ErrCodeHandlerFailed, "user prompt failed: %s", err.Error()).WithNode(node.ID).WithCause(err)
	}
	if answer == nil {
		return Continue, schema.NewError(schema.ErrCodeCancelled, "prompt dismissed by user").WithNode(node.ID)
	}

	outVar := cfg.Output
	if outVar == "" {
		outVar = defaultPromptOutput
	}
	ec.SetVar(outVar, *answer)
	ec.Logf(node, schema.LogStatusSuccess, "received user input")
	return Continue, nil
}
