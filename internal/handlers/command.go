package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/rendis/weave/internal/graph"
	"github.com/rendis/weave/pkg/schema"
)

const defaultCommandOutput = "response"

// CommandHandler sends a resolved prompt to the command collaborator and
// stores the response. When a one-shot regenerate request targets this
// node, the prompt is augmented with the previous output and the review
// feedback before the call.
type CommandHandler struct {
	Runner CommandRunner
}

func (h *CommandHandler) Type() graph.NodeType { return graph.NodeCommand }

func (h *CommandHandler) Execute(ctx context.Context, node *graph.Node, ec *Context) (Outcome, error) {
	if h.Runner == nil {
		return Continue, schema.NewError(schema.ErrCodeExecution, "no command runner configured").WithNode(node.ID)
	}
	cfg := node.Config.(*graph.CommandConfig)

	prompt := ec.Resolve(cfg.Prompt)
	if cfg.Attach != "" {
		if v, ok := ec.Variables[cfg.Attach]; ok {
			prompt = prompt + "\n\n" + stringify(v)
		}
	}

	if regen := ec.Regenerate; regen != nil && regen.CommandNodeID == node.ID {
		prompt = augmentPrompt(prompt, regen)
		ec.Regenerate = nil
		ec.Logf(node, schema.LogStatusInfo, "regenerating with feedback")
	}

	ec.Logf(node, schema.LogStatusInfo, "sending prompt")
	output, err := h.Runner.Run(ctx, prompt, cfg.Model, cfg.Tools)
	if err != nil {
		return Continue, schema.NewErrorf(schema.ErrCodeHandlerFailed, "command failed: %s", err.Error()).WithNode(node.ID).WithCause(err)
	}

	outVar := cfg.Output
	if outVar == "" {
		outVar = defaultCommandOutput
	}
	ec.SetVar(outVar, output)
	ec.LastCommand = &LastCommandInfo{NodeID: node.ID, Prompt: prompt, Output: output}

	ec.Append(schema.ExecutionLog{
		NodeID:   node.ID,
		NodeType: string(node.Type),
		Message:  "command completed",
		Status:   schema.LogStatusSuccess,
		Input:    prompt,
		Output:   output,
	})
	return Continue, nil
}

// augmentPrompt rebuilds the prompt for a regeneration attempt.
func augmentPrompt(prompt string, regen *RegenerateInfo) string {
	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\nYour previous response was:\n")
	b.WriteString(regen.PreviousOutput)
	if regen.Feedback != "" {
		b.WriteString("\n\nThe user asked for changes:\n")
		b.WriteString(regen.Feedback)
	}
	b.WriteString("\n\nProduce a revised response.")
	return b.String()
}

// ReviewHandler shows the last command output to the user and either
// continues or requests a regeneration with the user's feedback.
type ReviewHandler struct {
	Prompter UserPrompter
}

func (h *ReviewHandler) Type() graph.NodeType { return graph.NodeReview }

func (h *ReviewHandler) Execute(ctx context.Context, node *graph.Node, ec *Context) (Outcome, error) {
	if h.Prompter == nil {
		return Continue, schema.NewError(schema.ErrCodeExecution, "no user prompter configured").WithNode(node.ID)
	}
	if ec.LastCommand == nil {
		return Continue, schema.NewError(schema.ErrCodeExecution, "review node has no preceding command output").WithNode(node.ID)
	}
	cfg := node.Config.(*graph.ReviewConfig)

	params := map[string]string{
		"message": ec.Resolve(cfg.Message),
		"output":  ec.LastCommand.Output,
	}
	answer, err := h.Prompter.Prompt(ctx, "review", params)
	if err != nil {
		return Continue, schema.NewErrorf(schema.ErrCodeHandlerFailed, "review prompt failed: %s", err.Error()).WithNode(node.ID).WithCause(err)
	}
	if answer == nil {
		return Continue, schema.NewError(schema.ErrCodeCancelled, "review dismissed by user").WithNode(node.ID)
	}

	feedback := strings.TrimSpace(*answer)
	if feedback == "" {
		ec.Log(node, schema.LogStatusSuccess, "output accepted")
		return Continue, nil
	}

	ec.Logf(node, schema.LogStatusInfo, "change requested: %s", feedback)
	return Outcome{Regenerate: &RegenerateRequest{Feedback: feedback}}, nil
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
