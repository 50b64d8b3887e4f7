package handlers

import (
	"context"
	"encoding/json"

	"github.com/rendis/weave/internal/expressions"
	"github.com/rendis/weave/internal/graph"
	"github.com/rendis/weave/pkg/schema"
)

// TransformHandler runs a jq query over the JSON value of a variable and
// stores the result. Non-JSON variable values are passed as strings.
type TransformHandler struct {
	JQ *expressions.GoJQEngine
}

func (h *TransformHandler) Type() graph.NodeType { return graph.NodeTransform }

func (h *TransformHandler) Execute(ctx context.Context, node *graph.Node, ec *Context) (Outcome, error) {
	cfg := node.Config.(*graph.TransformConfig)

	raw, ok := ec.Variables[cfg.Input]
	if !ok {
		return Continue, schema.NewErrorf(schema.ErrCodeExecution, "transform input variable %q not set", cfg.Input).WithNode(node.ID)
	}

	input := raw
	if s, isStr := raw.(string); isStr {
		var parsed any
		if err := json.Unmarshal([]byte(s), &parsed); err == nil {
			input = parsed
		}
	}

	out, err := h.JQ.Evaluate(ctx, ec.Resolve(cfg.Query), input)
	if err != nil {
		return Continue, schema.NewErrorf(schema.ErrCodeHandlerFailed, "jq query failed: %s", err.Error()).WithNode(node.ID).WithCause(err)
	}

	outVar := cfg.Output
	if outVar == "" {
		outVar = cfg.Input
	}
	ec.SetVar(outVar, out)
	ec.Logf(node, schema.LogStatusSuccess, "transformed %s into %s", cfg.Input, outVar)
	return Continue, nil
}
