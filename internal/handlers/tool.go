package handlers

import (
	"context"
	"encoding/json"

	"github.com/rendis/weave/internal/graph"
	"github.com/rendis/weave/pkg/schema"
)

const defaultToolOutput = "result"

// MCPToolHandler calls a named tool on a configured MCP server and stores
// the text content of the result.
type MCPToolHandler struct {
	Caller ToolCaller
}

func (h *MCPToolHandler) Type() graph.NodeType { return graph.NodeMCPTool }

func (h *MCPToolHandler) Execute(ctx context.Context, node *graph.Node, ec *Context) (Outcome, error) {
	if h.Caller == nil {
		return Continue, schema.NewError(schema.ErrCodeExecution, "no tool caller configured").WithNode(node.ID)
	}
	cfg := node.Config.(*graph.MCPToolConfig)

	args := map[string]any{}
	if cfg.Args != "" {
		resolved := ec.Resolve(cfg.Args)
		if err := json.Unmarshal([]byte(resolved), &args); err != nil {
			return Continue, schema.NewErrorf(schema.ErrCodeValidation, "tool args must be a JSON object: %s", err.Error()).WithNode(node.ID).WithCause(err)
		}
	}

	content, isError, err := h.Caller.Call(ctx, cfg.Server, cfg.Tool, args)
	if err != nil {
		return Continue, schema.NewErrorf(schema.ErrCodeTool, "call %s/%s: %s", cfg.Server, cfg.Tool, err.Error()).WithNode(node.ID).WithCause(err)
	}
	if isError {
		return Continue, schema.NewErrorf(schema.ErrCodeTool, "tool %s/%s reported an error: %s", cfg.Server, cfg.Tool, content).WithNode(node.ID)
	}

	outVar := cfg.Output
	if outVar == "" {
		outVar = defaultToolOutput
	}
	ec.SetVar(outVar, content)
	ec.Logf(node, schema.LogStatusSuccess, "tool %s/%s completed", cfg.Server, cfg.Tool)
	return Continue, nil
}
