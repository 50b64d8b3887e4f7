package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rendis/weave/internal/graph"
	"github.com/rendis/weave/pkg/schema"
)

// SubWorkflowRunner executes a workflow definition by reference with an
// isolated seed variable set and returns the child's final variables. The
// interpreter binds itself here when it builds the handler set.
type SubWorkflowRunner func(ctx context.Context, ref string, seed map[string]any, parent *Context, nodeID string) (map[string]any, error)

// WorkflowHandler runs a sub-workflow with explicit variable boundaries.
// The child starts from only the input mapping, and only the output
// mapping (or a prefixed copy-all) flows back.
type WorkflowHandler struct {
	Runner SubWorkflowRunner
}

func (h *WorkflowHandler) Type() graph.NodeType { return graph.NodeWorkflow }

func (h *WorkflowHandler) Execute(ctx context.Context, node *graph.Node, ec *Context) (Outcome, error) {
	if h.Runner == nil {
		return Continue, schema.NewError(schema.ErrCodeExecution, "no sub-workflow runner configured").WithNode(node.ID)
	}
	cfg := node.Config.(*graph.WorkflowConfig)

	inputMap, err := ParseMapping(cfg.Input)
	if err != nil {
		return Continue, schema.NewErrorf(schema.ErrCodeValidation, "invalid input mapping: %s", err.Error()).WithNode(node.ID).WithCause(err)
	}
	outputMap, err := ParseMapping(cfg.Output)
	if err != nil {
		return Continue, schema.NewErrorf(schema.ErrCodeValidation, "invalid output mapping: %s", err.Error()).WithNode(node.ID).WithCause(err)
	}

	seed := make(map[string]any, len(inputMap))
	for childVar, source := range inputMap {
		// A source naming a parent variable copies its value; anything
		// else is treated as a template over the parent variables.
		if v, ok := ec.Variables[source]; ok {
			seed[childVar] = v
			continue
		}
		seed[childVar] = ec.Resolve(source)
	}

	ec.Logf(node, schema.LogStatusInfo, "starting sub-workflow %s", cfg.Path)
	childVars, err := h.Runner(ctx, cfg.Path, seed, ec, node.ID)
	if err != nil {
		return Continue, schema.NewErrorf(schema.ErrCodeExecution, "sub-workflow %s failed: %s", cfg.Path, err.Error()).WithNode(node.ID).WithCause(err)
	}

	if len(outputMap) > 0 {
		for parentVar, childVar := range outputMap {
			if v, ok := childVars[childVar]; ok {
				ec.SetVar(parentVar, v)
			}
		}
	} else {
		for name, v := range childVars {
			ec.SetVar(cfg.Prefix+name, v)
		}
	}

	ec.Logf(node, schema.LogStatusSuccess, "sub-workflow %s completed", cfg.Path)
	return Continue, nil
}

// ParseMapping parses a variable mapping given either as a JSON object or
// as comma-separated key=value pairs. An empty spec is an empty mapping.
func ParseMapping(spec string) (map[string]string, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return map[string]string{}, nil
	}

	if strings.HasPrefix(spec, "{") {
		var raw map[string]any
		if err := json.Unmarshal([]byte(spec), &raw); err != nil {
			return nil, fmt.Errorf("parse mapping object: %w", err)
		}
		out := make(map[string]string, len(raw))
		for k, v := range raw {
			if s, ok := v.(string); ok {
				out[k] = s
			} else {
				out[k] = fmt.Sprintf("%v", v)
			}
		}
		return out, nil
	}

	out := map[string]string{}
	for _, pair := range strings.Split(spec, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("mapping entry %q is not key=value", pair)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("mapping entry %q has an empty key", pair)
		}
		out[key] = strings.TrimSpace(value)
	}
	return out, nil
}
