package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rendis/weave/internal/history"
	"github.com/rendis/weave/pkg/schema"
)

// --- Tool definitions ---

func runTool() mcp.Tool {
	return mcp.NewTool("weave.run",
		mcp.WithDescription("Execute a workflow definition"),
		mcp.WithString("ref", mcp.Required(), mcp.Description("Definition reference, optionally with a block selector: path/to/doc.md#blockname")),
		mcp.WithObject("seed", mcp.Description("Initial variables for the execution")),
	)
}

func validateTool() mcp.Tool {
	return mcp.NewTool("weave.validate",
		mcp.WithDescription("Validate a workflow definition without executing it"),
		mcp.WithString("ref", mcp.Required(), mcp.Description("Definition reference, optionally with a block selector: path/to/doc.md#blockname")),
	)
}

func historyTool() mcp.Tool {
	return mcp.NewTool("weave.history",
		mcp.WithDescription("Inspect past workflow executions"),
		mcp.WithString("execution_id", mcp.Description("Fetch a single execution with its step log")),
		mcp.WithObject("filter", mcp.Description("List filter criteria (workflow_ref, status, since, limit)")),
	)
}

// --- Tool handlers ---

// handleRun loads a definition by reference and executes it.
func (s *WeaveServer) handleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("ref")
	if err != nil {
		return mcp.NewToolResultError("ref is required"), nil
	}
	seed := mcp.ParseStringMap(req, "seed", nil)

	path, block, _ := strings.Cut(ref, "#")
	source, loadErr := s.loader.Load(ctx, path)
	if loadErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load definition: %v", loadErr)), nil
	}

	result, runErr := s.interp.RunSource(ctx, ref, source, block, seed)
	if runErr != nil {
		if result != nil {
			// Partial result carries the execution ID and failure status.
			return marshalResult(map[string]any{
				"execution_id": result.ExecutionID,
				"status":       result.Status,
				"error":        runErr.Error(),
			})
		}
		return mcp.NewToolResultError(fmt.Sprintf("execution failed: %v", runErr)), nil
	}

	return marshalResult(result)
}

// handleValidate runs the validation pipeline on a definition.
func (s *WeaveServer) handleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("ref")
	if err != nil {
		return mcp.NewToolResultError("ref is required"), nil
	}

	path, block, _ := strings.Cut(ref, "#")
	source, loadErr := s.loader.Load(ctx, path)
	if loadErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load definition: %v", loadErr)), nil
	}

	res := s.validator.ValidateSource(source, block)
	return marshalResult(map[string]any{
		"valid":    res.Valid(),
		"errors":   res.Errors,
		"warnings": res.Warnings,
	})
}

// handleHistory returns a single execution or a filtered list.
func (s *WeaveServer) handleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if execID := req.GetString("execution_id", ""); execID != "" {
		rec, err := s.recorder.Get(ctx, execID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("history lookup failed: %v", err)), nil
		}
		return marshalResult(rec)
	}

	filter := mcp.ParseStringMap(req, "filter", nil)

	f := history.Filter{
		Limit: extractInt(filter, "limit", 50),
	}
	if ref, ok := filter["workflow_ref"].(string); ok {
		f.WorkflowRef = ref
	}
	if status, ok := filter["status"].(string); ok && status != "" {
		f.Status = schema.ExecutionStatus(status)
	}
	if since, ok := filter["since"].(string); ok && since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			f.Since = t
		}
	}

	records, err := s.recorder.List(ctx, f)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("history query failed: %v", err)), nil
	}
	return marshalResult(map[string]any{"executions": records})
}

// --- Internal helpers ---

// extractInt safely extracts an integer from a filter map.
func extractInt(filter map[string]any, key string, defaultVal int) int {
	if filter == nil {
		return defaultVal
	}
	v, ok := filter[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	case string:
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
