// Package handlers defines the node handler contract, the dispatch
// registry, the in-core control-flow handlers, and the collaborator-backed
// side-effecting handlers.
package handlers

import (
	"fmt"
	"time"

	"github.com/rendis/weave/internal/expressions"
	"github.com/rendis/weave/internal/graph"
	"github.com/rendis/weave/pkg/schema"
)

// Context is the mutable state scoped to one workflow execution: the
// variable store, the accumulated log, and the bookkeeping the
// regeneration path needs. A sub-workflow gets a fresh Context seeded only
// from its explicit input mapping.
//
// Exactly one node executes at a time, so Context needs no locking.
type Context struct {
	ExecutionID string
	WorkflowRef string

	Variables map[string]any // string or float64 values
	Logs      []schema.ExecutionLog

	LastCommand *LastCommandInfo
	Regenerate  *RegenerateInfo

	sink LogSink
}

// LastCommandInfo remembers the most recent command node so a later review
// node can target it for regeneration.
type LastCommandInfo struct {
	NodeID string
	Prompt string
	Output string
}

// RegenerateInfo is the one-shot replay request a review node plants for
// its command node.
type RegenerateInfo struct {
	CommandNodeID  string
	Feedback       string
	PreviousOutput string
}

// LogSink receives each ExecutionLog entry in strict execution order.
type LogSink func(entry schema.ExecutionLog)

// NewContext creates an empty execution context.
func NewContext(executionID, workflowRef string, sink LogSink) *Context {
	return &Context{
		ExecutionID: executionID,
		WorkflowRef: workflowRef,
		Variables:   make(map[string]any),
		sink:        sink,
	}
}

// Append adds an entry to the execution log and forwards it to the sink.
// The interpreter uses it directly to relay sub-workflow entries.
func (c *Context) Append(entry schema.ExecutionLog) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	c.Logs = append(c.Logs, entry)
	if c.sink != nil {
		c.sink(entry)
	}
}

// Log records a message for a node.
func (c *Context) Log(node *graph.Node, status schema.LogStatus, message string) {
	c.Append(schema.ExecutionLog{
		NodeID:   node.ID,
		NodeType: string(node.Type),
		Message:  message,
		Status:   status,
	})
}

// Logf records a formatted message for a node.
func (c *Context) Logf(node *graph.Node, status schema.LogStatus, format string, args ...any) {
	c.Log(node, status, fmt.Sprintf(format, args...))
}

// SetVar stores a variable, normalizing numeric values to float64.
func (c *Context) SetVar(name string, value any) {
	switch v := value.(type) {
	case int:
		c.Variables[name] = float64(v)
	case int64:
		c.Variables[name] = float64(v)
	default:
		c.Variables[name] = value
	}
}

// Resolve expands {{...}} templates against the context variables.
func (c *Context) Resolve(template string) string {
	return expressions.Resolve(template, c.Variables)
}
