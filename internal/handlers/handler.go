package handlers

import (
	"context"

	"github.com/rendis/weave/internal/graph"
)

// Handler executes one node kind. Implementations may suspend indefinitely
// on their collaborators, but must never touch interpreter state: only the
// Context's variables and log are theirs to write.
type Handler interface {
	Type() graph.NodeType
	Execute(ctx context.Context, node *graph.Node, ec *Context) (Outcome, error)
}

// Outcome is the tagged result of a handler execution. The zero value means
// "continue". Branch carries the condition result for if/while nodes.
// Regenerate, when set, asks the interpreter to replay the last command
// node with user feedback instead of proceeding.
type Outcome struct {
	Branch     bool
	Regenerate *RegenerateRequest
}

// RegenerateRequest carries the review feedback for a command replay.
type RegenerateRequest struct {
	Feedback string
}

// Continue is the plain success outcome.
var Continue = Outcome{}
