package handlers

import (
	"context"

	"github.com/rendis/weave/internal/graph"
	"github.com/rendis/weave/pkg/schema"
)

const defaultReadOutput = "content"

// ReadFileHandler loads a file through the FileStore into a variable.
type ReadFileHandler struct {
	Store FileStore
}

func (h *ReadFileHandler) Type() graph.NodeType { return graph.NodeReadFile }

func (h *ReadFileHandler) Execute(ctx context.Context, node *graph.Node, ec *Context) (Outcome, error) {
	if h.Store == nil {
		return Continue, schema.NewError(schema.ErrCodeExecution, "no file store configured").WithNode(node.ID)
	}
	cfg := node.Config.(*graph.ReadFileConfig)

	path := ec.Resolve(cfg.Path)
	data, err := h.Store.Read(ctx, path)
	if err != nil {
		return Continue, schema.NewErrorf(schema.ErrCodeHandlerFailed, "read file: %s", err.Error()).WithNode(node.ID).WithCause(err)
	}

	outVar := cfg.Output
	if outVar == "" {
		outVar = defaultReadOutput
	}
	ec.SetVar(outVar, string(data))
	ec.Logf(node, schema.LogStatusSuccess, "read %s (%d bytes)", path, len(data))
	return Continue, nil
}

// WriteFileHandler writes resolved content through the FileStore.
type WriteFileHandler struct {
	Store FileStore
}

func (h *WriteFileHandler) Type() graph.NodeType { return graph.NodeWriteFile }

func (h *WriteFileHandler) Execute(ctx context.Context, node *graph.Node, ec *Context) (Outcome, error) {
	if h.Store == nil {
		return Continue, schema.NewError(schema.ErrCodeExecution, "no file store configured").WithNode(node.ID)
	}
	cfg := node.Config.(*graph.WriteFileConfig)

	path := ec.Resolve(cfg.Path)
	content := ec.Resolve(cfg.Content)
	if err := h.Store.Write(ctx, path, []byte(content), cfg.Mode); err != nil {
		return Continue, schema.NewErrorf(schema.ErrCodeHandlerFailed, "write file: %s", err.Error()).WithNode(node.ID).WithCause(err)
	}

	ec.Logf(node, schema.LogStatusSuccess, "wrote %s (%d bytes)", path, len(content))
	return Continue, nil
}
