package handlers

import (
	"sort"
	"sync"

	"github.com/rendis/weave/internal/graph"
	"github.com/rendis/weave/pkg/schema"
)

// Registry is the thread-safe dispatch table from node type to handler.
// It is constructed explicitly and injected into the interpreter; there is
// no package-level instance.
type Registry struct {
	mu       sync.RWMutex
	handlers map[graph.NodeType]Handler
	disposed bool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[graph.NodeType]Handler),
	}
}

// Register adds a handler. Duplicate node types and registration after
// Dispose are errors.
func (r *Registry) Register(h Handler) error {
	if h == nil {
		return schema.NewError(schema.ErrCodeValidation, "handler is nil")
	}
	typ := h.Type()
	if typ == "" {
		return schema.NewError(schema.ErrCodeValidation, "handler node type is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.disposed {
		return schema.NewError(schema.ErrCodeConflict, "registry is disposed")
	}
	if _, exists := r.handlers[typ]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "handler for %q already registered", typ)
	}

	r.handlers[typ] = h
	return nil
}

// Get retrieves the handler for a node type.
func (r *Registry) Get(typ graph.NodeType) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[typ]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "no handler registered for node type %q", typ)
	}
	return h, nil
}

// Invalidate removes a handler so it can be re-registered.
func (r *Registry) Invalidate(typ graph.NodeType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, typ)
}

// List returns the registered node types, sorted.
func (r *Registry) List() []graph.NodeType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]graph.NodeType, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Dispose clears the table and refuses further registrations. Collaborator
// resources (tool pools, HTTP clients) are owned and released by their
// owners, not the registry.
func (r *Registry) Dispose() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = make(map[graph.NodeType]Handler)
	r.disposed = true
}
