// Package engine drives workflow execution: a LIFO stack machine over a
// parsed graph, dispatching each node to its registered handler and
// recording the run in the execution history.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/weave/internal/graph"
	"github.com/rendis/weave/internal/handlers"
	"github.com/rendis/weave/internal/history"
	"github.com/rendis/weave/internal/logging"
	"github.com/rendis/weave/pkg/schema"
)

const (
	// DefaultMaxIterations caps the total number of node executions in
	// one run, counting every loop pass.
	DefaultMaxIterations = 1000

	// DefaultMaxLoopIterations caps the passes through a single while
	// node.
	DefaultMaxLoopIterations = 1000

	// DefaultMaxDepth caps sub-workflow nesting.
	DefaultMaxDepth = 10
)

// Options bounds an interpreter.
type Options struct {
	MaxIterations     int
	MaxLoopIterations int
	MaxDepth          int
}

func (o Options) withDefaults() Options {
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.MaxLoopIterations <= 0 {
		o.MaxLoopIterations = DefaultMaxLoopIterations
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	return o
}

// Result is the outcome of a workflow run.
type Result struct {
	ExecutionID string                 `json:"execution_id"`
	Status      schema.ExecutionStatus `json:"status"`
	Variables   map[string]any         `json:"variables,omitempty"`
	Logs        []schema.ExecutionLog  `json:"logs,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt time.Time              `json:"completed_at"`
}

// Interpreter executes parsed workflows.
type Interpreter interface {
	// Run executes a parsed workflow. The seed variables become the
	// initial variable set. The returned Result is non-nil even on
	// error, carrying the partial log and final status.
	Run(ctx context.Context, ref string, wf *graph.Workflow, seed map[string]any) (*Result, error)

	// RunSource parses a definition document and runs the workflow
	// selected by block (name, index, or "" for the first).
	RunSource(ctx context.Context, ref, source, block string, seed map[string]any) (*Result, error)
}

type interpreterImpl struct {
	registry *handlers.Registry
	loader   handlers.DefinitionLoader
	recorder history.Recorder
	logger   *slog.Logger
	opts     Options
}

// New creates an Interpreter. The loader serves sub-workflow references;
// recorder may be nil to run without history. New registers the workflow
// node handler, bound back to this interpreter, on the given registry.
func New(registry *handlers.Registry, loader handlers.DefinitionLoader, recorder history.Recorder, logger *slog.Logger, opts Options) (Interpreter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	i := &interpreterImpl{
		registry: registry,
		loader:   loader,
		recorder: recorder,
		logger:   logger,
		opts:     opts.withDefaults(),
	}
	if err := registry.Register(&handlers.WorkflowHandler{Runner: i.runSub}); err != nil {
		return nil, err
	}
	return i, nil
}

func (i *interpreterImpl) Run(ctx context.Context, ref string, wf *graph.Workflow, seed map[string]any) (*Result, error) {
	execID := uuid.New().String()
	return i.run(ctx, ref, wf, seed, execID, nil)
}

func (i *interpreterImpl) RunSource(ctx context.Context, ref, source, block string, seed map[string]any) (*Result, error) {
	wf, err := graph.ParseDocument(source, block)
	if err != nil {
		return nil, err
	}
	return i.Run(ctx, ref, wf, seed)
}

// run is the stack-machine loop shared by top-level and sub-workflow
// executions. relay, when set, receives every log entry (sub-workflow
// runs forward their entries into the parent context this way); history
// is recorded only for top-level runs.
func (i *interpreterImpl) run(ctx context.Context, ref string, wf *graph.Workflow, seed map[string]any, execID string, relay handlers.LogSink) (*Result, error) {
	ctx = logging.WithExecutionID(logging.WithWorkflowRef(ctx, ref), execID)
	log := i.logger.With("execution_id", execID, "workflow", ref)
	topLevel := relay == nil

	var sink handlers.LogSink
	if topLevel && i.recorder != nil {
		sink = func(entry schema.ExecutionLog) {
			if err := i.recorder.AppendStep(context.WithoutCancel(ctx), execID, entry); err != nil {
				log.Warn("append history step failed", "error", err)
			}
		}
	} else {
		sink = relay
	}

	ec := handlers.NewContext(execID, ref, sink)
	for k, v := range seed {
		ec.SetVar(k, v)
	}

	started := time.Now().UTC()
	if topLevel && i.recorder != nil {
		rec := &history.ExecutionRecord{ID: execID, WorkflowRef: ref, StartedAt: started}
		// The record must exist even when cancellation raced the start.
		if err := i.recorder.Begin(context.WithoutCancel(ctx), rec); err != nil {
			return &Result{
				ExecutionID: execID,
				Status:      schema.ExecutionStatusError,
				StartedAt:   started,
				CompletedAt: time.Now().UTC(),
			}, err
		}
	}

	log.Info("execution started", "nodes", len(wf.Nodes))
	runErr := i.loop(ctx, wf, ec, log)

	status := schema.ExecutionStatusCompleted
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
		if schema.CodeOf(runErr) == schema.ErrCodeCancelled {
			status = schema.ExecutionStatusCancelled
		} else {
			status = schema.ExecutionStatusError
		}
	}

	// History is finalized before the error reaches the caller.
	if topLevel && i.recorder != nil {
		if err := i.recorder.Finish(context.WithoutCancel(ctx), execID, status, errMsg); err != nil {
			log.Error("finalize history failed", "error", err)
			if runErr == nil {
				runErr = err
			}
		}
	}

	res := &Result{
		ExecutionID: execID,
		Status:      status,
		Variables:   ec.Variables,
		Logs:        ec.Logs,
		StartedAt:   started,
		CompletedAt: time.Now().UTC(),
	}
	if runErr != nil {
		log.Error("execution finished", "status", status, "error", runErr)
	} else {
		log.Info("execution finished", "status", status)
	}
	return res, runErr
}

func (i *interpreterImpl) loop(ctx context.Context, wf *graph.Workflow, ec *handlers.Context, log *slog.Logger) error {
	stack := []string{wf.StartNode}
	loopCounts := map[string]int{}
	iterations := 0

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return schema.NewError(schema.ErrCodeCancelled, "execution cancelled").WithCause(err)
		}
		iterations++
		if iterations > i.opts.MaxIterations {
			return schema.NewErrorf(schema.ErrCodeIterationLimit, "exceeded %d node executions", i.opts.MaxIterations)
		}

		nodeID := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node, ok := wf.Nodes[nodeID]
		if !ok {
			// Dangling ids are a parse failure; anything that still
			// slips through is skipped.
			continue
		}

		handler, err := i.registry.Get(node.Type)
		if err != nil {
			return schema.NewErrorf(schema.ErrCodeExecution, "no handler for node type %q", node.Type).WithNode(nodeID).WithCause(err)
		}

		log.Debug("executing node", "node_id", nodeID, "node_type", node.Type)
		outcome, err := handler.Execute(logging.WithNodeID(ctx, nodeID), node, ec)
		if err != nil {
			wrapped := wrapNodeErr(err, nodeID)
			// The failing step is the last log entry; it reaches the
			// history sink before the record is finalized.
			ec.Log(node, schema.LogStatusError, wrapped.Error())
			return wrapped
		}

		if outcome.Regenerate != nil {
			if ec.LastCommand == nil {
				return schema.NewError(schema.ErrCodeExecution, "regeneration requested with no command output").WithNode(nodeID)
			}
			ec.Regenerate = &handlers.RegenerateInfo{
				CommandNodeID:  ec.LastCommand.NodeID,
				Feedback:       outcome.Regenerate.Feedback,
				PreviousOutput: ec.LastCommand.Output,
			}
			// Replay: the command node runs again, then this node
			// reviews the fresh output.
			stack = append(stack, nodeID, ec.LastCommand.NodeID)
			continue
		}

		label := graph.LabelNone
		if node.IsBranch() {
			label = graph.LabelFalse
			if outcome.Branch {
				label = graph.LabelTrue
			}
			if node.Type == graph.NodeWhile {
				if outcome.Branch {
					loopCounts[nodeID]++
					if loopCounts[nodeID] > i.opts.MaxLoopIterations {
						return schema.NewErrorf(schema.ErrCodeLoopIterationLimit, "while node exceeded %d iterations", i.opts.MaxLoopIterations).WithNode(nodeID)
					}
				} else {
					delete(loopCounts, nodeID)
				}
			}
		}

		// Successors are pushed in reverse so they pop in declaration
		// order.
		targets := wf.Outgoing(nodeID, label)
		for t := len(targets) - 1; t >= 0; t-- {
			stack = append(stack, targets[t])
		}
	}
	return nil
}

// runSub executes a sub-workflow with an isolated context, relaying its
// log entries into the parent under "parentNode/childNode" ids with a
// "[sub]" message prefix.
func (i *interpreterImpl) runSub(ctx context.Context, ref string, seed map[string]any, parent *handlers.Context, nodeID string) (map[string]any, error) {
	depth := strings.Count(parent.ExecutionID, "/") + 1
	if depth > i.opts.MaxDepth {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "sub-workflow nesting exceeds %d levels", i.opts.MaxDepth)
	}
	if i.loader == nil {
		return nil, schema.NewError(schema.ErrCodeExecution, "no definition loader configured")
	}

	path, block, _ := strings.Cut(ref, "#")
	source, err := i.loader.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	wf, err := graph.ParseDocument(source, block)
	if err != nil {
		return nil, err
	}

	childID := parent.ExecutionID + "/" + uuid.New().String()[:8]
	relay := func(entry schema.ExecutionLog) {
		entry.NodeID = nodeID + "/" + entry.NodeID
		entry.Message = "[sub] " + entry.Message
		parent.Append(entry)
	}

	res, err := i.run(ctx, ref, wf, seed, childID, relay)
	if err != nil {
		return nil, err
	}
	return res.Variables, nil
}

func wrapNodeErr(err error, nodeID string) error {
	var we *schema.WeaveError
	if errors.As(err, &we) {
		if we.NodeID == "" {
			return we.WithNode(nodeID)
		}
		return err
	}
	return schema.NewErrorf(schema.ErrCodeExecution, "node failed: %s", err.Error()).WithNode(nodeID).WithCause(err)
}
