// Package history persists execution records: one row per workflow run
// plus its ordered step log. The libSQL recorder is the durable backend;
// the memory recorder backs tests and history-less runs.
package history

import (
	"context"
	"time"

	"github.com/rendis/weave/pkg/schema"
)

// ExecutionRecord is one workflow run in the history.
type ExecutionRecord struct {
	ID          string                 `json:"id"`
	WorkflowRef string                 `json:"workflow_ref"`
	Status      schema.ExecutionStatus `json:"status"`
	Error       string                 `json:"error,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Steps       []schema.ExecutionLog  `json:"steps,omitempty"`
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	WorkflowRef string
	Status      schema.ExecutionStatus
	Since       time.Time
	Limit       int
}

// Recorder persists execution history. Steps arrive one at a time in
// execution order; Finish is called exactly once per execution, before
// any error propagates to the caller.
type Recorder interface {
	Begin(ctx context.Context, rec *ExecutionRecord) error
	AppendStep(ctx context.Context, executionID string, step schema.ExecutionLog) error
	Finish(ctx context.Context, executionID string, status schema.ExecutionStatus, errMsg string) error

	Get(ctx context.Context, executionID string) (*ExecutionRecord, error)
	List(ctx context.Context, f Filter) ([]*ExecutionRecord, error)
	Prune(ctx context.Context, keep int) (int, error)

	Close() error
}
