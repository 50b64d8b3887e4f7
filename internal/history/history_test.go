package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/weave/pkg/schema"
)

func newTestRecorder(t *testing.T) *LibSQLRecorder {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "history.db")
	r, err := NewLibSQLRecorder("file:" + dbPath)
	require.NoError(t, err)
	require.NoError(t, r.Migrate(context.Background()))
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func beginExecution(t *testing.T, r Recorder, ref string) *ExecutionRecord {
	t.Helper()
	rec := &ExecutionRecord{
		ID:          uuid.New().String(),
		WorkflowRef: ref,
		StartedAt:   time.Now().UTC(),
	}
	require.NoError(t, r.Begin(context.Background(), rec))
	return rec
}

func recorders(t *testing.T) map[string]Recorder {
	return map[string]Recorder{
		"libsql": newTestRecorder(t),
		"memory": NewMemoryRecorder(),
	}
}

func TestRecorderLifecycle(t *testing.T) {
	for name, r := range recorders(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rec := beginExecution(t, r, "daily.md")

			require.NoError(t, r.AppendStep(ctx, rec.ID, schema.ExecutionLog{
				NodeID: "n1", NodeType: "log", Message: "first", Status: schema.LogStatusInfo, Timestamp: time.Now().UTC(),
			}))
			require.NoError(t, r.AppendStep(ctx, rec.ID, schema.ExecutionLog{
				NodeID: "n2", NodeType: "set", Message: "second", Status: schema.LogStatusSuccess, Timestamp: time.Now().UTC(),
			}))
			require.NoError(t, r.Finish(ctx, rec.ID, schema.ExecutionStatusCompleted, ""))

			got, err := r.Get(ctx, rec.ID)
			require.NoError(t, err)
			assert.Equal(t, schema.ExecutionStatusCompleted, got.Status)
			require.NotNil(t, got.CompletedAt)
			require.Len(t, got.Steps, 2)
			assert.Equal(t, "first", got.Steps[0].Message)
			assert.Equal(t, "second", got.Steps[1].Message)
		})
	}
}

func TestRecorderFinishWithError(t *testing.T) {
	for name, r := range recorders(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rec := beginExecution(t, r, "failing.md")

			require.NoError(t, r.Finish(ctx, rec.ID, schema.ExecutionStatusError, "node n3 exploded"))

			got, err := r.Get(ctx, rec.ID)
			require.NoError(t, err)
			assert.Equal(t, schema.ExecutionStatusError, got.Status)
			assert.Equal(t, "node n3 exploded", got.Error)
		})
	}
}

func TestRecorderGetUnknownFails(t *testing.T) {
	for name, r := range recorders(t) {
		t.Run(name, func(t *testing.T) {
			_, err := r.Get(context.Background(), "missing")
			require.Error(t, err)
			assert.Equal(t, schema.ErrCodeNotFound, schema.CodeOf(err))
		})
	}
}

func TestRecorderListFilters(t *testing.T) {
	for name, r := range recorders(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := beginExecution(t, r, "a.md")
			beginExecution(t, r, "b.md")
			require.NoError(t, r.Finish(ctx, a.ID, schema.ExecutionStatusCompleted, ""))

			byRef, err := r.List(ctx, Filter{WorkflowRef: "a.md"})
			require.NoError(t, err)
			require.Len(t, byRef, 1)
			assert.Equal(t, a.ID, byRef[0].ID)

			running, err := r.List(ctx, Filter{Status: schema.ExecutionStatusRunning})
			require.NoError(t, err)
			require.Len(t, running, 1)
			assert.Equal(t, "b.md", running[0].WorkflowRef)

			limited, err := r.List(ctx, Filter{Limit: 1})
			require.NoError(t, err)
			assert.Len(t, limited, 1)
		})
	}
}

func TestRecorderPruneKeepsNewest(t *testing.T) {
	for name, r := range recorders(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 5; i++ {
				rec := &ExecutionRecord{
					ID:          uuid.New().String(),
					WorkflowRef: "wf.md",
					StartedAt:   time.Now().UTC().Add(time.Duration(i) * time.Second),
				}
				require.NoError(t, r.Begin(ctx, rec))
			}

			pruned, err := r.Prune(ctx, 2)
			require.NoError(t, err)
			assert.Equal(t, 3, pruned)

			left, err := r.List(ctx, Filter{})
			require.NoError(t, err)
			assert.Len(t, left, 2)
		})
	}
}

func TestMemoryRecorderRejectsDuplicateBegin(t *testing.T) {
	r := NewMemoryRecorder()
	rec := beginExecution(t, r, "wf.md")
	err := r.Begin(context.Background(), &ExecutionRecord{ID: rec.ID, WorkflowRef: "wf.md"})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeConflict, schema.CodeOf(err))
}
