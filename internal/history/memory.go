package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rendis/weave/pkg/schema"
)

// MemoryRecorder is an in-memory Recorder for tests and history-less runs.
type MemoryRecorder struct {
	mu   sync.Mutex
	recs map[string]*ExecutionRecord
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{recs: make(map[string]*ExecutionRecord)}
}

func (m *MemoryRecorder) Begin(ctx context.Context, rec *ExecutionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.recs[rec.ID]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "execution %s already recorded", rec.ID)
	}
	cp := *rec
	if cp.StartedAt.IsZero() {
		cp.StartedAt = time.Now().UTC()
	}
	if cp.Status == "" {
		cp.Status = schema.ExecutionStatusRunning
	}
	m.recs[rec.ID] = &cp
	return nil
}

func (m *MemoryRecorder) AppendStep(ctx context.Context, executionID string, step schema.ExecutionLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[executionID]
	if !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "execution %s not found", executionID)
	}
	rec.Steps = append(rec.Steps, step)
	return nil
}

func (m *MemoryRecorder) Finish(ctx context.Context, executionID string, status schema.ExecutionStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[executionID]
	if !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "execution %s not found", executionID)
	}
	now := time.Now().UTC()
	rec.Status = status
	rec.Error = errMsg
	rec.CompletedAt = &now
	return nil
}

func (m *MemoryRecorder) Get(ctx context.Context, executionID string) (*ExecutionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[executionID]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "execution %s not found", executionID)
	}
	cp := *rec
	cp.Steps = append([]schema.ExecutionLog(nil), rec.Steps...)
	return &cp, nil
}

func (m *MemoryRecorder) List(ctx context.Context, f Filter) ([]*ExecutionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var recs []*ExecutionRecord
	for _, rec := range m.recs {
		if f.WorkflowRef != "" && rec.WorkflowRef != f.WorkflowRef {
			continue
		}
		if f.Status != "" && rec.Status != f.Status {
			continue
		}
		if !f.Since.IsZero() && rec.StartedAt.Before(f.Since) {
			continue
		}
		cp := *rec
		recs = append(recs, &cp)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].StartedAt.After(recs[j].StartedAt) })
	if f.Limit > 0 && len(recs) > f.Limit {
		recs = recs[:f.Limit]
	}
	return recs, nil
}

func (m *MemoryRecorder) Prune(ctx context.Context, keep int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if keep < 0 {
		keep = 0
	}
	if len(m.recs) <= keep {
		return 0, nil
	}

	all := make([]*ExecutionRecord, 0, len(m.recs))
	for _, rec := range m.recs {
		all = append(all, rec)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StartedAt.After(all[j].StartedAt) })

	pruned := 0
	for _, rec := range all[keep:] {
		delete(m.recs, rec.ID)
		pruned++
	}
	return pruned, nil
}

func (m *MemoryRecorder) Close() error { return nil }
