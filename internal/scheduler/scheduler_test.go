package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	mu   sync.Mutex
	runs []string
	err  error
}

func (r *recordingRunner) RunRef(ctx context.Context, ref string, seed map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, ref)
	return r.err
}

func (r *recordingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestNewSchedulerRejectsBadCron(t *testing.T) {
	_, err := NewScheduler([]Job{{Name: "bad", Ref: "wf.md", Cron: "not a cron"}}, &recordingRunner{}, discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
}

func TestTickRunsDueJobs(t *testing.T) {
	runner := &recordingRunner{}
	s, err := NewScheduler([]Job{{Name: "daily", Ref: "daily.md", Cron: "0 9 * * *"}}, runner, discard())
	require.NoError(t, err)

	// Not due yet.
	s.tick(context.Background())
	assert.Equal(t, 0, runner.count())

	// Force the job due.
	s.jobs[0].nextRun = time.Now().UTC().Add(-time.Minute)
	s.tick(context.Background())
	require.Equal(t, 1, runner.count())
	assert.Equal(t, "daily.md", runner.runs[0])

	// Next run advanced into the future.
	assert.True(t, s.jobs[0].nextRun.After(time.Now().UTC()))
}

func TestTickSurvivesRunnerFailure(t *testing.T) {
	runner := &recordingRunner{err: errors.New("boom")}
	s, err := NewScheduler([]Job{
		{Name: "a", Ref: "a.md", Cron: "* * * * *"},
		{Name: "b", Ref: "b.md", Cron: "* * * * *"},
	}, runner, discard())
	require.NoError(t, err)

	past := time.Now().UTC().Add(-time.Minute)
	s.jobs[0].nextRun = past
	s.jobs[1].nextRun = past

	s.tick(context.Background())
	assert.Equal(t, 2, runner.count(), "a failing job does not block the rest")
}

func TestStartStop(t *testing.T) {
	s, err := NewScheduler(nil, &recordingRunner{}, discard())
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()), "double start is rejected")
	s.Stop()

	// Stop again is a no-op.
	s.Stop()

	// Restartable after stop.
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
}

func TestInflightDedup(t *testing.T) {
	s, err := NewScheduler(nil, &recordingRunner{}, discard())
	require.NoError(t, err)

	require.True(t, s.tryAcquire("job"))
	assert.False(t, s.tryAcquire("job"))
	s.release("job")
	assert.True(t, s.tryAcquire("job"))
}
