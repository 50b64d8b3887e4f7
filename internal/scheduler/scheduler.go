// Package scheduler runs configured workflows on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// WorkflowRunner is the interface the scheduler uses to run workflows.
// Satisfied by the CLI's run wrapper around the interpreter.
type WorkflowRunner interface {
	RunRef(ctx context.Context, ref string, seed map[string]any) error
}

// Job is one scheduled workflow.
type Job struct {
	Name string         `json:"name"`
	Ref  string         `json:"ref"`  // definition path, optionally "path#block"
	Cron string         `json:"cron"` // standard 5-field cron expression
	Seed map[string]any `json:"seed,omitempty"`
}

type jobState struct {
	Job
	schedule cron.Schedule
	nextRun  time.Time
}

// Scheduler ticks over its job list and runs whatever is due.
type Scheduler struct {
	jobs   []*jobState
	runner WorkflowRunner
	logger *slog.Logger

	tickInterval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	inflightMu sync.Mutex
	inflight   map[string]struct{} // job names currently executing (dedup)
}

// NewScheduler creates a Scheduler, parsing every job's cron expression.
func NewScheduler(jobs []Job, runner WorkflowRunner, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

	now := time.Now().UTC()
	states := make([]*jobState, 0, len(jobs))
	for _, job := range jobs {
		sched, err := parser.Parse(job.Cron)
		if err != nil {
			return nil, fmt.Errorf("job %q: invalid cron %q: %w", job.Name, job.Cron, err)
		}
		states = append(states, &jobState{Job: job, schedule: sched, nextRun: sched.Next(now)})
	}

	return &Scheduler{
		jobs:         states,
		runner:       runner,
		logger:       logger,
		tickInterval: 30 * time.Second,
		inflight:     make(map[string]struct{}),
	}, nil
}

// Start launches the background scheduling loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop cancels the loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs every job that is due and advances its next run time.
func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now().UTC()
	for _, job := range s.jobs {
		if job.nextRun.After(now) {
			continue
		}
		job.nextRun = job.schedule.Next(now)

		if !s.tryAcquire(job.Name) {
			s.logger.Warn("scheduled job still running, skipping", "job", job.Name)
			continue
		}
		s.runJob(ctx, job)
		s.release(job.Name)
	}
}

func (s *Scheduler) runJob(ctx context.Context, job *jobState) {
	s.logger.Info("running scheduled job", "job", job.Name, "ref", job.Ref)
	if err := s.runner.RunRef(ctx, job.Ref, job.Seed); err != nil {
		s.logger.Error("scheduled job failed", "job", job.Name, "error", err)
		return
	}
	s.logger.Info("scheduled job completed", "job", job.Name)
}

func (s *Scheduler) tryAcquire(name string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, running := s.inflight[name]; running {
		return false
	}
	s.inflight[name] = struct{}{}
	return true
}

func (s *Scheduler) release(name string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, name)
}
