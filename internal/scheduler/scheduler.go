// Package scheduler runs the periodic maintenance tasks: statistics
// sweeps, period summaries, retention cleanup and the denormalized field
// refresh.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/campushub/eventhub/internal/aggregate"
	"github.com/campushub/eventhub/internal/apperr"
	"github.com/campushub/eventhub/internal/models"
	"github.com/robfig/cron/v3"
)

// Engine is the subset of the aggregation engine the tasks drive.
type Engine interface {
	RecomputeAllEventStats(ctx context.Context) (aggregate.BatchResult, error)
	RecomputeAllUserAnalytics(ctx context.Context) (aggregate.BatchResult, error)
	GenerateLastPeriod(ctx context.Context, period models.Period) (*models.Analytics, bool, error)
	Cleanup(ctx context.Context, now time.Time) (aggregate.CleanupResult, error)
	RefreshDenormalized(ctx context.Context) (aggregate.BatchResult, error)
}

// ErrUnknownTask is returned by RunNow for a name that is not registered.
var ErrUnknownTask = apperr.NotFound("task")

// ErrTaskRunning is returned by RunNow while the same task is in progress.
var ErrTaskRunning = apperr.Conflict("task", "task is already running")

// taskTimeout bounds a single scheduled run.
const taskTimeout = 30 * time.Minute

type task struct {
	name     string
	schedule string
	run      func(ctx context.Context) (any, error)

	entry      cron.EntryID
	running    bool
	lastRun    *time.Time
	lastTook   time.Duration
	lastResult any
	lastErr    string
}

// TaskStatus is the externally visible state of one task.
type TaskStatus struct {
	Name       string     `json:"name"`
	Schedule   string     `json:"schedule"`
	Running    bool       `json:"running"`
	LastRun    *time.Time `json:"lastRun,omitempty"`
	Duration   string     `json:"lastDuration,omitempty"`
	LastResult any        `json:"lastResult,omitempty"`
	LastError  string     `json:"lastError,omitempty"`
	NextRun    *time.Time `json:"nextRun,omitempty"`
}

// Status is the state of the scheduler and its tasks.
type Status struct {
	Running bool         `json:"running"`
	Tasks   []TaskStatus `json:"tasks"`
}

// Scheduler owns a cron instance and the named maintenance tasks.
type Scheduler struct {
	log  *slog.Logger
	cron *cron.Cron
	// Now is the clock; tests replace it.
	Now func() time.Time

	mu      sync.Mutex
	started bool
	tasks   map[string]*task
}

// New registers the maintenance tasks. The scheduler is idle until Start.
func New(e Engine, log *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		log:   log,
		Now:   func() time.Time { return time.Now().UTC() },
		tasks: map[string]*task{},
	}
	s.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLogger{log}),
		cron.WithChain(cron.Recover(cronLogger{log})),
	)

	summary := func(p models.Period) func(ctx context.Context) (any, error) {
		return func(ctx context.Context) (any, error) {
			a, created, err := e.GenerateLastPeriod(ctx, p)
			if err != nil {
				return nil, err
			}
			return map[string]any{"id": a.ID, "windowStart": a.WindowStart, "created": created}, nil
		}
	}
	defs := []task{
		{name: "event-stats", schedule: "@every 1h", run: func(ctx context.Context) (any, error) {
			return e.RecomputeAllEventStats(ctx)
		}},
		{name: "user-analytics", schedule: "0 2 * * *", run: func(ctx context.Context) (any, error) {
			return e.RecomputeAllUserAnalytics(ctx)
		}},
		{name: "daily-summary", schedule: "5 0 * * *", run: summary(models.PeriodDaily)},
		{name: "weekly-summary", schedule: "10 0 * * 1", run: summary(models.PeriodWeekly)},
		{name: "monthly-summary", schedule: "15 0 1 * *", run: summary(models.PeriodMonthly)},
		{name: "cleanup", schedule: "0 3 * * *", run: func(ctx context.Context) (any, error) {
			return e.Cleanup(ctx, s.Now())
		}},
		{name: "refresh-denormalized", schedule: "30 3 * * 0", run: func(ctx context.Context) (any, error) {
			return e.RefreshDenormalized(ctx)
		}},
	}

	for i := range defs {
		t := &defs[i]
		id, err := s.cron.AddFunc(t.schedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
			defer cancel()
			if _, err := s.run(ctx, t.name); errors.Is(err, ErrTaskRunning) {
				s.log.Warn("skipping scheduled run, previous run still in progress", "task", t.name)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("schedule %s: %w", t.name, err)
		}
		t.entry = id
		s.tasks[t.name] = t
	}
	return s, nil
}

// Start begins firing tasks on their schedules. Starting twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.cron.Start()
	s.started = true
	s.log.Info("scheduler started", "tasks", len(s.tasks))
}

// Stop halts scheduling and waits for in-flight scheduled runs, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether the scheduler is firing tasks.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// RunNow runs a task synchronously and returns its result.
func (s *Scheduler) RunNow(ctx context.Context, name string) (any, error) {
	return s.run(ctx, name)
}

func (s *Scheduler) run(ctx context.Context, name string) (any, error) {
	s.mu.Lock()
	t, ok := s.tasks[name]
	if !ok {
		s.mu.Unlock()
		return nil, ErrUnknownTask
	}
	if t.running {
		s.mu.Unlock()
		return nil, ErrTaskRunning
	}
	t.running = true
	s.mu.Unlock()

	start := s.Now()
	s.log.Info("task started", "task", name)
	result, err := t.run(ctx)
	took := s.Now().Sub(start)

	s.mu.Lock()
	t.running = false
	t.lastRun = &start
	t.lastTook = took
	t.lastResult = result
	t.lastErr = ""
	if err != nil {
		t.lastErr = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error("task failed", "task", name, "duration", took, "err", err)
		return result, err
	}
	s.log.Info("task finished", "task", name, "duration", took)
	return result, nil
}

// Status returns the state of every task, ordered by name.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := Status{Running: s.started, Tasks: make([]TaskStatus, 0, len(s.tasks))}
	for _, t := range s.tasks {
		ts := TaskStatus{
			Name:       t.name,
			Schedule:   t.schedule,
			Running:    t.running,
			LastRun:    t.lastRun,
			LastResult: t.lastResult,
			LastError:  t.lastErr,
		}
		if t.lastRun != nil {
			ts.Duration = t.lastTook.String()
		}
		if s.started {
			if next := s.cron.Entry(t.entry).Next; !next.IsZero() {
				ts.NextRun = &next
			}
		}
		out.Tasks = append(out.Tasks, ts)
	}
	sort.Slice(out.Tasks, func(i, j int) bool { return out.Tasks[i].Name < out.Tasks[j].Name })
	return out
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct{ log *slog.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
