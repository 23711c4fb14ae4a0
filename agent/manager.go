package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/webpilot-ai/webpilot/config"
	"github.com/webpilot-ai/webpilot/internal/metrics"
	"github.com/webpilot-ai/webpilot/types"
)

// Outcome is a runner's terminal verdict for one task.
type Outcome struct {
	Status Status
	Result *TaskResult
	Err    error
}

// TaskRunner drives one task to completion. Run blocks until the task is
// done and reports the terminal status; it must honor ctx and the task's
// cooperative cancel flag, and must not panic across its boundary (the
// manager still recovers if it does).
type TaskRunner interface {
	Run(ctx context.Context, task *Task) Outcome
}

// RunnerFunc adapts a function to the TaskRunner interface.
type RunnerFunc func(ctx context.Context, task *Task) Outcome

func (f RunnerFunc) Run(ctx context.Context, task *Task) Outcome { return f(ctx, task) }

// Manager owns the task registry and the worker goroutines. It is an
// explicit instance: construct one, share it, close it. Workers are
// detached from the caller's context so tasks outlive the tool call that
// started them; Close is the only thing that tears them down.
type Manager struct {
	cfg     config.TasksConfig
	runner  TaskRunner
	clock   Clock
	metrics *metrics.Collector
	logger  *zap.Logger

	// baseCtx parents every worker; cancelled on Close.
	baseCtx context.Context
	cancel  context.CancelFunc

	// sem caps concurrently running tasks; nil means unlimited.
	sem *semaphore.Weighted

	mu     sync.RWMutex
	tasks  map[string]*Task
	closed bool

	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewManager creates a task manager. The collector may be nil. A zero
// MaxConcurrent leaves task spawning unbounded.
func NewManager(cfg config.TasksConfig, runner TaskRunner, clock Clock, collector *metrics.Collector, logger *zap.Logger) *Manager {
	if clock == nil {
		clock = SystemClock()
	}
	if cfg.CompactEvents <= 0 {
		cfg.CompactEvents = 3
	}
	if cfg.PollDelay <= 0 {
		cfg.PollDelay = 5 * time.Second
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:     cfg,
		runner:  runner,
		clock:   clock,
		metrics: collector,
		logger:  logger.With(zap.String("component", "task_manager")),
		baseCtx: ctx,
		cancel:  cancel,
		tasks:   make(map[string]*Task),
		stopCh:  make(chan struct{}),
	}
	if cfg.MaxConcurrent > 0 {
		m.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	if cfg.SweepInterval > 0 {
		m.wg.Add(1)
		go m.sweepLoop()
	}
	return m
}

// Start registers a new task and spawns its worker. It returns the task
// id immediately; progress is observed through Check. An empty description
// is rejected before any record is created.
func (m *Manager) Start(ctx context.Context, description, url string) (string, error) {
	if strings.TrimSpace(description) == "" {
		return "", types.NewValidationError("task description is required")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.Sweep()

	t := newTask(uuid.NewString(), description, url, m.clock)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", types.NewError(types.ErrInternalError, "task manager is closed")
	}
	m.tasks[t.ID] = t
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordTaskStarted()
	}
	m.logger.Info("task started",
		zap.String("task_id", t.ID),
		zap.String("description", description),
		zap.String("url", url),
	)

	m.wg.Add(1)
	go m.runTask(t)

	return t.ID, nil
}

// runTask is the detached worker: one goroutine per task, parented on
// baseCtx rather than the starter's context.
func (m *Manager) runTask(t *Task) {
	defer m.wg.Done()
	start := m.clock.Now()

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("task runner panicked",
				zap.String("task_id", t.ID),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			t.Fail(fmt.Sprintf("internal error: %v", r))
		}
		m.finish(t, start)
	}()

	if err := m.acquireSlot(t); err != nil {
		t.MarkCancelled()
		return
	}
	if m.sem != nil {
		defer m.sem.Release(1)
	}

	// A cancel may have landed while queued behind the cap.
	if t.CancelRequested() || m.baseCtx.Err() != nil {
		t.MarkCancelled()
		return
	}

	t.MarkRunning()
	out := m.runner.Run(m.baseCtx, t)
	switch out.Status {
	case StatusCompleted:
		t.Complete(out.Result)
	case StatusCancelled:
		t.MarkCancelled()
	default:
		msg := "task failed"
		if out.Err != nil {
			msg = out.Err.Error()
		}
		t.Fail(msg)
	}
}

// acquireSlot blocks until a concurrency slot is free, the task is
// cancelled, or the manager shuts down. Unlimited managers return at once.
func (m *Manager) acquireSlot(t *Task) error {
	if m.sem == nil {
		return nil
	}
	ctx, cancel := context.WithCancel(m.baseCtx)
	defer cancel()
	go func() {
		select {
		case <-t.CancelCh():
			cancel()
		case <-ctx.Done():
		}
	}()
	return m.sem.Acquire(ctx, 1)
}

func (m *Manager) finish(t *Task, start time.Time) {
	status := t.Status()
	duration := m.clock.Now().Sub(start)
	if m.metrics != nil {
		m.metrics.RecordTaskFinished(string(status), duration, t.TurnCount())
	}
	m.logger.Info("task finished",
		zap.String("task_id", t.ID),
		zap.String("status", string(status)),
		zap.Duration("duration", duration),
	)
}

// Check returns a snapshot of the task. Unknown and evicted ids are
// indistinguishable: both are NotFound. Non-terminal snapshots carry a
// recommended next poll time and guidance so callers pace themselves.
func (m *Manager) Check(taskID string, compact bool) (Snapshot, error) {
	t, ok := m.get(taskID)
	if !ok {
		return Snapshot{}, types.NewNotFoundError("task %s not found", taskID)
	}

	var snap Snapshot
	if compact {
		snap = t.CompactSnapshot(m.cfg.CompactEvents)
	} else {
		snap = t.Snapshot()
	}
	if !snap.Status.IsTerminal() {
		after := m.clock.Now().Add(m.cfg.PollDelay)
		snap.RecommendedPollAfter = &after
		snap.PollingGuidance = fmt.Sprintf(
			"Task in progress. Wait %d seconds before next check to avoid context bloat.",
			int(m.cfg.PollDelay.Seconds()),
		)
	}
	return snap, nil
}

// Stop requests cooperative cancellation. Stopping a terminal task is an
// idempotent success; the record is left untouched. The worker observes
// the flag at its next checkpoint and performs the cancelled transition.
func (m *Manager) Stop(taskID string) error {
	t, ok := m.get(taskID)
	if !ok {
		return types.NewNotFoundError("task %s not found", taskID)
	}
	if t.RequestCancel() {
		m.logger.Info("task cancel requested", zap.String("task_id", taskID))
	}
	return nil
}

// TaskList is the List payload: every retained record plus counts.
type TaskList struct {
	Tasks       []TaskSummary `json:"tasks"`
	Count       int           `json:"count"`
	ActiveCount int           `json:"active_count"`
}

// List returns summaries for all retained tasks, oldest first.
func (m *Manager) List() TaskList {
	m.mu.RLock()
	summaries := make([]TaskSummary, 0, len(m.tasks))
	for _, t := range m.tasks {
		summaries = append(summaries, t.Summary())
	}
	m.mu.RUnlock()

	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
		}
		return summaries[i].TaskID < summaries[j].TaskID
	})

	active := 0
	for _, s := range summaries {
		if !s.Status.IsTerminal() {
			active++
		}
	}
	return TaskList{Tasks: summaries, Count: len(summaries), ActiveCount: active}
}

// Sweep evicts terminal records whose last update is older than the
// retention window. Pending and running tasks are never touched. Returns
// the number of evicted records.
func (m *Manager) Sweep() int {
	cutoff := m.clock.Now().Add(-m.cfg.Retention)

	m.mu.Lock()
	var evicted []string
	for id, t := range m.tasks {
		if t.IsTerminal() && t.UpdatedAt().Before(cutoff) {
			evicted = append(evicted, id)
		}
	}
	for _, id := range evicted {
		delete(m.tasks, id)
	}
	m.mu.Unlock()

	if len(evicted) > 0 {
		if m.metrics != nil {
			m.metrics.RecordTasksEvicted(len(evicted))
		}
		m.logger.Info("evicted expired tasks", zap.Int("count", len(evicted)))
	}
	return len(evicted)
}

func (m *Manager) sweepLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Sweep()
		case <-m.stopCh:
			return
		}
	}
}

// Close stops the sweeper, cancels every live task, and waits for all
// workers to finish. Safe to call more than once.
func (m *Manager) Close() {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		live := make([]*Task, 0, len(m.tasks))
		for _, t := range m.tasks {
			live = append(live, t)
		}
		m.mu.Unlock()

		close(m.stopCh)
		m.cancel()
		for _, t := range live {
			t.RequestCancel()
		}
	})
	m.wg.Wait()
	m.logger.Info("task manager closed")
}

func (m *Manager) get(taskID string) (*Task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[taskID]
	return t, ok
}
