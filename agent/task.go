package agent

import (
	"sync"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether the status is final. Terminal tasks never
// transition again; eviction is their only exit.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// EventKind classifies progress events.
type EventKind string

const (
	EventInfo           EventKind = "info"
	EventTurn           EventKind = "turn"
	EventFunctionCall   EventKind = "function_call"
	EventFunctionResult EventKind = "function_result"
	EventError          EventKind = "error"
	EventFinal          EventKind = "final"
)

// ProgressEvent is one appended progress entry. Events are immutable once
// appended; the log only grows.
type ProgressEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	Kind      EventKind      `json:"type"`
	Message   string         `json:"message"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// TaskResult is the payload of a completed task.
type TaskResult struct {
	Answer        string `json:"answer"`
	SessionID     string `json:"session_id"`
	ScreenshotDir string `json:"screenshot_dir"`
}

// Task is the mutable record of one browsing task. All mutable state is
// guarded by the task's own lock; the manager lock only guards the
// registry. Every mutation refreshes updatedAt.
type Task struct {
	ID          string
	Description string
	URL         string

	clock    Clock
	cancelCh chan struct{}

	mu              sync.RWMutex
	status          Status
	progress        []ProgressEvent
	result          *TaskResult
	errMsg          string
	cancelRequested bool
	createdAt       time.Time
	startedAt       *time.Time
	completedAt     *time.Time
	updatedAt       time.Time
}

func newTask(id, description, url string, clock Clock) *Task {
	now := clock.Now()
	return &Task{
		ID:          id,
		Description: description,
		URL:         url,
		clock:       clock,
		cancelCh:    make(chan struct{}),
		status:      StatusPending,
		createdAt:   now,
		updatedAt:   now,
	}
}

// Status returns the current lifecycle state.
func (t *Task) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// IsTerminal reports whether the task has reached a final state.
func (t *Task) IsTerminal() bool {
	return t.Status().IsTerminal()
}

// UpdatedAt returns the time of the last mutation.
func (t *Task) UpdatedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.updatedAt
}

// CancelRequested reports whether a cancel has been requested. The loop
// polls this at its checkpoints.
func (t *Task) CancelRequested() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cancelRequested
}

// CancelCh is closed when a cancel is requested, waking waiters that
// cannot poll (a pending task queued behind the concurrency cap).
func (t *Task) CancelCh() <-chan struct{} {
	return t.cancelCh
}

// RequestCancel sets the cooperative cancel flag. It reports false when
// the task is already terminal, in which case nothing is touched. Repeat
// requests are no-ops.
func (t *Task) RequestCancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.IsTerminal() {
		return false
	}
	if !t.cancelRequested {
		t.cancelRequested = true
		close(t.cancelCh)
		t.updatedAt = t.clock.Now()
	}
	return true
}

// AppendEvent appends one progress event with the current timestamp.
func (t *Task) AppendEvent(kind EventKind, message string, detail map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	t.progress = append(t.progress, ProgressEvent{
		Timestamp: now,
		Kind:      kind,
		Message:   message,
		Detail:    detail,
	})
	t.updatedAt = now
}

// TurnCount returns how many turn events the task has logged.
func (t *Task) TurnCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, ev := range t.progress {
		if ev.Kind == EventTurn {
			n++
		}
	}
	return n
}

// MarkRunning transitions pending to running and stamps StartedAt.
func (t *Task) MarkRunning() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.IsTerminal() {
		return
	}
	now := t.clock.Now()
	t.status = StatusRunning
	t.startedAt = &now
	t.updatedAt = now
}

// Complete transitions to completed with the result. Terminal states are
// sticky; a second transition is ignored.
func (t *Task) Complete(result *TaskResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.IsTerminal() {
		return
	}
	now := t.clock.Now()
	t.status = StatusCompleted
	t.result = result
	t.completedAt = &now
	t.updatedAt = now
}

// Fail transitions to failed with a human-readable cause.
func (t *Task) Fail(errMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.IsTerminal() {
		return
	}
	now := t.clock.Now()
	t.status = StatusFailed
	t.errMsg = errMsg
	t.completedAt = &now
	t.updatedAt = now
}

// MarkCancelled transitions to cancelled. Cancelled is a normal terminal
// status, not an error; neither result nor error is set.
func (t *Task) MarkCancelled() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.IsTerminal() {
		return
	}
	now := t.clock.Now()
	t.status = StatusCancelled
	t.completedAt = &now
	t.updatedAt = now
}

// ProgressSummary compacts the progress log for polling clients.
type ProgressSummary struct {
	TotalSteps    int      `json:"total_steps"`
	RecentActions []string `json:"recent_actions"`
}

// Snapshot is a point-in-time copy of a task, shaped for tool payloads.
// Full snapshots carry the whole progress log; compact ones carry a
// summary instead.
type Snapshot struct {
	TaskID      string     `json:"task_id"`
	Description string     `json:"task_description"`
	URL         string     `json:"url,omitempty"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Progress        []ProgressEvent  `json:"progress,omitempty"`
	ProgressSummary *ProgressSummary `json:"progress_summary,omitempty"`

	Result *TaskResult `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`

	RecommendedPollAfter *time.Time `json:"recommended_poll_after,omitempty"`
	PollingGuidance      string     `json:"polling_guidance,omitempty"`
}

// Snapshot returns a full consistent copy, progress included.
func (t *Task) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := Snapshot{
		TaskID:      t.ID,
		Description: t.Description,
		URL:         t.URL,
		Status:      t.status,
		CreatedAt:   t.createdAt,
		StartedAt:   copyTime(t.startedAt),
		CompletedAt: copyTime(t.completedAt),
		Progress:    append([]ProgressEvent(nil), t.progress...),
		Error:       t.errMsg,
	}
	if t.result != nil {
		r := *t.result
		snap.Result = &r
	}
	return snap
}

// CompactSnapshot returns the polling view: the last n event messages and
// the total count instead of the full log. The result appears only on
// completed tasks and the error only on failed ones.
func (t *Task) CompactSnapshot(n int) Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	start := len(t.progress) - n
	if start < 0 {
		start = 0
	}
	recent := make([]string, 0, len(t.progress)-start)
	for _, ev := range t.progress[start:] {
		recent = append(recent, ev.Message)
	}

	snap := Snapshot{
		TaskID:      t.ID,
		Description: t.Description,
		URL:         t.URL,
		Status:      t.status,
		CreatedAt:   t.createdAt,
		StartedAt:   copyTime(t.startedAt),
		CompletedAt: copyTime(t.completedAt),
		ProgressSummary: &ProgressSummary{
			TotalSteps:    len(t.progress),
			RecentActions: recent,
		},
	}
	switch t.status {
	case StatusCompleted:
		if t.result != nil {
			r := *t.result
			snap.Result = &r
		}
	case StatusFailed:
		snap.Error = t.errMsg
	}
	return snap
}

// TaskSummary is the per-task row of List.
type TaskSummary struct {
	TaskID      string    `json:"task_id"`
	Description string    `json:"task_description"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Summary returns the listing row for the task.
func (t *Task) Summary() TaskSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return TaskSummary{
		TaskID:      t.ID,
		Description: t.Description,
		Status:      t.status,
		CreatedAt:   t.createdAt,
		UpdatedAt:   t.updatedAt,
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
