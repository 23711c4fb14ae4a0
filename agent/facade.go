package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// stopGrace bounds how long a timed-out Browse waits for its cancelled
// task to settle before giving up on observing the transition.
const stopGrace = 5 * time.Second

// Facade runs a task synchronously for callers that want one answer
// instead of a poll loop. It is a thin layer over the manager: start,
// poll until terminal, and on timeout stop the task so nothing keeps
// browsing unobserved.
type Facade struct {
	manager *Manager
	poll    time.Duration
	logger  *zap.Logger
}

// NewFacade creates a synchronous facade polling at the given interval.
func NewFacade(manager *Manager, poll time.Duration, logger *zap.Logger) *Facade {
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	return &Facade{
		manager: manager,
		poll:    poll,
		logger:  logger.With(zap.String("component", "sync_facade")),
	}
}

// BrowseResult is the synchronous outcome of one browsing task.
type BrowseResult struct {
	OK            bool            `json:"ok"`
	Answer        string          `json:"data,omitempty"`
	SessionID     string          `json:"session_id,omitempty"`
	ScreenshotDir string          `json:"screenshot_dir,omitempty"`
	Progress      []ProgressEvent `json:"progress,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// Browse starts a task and blocks until it reaches a terminal status or
// the timeout expires. On timeout (or caller cancellation) the task is
// stopped and briefly awaited, so Browse never orphans a running task.
func (f *Facade) Browse(ctx context.Context, description, url string, timeout time.Duration) (*BrowseResult, error) {
	if timeout <= 0 {
		timeout = f.manager.cfg.SyncTimeout
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	taskID, err := f.manager.Start(ctx, description, url)
	if err != nil {
		return nil, err
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(f.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.stopAndWait(taskID)
			return nil, ctx.Err()
		case <-deadline.C:
			f.stopAndWait(taskID)
			f.logger.Warn("synchronous browse timed out",
				zap.String("task_id", taskID),
				zap.Duration("timeout", timeout),
			)
			return &BrowseResult{OK: false, Error: fmt.Sprintf("task timed out after %s", timeout)}, nil
		case <-ticker.C:
			snap, err := f.manager.Check(taskID, false)
			if err != nil {
				return nil, err
			}
			if snap.Status.IsTerminal() {
				return resultFromSnapshot(snap), nil
			}
		}
	}
}

// stopAndWait requests cancellation and polls until the terminal
// transition lands or the grace period expires. The worker owns the
// transition; this only observes it.
func (f *Facade) stopAndWait(taskID string) {
	if err := f.manager.Stop(taskID); err != nil {
		return
	}
	grace := time.NewTimer(stopGrace)
	defer grace.Stop()
	ticker := time.NewTicker(f.poll)
	defer ticker.Stop()
	for {
		select {
		case <-grace.C:
			f.logger.Warn("cancelled task did not settle within grace period",
				zap.String("task_id", taskID))
			return
		case <-ticker.C:
			snap, err := f.manager.Check(taskID, true)
			if err != nil || snap.Status.IsTerminal() {
				return
			}
		}
	}
}

func resultFromSnapshot(snap Snapshot) *BrowseResult {
	res := &BrowseResult{
		OK:       snap.Status == StatusCompleted,
		Progress: snap.Progress,
	}
	if snap.Result != nil {
		res.Answer = snap.Result.Answer
		res.SessionID = snap.Result.SessionID
		res.ScreenshotDir = snap.Result.ScreenshotDir
	}
	switch snap.Status {
	case StatusFailed:
		res.Error = snap.Error
		if res.Error == "" {
			res.Error = "task failed"
		}
	case StatusCancelled:
		res.Error = "task cancelled"
	}
	return res
}
