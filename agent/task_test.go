package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2025, 1, 14, 19, 30, 0, 0, time.UTC)

func TestStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusPending, false},
		{StatusRunning, false},
		{StatusCompleted, true},
		{StatusFailed, true},
		{StatusCancelled, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.terminal, tt.status.IsTerminal(), "status %s", tt.status)
	}
}

func TestTask_Lifecycle(t *testing.T) {
	clock := NewFakeClock(testEpoch)
	task := newTask("t1", "find the answer", "https://example.com", clock)

	assert.Equal(t, StatusPending, task.Status())
	assert.False(t, task.IsTerminal())
	assert.Equal(t, testEpoch, task.UpdatedAt())

	clock.Advance(time.Second)
	task.MarkRunning()
	assert.Equal(t, StatusRunning, task.Status())

	snap := task.Snapshot()
	require.NotNil(t, snap.StartedAt)
	assert.Equal(t, testEpoch.Add(time.Second), *snap.StartedAt)
	assert.Nil(t, snap.CompletedAt)

	clock.Advance(time.Second)
	task.Complete(&TaskResult{Answer: "42", SessionID: "s1", ScreenshotDir: "/tmp/s1"})
	assert.Equal(t, StatusCompleted, task.Status())
	assert.True(t, task.IsTerminal())

	snap = task.Snapshot()
	require.NotNil(t, snap.CompletedAt)
	assert.Equal(t, testEpoch.Add(2*time.Second), *snap.CompletedAt)
	require.NotNil(t, snap.Result)
	assert.Equal(t, "42", snap.Result.Answer)
	assert.Empty(t, snap.Error)
}

func TestTask_TerminalIsSticky(t *testing.T) {
	clock := NewFakeClock(testEpoch)

	task := newTask("t1", "desc", "", clock)
	task.Complete(&TaskResult{Answer: "done"})
	updated := task.UpdatedAt()

	clock.Advance(time.Minute)
	task.Fail("late failure")
	task.MarkCancelled()
	task.MarkRunning()

	assert.Equal(t, StatusCompleted, task.Status())
	assert.Equal(t, updated, task.UpdatedAt())
	assert.Empty(t, task.Snapshot().Error)

	failed := newTask("t2", "desc", "", clock)
	failed.Fail("boom")
	failed.Complete(&TaskResult{Answer: "too late"})
	assert.Equal(t, StatusFailed, failed.Status())
	assert.Nil(t, failed.Snapshot().Result)
	assert.Equal(t, "boom", failed.Snapshot().Error)
}

func TestTask_RequestCancel(t *testing.T) {
	clock := NewFakeClock(testEpoch)
	task := newTask("t1", "desc", "", clock)

	select {
	case <-task.CancelCh():
		t.Fatal("cancel channel closed before request")
	default:
	}

	clock.Advance(time.Second)
	assert.True(t, task.RequestCancel())
	assert.True(t, task.CancelRequested())
	assert.Equal(t, testEpoch.Add(time.Second), task.UpdatedAt())

	select {
	case <-task.CancelCh():
	default:
		t.Fatal("cancel channel not closed after request")
	}

	// Repeat requests are no-ops, not double closes.
	assert.True(t, task.RequestCancel())
}

func TestTask_RequestCancel_Terminal(t *testing.T) {
	clock := NewFakeClock(testEpoch)
	task := newTask("t1", "desc", "", clock)
	task.Complete(nil)
	updated := task.UpdatedAt()

	clock.Advance(time.Hour)
	assert.False(t, task.RequestCancel())
	assert.False(t, task.CancelRequested())
	assert.Equal(t, updated, task.UpdatedAt())
}

func TestTask_AppendEvent(t *testing.T) {
	clock := NewFakeClock(testEpoch)
	task := newTask("t1", "desc", "", clock)

	task.AppendEvent(EventInfo, "Started browser automation", nil)
	clock.Advance(time.Second)
	task.AppendEvent(EventTurn, "Turn 1/30", nil)
	clock.Advance(time.Second)
	task.AppendEvent(EventFunctionCall, "Action: click_at", map[string]any{"x": 500})

	snap := task.Snapshot()
	require.Len(t, snap.Progress, 3)
	assert.Equal(t, testEpoch, snap.Progress[0].Timestamp)
	assert.Equal(t, EventInfo, snap.Progress[0].Kind)
	assert.Equal(t, testEpoch.Add(time.Second), snap.Progress[1].Timestamp)
	assert.Equal(t, "Turn 1/30", snap.Progress[1].Message)
	assert.Equal(t, map[string]any{"x": 500}, snap.Progress[2].Detail)
	assert.Equal(t, testEpoch.Add(2*time.Second), task.UpdatedAt())
}

func TestTask_TurnCount(t *testing.T) {
	task := newTask("t1", "desc", "", NewFakeClock(testEpoch))
	assert.Equal(t, 0, task.TurnCount())

	task.AppendEvent(EventInfo, "Started browser automation", nil)
	task.AppendEvent(EventTurn, "Turn 1/30", nil)
	task.AppendEvent(EventFunctionCall, "Action: navigate", nil)
	task.AppendEvent(EventTurn, "Turn 2/30", nil)
	assert.Equal(t, 2, task.TurnCount())
}

func TestTask_SnapshotIsolation(t *testing.T) {
	task := newTask("t1", "desc", "", NewFakeClock(testEpoch))
	task.AppendEvent(EventInfo, "one", nil)

	snap := task.Snapshot()
	task.AppendEvent(EventInfo, "two", nil)

	assert.Len(t, snap.Progress, 1)
	assert.Len(t, task.Snapshot().Progress, 2)
}

func TestTask_CompactSnapshot(t *testing.T) {
	clock := NewFakeClock(testEpoch)
	task := newTask("t1", "check prices", "https://example.com", clock)
	task.MarkRunning()
	for _, msg := range []string{"one", "two", "three", "four", "five"} {
		task.AppendEvent(EventInfo, msg, nil)
	}

	snap := task.CompactSnapshot(3)
	assert.Equal(t, "t1", snap.TaskID)
	assert.Equal(t, "check prices", snap.Description)
	assert.Equal(t, StatusRunning, snap.Status)
	assert.Nil(t, snap.Progress)
	require.NotNil(t, snap.ProgressSummary)
	assert.Equal(t, 5, snap.ProgressSummary.TotalSteps)
	assert.Equal(t, []string{"three", "four", "five"}, snap.ProgressSummary.RecentActions)

	// Running tasks expose neither result nor error.
	assert.Nil(t, snap.Result)
	assert.Empty(t, snap.Error)
}

func TestTask_CompactSnapshot_ShortLog(t *testing.T) {
	task := newTask("t1", "desc", "", NewFakeClock(testEpoch))
	task.AppendEvent(EventInfo, "only", nil)

	snap := task.CompactSnapshot(3)
	assert.Equal(t, 1, snap.ProgressSummary.TotalSteps)
	assert.Equal(t, []string{"only"}, snap.ProgressSummary.RecentActions)
}

func TestTask_CompactSnapshot_TerminalPayloads(t *testing.T) {
	clock := NewFakeClock(testEpoch)

	done := newTask("t1", "desc", "", clock)
	done.Complete(&TaskResult{Answer: "42", SessionID: "s1", ScreenshotDir: "/tmp/s1"})
	snap := done.CompactSnapshot(3)
	require.NotNil(t, snap.Result)
	assert.Equal(t, "42", snap.Result.Answer)
	assert.Empty(t, snap.Error)

	failed := newTask("t2", "desc", "", clock)
	failed.Fail("model exploded")
	snap = failed.CompactSnapshot(3)
	assert.Nil(t, snap.Result)
	assert.Equal(t, "model exploded", snap.Error)
}

func TestTask_Summary(t *testing.T) {
	clock := NewFakeClock(testEpoch)
	task := newTask("t1", "compare flights", "", clock)
	clock.Advance(time.Minute)
	task.MarkRunning()

	s := task.Summary()
	assert.Equal(t, "t1", s.TaskID)
	assert.Equal(t, "compare flights", s.Description)
	assert.Equal(t, StatusRunning, s.Status)
	assert.Equal(t, testEpoch, s.CreatedAt)
	assert.Equal(t, testEpoch.Add(time.Minute), s.UpdatedAt)
}
