package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/webpilot-ai/webpilot/browser"
	"github.com/webpilot-ai/webpilot/gemini"
	"github.com/webpilot-ai/webpilot/types"
)

// scriptedModel returns one canned turn per call and records the history
// it was handed.
type scriptedModel struct {
	mu    sync.Mutex
	turns []modelTurn
	calls [][]gemini.Content
}

type modelTurn struct {
	cand *gemini.Candidate
	err  error
}

func (m *scriptedModel) GenerateContent(ctx context.Context, contents []gemini.Content) (*gemini.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, append([]gemini.Content(nil), contents...))
	if len(m.turns) == 0 {
		return nil, errors.New("scripted model exhausted")
	}
	turn := m.turns[0]
	m.turns = m.turns[1:]
	return turn.cand, turn.err
}

func (m *scriptedModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *scriptedModel) call(i int) []gemini.Content {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[i]
}

func textCandidate(texts ...string) *gemini.Candidate {
	parts := make([]gemini.Part, 0, len(texts))
	for _, s := range texts {
		parts = append(parts, gemini.Part{Text: s})
	}
	return &gemini.Candidate{Content: gemini.Content{Role: gemini.RoleModel, Parts: parts}}
}

func callCandidate(calls ...*gemini.FunctionCall) *gemini.Candidate {
	parts := make([]gemini.Part, 0, len(calls))
	for _, c := range calls {
		parts = append(parts, gemini.Part{FunctionCall: c})
	}
	return &gemini.Candidate{Content: gemini.Content{Role: gemini.RoleModel, Parts: parts}}
}

// loopDriver records driver calls and serves canned screenshots.
type loopDriver struct {
	mu      sync.Mutex
	calls   []string
	url     string
	png     []byte
	failOn  string
	failErr error
}

func newLoopDriver() *loopDriver {
	return &loopDriver{url: "https://example.com/page", png: []byte("png-bytes")}
}

func (d *loopDriver) record(call string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, call)
	if d.failOn != "" && strings.HasPrefix(call, d.failOn) {
		if d.failErr != nil {
			return d.failErr
		}
		return fmt.Errorf("%s blew up", d.failOn)
	}
	return nil
}

func (d *loopDriver) recorded() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *loopDriver) Navigate(ctx context.Context, url string) error {
	return d.record("navigate " + url)
}
func (d *loopDriver) GoBack(ctx context.Context) error    { return d.record("go_back") }
func (d *loopDriver) GoForward(ctx context.Context) error { return d.record("go_forward") }
func (d *loopDriver) Click(ctx context.Context, x, y int) error {
	return d.record(fmt.Sprintf("click %d,%d", x, y))
}
func (d *loopDriver) MoveMouse(ctx context.Context, x, y int) error {
	return d.record(fmt.Sprintf("move %d,%d", x, y))
}
func (d *loopDriver) MouseDown(ctx context.Context) error { return d.record("mouse_down") }
func (d *loopDriver) MouseUp(ctx context.Context) error   { return d.record("mouse_up") }
func (d *loopDriver) TypeText(ctx context.Context, text string) error {
	return d.record("type " + text)
}
func (d *loopDriver) PressKey(ctx context.Context, keys string) error {
	return d.record("press " + keys)
}
func (d *loopDriver) Wheel(ctx context.Context, dx, dy int) error {
	return d.record(fmt.Sprintf("wheel %d,%d", dx, dy))
}
func (d *loopDriver) Screenshot(ctx context.Context) ([]byte, error) {
	if err := d.record("screenshot"); err != nil {
		return nil, err
	}
	return d.png, nil
}
func (d *loopDriver) CurrentURL(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url, nil
}
func (d *loopDriver) WaitForLoad(ctx context.Context, timeout time.Duration) error {
	return d.record("wait_for_load")
}
func (d *loopDriver) Close(ctx context.Context) error { return d.record("close") }

func newTestLoop(t *testing.T, model Model, maxTurns int) (*Loop, *loopDriver, *browser.ScreenshotStore) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := browser.NewScreenshotStore(t.TempDir(), logger)
	loop := NewLoop(model, store, browser.DefaultConfig(), maxTurns, nil, logger)

	driver := newLoopDriver()
	loop.newDriver = func(browser.Config, *zap.Logger) (browser.Driver, error) {
		return driver, nil
	}
	loop.now = func() time.Time { return testEpoch }
	return loop, driver, store
}

func newLoopTask(description, url string) *Task {
	return newTask("task-1", description, url, NewFakeClock(testEpoch))
}

func TestLoop_FinalAnswerFirstTurn(t *testing.T) {
	model := &scriptedModel{turns: []modelTurn{
		{cand: textCandidate("All done.")},
	}}
	loop, driver, store := newTestLoop(t, model, 5)
	task := newLoopTask("find the answer", "")

	out := loop.Run(context.Background(), task)

	require.Equal(t, StatusCompleted, out.Status)
	require.NotNil(t, out.Result)
	assert.Equal(t, "All done.", out.Result.Answer)
	assert.NotEmpty(t, out.Result.SessionID)
	assert.Equal(t, store.SessionDir(out.Result.SessionID), out.Result.ScreenshotDir)

	// Empty task URL falls back to the search engine.
	calls := driver.recorded()
	assert.Contains(t, calls, "navigate https://www.google.com")
	assert.Equal(t, "close", calls[len(calls)-1])

	// Initial and final screenshots were persisted.
	shots, err := store.List(out.Result.SessionID)
	require.NoError(t, err)
	require.Len(t, shots, 2)
	assert.Contains(t, shots[0], "step_00_initial")
	assert.Contains(t, shots[1], "step_01_final")

	// The first model call carries the goal text plus the screenshot.
	first := model.call(0)
	require.Len(t, first, 1)
	require.Len(t, first[0].Parts, 2)
	assert.Equal(t, "find the answer", first[0].Parts[0].Text)
	require.NotNil(t, first[0].Parts[1].InlineData)
	assert.Equal(t, "image/png", first[0].Parts[1].InlineData.MimeType)

	snap := task.Snapshot()
	require.Len(t, snap.Progress, 3)
	assert.Equal(t, EventInfo, snap.Progress[0].Kind)
	assert.Equal(t, "Turn 1/5", snap.Progress[1].Message)
	assert.Equal(t, EventFinal, snap.Progress[2].Kind)
	assert.Equal(t, "All done.", snap.Progress[2].Message)
}

func TestLoop_StartURL(t *testing.T) {
	model := &scriptedModel{turns: []modelTurn{{cand: textCandidate("ok")}}}
	loop, driver, _ := newTestLoop(t, model, 5)
	task := newLoopTask("check the docs", "https://docs.example.com")

	out := loop.Run(context.Background(), task)

	require.Equal(t, StatusCompleted, out.Status)
	assert.Contains(t, driver.recorded(), "navigate https://docs.example.com")
}

func TestLoop_FunctionCallRoundTrip(t *testing.T) {
	model := &scriptedModel{turns: []modelTurn{
		{cand: callCandidate(&gemini.FunctionCall{
			Name: "click_at",
			Args: map[string]any{"x": float64(500), "y": float64(500)},
		})},
		{cand: textCandidate("done")},
	}}
	loop, driver, store := newTestLoop(t, model, 5)
	task := newLoopTask("click the button", "https://example.com")

	out := loop.Run(context.Background(), task)

	require.Equal(t, StatusCompleted, out.Status)
	assert.Equal(t, "done", out.Result.Answer)

	// 500/999 on a 1440x900 viewport lands at 720,450.
	assert.Contains(t, driver.recorded(), "click 720,450")

	// Second model call sees: user turn, model turn, function responses.
	require.Equal(t, 2, model.callCount())
	second := model.call(1)
	require.Len(t, second, 3)
	respTurn := second[2]
	assert.Equal(t, gemini.RoleUser, respTurn.Role)
	require.Len(t, respTurn.Parts, 1)
	resp := respTurn.Parts[0].FunctionResponse
	require.NotNil(t, resp)
	assert.Equal(t, "click_at", resp.Name)
	assert.Equal(t, "https://example.com/page", resp.Response["url"])
	_, hasErr := resp.Response["error"]
	assert.False(t, hasErr)
	require.Len(t, resp.Parts, 1)
	require.NotNil(t, resp.Parts[0].InlineData)
	assert.Equal(t, "image/png", resp.Parts[0].InlineData.MimeType)

	// Per-turn screenshot between initial and final.
	shots, err := store.List(out.Result.SessionID)
	require.NoError(t, err)
	require.Len(t, shots, 3)
	assert.Contains(t, shots[1], "step_01")

	snap := task.Snapshot()
	messages := make([]string, 0, len(snap.Progress))
	for _, ev := range snap.Progress {
		messages = append(messages, ev.Message)
	}
	assert.Contains(t, messages, "Action: click_at")
	assert.Contains(t, messages, "Action click_at ok")
}

func TestLoop_UnknownActionReportedToModel(t *testing.T) {
	model := &scriptedModel{turns: []modelTurn{
		{cand: callCandidate(&gemini.FunctionCall{Name: "teleport"})},
		{cand: textCandidate("gave up")},
	}}
	loop, driver, _ := newTestLoop(t, model, 5)
	task := newLoopTask("do something odd", "https://example.com")

	out := loop.Run(context.Background(), task)

	// A bad action never aborts the loop; the error goes back to the model.
	require.Equal(t, StatusCompleted, out.Status)
	second := model.call(1)
	resp := second[2].Parts[0].FunctionResponse
	require.NotNil(t, resp)
	assert.Equal(t, "teleport", resp.Name)
	assert.Contains(t, resp.Response["error"], "unsupported action")

	for _, call := range driver.recorded() {
		assert.NotContains(t, call, "teleport")
	}
}

func TestLoop_ActionFailureReportedToModel(t *testing.T) {
	model := &scriptedModel{turns: []modelTurn{
		{cand: callCandidate(&gemini.FunctionCall{
			Name: "click_at",
			Args: map[string]any{"x": float64(100), "y": float64(100)},
		})},
		{cand: textCandidate("recovered")},
	}}
	loop, driver, _ := newTestLoop(t, model, 5)
	driver.failOn = "click"
	task := newLoopTask("click something broken", "https://example.com")

	out := loop.Run(context.Background(), task)

	require.Equal(t, StatusCompleted, out.Status)
	resp := model.call(1)[2].Parts[0].FunctionResponse
	assert.Contains(t, resp.Response["error"], "click blew up")

	snap := task.Snapshot()
	var failureEvent bool
	for _, ev := range snap.Progress {
		if ev.Kind == EventFunctionResult && strings.Contains(ev.Message, "failed") {
			failureEvent = true
		}
	}
	assert.True(t, failureEvent)
}

func TestLoop_SafetyAcknowledgment(t *testing.T) {
	model := &scriptedModel{turns: []modelTurn{
		{cand: callCandidate(&gemini.FunctionCall{
			Name:           "navigate",
			Args:           map[string]any{"url": "https://bank.example.com"},
			SafetyDecision: &gemini.SafetyDecision{Decision: "require_confirmation", Explanation: "sensitive site"},
		})},
		{cand: textCandidate("done")},
	}}
	loop, _, _ := newTestLoop(t, model, 5)
	task := newLoopTask("open the bank", "https://example.com")

	out := loop.Run(context.Background(), task)

	require.Equal(t, StatusCompleted, out.Status)
	resp := model.call(1)[2].Parts[0].FunctionResponse
	require.NotNil(t, resp.SafetyAcknowledgment)
	assert.True(t, resp.SafetyAcknowledgment.Acknowledged)
	assert.Equal(t, "require_confirmation", resp.SafetyAcknowledgment.Decision)

	snap := task.Snapshot()
	var acked bool
	for _, ev := range snap.Progress {
		if strings.Contains(ev.Message, "Acknowledged safety decision") {
			acked = true
		}
	}
	assert.True(t, acked)
}

func TestLoop_TurnLimit(t *testing.T) {
	clickTurn := func() modelTurn {
		return modelTurn{cand: callCandidate(&gemini.FunctionCall{
			Name: "click_at",
			Args: map[string]any{"x": float64(500), "y": float64(500)},
		})}
	}
	model := &scriptedModel{turns: []modelTurn{clickTurn(), clickTurn(), clickTurn()}}
	loop, _, _ := newTestLoop(t, model, 2)
	task := newLoopTask("never finishes", "https://example.com")

	out := loop.Run(context.Background(), task)

	require.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, types.ErrTurnLimitExceeded, types.GetErrorCode(out.Err))
	assert.Equal(t, 2, model.callCount())

	snap := task.Snapshot()
	last := snap.Progress[len(snap.Progress)-1]
	assert.Equal(t, EventError, last.Kind)
	assert.Contains(t, last.Message, "maximum turns (2)")
}

func TestLoop_CancelCheckpoint(t *testing.T) {
	model := &scriptedModel{turns: []modelTurn{{cand: textCandidate("unreachable")}}}
	loop, _, _ := newTestLoop(t, model, 5)
	task := newLoopTask("cancelled early", "https://example.com")
	task.RequestCancel()

	out := loop.Run(context.Background(), task)

	assert.Equal(t, StatusCancelled, out.Status)
	assert.Equal(t, 0, model.callCount())
}

func TestLoop_ContextCancelled(t *testing.T) {
	model := &scriptedModel{turns: []modelTurn{{cand: textCandidate("unreachable")}}}
	loop, _, _ := newTestLoop(t, model, 5)
	task := newLoopTask("cancelled via ctx", "https://example.com")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := loop.Run(ctx, task)

	assert.Equal(t, StatusCancelled, out.Status)
	assert.Equal(t, 0, model.callCount())
}

func TestLoop_ModelFailure(t *testing.T) {
	modelErr := types.NewCapabilityError("gemini", "rate limited hard")
	model := &scriptedModel{turns: []modelTurn{{err: modelErr}}}
	loop, _, _ := newTestLoop(t, model, 5)
	task := newLoopTask("doomed", "https://example.com")

	out := loop.Run(context.Background(), task)

	require.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, modelErr, out.Err)

	snap := task.Snapshot()
	last := snap.Progress[len(snap.Progress)-1]
	assert.Equal(t, EventError, last.Kind)
	assert.Contains(t, last.Message, "Model call failed")
}

func TestLoop_DriverLaunchFailure(t *testing.T) {
	model := &scriptedModel{}
	loop, _, _ := newTestLoop(t, model, 5)
	loop.newDriver = func(browser.Config, *zap.Logger) (browser.Driver, error) {
		return nil, errors.New("no chromium")
	}
	task := newLoopTask("never starts", "")

	out := loop.Run(context.Background(), task)

	require.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, types.ErrCapability, types.GetErrorCode(out.Err))
	assert.Contains(t, out.Err.Error(), "failed to launch browser")
}

func TestLoop_NavigateFailure(t *testing.T) {
	model := &scriptedModel{}
	loop, driver, _ := newTestLoop(t, model, 5)
	driver.failOn = "navigate"
	task := newLoopTask("bad start url", "https://unreachable.example.com")

	out := loop.Run(context.Background(), task)

	require.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, types.ErrCapability, types.GetErrorCode(out.Err))
	assert.Contains(t, out.Err.Error(), "https://unreachable.example.com")
	assert.Equal(t, 0, model.callCount())
}

func TestLoop_ScreenshotFailureTolerated(t *testing.T) {
	model := &scriptedModel{turns: []modelTurn{{cand: textCandidate("done anyway")}}}
	loop, driver, _ := newTestLoop(t, model, 5)
	driver.failOn = "screenshot"
	task := newLoopTask("blind run", "https://example.com")

	out := loop.Run(context.Background(), task)

	require.Equal(t, StatusCompleted, out.Status)
	assert.Equal(t, "done anyway", out.Result.Answer)

	// Without a screenshot the first turn is text-only.
	first := model.call(0)
	require.Len(t, first[0].Parts, 1)
	assert.Equal(t, "blind run", first[0].Parts[0].Text)
}
