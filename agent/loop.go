package agent

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/webpilot-ai/webpilot/browser"
	"github.com/webpilot-ai/webpilot/gemini"
	"github.com/webpilot-ai/webpilot/internal/metrics"
	"github.com/webpilot-ai/webpilot/types"
)

// Model is the slice of the vision client the loop depends on.
type Model interface {
	GenerateContent(ctx context.Context, contents []gemini.Content) (*gemini.Candidate, error)
}

var _ Model = (*gemini.Client)(nil)

// DriverFactory builds a fresh browser driver for one task. Each task gets
// its own browser so tasks never share page state.
type DriverFactory func(cfg browser.Config, logger *zap.Logger) (browser.Driver, error)

// Loop runs the screenshot -> model -> action cycle for one task until the
// model stops proposing actions, the turn budget runs out, or the task is
// cancelled. It implements TaskRunner.
type Loop struct {
	model    Model
	store    *browser.ScreenshotStore
	cfg      browser.Config
	maxTurns int
	metrics  *metrics.Collector
	tracer   trace.Tracer
	logger   *zap.Logger

	newDriver DriverFactory
	now       func() time.Time
}

var _ TaskRunner = (*Loop)(nil)

// NewLoop creates an agent loop. The collector may be nil.
func NewLoop(model Model, store *browser.ScreenshotStore, cfg browser.Config, maxTurns int, collector *metrics.Collector, logger *zap.Logger) *Loop {
	if maxTurns <= 0 {
		maxTurns = 30
	}
	return &Loop{
		model:    model,
		store:    store,
		cfg:      cfg,
		maxTurns: maxTurns,
		metrics:  collector,
		tracer:   otel.Tracer("webpilot/agent"),
		logger:   logger.With(zap.String("component", "agent_loop")),
		newDriver: func(cfg browser.Config, logger *zap.Logger) (browser.Driver, error) {
			return browser.NewPlaywrightDriver(cfg, logger)
		},
		now: time.Now,
	}
}

// Run drives task to a terminal outcome. Browser action failures are
// reported back to the model and never abort the loop; only driver
// construction, model-call failures and the turn cap end it early.
func (l *Loop) Run(ctx context.Context, task *Task) (out Outcome) {
	logger := l.logger.With(zap.String("task_id", task.ID))

	ctx, span := l.tracer.Start(ctx, "agent.task",
		trace.WithAttributes(attribute.String("task.id", task.ID)))
	defer func() {
		span.SetAttributes(attribute.String("task.status", string(out.Status)))
		if out.Err != nil {
			span.SetStatus(otelcodes.Error, out.Err.Error())
		}
		span.End()
	}()

	driver, err := l.newDriver(l.cfg, logger)
	if err != nil {
		return Outcome{
			Status: StatusFailed,
			Err:    types.NewCapabilityError("browser", "failed to launch browser").WithCause(err),
		}
	}
	// Fresh context: the browser must close even when ctx is already done.
	defer func() {
		if cerr := driver.Close(context.Background()); cerr != nil {
			logger.Warn("browser close failed", zap.Error(cerr))
		}
	}()

	executor := browser.NewExecutor(driver, l.cfg, logger)
	sessionID := browser.NewSessionID(l.now())
	sessionDir := l.store.SessionDir(sessionID)
	logger.Info("session opened",
		zap.String("session_id", sessionID),
		zap.String("task", task.Description),
	)

	startURL := task.URL
	if startURL == "" {
		startURL = l.cfg.SearchURL
	}
	if err := driver.Navigate(ctx, startURL); err != nil {
		if ctx.Err() != nil {
			return Outcome{Status: StatusCancelled}
		}
		return Outcome{
			Status: StatusFailed,
			Err:    types.NewCapabilityError("browser", fmt.Sprintf("failed to open %s", startURL)).WithCause(err),
		}
	}

	step := 0
	png := l.capture(ctx, driver, sessionID, step, "initial", logger)
	step++

	contents := []gemini.Content{gemini.NewUserTurn(task.Description, png)}
	task.AppendEvent(EventInfo, "Started browser automation", nil)

	for turn := 1; turn <= l.maxTurns; turn++ {
		if task.CancelRequested() || ctx.Err() != nil {
			task.AppendEvent(EventInfo, "Task cancelled", nil)
			return Outcome{Status: StatusCancelled}
		}

		task.AppendEvent(EventTurn, fmt.Sprintf("Turn %d/%d", turn, l.maxTurns), nil)
		logger.Info("turn", zap.Int("turn", turn), zap.Int("max_turns", l.maxTurns))

		turnCtx, turnSpan := l.tracer.Start(ctx, "agent.turn",
			trace.WithAttributes(attribute.Int("agent.turn", turn)))

		cand, err := l.model.GenerateContent(turnCtx, contents)
		if err != nil {
			turnSpan.SetStatus(otelcodes.Error, err.Error())
			turnSpan.End()
			if ctx.Err() != nil || task.CancelRequested() {
				task.AppendEvent(EventInfo, "Task cancelled", nil)
				return Outcome{Status: StatusCancelled}
			}
			task.AppendEvent(EventError, fmt.Sprintf("Model call failed: %v", err), nil)
			return Outcome{Status: StatusFailed, Err: err}
		}
		contents = append(contents, cand.Content)

		calls := gemini.FunctionCalls(cand)
		if len(calls) == 0 {
			answer := gemini.FinalText(cand)
			l.capture(turnCtx, driver, sessionID, step, "final", logger)
			step++
			turnSpan.End()
			task.AppendEvent(EventFinal, answer, nil)
			logger.Info("agent finished", zap.Int("turns", turn))
			return Outcome{
				Status: StatusCompleted,
				Result: &TaskResult{
					Answer:        answer,
					SessionID:     sessionID,
					ScreenshotDir: sessionDir,
				},
			}
		}

		responses := l.executeCalls(turnCtx, executor, task, calls, logger)

		png := l.capture(turnCtx, driver, sessionID, step, "", logger)
		step++

		currentURL, err := driver.CurrentURL(turnCtx)
		if err != nil {
			logger.Warn("current url unavailable", zap.Error(err))
		}
		for i := range responses {
			responses[i].Response["url"] = currentURL
			if png != nil {
				responses[i].Parts = []gemini.FunctionResponsePart{
					{InlineData: gemini.NewScreenshotData(png)},
				}
			}
		}
		contents = append(contents, gemini.NewFunctionResponseTurn(responses))
		turnSpan.End()
	}

	task.AppendEvent(EventError,
		fmt.Sprintf("Task reached maximum turns (%d). Please check browser state.", l.maxTurns), nil)
	return Outcome{Status: StatusFailed, Err: types.NewTurnLimitError(l.maxTurns)}
}

// executeCalls runs the turn's proposed actions in order. Parse and
// execution failures become the action's error string in the response so
// the model can react; the screenshot and url are attached by the caller.
func (l *Loop) executeCalls(ctx context.Context, executor *browser.Executor, task *Task, calls []*gemini.FunctionCall, logger *zap.Logger) []gemini.FunctionResponse {
	responses := make([]gemini.FunctionResponse, 0, len(calls))
	for _, call := range calls {
		task.AppendEvent(EventFunctionCall, fmt.Sprintf("Action: %s", call.Name), nil)
		logger.Info("executing action", zap.String("action", call.Name))

		result := map[string]any{}
		started := time.Now()

		action, err := browser.ParseAction(call.Name, call.Args)
		if err != nil {
			result["error"] = err.Error()
			task.AppendEvent(EventFunctionResult, fmt.Sprintf("Action %s failed: %v", call.Name, err), nil)
			l.recordAction(call.Name, "invalid", time.Since(started))
		} else if res := executor.Execute(ctx, action); res.Error != "" {
			result["error"] = res.Error
			task.AppendEvent(EventFunctionResult, fmt.Sprintf("Action %s failed: %s", call.Name, res.Error), nil)
			l.recordAction(call.Name, "error", time.Since(started))
		} else {
			task.AppendEvent(EventFunctionResult, fmt.Sprintf("Action %s ok", call.Name), nil)
			l.recordAction(call.Name, "ok", time.Since(started))
		}

		resp := gemini.FunctionResponse{Name: call.Name, Response: result}
		if ack := gemini.AcknowledgeSafety(call); ack != nil {
			resp.SafetyAcknowledgment = ack
			task.AppendEvent(EventInfo, fmt.Sprintf("Acknowledged safety decision for %s", call.Name), nil)
			logger.Info("safety decision acknowledged",
				zap.String("action", call.Name),
				zap.String("decision", ack.Decision),
			)
		}
		responses = append(responses, resp)
	}
	return responses
}

// capture screenshots the page and persists it. Failures are logged and
// swallowed: a missing screenshot degrades the model's view, it does not
// fail the task.
func (l *Loop) capture(ctx context.Context, driver browser.Driver, sessionID string, step int, label string, logger *zap.Logger) []byte {
	png, err := driver.Screenshot(ctx)
	if err != nil {
		logger.Warn("screenshot failed", zap.Error(err))
		return nil
	}
	path, err := l.store.Save(sessionID, step, label, png)
	if err != nil {
		logger.Warn("screenshot save failed", zap.Error(err))
		return png
	}
	logger.Debug("saved screenshot", zap.String("path", path))
	if l.metrics != nil {
		l.metrics.RecordScreenshot(len(png))
	}
	return png
}

func (l *Loop) recordAction(name, status string, d time.Duration) {
	if l.metrics != nil {
		l.metrics.RecordAction(name, status, d)
	}
}
