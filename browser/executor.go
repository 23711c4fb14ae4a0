package browser

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/webpilot-ai/webpilot/types"
)

// ActionResult reports one executed action back to the caller. A non-empty
// Error is fed to the model as the function result; it never aborts a turn.
type ActionResult struct {
	Kind  ActionKind `json:"kind"`
	Error string     `json:"error,omitempty"`
}

// waitActionDelay is the fixed pause behind the wait_5_seconds action.
const waitActionDelay = 5 * time.Second

// Executor turns validated actions into driver calls, applying the
// per-action settle policy afterwards. It keeps no task state.
type Executor struct {
	driver Driver
	screen Screen

	searchURL     string
	settleTimeout time.Duration
	settleDelay   time.Duration

	// sleep is replaceable in tests.
	sleep  func(ctx context.Context, d time.Duration) error
	logger *zap.Logger
}

// NewExecutor creates an executor over driver.
func NewExecutor(driver Driver, cfg Config, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		driver:        driver,
		screen:        cfg.Screen,
		searchURL:     cfg.SearchURL,
		settleTimeout: cfg.SettleTimeout,
		settleDelay:   cfg.SettleDelay,
		sleep:         sleepCtx,
		logger:        logger.With(zap.String("component", "executor")),
	}
}

// Execute performs one action and settles the page. Driver failures are
// captured into the result; the settle step runs only after success.
func (e *Executor) Execute(ctx context.Context, action *Action) *ActionResult {
	res := &ActionResult{Kind: action.Kind}

	e.logger.Debug("executing action", zap.String("action", string(action.Kind)))

	if err := e.perform(ctx, action); err != nil {
		e.logger.Warn("action failed",
			zap.String("action", string(action.Kind)),
			zap.Error(err),
		)
		res.Error = err.Error()
		return res
	}

	e.settle(ctx, action.Kind)
	return res
}

func (e *Executor) perform(ctx context.Context, a *Action) error {
	switch a.Kind {
	case ActionOpenBrowser:
		// The browser is already open; the follow-up screenshot is the answer.
		return nil

	case ActionWaitSeconds:
		return e.sleep(ctx, waitActionDelay)

	case ActionGoBack:
		return e.driver.GoBack(ctx)

	case ActionGoForward:
		return e.driver.GoForward(ctx)

	case ActionSearch:
		return e.driver.Navigate(ctx, e.searchURL)

	case ActionNavigate:
		return e.driver.Navigate(ctx, a.URL)

	case ActionClickAt:
		x, y := e.screen.Denormalize(a.X, a.Y)
		return e.driver.Click(ctx, x, y)

	case ActionHoverAt:
		x, y := e.screen.Denormalize(a.X, a.Y)
		return e.driver.MoveMouse(ctx, x, y)

	case ActionTypeTextAt:
		return e.typeTextAt(ctx, a)

	case ActionKeyCombination:
		return e.driver.PressKey(ctx, a.Keys)

	case ActionScrollDocument:
		return e.scrollDocument(ctx, a.Direction)

	case ActionScrollAt:
		return e.scrollAt(ctx, a)

	case ActionDragAndDrop:
		return e.dragAndDrop(ctx, a)
	}

	return types.NewUnsupportedActionError(string(a.Kind))
}

// typeTextAt focuses a point by clicking, optionally clears the field,
// types the text and optionally submits with Enter.
func (e *Executor) typeTextAt(ctx context.Context, a *Action) error {
	x, y := e.screen.Denormalize(a.X, a.Y)
	if err := e.driver.Click(ctx, x, y); err != nil {
		return err
	}
	if a.ClearBeforeTyping {
		if err := e.driver.PressKey(ctx, "Meta+A"); err != nil {
			return err
		}
		if err := e.driver.PressKey(ctx, "Backspace"); err != nil {
			return err
		}
	}
	if err := e.driver.TypeText(ctx, a.Text); err != nil {
		return err
	}
	if a.PressEnter {
		return e.driver.PressKey(ctx, "Enter")
	}
	return nil
}

func (e *Executor) scrollDocument(ctx context.Context, direction string) error {
	var key string
	switch direction {
	case "down":
		key = "PageDown"
	case "up":
		key = "PageUp"
	case "left":
		key = "ArrowLeft"
	case "right":
		key = "ArrowRight"
	default:
		return types.NewInvalidActionError("unknown scroll direction %q", direction)
	}
	return e.driver.PressKey(ctx, key)
}

// scrollAt moves the pointer to the target point and scrolls the wheel by
// the magnitude denormalized against the viewport height.
func (e *Executor) scrollAt(ctx context.Context, a *Action) error {
	x, y := e.screen.Denormalize(a.X, a.Y)
	if err := e.driver.MoveMouse(ctx, x, y); err != nil {
		return err
	}

	amount := e.screen.DenormY(a.Magnitude)
	switch a.Direction {
	case "down":
		return e.driver.Wheel(ctx, 0, amount)
	case "up":
		return e.driver.Wheel(ctx, 0, -amount)
	case "left":
		return e.driver.Wheel(ctx, -amount, 0)
	case "right":
		return e.driver.Wheel(ctx, amount, 0)
	}
	return types.NewInvalidActionError("unknown scroll direction %q", a.Direction)
}

func (e *Executor) dragAndDrop(ctx context.Context, a *Action) error {
	x, y := e.screen.Denormalize(a.X, a.Y)
	destX, destY := e.screen.Denormalize(a.DestinationX, a.DestinationY)

	if err := e.driver.MoveMouse(ctx, x, y); err != nil {
		return err
	}
	if err := e.driver.MouseDown(ctx); err != nil {
		return err
	}
	if err := e.driver.MoveMouse(ctx, destX, destY); err != nil {
		return err
	}
	return e.driver.MouseUp(ctx)
}

// settle lets the page catch up after an action. Navigation kinds wait for
// content-loaded within the settle timeout; everything else pauses briefly.
// Settle problems are logged, never surfaced as action failures.
func (e *Executor) settle(ctx context.Context, kind ActionKind) {
	if kind.IsNavigation() {
		if err := e.driver.WaitForLoad(ctx, e.settleTimeout); err != nil {
			e.logger.Debug("settle wait did not finish",
				zap.String("action", string(kind)),
				zap.Error(err),
			)
		}
		return
	}
	_ = e.sleep(ctx, e.settleDelay)
}

// sleepCtx sleeps for d unless ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
