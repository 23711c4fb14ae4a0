// Package tools registers the web automation tools served over MCP: the
// synchronous browse_web, the start/check/stop/list task family, screenshot
// retrieval, and a bounded wait.
package tools

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/webpilot-ai/webpilot/agent"
	"github.com/webpilot-ai/webpilot/browser"
	"github.com/webpilot-ai/webpilot/config"
	"github.com/webpilot-ai/webpilot/mcp"
	"github.com/webpilot-ai/webpilot/types"
)

const (
	minWaitSeconds = 1
	maxWaitSeconds = 60
)

// webTools binds the tool handlers to the task manager, the sync facade and
// the screenshot store.
type webTools struct {
	manager *agent.Manager
	facade  *agent.Facade
	store   *browser.ScreenshotStore
	cfg     config.TasksConfig
	logger  *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// RegisterWebTools wires the seven browsing tools into the MCP server.
func RegisterWebTools(server *mcp.Server, manager *agent.Manager, facade *agent.Facade, store *browser.ScreenshotStore, cfg config.TasksConfig, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &webTools{
		manager: manager,
		facade:  facade,
		store:   store,
		cfg:     cfg,
		logger:  logger,
		sleep:   sleepContext,
	}
	return w.register(server)
}

func (w *webTools) register(server *mcp.Server) error {
	regs := []struct {
		def     mcp.ToolDefinition
		handler mcp.ToolHandler
	}{
		{browseWebDef(), w.browseWeb},
		{startWebTaskDef(), w.startWebTask},
		{checkWebTaskDef(), w.checkWebTask},
		{stopWebTaskDef(), w.stopWebTask},
		{listWebTasksDef(), w.listWebTasks},
		{getWebScreenshotsDef(), w.getWebScreenshots},
		{waitDef(), w.wait},
	}
	for _, reg := range regs {
		if err := server.RegisterTool(reg.def, reg.handler); err != nil {
			return fmt.Errorf("register %s: %w", reg.def.Name, err)
		}
	}
	return nil
}

type startPayload struct {
	OK      bool   `json:"ok"`
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type checkPayload struct {
	OK bool `json:"ok"`
	agent.Snapshot
}

type stopPayload struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	TaskID  string `json:"task_id"`
}

type listPayload struct {
	OK bool `json:"ok"`
	agent.TaskList
}

type screenshotsPayload struct {
	OK          bool     `json:"ok"`
	Screenshots []string `json:"screenshots"`
	SessionID   string   `json:"session_id"`
	Count       int      `json:"count"`
}

type waitPayload struct {
	OK            bool   `json:"ok"`
	WaitedSeconds int    `json:"waited_seconds"`
	Message       string `json:"message"`
}

func (w *webTools) browseWeb(ctx context.Context, args map[string]any) (any, error) {
	task, err := stringArg(args, "task")
	if err != nil {
		return nil, err
	}
	url, _ := args["url"].(string)

	w.logger.Info("received web browsing request", zap.String("task", task))
	result, err := w.facade.Browse(ctx, task, url, w.cfg.SyncTimeout)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (w *webTools) startWebTask(ctx context.Context, args map[string]any) (any, error) {
	task, err := stringArg(args, "task")
	if err != nil {
		return nil, err
	}
	url, _ := args["url"].(string)

	w.logger.Info("starting background web task", zap.String("task", task))
	id, err := w.manager.Start(ctx, task, url)
	if err != nil {
		return nil, err
	}

	return startPayload{
		OK:      true,
		TaskID:  id,
		Status:  "running",
		Message: fmt.Sprintf("Task started. Use check_web_task('%s') to monitor progress.", id),
	}, nil
}

func (w *webTools) checkWebTask(ctx context.Context, args map[string]any) (any, error) {
	taskID, err := stringArg(args, "task_id")
	if err != nil {
		return nil, err
	}
	compact := true
	if v, ok := args["compact"].(bool); ok {
		compact = v
	}

	snap, err := w.manager.Check(taskID, compact)
	if err != nil {
		if types.IsNotFound(err) {
			return nil, types.NewNotFoundError("Task %s not found", taskID)
		}
		return nil, err
	}
	return checkPayload{OK: true, Snapshot: snap}, nil
}

func (w *webTools) stopWebTask(ctx context.Context, args map[string]any) (any, error) {
	taskID, err := stringArg(args, "task_id")
	if err != nil {
		return nil, err
	}

	w.logger.Info("stopping web task", zap.String("task_id", taskID))
	if err := w.manager.Stop(taskID); err != nil {
		if types.IsNotFound(err) {
			return nil, types.NewNotFoundError("Task %s not found", taskID)
		}
		return nil, err
	}

	return stopPayload{
		OK:      true,
		Message: fmt.Sprintf("Task %s cancelled successfully", taskID),
		TaskID:  taskID,
	}, nil
}

func (w *webTools) listWebTasks(ctx context.Context, args map[string]any) (any, error) {
	return listPayload{OK: true, TaskList: w.manager.List()}, nil
}

func (w *webTools) getWebScreenshots(ctx context.Context, args map[string]any) (any, error) {
	sessionID, err := stringArg(args, "session_id")
	if err != nil {
		return nil, err
	}

	shots, err := w.store.List(sessionID)
	if err != nil {
		if types.IsNotFound(err) {
			return nil, types.NewNotFoundError("No screenshots found for session %s", sessionID)
		}
		return nil, err
	}

	return screenshotsPayload{
		OK:          true,
		Screenshots: shots,
		SessionID:   sessionID,
		Count:       len(shots),
	}, nil
}

func (w *webTools) wait(ctx context.Context, args map[string]any) (any, error) {
	seconds, err := intArg(args, "seconds")
	if err != nil {
		return nil, err
	}
	if seconds < minWaitSeconds {
		return nil, types.NewValidationError("Wait time must be at least 1 second")
	}
	if seconds > maxWaitSeconds {
		return nil, types.NewValidationError("Wait time cannot exceed 60 seconds. For longer waits, call this tool multiple times.")
	}

	w.logger.Info("waiting", zap.Int("seconds", seconds))
	if err := w.sleep(ctx, time.Duration(seconds)*time.Second); err != nil {
		return nil, err
	}

	return waitPayload{
		OK:            true,
		WaitedSeconds: seconds,
		Message:       fmt.Sprintf("Successfully waited %d seconds", seconds),
	}, nil
}

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", types.NewValidationError("%s is required", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", types.NewValidationError("%s must be a non-empty string", key)
	}
	return s, nil
}

func intArg(args map[string]any, key string) (int, error) {
	switch v := args[key].(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	default:
		return 0, types.NewValidationError("%s must be a number", key)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
