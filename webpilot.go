// Package webpilot provides a top-level convenience entry point for
// embedding the browser automation engine without running the MCP
// server binary.
//
// Usage:
//
//	import "github.com/webpilot-ai/webpilot"
//
//	engine, err := webpilot.New(webpilot.WithAPIKey(key))
//	if err != nil { ... }
//	defer engine.Close()
//
//	taskID, err := engine.Manager.Start(ctx, "find the current Go release version", "")
//	result, err := engine.Facade.Browse(ctx, "search for weather in Tokyo", "", 2*time.Minute)
//
// The same engine can back a custom MCP server via [Engine.RegisterTools].
package webpilot

import (
	"os"

	"go.uber.org/zap"

	"github.com/webpilot-ai/webpilot/agent"
	"github.com/webpilot-ai/webpilot/browser"
	"github.com/webpilot-ai/webpilot/config"
	"github.com/webpilot-ai/webpilot/gemini"
	"github.com/webpilot-ai/webpilot/internal/metrics"
	"github.com/webpilot-ai/webpilot/mcp"
	"github.com/webpilot-ai/webpilot/tools"
)

// Option configures the engine created by [New].
type Option func(*options)

type options struct {
	cfg       *config.Config
	logger    *zap.Logger
	apiKey    string
	model     string
	headless  *bool
	runner    agent.TaskRunner
	collector *metrics.Collector
}

// WithConfig supplies a full configuration. Defaults are used otherwise.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger sets a custom zap logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithAPIKey sets the Gemini API key. Defaults to the GEMINI_API_KEY
// environment variable.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithModel overrides the vision model name.
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// WithHeadless overrides whether the browser runs headless.
func WithHeadless(headless bool) Option {
	return func(o *options) { o.headless = &headless }
}

// WithRunner replaces the browser-driving agent loop with a custom
// task runner. No Gemini client is constructed in that case, so no
// API key is needed; useful for tests and alternative backends.
func WithRunner(r agent.TaskRunner) Option {
	return func(o *options) { o.runner = r }
}

// WithCollector attaches a metrics collector to every component.
func WithCollector(c *metrics.Collector) Option {
	return func(o *options) { o.collector = c }
}

// Engine bundles the wired task manager with its synchronous facade
// and screenshot store. Close releases the workers.
type Engine struct {
	Manager *agent.Manager
	Facade  *agent.Facade
	Store   *browser.ScreenshotStore

	cfg    *config.Config
	logger *zap.Logger
}

// New creates a ready-to-use automation engine with minimal
// configuration. Unless a custom runner is supplied, a Gemini API key
// must be available.
func New(opts ...Option) (*Engine, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	// Never mutate a caller-owned config.
	var cfg *config.Config
	if o.cfg != nil {
		c := *o.cfg
		cfg = &c
	} else {
		cfg = config.DefaultConfig()
	}
	if o.apiKey != "" {
		cfg.Gemini.APIKey = o.apiKey
	}
	if cfg.Gemini.APIKey == "" {
		cfg.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if o.model != "" {
		cfg.Gemini.Model = o.model
	}
	if o.headless != nil {
		cfg.Browser.Headless = *o.headless
	}

	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	store := browser.NewScreenshotStore(cfg.Browser.ScreenshotDir, logger)

	runner := o.runner
	if runner == nil {
		model, err := gemini.NewClient(cfg.Gemini, o.collector, logger)
		if err != nil {
			return nil, err
		}

		browserCfg := browser.Config{
			Headless: cfg.Browser.Headless,
			Screen: browser.Screen{
				Width:  cfg.Browser.ScreenWidth,
				Height: cfg.Browser.ScreenHeight,
			},
			SearchURL:       cfg.Browser.SearchURL,
			NavigateTimeout: cfg.Browser.NavigateTimeout,
			SettleTimeout:   cfg.Browser.SettleTimeout,
			SettleDelay:     cfg.Browser.SettleDelay,
		}
		runner = agent.NewLoop(model, store, browserCfg, cfg.Tasks.MaxTurns, o.collector, logger)
	}

	manager := agent.NewManager(cfg.Tasks, runner, nil, o.collector, logger)
	facade := agent.NewFacade(manager, cfg.Tasks.SyncPollInterval, logger)

	return &Engine{
		Manager: manager,
		Facade:  facade,
		Store:   store,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// RegisterTools registers the seven web tools on srv, backed by this
// engine.
func (e *Engine) RegisterTools(srv *mcp.Server) error {
	return tools.RegisterWebTools(srv, e.Manager, e.Facade, e.Store, e.cfg.Tasks, e.logger)
}

// Close cancels running tasks and waits for the workers to exit.
func (e *Engine) Close() {
	e.Manager.Close()
}
