package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/webpilot-ai/webpilot/agent"
	"github.com/webpilot-ai/webpilot/browser"
	"github.com/webpilot-ai/webpilot/config"
	"github.com/webpilot-ai/webpilot/gemini"
	"github.com/webpilot-ai/webpilot/internal/metrics"
	"github.com/webpilot-ai/webpilot/internal/server"
	"github.com/webpilot-ai/webpilot/internal/telemetry"
	"github.com/webpilot-ai/webpilot/mcp"
	"github.com/webpilot-ai/webpilot/tools"
)

// Server wires the configuration into a running MCP service: vision
// model client, agent loop, task manager, tool registry, transport,
// and the sidecar metrics listener.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	otelProviders *telemetry.Providers

	metricsCollector *metrics.Collector
	store            *browser.ScreenshotStore
	manager          *agent.Manager
	facade           *agent.Facade

	mcpServer *mcp.Server
	transport mcp.Transport

	metricsManager *server.Manager

	serveCancel context.CancelFunc
	serveErr    chan error
}

// NewServer creates the server shell; Start performs the wiring.
func NewServer(cfg *config.Config, logger *zap.Logger, providers *telemetry.Providers) *Server {
	return &Server{
		cfg:           cfg,
		logger:        logger,
		otelProviders: providers,
		serveErr:      make(chan error, 1),
	}
}

// Start builds every component and begins serving MCP in the
// background. It returns once the transport is connected and the
// sidecar listener is bound.
func (s *Server) Start() error {
	s.metricsCollector = metrics.NewCollector("webpilot", s.logger)

	if err := s.initAgent(); err != nil {
		return fmt.Errorf("failed to init agent: %w", err)
	}

	if err := s.initMCP(); err != nil {
		return fmt.Errorf("failed to init mcp server: %w", err)
	}

	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	if err := s.startMCP(); err != nil {
		return fmt.Errorf("failed to start mcp transport: %w", err)
	}

	s.logger.Info("All servers started",
		zap.String("transport", s.cfg.Server.Transport),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)

	return nil
}

// initAgent builds the browser-driving stack: Gemini client, agent
// loop, task manager, and the synchronous facade.
func (s *Server) initAgent() error {
	s.store = browser.NewScreenshotStore(s.cfg.Browser.ScreenshotDir, s.logger)

	model, err := gemini.NewClient(s.cfg.Gemini, s.metricsCollector, s.logger)
	if err != nil {
		return err
	}

	browserCfg := browser.Config{
		Headless: s.cfg.Browser.Headless,
		Screen: browser.Screen{
			Width:  s.cfg.Browser.ScreenWidth,
			Height: s.cfg.Browser.ScreenHeight,
		},
		SearchURL:       s.cfg.Browser.SearchURL,
		NavigateTimeout: s.cfg.Browser.NavigateTimeout,
		SettleTimeout:   s.cfg.Browser.SettleTimeout,
		SettleDelay:     s.cfg.Browser.SettleDelay,
	}

	loop := agent.NewLoop(model, s.store, browserCfg, s.cfg.Tasks.MaxTurns, s.metricsCollector, s.logger)
	s.manager = agent.NewManager(s.cfg.Tasks, loop, nil, s.metricsCollector, s.logger)
	s.facade = agent.NewFacade(s.manager, s.cfg.Tasks.SyncPollInterval, s.logger)

	return nil
}

// initMCP creates the protocol server and registers the web tools.
func (s *Server) initMCP() error {
	s.mcpServer = mcp.NewServer("webpilot", Version, s.cfg.Server.ToolTimeout, s.metricsCollector, s.logger)
	return tools.RegisterWebTools(s.mcpServer, s.manager, s.facade, s.store, s.cfg.Tasks, s.logger)
}

// startMCP connects the configured transport and launches the serve
// loop in the background. Serve loop failures land on s.serveErr.
func (s *Server) startMCP() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.serveCancel = cancel

	switch s.cfg.Server.Transport {
	case "websocket":
		ws := mcp.NewWebSocketTransport(s.cfg.Server.WSURL, s.logger)
		if err := ws.Connect(ctx); err != nil {
			return err
		}
		s.transport = ws
	default:
		s.transport = mcp.NewStdioTransport()
	}

	go func() {
		s.serveErr <- s.mcpServer.Serve(ctx, s.transport)
	}()

	return nil
}

// startMetricsServer binds the sidecar HTTP listener for Prometheus
// metrics, health, and version. MetricsPort 0 disables it.
func (s *Server) startMetricsServer() error {
	if s.cfg.Server.MetricsPort <= 0 {
		s.logger.Info("Metrics server disabled")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/version", s.handleVersion)

	serverConfig := server.DefaultConfig()
	serverConfig.Addr = fmt.Sprintf(":%d", s.cfg.Server.MetricsPort)
	serverConfig.ShutdownTimeout = s.cfg.Server.ShutdownTimeout

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)

	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	list := s.manager.List()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":       "ok",
		"transport":    s.cfg.Server.Transport,
		"active_tasks": list.ActiveCount,
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	})
}

// WaitForShutdown blocks until the MCP stream ends, a shutdown signal
// arrives, or the sidecar listener fails, then tears everything down.
func (s *Server) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	// A nil channel blocks forever, which covers the disabled case.
	var metricsErrs <-chan error
	if s.metricsManager != nil {
		metricsErrs = s.metricsManager.Errors()
	}

	select {
	case sig := <-quit:
		s.logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-s.serveErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp server exited", zap.Error(err))
		} else {
			s.logger.Info("mcp stream closed")
		}
	case err := <-metricsErrs:
		if err != nil {
			s.logger.Error("metrics server exited unexpectedly", zap.Error(err))
		}
	}

	s.Shutdown()
}

// Shutdown stops the serve loop, cancels running tasks, and drains the
// sidecar listener. The task manager is closed before the transport so
// in-flight tool calls observe cancellation rather than a dead pipe.
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	if s.serveCancel != nil {
		s.serveCancel()
	}

	if s.manager != nil {
		s.manager.Close()
	}

	if s.transport != nil {
		if err := s.transport.Close(); err != nil {
			s.logger.Error("transport close error", zap.Error(err))
		}
	}

	ctx := context.Background()
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	if s.otelProviders != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := s.otelProviders.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown completed")
}
