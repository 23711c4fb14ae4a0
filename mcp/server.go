package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/webpilot-ai/webpilot/internal/metrics"
	"github.com/webpilot-ai/webpilot/types"
)

const defaultToolTimeout = 10 * time.Minute

// ToolHandler executes one tool call. A returned error becomes a structured
// {ok: false} payload in the tool result, not a protocol-level failure, so
// the model can read it and react.
type ToolHandler func(ctx context.Context, args map[string]any) (any, error)

type registeredTool struct {
	def     ToolDefinition
	handler ToolHandler
}

// Server dispatches MCP messages to registered tools over a Transport.
type Server struct {
	info        ServerInfo
	toolTimeout time.Duration
	metrics     *metrics.Collector
	logger      *zap.Logger

	mu    sync.RWMutex
	tools map[string]registeredTool
	order []string
}

// NewServer builds a tool-serving MCP server. toolTimeout bounds each
// tools/call dispatch; zero means the 10 minute default.
func NewServer(name, version string, toolTimeout time.Duration, collector *metrics.Collector, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if toolTimeout <= 0 {
		toolTimeout = defaultToolTimeout
	}
	return &Server{
		info: ServerInfo{
			Name:            name,
			Version:         version,
			ProtocolVersion: ProtocolVersion,
			Capabilities:    ServerCapabilities{Tools: true},
		},
		toolTimeout: toolTimeout,
		metrics:     collector,
		logger:      logger,
		tools:       make(map[string]registeredTool),
	}
}

// Info returns the identity advertised during initialize.
func (s *Server) Info() ServerInfo {
	return s.info
}

// RegisterTool adds a tool to the server. Registering the same name again
// replaces the earlier definition and keeps its position in tools/list.
func (s *Server) RegisterTool(def ToolDefinition, handler ToolHandler) error {
	if err := def.Validate(); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("tool %s: handler is required", def.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tools[def.Name]; !exists {
		s.order = append(s.order, def.Name)
	}
	s.tools[def.Name] = registeredTool{def: def, handler: handler}
	s.logger.Debug("registered tool", zap.String("tool", def.Name))
	return nil
}

// ListTools returns the registered definitions in registration order.
func (s *Server) ListTools() []ToolDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	defs := make([]ToolDefinition, 0, len(s.order))
	for _, name := range s.order {
		defs = append(defs, s.tools[name].def)
	}
	return defs
}

// CallTool runs a registered tool under the server's per-call timeout.
// Handler errors are rendered as {ok: false, error, error_code} payloads;
// the returned error is reserved for unknown tool names.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	s.mu.RLock()
	reg, ok := s.tools[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}

	ctx, cancel := context.WithTimeout(ctx, s.toolTimeout)
	defer cancel()

	start := time.Now()
	result, err := reg.handler(ctx, args)
	elapsed := time.Since(start)
	if err != nil {
		s.recordToolCall(name, "error", elapsed)
		s.logger.Warn("tool call failed",
			zap.String("tool", name),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return errorPayload(err), nil
	}

	s.recordToolCall(name, "ok", elapsed)
	s.logger.Debug("tool call finished",
		zap.String("tool", name),
		zap.Duration("elapsed", elapsed))
	return result, nil
}

func (s *Server) recordToolCall(tool, status string, elapsed time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordToolCall(tool, status, elapsed)
	}
}

// errorPayload renders a handler error in the same shape the tools use for
// their own failure results.
func errorPayload(err error) map[string]any {
	code := types.GetErrorCode(err)
	message := err.Error()
	var terr *types.Error
	if errors.As(err, &terr) {
		message = terr.Message
	}
	if code == "" {
		code = types.ErrInternalError
	}
	return map[string]any{
		"ok":         false,
		"error":      message,
		"error_code": string(code),
	}
}

// HandleMessage dispatches one decoded message and returns the response, or
// nil when the message needs no reply.
func (s *Server) HandleMessage(ctx context.Context, msg *Message) *Message {
	if msg == nil {
		return NewErrorResponse(nil, ErrorCodeInvalidRequest, "empty message", nil)
	}
	if msg.JSONRPC != "" && msg.JSONRPC != jsonRPCVersion {
		return NewErrorResponse(msg.ID, ErrorCodeInvalidRequest,
			fmt.Sprintf("unsupported jsonrpc version: %s", msg.JSONRPC), nil)
	}
	if msg.Method == "" {
		// A response from the peer; nothing to dispatch.
		if msg.Result != nil || msg.Error != nil {
			return nil
		}
		return NewErrorResponse(msg.ID, ErrorCodeInvalidRequest, "method is required", nil)
	}
	// Notifications expect no reply.
	if strings.HasPrefix(msg.Method, "notifications/") {
		return nil
	}

	switch msg.Method {
	case "initialize":
		return NewResponse(msg.ID, map[string]any{
			"protocolVersion": s.info.ProtocolVersion,
			"capabilities":    s.info.Capabilities,
			"serverInfo":      s.info,
		})
	case "ping":
		return NewResponse(msg.ID, map[string]any{})
	case "tools/list":
		return NewResponse(msg.ID, map[string]any{"tools": s.ListTools()})
	case "tools/call":
		return s.handleToolCall(ctx, msg)
	default:
		return NewErrorResponse(msg.ID, ErrorCodeMethodNotFound,
			fmt.Sprintf("method not found: %s", msg.Method), nil)
	}
}

func (s *Server) handleToolCall(ctx context.Context, msg *Message) *Message {
	name, _ := msg.Params["name"].(string)
	if name == "" {
		return NewErrorResponse(msg.ID, ErrorCodeInvalidParams, "tool name is required", nil)
	}
	args, _ := msg.Params["arguments"].(map[string]any)

	result, err := s.CallTool(ctx, name, args)
	if err != nil {
		return NewErrorResponse(msg.ID, ErrorCodeInvalidParams, err.Error(), nil)
	}
	text, err := json.Marshal(result)
	if err != nil {
		return NewErrorResponse(msg.ID, ErrorCodeInternalError,
			fmt.Sprintf("encode tool result: %v", err), nil)
	}
	return NewResponse(msg.ID, map[string]any{
		"content": []map[string]any{{"type": "text", "text": string(text)}},
	})
}

// Serve reads messages from the transport and dispatches them until the
// context is cancelled or the peer goes away. Malformed frames get a parse
// error response and the loop keeps going.
func (s *Server) Serve(ctx context.Context, transport Transport) error {
	s.logger.Info("mcp server ready",
		zap.String("server", s.info.Name),
		zap.String("protocol", s.info.ProtocolVersion),
		zap.Int("tools", len(s.ListTools())))

	for {
		msg, err := transport.Receive(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return ctx.Err()
			case errors.Is(err, io.EOF):
				s.logger.Info("transport closed, shutting down")
				return nil
			case errors.Is(err, ErrMalformedMessage):
				s.logger.Warn("malformed message", zap.Error(err))
				resp := NewErrorResponse(nil, ErrorCodeParseError, "parse error", nil)
				if serr := transport.Send(ctx, resp); serr != nil {
					return fmt.Errorf("send parse error response: %w", serr)
				}
				continue
			default:
				return fmt.Errorf("receive: %w", err)
			}
		}

		resp := s.HandleMessage(ctx, msg)
		if resp == nil {
			continue
		}
		if err := transport.Send(ctx, resp); err != nil {
			return fmt.Errorf("send response: %w", err)
		}
	}
}
