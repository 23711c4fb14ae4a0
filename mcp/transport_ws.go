package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// wsReadLimit caps inbound frame size. Tool call arguments are small, but
// leave room for clients that batch large prompts into one request.
const wsReadLimit = 4 << 20

// WSState tracks the connection lifecycle of a WebSocketTransport.
type WSState int

const (
	WSStateDisconnected WSState = iota
	WSStateConnecting
	WSStateConnected
	WSStateClosed
)

func (s WSState) String() string {
	switch s {
	case WSStateDisconnected:
		return "disconnected"
	case WSStateConnecting:
		return "connecting"
	case WSStateConnected:
		return "connected"
	case WSStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// WebSocketTransport carries MCP messages over a single WebSocket
// connection. There is no automatic reconnection: when the connection drops
// the serve loop ends and the operator restarts the process.
type WebSocketTransport struct {
	url    string
	logger *zap.Logger

	mu    sync.Mutex
	conn  *websocket.Conn
	state WSState

	writeMu sync.Mutex
}

// NewWebSocketTransport prepares a transport for the given ws:// or wss://
// URL. Connect must succeed before Send or Receive are usable.
func NewWebSocketTransport(url string, logger *zap.Logger) *WebSocketTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketTransport{
		url:    url,
		logger: logger,
		state:  WSStateDisconnected,
	}
}

// Connect dials the peer with the mcp subprotocol.
func (t *WebSocketTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case WSStateConnected:
		return nil
	case WSStateClosed:
		return fmt.Errorf("websocket transport is closed")
	}

	t.state = WSStateConnecting
	conn, _, err := websocket.Dial(ctx, t.url, &websocket.DialOptions{
		Subprotocols: []string{"mcp"},
	})
	if err != nil {
		t.state = WSStateDisconnected
		return fmt.Errorf("dial %s: %w", t.url, err)
	}
	conn.SetReadLimit(wsReadLimit)

	t.conn = conn
	t.state = WSStateConnected
	t.logger.Info("websocket connected", zap.String("url", t.url))
	return nil
}

// State returns the current connection state.
func (t *WebSocketTransport) State() WSState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// IsConnected reports whether the transport holds a live connection.
func (t *WebSocketTransport) IsConnected() bool {
	return t.State() == WSStateConnected
}

func (t *WebSocketTransport) live() (*websocket.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != WSStateConnected || t.conn == nil {
		return nil, fmt.Errorf("websocket not connected")
	}
	return t.conn, nil
}

// Send writes msg as a single text frame.
func (t *WebSocketTransport) Send(ctx context.Context, msg *Message) error {
	conn, err := t.live()
	if err != nil {
		return err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := conn.Write(ctx, websocket.MessageText, body); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Receive reads the next text frame. A normal close from the peer is
// reported as io.EOF.
func (t *WebSocketTransport) Receive(ctx context.Context) (*Message, error) {
	conn, err := t.live()
	if err != nil {
		return nil, err
	}

	_, data, err := conn.Read(ctx)
	if err != nil {
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			return nil, io.EOF
		}
		return nil, err
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return &msg, nil
}

// Close performs the closing handshake. Safe to call more than once.
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == WSStateClosed {
		return nil
	}
	conn := t.conn
	t.conn = nil
	t.state = WSStateClosed

	if conn != nil {
		if err := conn.Close(websocket.StatusNormalClosure, "closing"); err != nil {
			t.logger.Debug("websocket close", zap.Error(err))
		}
		t.logger.Info("websocket disconnected", zap.String("url", t.url))
	}
	return nil
}
