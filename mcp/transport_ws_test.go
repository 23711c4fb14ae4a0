package mcp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// newEchoServer upgrades to WebSocket and echoes every frame back.
func newEchoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols: []string{"mcp"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				return
			}
			if err := conn.Write(r.Context(), websocket.MessageText, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// wsURL converts an http:// test server URL to ws://.
func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketTransport_ConnectAndClose(t *testing.T) {
	srv := newEchoServer(t)
	tr := NewWebSocketTransport(wsURL(srv), zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	assert.False(t, tr.IsConnected())
	assert.Equal(t, WSStateDisconnected, tr.State())

	require.NoError(t, tr.Connect(ctx))
	assert.True(t, tr.IsConnected())
	assert.Equal(t, WSStateConnected, tr.State())

	// Connecting twice is a no-op.
	require.NoError(t, tr.Connect(ctx))

	require.NoError(t, tr.Close())
	assert.False(t, tr.IsConnected())
	assert.Equal(t, WSStateClosed, tr.State())

	// Double close is a no-op; reconnecting a closed transport is an error.
	require.NoError(t, tr.Close())
	require.Error(t, tr.Connect(ctx))
}

func TestWebSocketTransport_ConnectFailure(t *testing.T) {
	tr := NewWebSocketTransport("ws://127.0.0.1:1", zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)

	err := tr.Connect(ctx)
	require.Error(t, err)
	assert.False(t, tr.IsConnected())
	assert.Equal(t, WSStateDisconnected, tr.State())
}

func TestWebSocketTransport_SendReceive(t *testing.T) {
	srv := newEchoServer(t)
	tr := NewWebSocketTransport(wsURL(srv), zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	require.NoError(t, tr.Connect(ctx))
	t.Cleanup(func() { _ = tr.Close() })

	require.NoError(t, tr.Send(ctx, NewRequest(1, "tools/list", nil)))

	echo, err := tr.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tools/list", echo.Method)
	assert.Equal(t, float64(1), echo.ID)
}

func TestWebSocketTransport_SendNotConnected(t *testing.T) {
	tr := NewWebSocketTransport("ws://localhost:1", zaptest.NewLogger(t))

	err := tr.Send(context.Background(), NewRequest(1, "ping", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")

	_, err = tr.Receive(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestWebSocketTransport_ReceiveMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols: []string{"mcp"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")

		if err := conn.Write(r.Context(), websocket.MessageText, []byte("{oops")); err != nil {
			return
		}
		// Hold the connection open until the client disconnects.
		_, _, _ = conn.Read(r.Context())
	}))
	t.Cleanup(srv.Close)

	tr := NewWebSocketTransport(wsURL(srv), zaptest.NewLogger(t))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	require.NoError(t, tr.Connect(ctx))
	t.Cleanup(func() { _ = tr.Close() })

	_, err := tr.Receive(ctx)
	require.ErrorIs(t, err, ErrMalformedMessage)
}

func TestWebSocketTransport_NormalClosureIsEOF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols: []string{"mcp"},
		})
		if err != nil {
			return
		}
		conn.Close(websocket.StatusNormalClosure, "bye")
	}))
	t.Cleanup(srv.Close)

	tr := NewWebSocketTransport(wsURL(srv), zaptest.NewLogger(t))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	require.NoError(t, tr.Connect(ctx))
	t.Cleanup(func() { _ = tr.Close() })

	_, err := tr.Receive(ctx)
	require.ErrorIs(t, err, io.EOF)
}

func TestServer_Serve_WebSocket(t *testing.T) {
	respCh := make(chan *Message, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols: []string{"mcp"},
		})
		if err != nil {
			return
		}

		body, _ := json.Marshal(NewRequest(11, "tools/list", nil))
		if err := conn.Write(r.Context(), websocket.MessageText, body); err != nil {
			return
		}

		_, data, err := conn.Read(r.Context())
		if err != nil {
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err == nil {
			respCh <- &msg
		}
		conn.Close(websocket.StatusNormalClosure, "done")
	}))
	t.Cleanup(srv.Close)

	tr := NewWebSocketTransport(wsURL(srv), zaptest.NewLogger(t))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	require.NoError(t, tr.Connect(ctx))
	t.Cleanup(func() { _ = tr.Close() })

	server := newTestServer(t)
	require.NoError(t, server.RegisterTool(waitToolDef(), echoHandler))

	// The peer closes normally after one exchange, which ends the loop.
	require.NoError(t, server.Serve(ctx, tr))

	select {
	case resp := <-respCh:
		require.Nil(t, resp.Error)
		assert.Equal(t, float64(11), resp.ID)
		result, ok := resp.Result.(map[string]any)
		require.True(t, ok)
		tools, ok := result["tools"].([]any)
		require.True(t, ok)
		require.Len(t, tools, 1)
		first, ok := tools[0].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "wait", first["name"])
	case <-time.After(2 * time.Second):
		t.Fatal("no response captured by test server")
	}
}

func TestWSState_String(t *testing.T) {
	assert.Equal(t, "disconnected", WSStateDisconnected.String())
	assert.Equal(t, "connecting", WSStateConnecting.String())
	assert.Equal(t, "connected", WSStateConnected.String())
	assert.Equal(t, "closed", WSStateClosed.String())
	assert.Equal(t, "unknown", WSState(42).String())
}
