package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// ErrMalformedMessage reports a frame that arrived intact but did not decode
// as a JSON-RPC message. The connection stays usable afterwards.
var ErrMalformedMessage = errors.New("malformed message")

// Transport moves JSON-RPC messages between the server and one client.
// Implementations return io.EOF from Receive once the peer has gone away
// cleanly.
type Transport interface {
	Send(ctx context.Context, msg *Message) error
	Receive(ctx context.Context) (*Message, error)
	Close() error
}

// StdioTransport frames messages over stdin and stdout with Content-Length
// headers. Stdout carries protocol traffic only; all logging must go to
// stderr.
type StdioTransport struct {
	reader  *bufio.Reader
	writer  io.Writer
	writeMu sync.Mutex
}

// NewStdioTransport builds a transport on the process's stdin and stdout.
func NewStdioTransport() *StdioTransport {
	return &StdioTransport{
		reader: bufio.NewReader(os.Stdin),
		writer: os.Stdout,
	}
}

// Send writes one framed message. Safe for concurrent use.
func (t *StdioTransport) Send(ctx context.Context, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := fmt.Fprintf(t.writer, "Content-Length: %d\r\n\r\n", len(body)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := t.writer.Write(body); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

// Receive blocks until a full frame arrives. The read is not interruptible
// by ctx; shutdown over stdio relies on the client closing its end.
func (t *StdioTransport) Receive(ctx context.Context) (*Message, error) {
	var length int
	for {
		line, err := t.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			if length > 0 {
				break
			}
			continue
		}
		// Headers other than Content-Length are ignored.
		fmt.Sscanf(line, "Content-Length: %d", &length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(t.reader, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return &msg, nil
}

// Close is a no-op; the process owns stdin and stdout.
func (t *StdioTransport) Close() error {
	return nil
}
