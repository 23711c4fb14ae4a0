// Package mcp implements the server side of the Model Context Protocol:
// JSON-RPC 2.0 messages, tool registration and dispatch, and transports
// over stdio and WebSocket.
package mcp

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the MCP revision this server speaks.
const ProtocolVersion = "2024-11-05"

const jsonRPCVersion = "2.0"

// JSON-RPC 2.0 error codes.
const (
	ErrorCodeParseError     = -32700
	ErrorCodeInvalidRequest = -32600
	ErrorCodeMethodNotFound = -32601
	ErrorCodeInvalidParams  = -32602
	ErrorCodeInternalError  = -32603
)

// Message is a JSON-RPC 2.0 message. Requests carry Method and Params,
// responses carry Result or Error, and ID ties the two together.
type Message struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      any            `json:"id,omitempty"`
	Method  string         `json:"method,omitempty"`
	Params  map[string]any `json:"params,omitempty"`
	Result  any            `json:"result,omitempty"`
	Error   *RPCError      `json:"error,omitempty"`
}

// MarshalJSON pins the jsonrpc field to "2.0" so hand-built messages stay
// valid on the wire.
func (m *Message) MarshalJSON() ([]byte, error) {
	type alias Message
	a := alias(*m)
	if a.JSONRPC == "" {
		a.JSONRPC = jsonRPCVersion
	}
	return json.Marshal(a)
}

// RPCError is the error member of a failed JSON-RPC response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// NewRequest builds a request message.
func NewRequest(id any, method string, params map[string]any) *Message {
	return &Message{JSONRPC: jsonRPCVersion, ID: id, Method: method, Params: params}
}

// NewResponse builds a success response for the given request id.
func NewResponse(id any, result any) *Message {
	return &Message{JSONRPC: jsonRPCVersion, ID: id, Result: result}
}

// NewErrorResponse builds an error response for the given request id.
func NewErrorResponse(id any, code int, message string, data any) *Message {
	return &Message{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error:   &RPCError{Code: code, Message: message, Data: data},
	}
}

// ToolDefinition describes a tool exposed through tools/list. InputSchema
// holds a JSON Schema object for the tool's arguments.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// Validate reports whether the definition is complete enough to register.
func (d ToolDefinition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if d.Description == "" {
		return fmt.Errorf("tool %s: description is required", d.Name)
	}
	if d.InputSchema == nil {
		return fmt.Errorf("tool %s: input schema is required", d.Name)
	}
	return nil
}

// ServerInfo identifies the server during the initialize handshake.
type ServerInfo struct {
	Name            string             `json:"name"`
	Version         string             `json:"version"`
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
}

// ServerCapabilities advertises which protocol features the server
// implements.
type ServerCapabilities struct {
	Tools     bool `json:"tools"`
	Resources bool `json:"resources"`
	Prompts   bool `json:"prompts"`
	Logging   bool `json:"logging"`
}
