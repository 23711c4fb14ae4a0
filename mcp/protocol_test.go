package mcp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequest(t *testing.T) {
	msg := NewRequest(1, "tools/list", map[string]any{"cursor": "abc"})

	assert.Equal(t, "2.0", msg.JSONRPC)
	assert.Equal(t, 1, msg.ID)
	assert.Equal(t, "tools/list", msg.Method)
	assert.Equal(t, "abc", msg.Params["cursor"])
	assert.Nil(t, msg.Result)
	assert.Nil(t, msg.Error)
}

func TestNewResponse(t *testing.T) {
	msg := NewResponse("req-7", map[string]any{"ok": true})

	assert.Equal(t, "2.0", msg.JSONRPC)
	assert.Equal(t, "req-7", msg.ID)
	assert.Empty(t, msg.Method)
	assert.Nil(t, msg.Error)
	result, ok := msg.Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, result["ok"])
}

func TestNewErrorResponse(t *testing.T) {
	msg := NewErrorResponse(3, ErrorCodeMethodNotFound, "method not found: bogus", "extra")

	require.NotNil(t, msg.Error)
	assert.Equal(t, ErrorCodeMethodNotFound, msg.Error.Code)
	assert.Equal(t, "method not found: bogus", msg.Error.Message)
	assert.Equal(t, "extra", msg.Error.Data)
	assert.Nil(t, msg.Result)
}

func TestMessage_MarshalPinsVersion(t *testing.T) {
	body, err := json.Marshal(&Message{Method: "ping"})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(body, &raw))
	assert.Equal(t, "2.0", raw["jsonrpc"])
	assert.Equal(t, "ping", raw["method"])
	assert.NotContains(t, raw, "id")
	assert.NotContains(t, raw, "result")
	assert.NotContains(t, raw, "error")
}

func TestMessage_ErrorResponseOmitsNilID(t *testing.T) {
	body, err := json.Marshal(NewErrorResponse(nil, ErrorCodeParseError, "parse error", nil))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(body, &raw))
	assert.NotContains(t, raw, "id")
	errObj, ok := raw["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(ErrorCodeParseError), errObj["code"])
	assert.Equal(t, "parse error", errObj["message"])
	assert.NotContains(t, errObj, "data")
}

func TestMessage_RoundTrip(t *testing.T) {
	in := NewRequest("id-1", "tools/call", map[string]any{
		"name":      "wait",
		"arguments": map[string]any{"seconds": 2},
	})
	body, err := json.Marshal(in)
	require.NoError(t, err)

	var out Message
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "2.0", out.JSONRPC)
	assert.Equal(t, "id-1", out.ID)
	assert.Equal(t, "tools/call", out.Method)
	assert.Equal(t, "wait", out.Params["name"])

	args, ok := out.Params["arguments"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(2), args["seconds"])
}

func TestToolDefinition_Validate(t *testing.T) {
	schema := map[string]any{"type": "object"}

	tests := []struct {
		name    string
		def     ToolDefinition
		wantErr string
	}{
		{
			name: "valid",
			def:  ToolDefinition{Name: "wait", Description: "waits", InputSchema: schema},
		},
		{
			name:    "missing name",
			def:     ToolDefinition{Description: "waits", InputSchema: schema},
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			def:     ToolDefinition{Name: "wait", InputSchema: schema},
			wantErr: "description is required",
		},
		{
			name:    "missing schema",
			def:     ToolDefinition{Name: "wait", Description: "waits"},
			wantErr: "input schema is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.def.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
