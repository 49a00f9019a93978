package tool

import (
	"context"
	"log/slog"
	"testing"

	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/require"

	"github.com/wagiedev/agentsession-go/internal/message"
)

func newTestBridge(t *testing.T) *Bridge {
	t.Helper()

	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("echo")))
	r.Freeze()

	return NewBridge(slog.New(slog.DiscardHandler), "local", "1.0.0", r)
}

func controlRequest(subtype string, fields map[string]any) *message.ControlRequest {
	fields["subtype"] = subtype

	return &message.ControlRequest{RequestID: "req_1", Subtype: subtype, Request: fields}
}

func mcpResponse(t *testing.T, out map[string]any) map[string]any {
	t.Helper()

	resp, ok := out["mcp_response"].(map[string]any)
	require.True(t, ok, "missing mcp_response: %v", out)

	return resp
}

func TestBridge_CallTool(t *testing.T) {
	b := newTestBridge(t)

	out, err := b.HandleCallTool(context.Background(), controlRequest("call_tool", map[string]any{
		"tool_name":   "echo",
		"tool_use_id": "tu_1",
		"input":       map[string]any{"text": "hello"},
	}))
	require.NoError(t, err)

	require.Equal(t, map[string]any{
		"tool_use_id": "tu_1",
		"content":     []map[string]any{{"type": "text", "text": "hello"}},
		"is_error":    false,
	}, out)
}

func TestBridge_CallToolUnknown(t *testing.T) {
	b := newTestBridge(t)

	_, err := b.HandleCallTool(context.Background(), controlRequest("call_tool", map[string]any{
		"tool_name": "nope",
	}))
	require.EqualError(t, err, "tool not found: nope")

	_, err = b.HandleCallTool(context.Background(), controlRequest("call_tool", map[string]any{}))
	require.Error(t, err)
}

func TestBridge_MCPInitialize(t *testing.T) {
	b := newTestBridge(t)

	out, err := b.HandleMCPMessage(context.Background(), controlRequest("mcp_message", map[string]any{
		"server_name": "local",
		"message":     map[string]any{"jsonrpc": "2.0", "id": 1, "method": "initialize", "params": map[string]any{}},
	}))
	require.NoError(t, err)

	resp := mcpResponse(t, out)
	require.Equal(t, "2.0", resp["jsonrpc"])
	require.Equal(t, float64(1), resp["id"])

	result := resp["result"].(map[string]any)
	require.Equal(t, MCPProtocolVersion, result["protocolVersion"])
	require.Equal(t, map[string]any{"name": "local", "version": "1.0.0"}, result["serverInfo"])
}

func TestBridge_MCPNotification(t *testing.T) {
	b := newTestBridge(t)

	out, err := b.HandleMCPMessage(context.Background(), controlRequest("mcp_message", map[string]any{
		"server_name": "local",
		"message":     map[string]any{"jsonrpc": "2.0", "method": "notifications/initialized"},
	}))
	require.NoError(t, err)
	require.Equal(t, map[string]any{}, mcpResponse(t, out)["result"])
}

func TestBridge_MCPToolsListAndCall(t *testing.T) {
	b := newTestBridge(t)

	out, err := b.HandleMCPMessage(context.Background(), controlRequest("mcp_message", map[string]any{
		"server_name": "local",
		"message":     map[string]any{"jsonrpc": "2.0", "id": 2, "method": "tools/list"},
	}))
	require.NoError(t, err)

	tools := mcpResponse(t, out)["result"].(map[string]any)["tools"].([]any)
	require.Len(t, tools, 1)
	require.Equal(t, "echo", tools[0].(map[string]any)["name"])

	out, err = b.HandleMCPMessage(context.Background(), controlRequest("mcp_message", map[string]any{
		"server_name": "local",
		"message": map[string]any{
			"jsonrpc": "2.0", "id": "c3", "method": "tools/call",
			"params": map[string]any{"name": "echo", "arguments": map[string]any{"text": "yo"}},
		},
	}))
	require.NoError(t, err)

	resp := mcpResponse(t, out)
	require.Equal(t, "c3", resp["id"])

	result := resp["result"].(map[string]any)
	require.NotContains(t, result, "isError")
	require.Equal(t, []any{map[string]any{"type": "text", "text": "yo"}}, result["content"])
}

func TestBridge_MCPErrors(t *testing.T) {
	b := newTestBridge(t)

	tests := []struct {
		name    string
		server  string
		message map[string]any
		code    int64
	}{
		{
			name:    "unknown server",
			server:  "other",
			message: map[string]any{"jsonrpc": "2.0", "id": 1, "method": "tools/list"},
			code:    jsonrpc2.CodeInvalidRequest,
		},
		{
			name:    "unknown method",
			server:  "local",
			message: map[string]any{"jsonrpc": "2.0", "id": 1, "method": "resources/list"},
			code:    jsonrpc2.CodeMethodNotFound,
		},
		{
			name:    "missing tool name",
			server:  "local",
			message: map[string]any{"jsonrpc": "2.0", "id": 1, "method": "tools/call", "params": map[string]any{}},
			code:    jsonrpc2.CodeInvalidParams,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := b.HandleMCPMessage(context.Background(), controlRequest("mcp_message", map[string]any{
				"server_name": tt.server,
				"message":     tt.message,
			}))
			require.NoError(t, err)

			rpcErr, ok := mcpResponse(t, out)["error"].(map[string]any)
			require.True(t, ok)
			require.Equal(t, float64(tt.code), rpcErr["code"])
		})
	}
}

func TestBridge_MCPUnknownTool(t *testing.T) {
	b := newTestBridge(t)

	out, err := b.HandleMCPMessage(context.Background(), controlRequest("mcp_message", map[string]any{
		"server_name": "local",
		"message": map[string]any{
			"jsonrpc": "2.0", "id": 4, "method": "tools/call",
			"params": map[string]any{"name": "missing"},
		},
	}))
	require.NoError(t, err)

	result := mcpResponse(t, out)["result"].(map[string]any)
	require.Equal(t, true, result["isError"])
	require.Equal(t, []any{map[string]any{"type": "text", "text": "tool not found: missing"}}, result["content"])
}

func TestServerConfig(t *testing.T) {
	b := newTestBridge(t)
	require.Equal(t, map[string]any{"type": "sdk", "name": "local"}, ServerConfig(b.Name()))

	cfg, err := MCPConfig("local")
	require.NoError(t, err)
	require.JSONEq(t, `{"mcpServers":{"local":{"type":"sdk","name":"local"}}}`, cfg)
}
