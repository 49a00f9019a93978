package tool

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/wagiedev/agentsession-go/internal/errors"
	"github.com/wagiedev/agentsession-go/internal/message"
)

// MCPProtocolVersion is reported in the in-process server's initialize reply.
const MCPProtocolVersion = "2024-11-05"

// Bridge answers the agent's tool requests from a Registry.
type Bridge struct {
	log      *slog.Logger
	name     string
	version  string
	registry *Registry
}

// NewBridge serves registry as the in-process server called name.
func NewBridge(log *slog.Logger, name, version string, registry *Registry) *Bridge {
	return &Bridge{
		log:      log.With("component", "tool_bridge", "server", name),
		name:     name,
		version:  version,
		registry: registry,
	}
}

// Name returns the in-process server name.
func (b *Bridge) Name() string { return b.name }

// Registry returns the served registry.
func (b *Bridge) Registry() *Registry { return b.registry }

// ServerConfig describes the in-process server called name to the agent.
func ServerConfig(name string) map[string]any {
	return map[string]any{
		"type": "sdk",
		"name": name,
	}
}

// MCPConfig renders the --mcp-config value that announces the in-process
// server called name.
func MCPConfig(name string) (string, error) {
	data, err := json.Marshal(map[string]any{
		"mcpServers": map[string]any{name: ServerConfig(name)},
	})
	if err != nil {
		return "", fmt.Errorf("marshal mcp config: %w", err)
	}

	return string(data), nil
}

// HandleCallTool answers a call_tool control request
// {tool_name, tool_use_id, input} with {tool_use_id, content, is_error}.
func (b *Bridge) HandleCallTool(ctx context.Context, req *message.ControlRequest) (map[string]any, error) {
	name, _ := req.Request["tool_name"].(string)
	toolUseID, _ := req.Request["tool_use_id"].(string)
	input, _ := req.Request["input"].(map[string]any)

	if name == "" {
		return nil, fmt.Errorf("call_tool missing tool_name")
	}

	b.log.Debug("Calling tool", "tool", name, "tool_use_id", toolUseID)

	result, err := b.registry.Call(ctx, name, input)
	if err != nil {
		return nil, err
	}

	if result.IsError {
		b.log.Debug("Tool returned error result", "tool", name, "tool_use_id", toolUseID)
	}

	return map[string]any{
		"tool_use_id": toolUseID,
		"content":     Content(result),
		"is_error":    result.IsError,
	}, nil
}

// HandleMCPMessage answers an mcp_message control request carrying a
// JSON-RPC message for the in-process server. The reply is wrapped as
// {"mcp_response": <JSON-RPC response>}.
func (b *Bridge) HandleMCPMessage(ctx context.Context, req *message.ControlRequest) (map[string]any, error) {
	serverName, _ := req.Request["server_name"].(string)

	raw, ok := req.Request["message"]
	if !ok {
		return nil, fmt.Errorf("mcp_message missing message")
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode mcp message: %w", err)
	}

	var rpc jsonrpc2.Request
	if err := json.Unmarshal(data, &rpc); err != nil {
		return b.reply(jsonrpc2.ID{}, nil, &jsonrpc2.Error{
			Code:    jsonrpc2.CodeParseError,
			Message: err.Error(),
		})
	}

	if serverName != b.name {
		return b.reply(rpc.ID, nil, &jsonrpc2.Error{
			Code:    jsonrpc2.CodeInvalidRequest,
			Message: fmt.Sprintf("server %q not found", serverName),
		})
	}

	b.log.Debug("Handling MCP message", "method", rpc.Method)

	if rpc.Notif {
		return map[string]any{
			"mcp_response": map[string]any{"jsonrpc": "2.0", "result": map[string]any{}},
		}, nil
	}

	switch rpc.Method {
	case "initialize":
		return b.reply(rpc.ID, map[string]any{
			"protocolVersion": MCPProtocolVersion,
			"capabilities": map[string]any{
				"tools": map[string]any{},
			},
			"serverInfo": map[string]any{
				"name":    b.name,
				"version": b.version,
			},
		}, nil)

	case "tools/list":
		return b.reply(rpc.ID, map[string]any{"tools": b.registry.List()}, nil)

	case "tools/call":
		return b.toolsCall(ctx, &rpc)

	default:
		return b.reply(rpc.ID, nil, &jsonrpc2.Error{
			Code:    jsonrpc2.CodeMethodNotFound,
			Message: fmt.Sprintf("method %q not found", rpc.Method),
		})
	}
}

func (b *Bridge) toolsCall(ctx context.Context, rpc *jsonrpc2.Request) (map[string]any, error) {
	var params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}

	if rpc.Params == nil {
		return b.reply(rpc.ID, nil, &jsonrpc2.Error{
			Code:    jsonrpc2.CodeInvalidParams,
			Message: "missing params",
		})
	}

	if err := json.Unmarshal(*rpc.Params, &params); err != nil || params.Name == "" {
		return b.reply(rpc.ID, nil, &jsonrpc2.Error{
			Code:    jsonrpc2.CodeInvalidParams,
			Message: "params must name a tool",
		})
	}

	result, err := b.registry.Call(ctx, params.Name, params.Arguments)
	if err != nil {
		if !stderrors.Is(err, errors.ErrToolNotFound) {
			return b.reply(rpc.ID, nil, &jsonrpc2.Error{
				Code:    jsonrpc2.CodeInternalError,
				Message: err.Error(),
			})
		}

		result = ErrorResult(err.Error())
	}

	out := map[string]any{"content": Content(result)}
	if result.IsError {
		out["isError"] = true
	}

	return b.reply(rpc.ID, out, nil)
}

// reply builds the mcp_response envelope.
func (b *Bridge) reply(id jsonrpc2.ID, result any, rpcErr *jsonrpc2.Error) (map[string]any, error) {
	resp := &jsonrpc2.Response{ID: id, Error: rpcErr}

	if rpcErr == nil {
		if err := resp.SetResult(result); err != nil {
			return nil, fmt.Errorf("encode mcp result: %w", err)
		}
	} else {
		b.log.Debug("MCP request failed", "code", rpcErr.Code, "message", rpcErr.Message)
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encode mcp response: %w", err)
	}

	var wire map[string]any
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode mcp response: %w", err)
	}

	return map[string]any{"mcp_response": wire}, nil
}
