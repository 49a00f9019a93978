package agentsession

import (
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagiedev/agentsession-go/internal/tool"
)

// Re-export MCP SDK types used by tool handlers.
type (
	// CallToolResult is a tool's reply.
	// Use TextResult, ErrorResult, or ImageResult helpers to create results.
	CallToolResult = mcp.CallToolResult

	// CallToolRequest is the request passed to tool handlers.
	CallToolRequest = mcp.CallToolRequest

	// McpContent is the interface for content types in tool results.
	McpContent = mcp.Content

	// McpTextContent represents text content in a tool result.
	McpTextContent = mcp.TextContent

	// McpImageContent represents image content in a tool result.
	McpImageContent = mcp.ImageContent

	// McpToolAnnotations describes optional hints about tool behavior.
	McpToolAnnotations = mcp.ToolAnnotations

	// Schema is a JSON Schema object for tool input validation.
	Schema = jsonschema.Schema
)

// Tool is an in-process tool served to the agent.
type Tool = tool.Tool

// ToolHandler runs a tool call.
//
// Use ParseArguments to extract input as map[string]any from the request.
// Returning an error reports a failed call to the agent; the session keeps
// running.
//
// Example:
//
//	func(ctx context.Context, req *agentsession.CallToolRequest) (*agentsession.CallToolResult, error) {
//	    args, err := agentsession.ParseArguments(req)
//	    if err != nil {
//	        return agentsession.ErrorResult(err.Error()), nil
//	    }
//	    return agentsession.TextResult(fmt.Sprintf("got %v", args["a"])), nil
//	}
type ToolHandler = mcp.ToolHandler

// ToolOption configures a Tool during construction.
type ToolOption func(*Tool)

// WithAnnotations sets MCP tool annotations (hints about tool behavior).
func WithAnnotations(annotations *McpToolAnnotations) ToolOption {
	return func(t *Tool) {
		t.Annotations = annotations
	}
}

// NewTool creates a Tool. Register it with WithTools.
//
//	addTool := agentsession.NewTool("add", "Add two numbers",
//	    agentsession.SimpleSchema(map[string]string{"a": "float64", "b": "float64"}),
//	    handler,
//	    agentsession.WithAnnotations(&agentsession.McpToolAnnotations{ReadOnlyHint: true}),
//	)
func NewTool(
	name, description string,
	inputSchema *jsonschema.Schema,
	handler ToolHandler,
	opts ...ToolOption,
) *Tool {
	t := &Tool{
		Name:        name,
		Description: description,
		InputSchema: inputSchema,
		Handler:     handler,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// SimpleSchema creates a jsonschema.Schema from a simple type map.
//
// Input format: {"a": "float64", "b": "string"}
//
// Type mappings:
//   - "string"           → {"type": "string"}
//   - "int", "int64"     → {"type": "integer"}
//   - "float64", "float" → {"type": "number"}
//   - "bool"             → {"type": "boolean"}
//   - "[]string"         → {"type": "array", "items": {"type": "string"}}
//   - "any", "object"    → {"type": "object"}
func SimpleSchema(props map[string]string) *jsonschema.Schema {
	return tool.SimpleSchema(props)
}

// TextResult creates a CallToolResult with text content.
func TextResult(text string) *mcp.CallToolResult {
	return tool.TextResult(text)
}

// ErrorResult creates a CallToolResult indicating an error.
func ErrorResult(message string) *mcp.CallToolResult {
	return tool.ErrorResult(message)
}

// ImageResult creates a CallToolResult with image content.
func ImageResult(data []byte, mimeType string) *mcp.CallToolResult {
	return tool.ImageResult(data, mimeType)
}

// ParseArguments unmarshals CallToolRequest arguments into a map.
func ParseArguments(req *mcp.CallToolRequest) (map[string]any, error) {
	return tool.ParseArguments(req)
}
