package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagiedev/agentsession-go/internal/errors"
)

// Tool is one registered tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
	Annotations *mcp.ToolAnnotations
	Handler     mcp.ToolHandler
}

// Registry holds tools in registration order.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*Tool
	order  []string
	frozen bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool, 8)}
}

// Register adds a tool. Names must be unique and registration must happen
// before Freeze.
func (r *Registry) Register(t *Tool) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("tool name is required")
	}

	if t.Handler == nil {
		return fmt.Errorf("tool %q has no handler", t.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("%w: cannot register %q", errors.ErrRegistryFrozen, t.Name)
	}

	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %q already registered", t.Name)
	}

	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)

	return nil
}

// Freeze rejects further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.frozen
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tools)
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]

	return t, ok
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}

// List returns tool metadata in the tools/list shape.
func (r *Registry) List() []map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]map[string]any, 0, len(r.order))

	for _, name := range r.order {
		t := r.tools[name]
		entry := map[string]any{
			"name":        t.Name,
			"description": t.Description,
		}

		schema := t.InputSchema
		if schema == nil {
			schema = &jsonschema.Schema{Type: "object"}
		}

		if m, ok := toMap(schema); ok {
			entry["inputSchema"] = m
		}

		if t.Annotations != nil {
			if m, ok := toMap(t.Annotations); ok {
				entry["annotations"] = m
			}
		}

		result = append(result, entry)
	}

	return result
}

// Call runs the named tool. An unknown name returns an error wrapping
// errors.ErrToolNotFound. Handler failures come back as an error result.
func (r *Registry) Call(ctx context.Context, name string, input map[string]any) (*mcp.CallToolResult, error) {
	t, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrToolNotFound, name)
	}

	if input == nil {
		input = map[string]any{}
	}

	args, err := json.Marshal(input)
	if err != nil {
		return ErrorResult("invalid tool input: " + err.Error()), nil //nolint:nilerr // reported in the result
	}

	req := &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{
			Name:      name,
			Arguments: args,
		},
	}

	result, err := invoke(ctx, t.Handler, req)
	if err != nil {
		return ErrorResult("tool execution failed: " + err.Error()), nil //nolint:nilerr // reported in the result
	}

	if result == nil {
		result = &mcp.CallToolResult{}
	}

	return result, nil
}

func invoke(ctx context.Context, h mcp.ToolHandler, req *mcp.CallToolRequest) (result *mcp.CallToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	return h(ctx, req)
}

func toMap(v any) (map[string]any, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}

	var m map[string]any
	if json.Unmarshal(data, &m) != nil {
		return nil, false
	}

	return m, true
}
