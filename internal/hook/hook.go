// Package hook runs caller callbacks for agent lifecycle events.
//
// Callbacks are registered per event behind matchers. At initialize the
// Registry gives each callback an id and describes the matchers to the agent;
// the agent later invokes a callback by id through a hook_callback control
// request.
package hook

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Event represents the type of event that triggers a hook.
type Event string

const (
	// EventPreToolUse is triggered before a tool is used.
	EventPreToolUse Event = "PreToolUse"
	// EventPostToolUse is triggered after a tool is used.
	EventPostToolUse Event = "PostToolUse"
	// EventUserPromptSubmit is triggered when a user submits a prompt.
	EventUserPromptSubmit Event = "UserPromptSubmit"
	// EventStop is triggered when a session stops.
	EventStop Event = "Stop"
	// EventSubagentStop is triggered when a subagent stops.
	EventSubagentStop Event = "SubagentStop"
	// EventPreCompact is triggered before compaction.
	EventPreCompact Event = "PreCompact"
)

// Input is the payload the agent sends with a hook invocation. Fields that do
// not apply to the event are left zero; Raw keeps the full payload.
//
//nolint:tagliatelle // agent uses snake_case
type Input struct {
	HookEventName      Event          `json:"hook_event_name"`
	SessionID          string         `json:"session_id"`
	TranscriptPath     string         `json:"transcript_path"`
	Cwd                string         `json:"cwd"`
	PermissionMode     *string        `json:"permission_mode,omitempty"`
	ToolName           string         `json:"tool_name,omitempty"`
	ToolInput          map[string]any `json:"tool_input,omitempty"`
	ToolResponse       any            `json:"tool_response,omitempty"`
	ToolUseID          string         `json:"tool_use_id,omitempty"`
	Prompt             string         `json:"prompt,omitempty"`
	StopHookActive     bool           `json:"stop_hook_active,omitempty"`
	Trigger            string         `json:"trigger,omitempty"` // "manual" or "auto"
	CustomInstructions *string        `json:"custom_instructions,omitempty"`

	Raw map[string]any `json:"-"`
}

// ParseInput decodes a hook payload. hook_event_name is required.
func ParseInput(data map[string]any) (*Input, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal hook input: %w", err)
	}

	var input Input
	if err := json.Unmarshal(b, &input); err != nil {
		return nil, fmt.Errorf("unmarshal hook input: %w", err)
	}

	if input.HookEventName == "" {
		return nil, fmt.Errorf("hook input missing hook_event_name")
	}

	input.Raw = data

	return &input, nil
}

// Output is a callback's reply. A nil *Output means continue.
type Output struct {
	Continue       *bool
	SuppressOutput *bool
	StopReason     *string
	Decision       *string // "block"
	SystemMessage  *string
	Reason         *string

	// Async defers the decision; AsyncTimeout is in milliseconds.
	Async        bool
	AsyncTimeout *int

	HookSpecificOutput map[string]any
}

// ToMap renders the output as the hook_callback response payload.
func (o *Output) ToMap() map[string]any {
	if o == nil {
		return map[string]any{"continue": true}
	}

	if o.Async {
		result := map[string]any{"async": true}
		if o.AsyncTimeout != nil {
			result["asyncTimeout"] = *o.AsyncTimeout
		}

		return result
	}

	result := make(map[string]any, 7)

	if o.Continue != nil {
		result["continue"] = *o.Continue
	} else {
		result["continue"] = true
	}

	if o.SuppressOutput != nil {
		result["suppressOutput"] = *o.SuppressOutput
	}

	if o.StopReason != nil {
		result["stopReason"] = *o.StopReason
	}

	if o.Decision != nil {
		result["decision"] = *o.Decision
	}

	if o.SystemMessage != nil {
		result["systemMessage"] = *o.SystemMessage
	}

	if o.Reason != nil {
		result["reason"] = *o.Reason
	}

	if o.HookSpecificOutput != nil {
		result["hookSpecificOutput"] = o.HookSpecificOutput
	}

	return result
}

// Callback is the function signature for hook callbacks.
type Callback func(ctx context.Context, input *Input, toolUseID *string) (*Output, error)

// Matcher configures which tools/events a hook applies to.
type Matcher struct {
	// Matcher is a tool name like "Bash" or a pipe-separated list like
	// "Write|Edit". Nil matches everything.
	Matcher *string
	Hooks   []Callback
	Timeout *float64 // seconds
}

// Registry assigns callback ids and dispatches invocations.
type Registry struct {
	mu        sync.RWMutex
	callbacks map[string]Callback
	config    map[string]any
}

// NewRegistry assigns ids hook_0, hook_1, ... in event-name order, then
// matcher order, then callback order.
func NewRegistry(hooks map[Event][]*Matcher) *Registry {
	r := &Registry{
		callbacks: make(map[string]Callback, len(hooks)),
		config:    make(map[string]any, len(hooks)),
	}

	next := 0

	for _, event := range slices.Sorted(maps.Keys(hooks)) {
		matchers := make([]map[string]any, 0, len(hooks[event]))

		for _, m := range hooks[event] {
			if m == nil {
				continue
			}

			ids := make([]string, 0, len(m.Hooks))

			for _, cb := range m.Hooks {
				id := fmt.Sprintf("hook_%d", next)
				next++
				r.callbacks[id] = cb
				ids = append(ids, id)
			}

			matcherConfig := map[string]any{
				"matcher":         m.Matcher,
				"hookCallbackIds": ids,
			}

			if m.Timeout != nil {
				matcherConfig["timeout"] = *m.Timeout
			}

			matchers = append(matchers, matcherConfig)
		}

		r.config[string(event)] = matchers
	}

	return r
}

// Len returns the number of registered callbacks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.callbacks)
}

// Config returns the hooks section of the initialize request.
func (r *Registry) Config() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return maps.Clone(r.config)
}

// Dispatch runs the callback registered under callbackID.
func (r *Registry) Dispatch(
	ctx context.Context,
	callbackID string,
	data map[string]any,
	toolUseID *string,
) (map[string]any, error) {
	r.mu.RLock()
	cb, ok := r.callbacks[callbackID]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown callback_id: %s", callbackID)
	}

	input, err := ParseInput(data)
	if err != nil {
		return nil, fmt.Errorf("parse hook input: %w", err)
	}

	output, err := cb(ctx, input, toolUseID)
	if err != nil {
		return nil, fmt.Errorf("hook callback error: %w", err)
	}

	return output.ToMap(), nil
}
