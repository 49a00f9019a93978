package protocol

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/wagiedev/agentsession-go/internal/config"
	"github.com/wagiedev/agentsession-go/internal/hook"
	"github.com/wagiedev/agentsession-go/internal/message"
	"github.com/wagiedev/agentsession-go/internal/permission"
	"github.com/wagiedev/agentsession-go/internal/tool"
)

const (
	defaultInitializeTimeout = 60 * time.Second

	// InitializeTimeoutEnv overrides the initialize timeout, in seconds.
	InitializeTimeoutEnv = "AGENT_SESSION_INITIALIZE_TIMEOUT"

	toolServerVersion = "1.0.0"
)

// Session answers the agent's session-level control requests: hook
// callbacks, permission checks, and tool calls.
type Session struct {
	log        *slog.Logger
	controller *Controller
	options    *config.Options

	hooks  *hook.Registry
	bridge *tool.Bridge

	modeMu sync.RWMutex
	mode   permission.Mode

	initMu               sync.RWMutex
	initializationResult map[string]any
}

// NewSession builds the hook and tool registries from options. The tool
// registry is frozen before NewSession returns.
func NewSession(
	log *slog.Logger,
	controller *Controller,
	options *config.Options,
) (*Session, error) {
	if options == nil {
		options = &config.Options{}
	}

	mode, err := config.ParsePermissionMode(options.PermissionMode)
	if err != nil {
		return nil, err
	}

	registry := tool.NewRegistry()

	for _, t := range options.Tools {
		if err := registry.Register(t); err != nil {
			return nil, fmt.Errorf("register tool: %w", err)
		}
	}

	registry.Freeze()

	return &Session{
		log:        log.With("component", "session"),
		controller: controller,
		options:    options,
		hooks:      hook.NewRegistry(options.Hooks),
		bridge:     tool.NewBridge(log, options.ServerName(), toolServerVersion, registry),
		mode:       mode,
	}, nil
}

// RegisterHandlers registers the session's control request handlers.
// This must be called before the controller starts.
func (s *Session) RegisterHandlers() {
	s.controller.RegisterHandler("hook_callback", s.HandleHookCallback)
	s.controller.RegisterHandler("can_use_tool", s.HandleCanUseTool)
	s.controller.RegisterHandler("call_tool", s.bridge.HandleCallTool)
	s.controller.RegisterHandler("mcp_message", s.bridge.HandleMCPMessage)
}

// Initialize sends the initialize control request.
func (s *Session) Initialize(ctx context.Context) error {
	s.log.Debug("Sending initialize request", "hooks", s.hooks.Len(), "tools", s.bridge.Registry().Len())

	var hooksConfig any
	if s.hooks.Len() > 0 {
		hooksConfig = s.hooks.Config()
	}

	resp, err := s.controller.SendRequest(ctx, "initialize", map[string]any{
		"hooks": hooksConfig,
	}, s.initializeTimeout())
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	s.initMu.Lock()
	s.initializationResult = resp.Response
	s.initMu.Unlock()

	return nil
}

func (s *Session) initializeTimeout() time.Duration {
	if s.options.InitializeTimeout != nil {
		return *s.options.InitializeTimeout
	}

	if v := os.Getenv(InitializeTimeoutEnv); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}

		s.log.Warn("Ignoring invalid initialize timeout", "env", InitializeTimeoutEnv, "value", v)
	}

	return defaultInitializeTimeout
}

// NeedsInitialization reports whether the agent must be told about hooks,
// a permission callback, or tools before the first message.
func (s *Session) NeedsInitialization() bool {
	return s.hooks.Len() > 0 ||
		s.options.CanUseTool != nil ||
		s.bridge.Registry().Len() > 0
}

// GetInitializationResult returns a copy of the initialize response payload,
// or nil before Initialize succeeds.
func (s *Session) GetInitializationResult() map[string]any {
	s.initMu.RLock()
	defer s.initMu.RUnlock()

	if s.initializationResult == nil {
		return nil
	}

	return maps.Clone(s.initializationResult)
}

// ToolServerName returns the in-process tool server name.
func (s *Session) ToolServerName() string { return s.bridge.Name() }

// ToolNames returns the registered tool names.
func (s *Session) ToolNames() []string { return s.bridge.Registry().Names() }

// PermissionMode returns the current permission mode.
func (s *Session) PermissionMode() permission.Mode {
	s.modeMu.RLock()
	defer s.modeMu.RUnlock()

	return s.mode
}

// SetPermissionMode changes the mode used for later permission checks.
func (s *Session) SetPermissionMode(mode permission.Mode) {
	s.modeMu.Lock()
	s.mode = mode
	s.modeMu.Unlock()
}

// HandleHookCallback handles hook_callback control requests.
func (s *Session) HandleHookCallback(
	ctx context.Context,
	req *message.ControlRequest,
) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	callbackID := StringField(req, "callback_id")

	var toolUseID *string
	if id := StringField(req, "tool_use_id"); id != "" {
		toolUseID = &id
	}

	s.log.Debug("Handling hook callback", "callback_id", callbackID)

	return s.hooks.Dispatch(ctx, callbackID, MapField(req, "input"), toolUseID)
}

// HandleCanUseTool handles can_use_tool control requests.
func (s *Session) HandleCanUseTool(
	ctx context.Context,
	req *message.ControlRequest,
) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	toolName := StringField(req, "tool_name")
	input := MapField(req, "input")

	permCtx := &permission.Context{ToolUseID: StringField(req, "tool_use_id")}

	if suggestions, ok := req.Request["permission_suggestions"].([]any); ok {
		for _, sg := range suggestions {
			if m, ok := sg.(map[string]any); ok {
				permCtx.Suggestions = append(permCtx.Suggestions, permission.ParseUpdate(m))
			}
		}
	}

	decision := permission.Decide(ctx, s.PermissionMode(), s.options.CanUseTool, toolName, input, permCtx)

	s.log.Debug("Permission decided", "tool", toolName, "behavior", decision.GetBehavior())

	return permission.ToWire(decision, input), nil
}
