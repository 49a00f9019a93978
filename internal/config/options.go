package config

import (
	"log/slog"
	"time"

	"github.com/wagiedev/agentsession-go/internal/hook"
	"github.com/wagiedev/agentsession-go/internal/permission"
	"github.com/wagiedev/agentsession-go/internal/tool"
)

const (
	// DefaultToolServerName names the in-process tool server when
	// ToolServerName is empty.
	DefaultToolServerName = "local"

	// DefaultControlTimeout bounds control round-trips such as interrupt.
	DefaultControlTimeout = 60 * time.Second

	// DefaultTerminateGracePeriod is how long a process gets to exit after
	// the interrupt signal before it is killed.
	DefaultTerminateGracePeriod = 5 * time.Second
)

// Options configures a session with the agent.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// CliPath is the agent binary. If empty it is looked up on PATH.
	CliPath string

	// SkipVersionCheck skips running the binary with -v during discovery.
	SkipVersionCheck bool

	// Args replaces the generated argv (everything after the binary).
	Args []string

	// ExtraArgs adds arbitrary flags. A nil value is a boolean flag.
	ExtraArgs map[string]*string

	// Cwd sets the working directory for the agent process.
	Cwd string

	// Env adds to or overrides the inherited environment.
	Env map[string]string

	Model        string
	SystemPrompt string
	MaxTurns     int
	Resume       string

	// PermissionMode controls how permissions are handled.
	// Valid values: "acceptEdits", "bypassPermissions", "default", "dontAsk", "plan".
	// Legacy aliases are supported and normalized:
	// - "acceptAll" -> "bypassPermissions"
	// - "prompt" -> "default"
	PermissionMode string

	AllowedTools    []string
	DisallowedTools []string
	AddDirs         []string

	// CanUseTool is consulted for every can_use_tool request.
	CanUseTool permission.Callback

	// Hooks are invoked through hook_callback requests.
	Hooks map[hook.Event][]*hook.Matcher

	// Tools are served in-process under ToolServerName.
	Tools          []*tool.Tool
	ToolServerName string

	// IncludePartialMessages delivers a PartialAssistantMessage for every
	// streamed assistant fragment in addition to the final AssistantMessage.
	IncludePartialMessages bool

	// MaxFrameSize limits one inbound line. Zero means framing.DefaultMaxFrameSize.
	MaxFrameSize int

	// ControlTimeout bounds control round-trips. Zero means DefaultControlTimeout.
	ControlTimeout time.Duration

	// InitializeTimeout bounds the initialize request. If nil, the
	// AGENT_SESSION_INITIALIZE_TIMEOUT env var (seconds) or 60s is used.
	InitializeTimeout *time.Duration

	// TerminateGracePeriod is the wait between interrupt and kill on
	// disconnect. Zero means DefaultTerminateGracePeriod.
	TerminateGracePeriod time.Duration

	// Stderr receives each line the agent writes to stderr.
	Stderr func(string)

	// Transport replaces the subprocess transport, mainly for tests.
	Transport Transport
}

// ServerName returns the in-process tool server name.
func (o *Options) ServerName() string {
	if o.ToolServerName != "" {
		return o.ToolServerName
	}

	return DefaultToolServerName
}

// ControlTimeoutOrDefault returns ControlTimeout or DefaultControlTimeout.
func (o *Options) ControlTimeoutOrDefault() time.Duration {
	if o.ControlTimeout > 0 {
		return o.ControlTimeout
	}

	return DefaultControlTimeout
}

// GracePeriod returns TerminateGracePeriod or DefaultTerminateGracePeriod.
func (o *Options) GracePeriod() time.Duration {
	if o.TerminateGracePeriod > 0 {
		return o.TerminateGracePeriod
	}

	return DefaultTerminateGracePeriod
}
