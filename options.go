package agentsession

import (
	"log/slog"
	"maps"
	"time"
)

// Option configures Options using the functional options pattern.
type Option func(*Options)

// applyOptions applies functional options to a fresh Options struct.
func applyOptions(opts []Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// ===== Basic Configuration =====

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithSystemPrompt sets the system prompt passed to the agent.
func WithSystemPrompt(prompt string) Option {
	return func(o *Options) {
		o.SystemPrompt = prompt
	}
}

// WithModel selects the model the agent starts with.
func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// WithPermissionMode controls how permissions are handled.
// Valid values: "default", "acceptEdits", "plan", "bypassPermissions", "dontAsk".
func WithPermissionMode(mode string) Option {
	return func(o *Options) {
		o.PermissionMode = mode
	}
}

// WithMaxTurns limits the number of agent turns.
func WithMaxTurns(maxTurns int) Option {
	return func(o *Options) {
		o.MaxTurns = maxTurns
	}
}

// WithResume resumes a previous agent conversation by id.
func WithResume(sessionID string) Option {
	return func(o *Options) {
		o.Resume = sessionID
	}
}

// WithAllowedTools sets the tools the agent may use without asking.
func WithAllowedTools(tools ...string) Option {
	return func(o *Options) {
		o.AllowedTools = tools
	}
}

// WithDisallowedTools sets the tools the agent may not use.
func WithDisallowedTools(tools ...string) Option {
	return func(o *Options) {
		o.DisallowedTools = tools
	}
}

// WithAddDirs grants the agent access to additional directories.
func WithAddDirs(dirs ...string) Option {
	return func(o *Options) {
		o.AddDirs = dirs
	}
}

// ===== Process =====

// WithCliPath sets the explicit path to the agent binary.
// If not set, the binary is searched for in PATH.
func WithCliPath(path string) Option {
	return func(o *Options) {
		o.CliPath = path
	}
}

// WithSkipVersionCheck skips the binary version check during discovery.
func WithSkipVersionCheck() Option {
	return func(o *Options) {
		o.SkipVersionCheck = true
	}
}

// WithArgs replaces the generated argv. Use it when the binary is not the
// stock agent CLI.
func WithArgs(args ...string) Option {
	return func(o *Options) {
		o.Args = args
	}
}

// WithExtraArgs adds arbitrary flags. A nil value is a boolean flag.
func WithExtraArgs(args map[string]*string) Option {
	return func(o *Options) {
		if o.ExtraArgs == nil {
			o.ExtraArgs = make(map[string]*string, len(args))
		}

		maps.Copy(o.ExtraArgs, args)
	}
}

// WithCwd sets the working directory for the agent process.
func WithCwd(cwd string) Option {
	return func(o *Options) {
		o.Cwd = cwd
	}
}

// WithEnv provides additional environment variables for the agent process.
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		o.Env = env
	}
}

// WithStderr sets a callback that receives each stderr line.
func WithStderr(fn func(string)) Option {
	return func(o *Options) {
		o.Stderr = fn
	}
}

// WithTerminateGracePeriod sets how long Disconnect waits after the
// interrupt signal before killing the process.
func WithTerminateGracePeriod(d time.Duration) Option {
	return func(o *Options) {
		o.TerminateGracePeriod = d
	}
}

// WithTransport injects a custom transport instead of spawning the binary.
func WithTransport(transport Transport) Option {
	return func(o *Options) {
		o.Transport = transport
	}
}

// ===== Protocol =====

// WithIncludePartialMessages emits a PartialAssistantMessage for every
// streamed assistant fragment.
func WithIncludePartialMessages() Option {
	return func(o *Options) {
		o.IncludePartialMessages = true
	}
}

// WithMaxFrameSize limits the size of one inbound line in bytes.
func WithMaxFrameSize(size int) Option {
	return func(o *Options) {
		o.MaxFrameSize = size
	}
}

// WithControlTimeout bounds control round-trips such as Interrupt.
func WithControlTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.ControlTimeout = d
	}
}

// WithInitializeTimeout bounds the initialize handshake.
func WithInitializeTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.InitializeTimeout = &d
	}
}

// ===== Callbacks =====

// WithCanUseTool sets the permission callback consulted before tool use.
func WithCanUseTool(callback CanUseToolFunc) Option {
	return func(o *Options) {
		o.CanUseTool = callback
	}
}

// WithHooks configures hook callbacks keyed by event.
func WithHooks(hooks map[HookEvent][]*HookMatcher) Option {
	return func(o *Options) {
		o.Hooks = hooks
	}
}

// ===== Tools =====

// WithTools registers in-process tools. Repeated calls append.
func WithTools(tools ...*Tool) Option {
	return func(o *Options) {
		o.Tools = append(o.Tools, tools...)
	}
}

// WithToolServerName names the in-process tool server advertised to the
// agent. The default is "local".
func WithToolServerName(name string) Option {
	return func(o *Options) {
		o.ToolServerName = name
	}
}
