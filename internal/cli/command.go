package cli

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/wagiedev/agentsession-go/internal/config"
	"github.com/wagiedev/agentsession-go/internal/tool"
)

// Version is reported to the agent process in the environment.
const Version = "0.1.0"

// BuildArgs constructs the argv passed after the binary path. Options.Args,
// when set, replaces the generated list entirely.
//
// The session always runs in streaming mode: prompts arrive on stdin as
// stream-json frames.
func BuildArgs(options *config.Options) []string {
	if options.Args != nil {
		return slices.Clone(options.Args)
	}

	args := []string{
		"--output-format", "stream-json",
		"--verbose",
		"--input-format", "stream-json",
	}

	// Always sent so the binary does not fall back to its own default prompt.
	args = append(args, "--system-prompt", options.SystemPrompt)

	if options.PermissionMode != "" {
		args = append(args, "--permission-mode", config.NormalizePermissionMode(options.PermissionMode))
	}

	if options.Model != "" {
		args = append(args, "--model", options.Model)
	}

	if options.MaxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(options.MaxTurns))
	}

	if options.Resume != "" {
		args = append(args, "--resume", options.Resume)
	}

	if len(options.AllowedTools) > 0 {
		args = append(args, "--allowed-tools", strings.Join(options.AllowedTools, ","))
	}

	if len(options.DisallowedTools) > 0 {
		args = append(args, "--disallowed-tools", strings.Join(options.DisallowedTools, ","))
	}

	for _, dir := range options.AddDirs {
		args = append(args, "--add-dir", dir)
	}

	if options.CanUseTool != nil {
		args = append(args, "--permission-prompt-tool", "stdio")
	}

	if options.IncludePartialMessages {
		args = append(args, "--include-partial-messages")
	}

	if len(options.Tools) > 0 {
		if mcpConfig, err := tool.MCPConfig(options.ServerName()); err == nil {
			args = append(args, "--mcp-config", mcpConfig)
		}
	}

	// Sorted for a stable argv.
	for _, key := range slices.Sorted(maps.Keys(options.ExtraArgs)) {
		if value := options.ExtraArgs[key]; value == nil {
			args = append(args, "--"+key)
		} else {
			args = append(args, "--"+key, *value)
		}
	}

	return args
}

// BuildEnvironment constructs the environment for the agent process: the
// current environment, then session markers, then Options.Env overrides.
func BuildEnvironment(options *config.Options) []string {
	env := os.Environ()

	env = append(env,
		"AGENT_SESSION_VERSION="+Version,
		"CLAUDE_CODE_ENTRYPOINT=sdk-go",
	)

	for _, key := range slices.Sorted(maps.Keys(options.Env)) {
		env = append(env, fmt.Sprintf("%s=%s", key, options.Env[key]))
	}

	return env
}
