package agentsession

import (
	"github.com/wagiedev/agentsession-go/internal/client"
	"github.com/wagiedev/agentsession-go/internal/config"
	"github.com/wagiedev/agentsession-go/internal/hook"
	"github.com/wagiedev/agentsession-go/internal/message"
	"github.com/wagiedev/agentsession-go/internal/permission"
)

// Re-export types from internal packages

// ===== Options and Lifecycle =====

// Options configures a session. Build it with Option functions.
type Options = config.Options

// State is the lifecycle state of a Client.
type State = client.State

const (
	// StateDisconnected means no session is live.
	StateDisconnected = client.StateDisconnected
	// StateConnecting means Connect is in progress.
	StateConnecting = client.StateConnecting
	// StateConnected means the session is live.
	StateConnected = client.StateConnected
	// StateDisconnecting means Disconnect is in progress.
	StateDisconnecting = client.StateDisconnecting
	// StateFailed means Connect failed or the agent process went away.
	StateFailed = client.StateFailed
)

// ===== Messages =====

// Message is implemented by every message the agent can emit.
type Message = message.Message

// UserMessage is a user turn echoed by the agent.
type UserMessage = message.UserMessage

// AssistantMessage is a complete assistant reply.
type AssistantMessage = message.AssistantMessage

// AssistantMessageError classifies a failed assistant reply.
type AssistantMessageError = message.AssistantMessageError

const (
	// AssistantMessageErrorAuthFailed indicates authentication failure.
	AssistantMessageErrorAuthFailed = message.AssistantMessageErrorAuthFailed
	// AssistantMessageErrorBilling indicates a billing error.
	AssistantMessageErrorBilling = message.AssistantMessageErrorBilling
	// AssistantMessageErrorRateLimit indicates rate limiting.
	AssistantMessageErrorRateLimit = message.AssistantMessageErrorRateLimit
	// AssistantMessageErrorInvalidReq indicates an invalid request.
	AssistantMessageErrorInvalidReq = message.AssistantMessageErrorInvalidReq
	// AssistantMessageErrorServer indicates a server error.
	AssistantMessageErrorServer = message.AssistantMessageErrorServer
	// AssistantMessageErrorUnknown indicates an unknown error.
	AssistantMessageErrorUnknown = message.AssistantMessageErrorUnknown
)

// PartialAssistantMessage is an intermediate snapshot of a streamed reply,
// emitted only with WithIncludePartialMessages.
type PartialAssistantMessage = message.PartialAssistantMessage

// SystemMessage carries agent status such as the init event.
type SystemMessage = message.SystemMessage

// ResultMessage ends a turn.
type ResultMessage = message.ResultMessage

// Usage contains token usage information.
type Usage = message.Usage

// StreamEvent is a raw model streaming event forwarded by the agent.
type StreamEvent = message.StreamEvent

// ToolUseMessage is a standalone tool invocation.
type ToolUseMessage = message.ToolUseMessage

// ToolResultMessage is a standalone tool result.
type ToolResultMessage = message.ToolResultMessage

// UnknownMessage is a well-formed frame of a type this package does not
// model.
type UnknownMessage = message.UnknownMessage

// ===== Content Blocks =====

// ContentBlock is one element of an assistant message's content.
type ContentBlock = message.ContentBlock

// TextBlock contains text.
type TextBlock = message.TextBlock

// ThinkingBlock contains model reasoning.
type ThinkingBlock = message.ThinkingBlock

// ToolUseBlock is a tool invocation inside an assistant message.
type ToolUseBlock = message.ToolUseBlock

// ToolResultBlock is a tool result inside a message.
type ToolResultBlock = message.ToolResultBlock

// UnknownBlock is a content block of an unmodeled type.
type UnknownBlock = message.UnknownBlock

// ===== Permissions =====

// PermissionMode is a session permission mode.
type PermissionMode = permission.Mode

const (
	// PermissionModeDefault prompts for dangerous tools.
	PermissionModeDefault = permission.ModeDefault
	// PermissionModeAcceptEdits accepts file edits automatically.
	PermissionModeAcceptEdits = permission.ModeAcceptEdits
	// PermissionModePlan plans without executing.
	PermissionModePlan = permission.ModePlan
	// PermissionModeBypassPermissions allows every tool.
	PermissionModeBypassPermissions = permission.ModeBypassPermissions
	// PermissionModeDontAsk denies anything not pre-approved.
	PermissionModeDontAsk = permission.ModeDontAsk
)

// CanUseToolFunc decides whether the agent may run a tool.
type CanUseToolFunc = permission.Callback

// ToolPermissionContext carries the tool use id and the agent's suggested
// permission updates.
type ToolPermissionContext = permission.Context

// PermissionResult is returned by a CanUseToolFunc.
type PermissionResult = permission.Result

// PermissionResultAllow allows a tool use, optionally with edited input.
type PermissionResultAllow = permission.ResultAllow

// PermissionResultDeny denies a tool use.
type PermissionResultDeny = permission.ResultDeny

// PermissionUpdate is a permission rule change.
type PermissionUpdate = permission.Update

// PermissionRuleValue is one permission rule.
type PermissionRuleValue = permission.RuleValue

// Allow returns a plain allow decision.
func Allow() *PermissionResultAllow { return permission.Allow() }

// Deny returns a deny decision. With interrupt set the turn stops as well.
func Deny(message string, interrupt bool) *PermissionResultDeny {
	return permission.Deny(message, interrupt)
}

// AllowWithEdits allows a tool use with replaced input and permission
// updates.
func AllowWithEdits(input map[string]any, updates ...*PermissionUpdate) *PermissionResultAllow {
	return permission.AllowWithEdits(input, updates...)
}

// ===== Hooks =====

// HookEvent names a hook point.
type HookEvent = hook.Event

const (
	// HookEventPreToolUse runs before a tool is used.
	HookEventPreToolUse = hook.EventPreToolUse
	// HookEventPostToolUse runs after a tool is used.
	HookEventPostToolUse = hook.EventPostToolUse
	// HookEventUserPromptSubmit runs when a prompt is submitted.
	HookEventUserPromptSubmit = hook.EventUserPromptSubmit
	// HookEventStop runs when the agent stops.
	HookEventStop = hook.EventStop
	// HookEventSubagentStop runs when a subagent stops.
	HookEventSubagentStop = hook.EventSubagentStop
	// HookEventPreCompact runs before context compaction.
	HookEventPreCompact = hook.EventPreCompact
)

// HookInput is the payload passed to a hook callback.
type HookInput = hook.Input

// HookOutput is a hook callback's reply. nil means continue.
type HookOutput = hook.Output

// HookCallback is the function signature for hook callbacks.
type HookCallback = hook.Callback

// HookMatcher selects the tools a group of hook callbacks applies to.
type HookMatcher = hook.Matcher
