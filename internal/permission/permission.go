// Package permission decides whether the agent may run a tool.
//
// The agent asks through a can_use_tool control request. The reply is one
// of three decisions: allow, deny (optionally interrupting the turn), or allow
// with edits to the tool input and to the session's permission rules.
package permission

import (
	"context"
	"fmt"
	"maps"
)

// Mode represents different permission handling modes.
type Mode string

const (
	// ModeDefault uses standard permission prompts.
	ModeDefault Mode = "default"
	// ModeAcceptEdits automatically accepts file edits.
	ModeAcceptEdits Mode = "acceptEdits"
	// ModePlan enables plan mode for implementation planning.
	ModePlan Mode = "plan"
	// ModeBypassPermissions bypasses all permission checks.
	ModeBypassPermissions Mode = "bypassPermissions"
	// ModeDontAsk denies anything that would otherwise prompt.
	ModeDontAsk Mode = "dontAsk"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeDefault, ModeAcceptEdits, ModePlan, ModeBypassPermissions, ModeDontAsk:
		return true
	default:
		return false
	}
}

// UpdateType represents the type of permission update.
type UpdateType string

const (
	// UpdateTypeAddRules adds new permission rules.
	UpdateTypeAddRules UpdateType = "addRules"
	// UpdateTypeReplaceRules replaces existing permission rules.
	UpdateTypeReplaceRules UpdateType = "replaceRules"
	// UpdateTypeRemoveRules removes permission rules.
	UpdateTypeRemoveRules UpdateType = "removeRules"
	// UpdateTypeSetMode sets the permission mode.
	UpdateTypeSetMode UpdateType = "setMode"
	// UpdateTypeAddDirectories adds accessible directories.
	UpdateTypeAddDirectories UpdateType = "addDirectories"
	// UpdateTypeRemoveDirectories removes accessible directories.
	UpdateTypeRemoveDirectories UpdateType = "removeDirectories"
)

// UpdateDestination represents where permission updates are stored.
type UpdateDestination string

const (
	UpdateDestUserSettings    UpdateDestination = "userSettings"
	UpdateDestProjectSettings UpdateDestination = "projectSettings"
	UpdateDestLocalSettings   UpdateDestination = "localSettings"
	UpdateDestSession         UpdateDestination = "session"
)

// Behavior represents the permission behavior for a rule.
type Behavior string

const (
	BehaviorAllow Behavior = "allow"
	BehaviorDeny  Behavior = "deny"
	BehaviorAsk   Behavior = "ask"
)

// RuleValue represents a permission rule.
type RuleValue struct {
	ToolName    string
	RuleContent *string
}

// Update represents a permission update request.
type Update struct {
	Type        UpdateType
	Rules       []*RuleValue
	Behavior    *Behavior
	Mode        *Mode
	Directories []string
	Destination *UpdateDestination
}

// ToDict converts the Update to its wire form.
func (p *Update) ToDict() map[string]any {
	result := make(map[string]any, 6)
	result["type"] = string(p.Type)

	if p.Destination != nil {
		result["destination"] = string(*p.Destination)
	}

	if len(p.Rules) > 0 {
		rules := make([]map[string]any, len(p.Rules))
		for i, rule := range p.Rules {
			ruleMap := map[string]any{
				"toolName": rule.ToolName,
			}
			if rule.RuleContent != nil {
				ruleMap["ruleContent"] = *rule.RuleContent
			}

			rules[i] = ruleMap
		}

		result["rules"] = rules
	}

	if p.Behavior != nil {
		result["behavior"] = string(*p.Behavior)
	}

	if p.Mode != nil {
		result["mode"] = string(*p.Mode)
	}

	if len(p.Directories) > 0 {
		result["directories"] = p.Directories
	}

	return result
}

// ParseUpdate reads a suggestion sent by the agent. Unknown keys are ignored.
func ParseUpdate(data map[string]any) *Update {
	update := &Update{}

	if t, ok := data["type"].(string); ok {
		update.Type = UpdateType(t)
	}

	if d, ok := data["destination"].(string); ok {
		dest := UpdateDestination(d)
		update.Destination = &dest
	}

	if b, ok := data["behavior"].(string); ok {
		behavior := Behavior(b)
		update.Behavior = &behavior
	}

	if m, ok := data["mode"].(string); ok {
		mode := Mode(m)
		update.Mode = &mode
	}

	if rules, ok := data["rules"].([]any); ok {
		for _, r := range rules {
			ruleMap, ok := r.(map[string]any)
			if !ok {
				continue
			}

			rule := &RuleValue{}
			rule.ToolName, _ = ruleMap["toolName"].(string)

			if content, ok := ruleMap["ruleContent"].(string); ok {
				rule.RuleContent = &content
			}

			update.Rules = append(update.Rules, rule)
		}
	}

	if dirs, ok := data["directories"].([]any); ok {
		for _, d := range dirs {
			if s, ok := d.(string); ok {
				update.Directories = append(update.Directories, s)
			}
		}
	}

	return update
}

// Context provides context for tool permission callbacks.
type Context struct {
	ToolUseID   string
	Suggestions []*Update // Permission update suggestions from the agent
}

// Result is the interface for permission decision results.
type Result interface {
	GetBehavior() string
}

// Compile-time verification that permission result types implement Result.
var (
	_ Result = (*ResultAllow)(nil)
	_ Result = (*ResultDeny)(nil)
)

// ResultAllow represents an allow decision. With UpdatedInput or
// UpdatedPermissions set it is an allow-with-edits decision.
type ResultAllow struct {
	UpdatedInput       map[string]any
	UpdatedPermissions []*Update
}

// GetBehavior implements Result.
func (p *ResultAllow) GetBehavior() string { return string(BehaviorAllow) }

// ResultDeny represents a deny decision.
type ResultDeny struct {
	Message   string
	Interrupt bool // stop the current turn as well
}

// GetBehavior implements Result.
func (p *ResultDeny) GetBehavior() string { return string(BehaviorDeny) }

// Allow returns a plain allow decision.
func Allow() *ResultAllow { return &ResultAllow{} }

// Deny returns a deny decision with the given reason.
func Deny(message string, interrupt bool) *ResultDeny {
	return &ResultDeny{Message: message, Interrupt: interrupt}
}

// AllowWithEdits allows the call with a rewritten input and optional rule
// updates.
func AllowWithEdits(input map[string]any, updates ...*Update) *ResultAllow {
	return &ResultAllow{UpdatedInput: input, UpdatedPermissions: updates}
}

// Callback is called before each tool use for permission checking.
type Callback func(
	ctx context.Context,
	toolName string,
	input map[string]any,
	permCtx *Context,
) (Result, error)

// Decide resolves a permission request to a decision.
//
// ModeBypassPermissions allows without consulting cb and ModeDontAsk denies.
// Otherwise a nil cb allows. A callback error, panic, or unrecognised result
// denies the call rather than failing the session.
func Decide(
	ctx context.Context,
	mode Mode,
	cb Callback,
	toolName string,
	input map[string]any,
	permCtx *Context,
) Result {
	switch mode {
	case ModeBypassPermissions:
		return Allow()
	case ModeDontAsk:
		return Deny(fmt.Sprintf("permission mode %s denies %s", mode, toolName), false)
	}

	if cb == nil {
		return Allow()
	}

	result, err := invoke(ctx, cb, toolName, input, permCtx)
	if err != nil {
		return Deny(err.Error(), false)
	}

	switch r := result.(type) {
	case *ResultAllow:
		if r == nil {
			return Allow()
		}

		return r
	case *ResultDeny:
		if r == nil {
			return Deny("denied", false)
		}

		return r
	default:
		return Deny(fmt.Sprintf("unsupported permission result %T", result), false)
	}
}

func invoke(
	ctx context.Context,
	cb Callback,
	toolName string,
	input map[string]any,
	permCtx *Context,
) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("permission callback panic: %v", r)
		}
	}()

	return cb(ctx, toolName, input, permCtx)
}

// ToWire renders a decision as the can_use_tool response payload. An allow
// always carries updatedInput, defaulting to the original input.
func ToWire(result Result, input map[string]any) map[string]any {
	switch r := result.(type) {
	case *ResultAllow:
		updated := r.UpdatedInput
		if updated == nil {
			updated = maps.Clone(input)
			if updated == nil {
				updated = map[string]any{}
			}
		}

		out := map[string]any{
			"behavior":     string(BehaviorAllow),
			"updatedInput": updated,
		}

		if len(r.UpdatedPermissions) > 0 {
			updates := make([]map[string]any, len(r.UpdatedPermissions))
			for i, u := range r.UpdatedPermissions {
				updates[i] = u.ToDict()
			}

			out["updatedPermissions"] = updates
		}

		return out

	case *ResultDeny:
		out := map[string]any{
			"behavior": string(BehaviorDeny),
			"message":  r.Message,
		}

		if r.Interrupt {
			out["interrupt"] = true
		}

		return out

	default:
		return map[string]any{
			"behavior": string(BehaviorDeny),
			"message":  fmt.Sprintf("unsupported permission result %T", result),
		}
	}
}
