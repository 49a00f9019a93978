package message

import "encoding/json"

// Message type discriminants as they appear on the wire.
const (
	TypeUser                 = "user"
	TypeAssistant            = "assistant"
	TypeSystem               = "system"
	TypeResult               = "result"
	TypeStreamEvent          = "stream_event"
	TypeToolUse              = "tool_use"
	TypeToolResult           = "tool_result"
	TypeControlRequest       = "control_request"
	TypeControlResponse      = "control_response"
	TypeControlCancelRequest = "control_cancel_request"
	TypePartialAssistant     = "partial_assistant"
)

// Control response subtypes.
const (
	ResponseSubtypeSuccess = "success"
	ResponseSubtypeError   = "error"

	// ResponseSubtypeCancelAck acknowledges a control_cancel_request.
	ResponseSubtypeCancelAck = "cancel_acknowledgment"
)

// Message represents any message in the conversation.
// Use type assertion or type switch to determine the concrete type.
type Message interface {
	MessageType() string
}

// Compile-time verification that all message types implement Message.
var (
	_ Message = (*UserMessage)(nil)
	_ Message = (*AssistantMessage)(nil)
	_ Message = (*AssistantFragment)(nil)
	_ Message = (*PartialAssistantMessage)(nil)
	_ Message = (*SystemMessage)(nil)
	_ Message = (*ResultMessage)(nil)
	_ Message = (*StreamEvent)(nil)
	_ Message = (*ToolUseMessage)(nil)
	_ Message = (*ToolResultMessage)(nil)
	_ Message = (*ControlRequest)(nil)
	_ Message = (*ControlResponse)(nil)
	_ Message = (*ControlCancelRequest)(nil)
	_ Message = (*UnknownMessage)(nil)
)

// UserMessageContent represents content that can be either a string or []ContentBlock.
type UserMessageContent struct {
	text   *string
	blocks []ContentBlock
}

// NewUserMessageContent creates UserMessageContent from a string.
func NewUserMessageContent(text string) UserMessageContent {
	return UserMessageContent{text: &text}
}

// NewUserMessageContentBlocks creates UserMessageContent from blocks.
func NewUserMessageContentBlocks(blocks []ContentBlock) UserMessageContent {
	return UserMessageContent{blocks: blocks}
}

// String returns the string content if it was originally a string, or empty string.
func (c *UserMessageContent) String() string {
	if c.text != nil {
		return *c.text
	}

	return ""
}

// Blocks returns content as []ContentBlock, normalizing a string to a TextBlock.
func (c *UserMessageContent) Blocks() []ContentBlock {
	if c.blocks != nil {
		return c.blocks
	}

	if c.text != nil {
		return []ContentBlock{&TextBlock{Type: BlockTypeText, Text: *c.text}}
	}

	return nil
}

// IsString returns true if content was originally a string.
func (c *UserMessageContent) IsString() bool {
	return c.text != nil
}

// MarshalJSON implements json.Marshaler.
func (c UserMessageContent) MarshalJSON() ([]byte, error) {
	if c.text != nil {
		return json.Marshal(*c.text)
	}

	if c.blocks == nil {
		return []byte("[]"), nil
	}

	return json.Marshal(c.blocks)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *UserMessageContent) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		c.text = &text
		c.blocks = nil

		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	blocks, err := decodeBlocks(raw)
	if err != nil {
		return err
	}

	if blocks == nil {
		blocks = []ContentBlock{}
	}

	c.blocks = blocks
	c.text = nil

	return nil
}

// UserMessage represents a message from the user.
type UserMessage struct {
	Content         UserMessageContent
	UUID            *string
	ParentToolUseID *string
	SessionID       string
}

// MessageType implements the Message interface.
func (m *UserMessage) MessageType() string { return TypeUser }

// AssistantMessage is a complete reply from the agent.
type AssistantMessage struct {
	ID              string
	Content         []ContentBlock
	Model           string
	ParentToolUseID *string
	Error           *AssistantMessageError
}

// MessageType implements the Message interface.
func (m *AssistantMessage) MessageType() string { return TypeAssistant }

// Text concatenates every text block in the message.
func (m *AssistantMessage) Text() string {
	var text string

	for _, block := range m.Content {
		if tb, ok := block.(*TextBlock); ok {
			text += tb.Text
		}
	}

	return text
}

// AssistantMessageError represents error types from the assistant.
type AssistantMessageError string

const (
	// AssistantMessageErrorAuthFailed indicates authentication failure.
	AssistantMessageErrorAuthFailed AssistantMessageError = "authentication_failed"
	// AssistantMessageErrorBilling indicates a billing error.
	AssistantMessageErrorBilling AssistantMessageError = "billing_error"
	// AssistantMessageErrorRateLimit indicates rate limiting.
	AssistantMessageErrorRateLimit AssistantMessageError = "rate_limit"
	// AssistantMessageErrorInvalidReq indicates an invalid request.
	AssistantMessageErrorInvalidReq AssistantMessageError = "invalid_request"
	// AssistantMessageErrorServer indicates a server error.
	AssistantMessageErrorServer AssistantMessageError = "server_error"
	// AssistantMessageErrorUnknown indicates an unknown error.
	AssistantMessageErrorUnknown AssistantMessageError = "unknown"
)

// AssistantFragment is one streamed piece of an in-flight assistant reply.
// Fragments sharing an ID are assembled in arrival order until one arrives
// with Done set.
type AssistantFragment struct {
	ID      string
	Delta   string
	Content []ContentBlock
	Model   string
	Done    bool
}

// MessageType implements the Message interface.
func (m *AssistantFragment) MessageType() string { return TypeAssistant }

// PartialAssistantMessage is an intermediate snapshot emitted for every
// fragment when partial messages are enabled. Delta and Content hold what the
// fragment added; Text is the text accumulated so far.
type PartialAssistantMessage struct {
	ID      string
	Delta   string
	Text    string
	Content []ContentBlock
	Model   string
	Done    bool
}

// MessageType implements the Message interface.
func (m *PartialAssistantMessage) MessageType() string { return TypePartialAssistant }

// SystemMessage represents a system message.
type SystemMessage struct {
	Subtype string
	Data    map[string]any
}

// MessageType implements the Message interface.
func (m *SystemMessage) MessageType() string { return TypeSystem }

// ResultMessage represents the final result of a turn.
//
//nolint:tagliatelle // wire format uses snake_case
type ResultMessage struct {
	Type             string   `json:"type"`
	Subtype          string   `json:"subtype"`
	DurationMs       int      `json:"duration_ms"`
	DurationAPIMs    int      `json:"duration_api_ms"`
	IsError          bool     `json:"is_error"`
	NumTurns         int      `json:"num_turns"`
	SessionID        string   `json:"session_id"`
	TotalCostUSD     *float64 `json:"total_cost_usd,omitempty"`
	Usage            *Usage   `json:"usage,omitempty"`
	Result           *string  `json:"result,omitempty"`
	StructuredOutput any      `json:"structured_output,omitempty"`
}

// MessageType implements the Message interface.
func (m *ResultMessage) MessageType() string { return TypeResult }

// Usage contains token usage information.
//
//nolint:tagliatelle // wire format uses snake_case
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// StreamEvent carries a raw model streaming event forwarded by the agent.
//
//nolint:tagliatelle // wire format uses snake_case
type StreamEvent struct {
	Type            string         `json:"type"`
	UUID            string         `json:"uuid"`
	SessionID       string         `json:"session_id"`
	Event           map[string]any `json:"event"`
	ParentToolUseID *string        `json:"parent_tool_use_id,omitempty"`
}

// MessageType implements the Message interface.
func (m *StreamEvent) MessageType() string { return TypeStreamEvent }

// ToolUseMessage is a standalone tool invocation announced by the agent.
//
//nolint:tagliatelle // wire format uses snake_case
type ToolUseMessage struct {
	Type      string         `json:"type"`
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Input     map[string]any `json:"input"`
	SessionID string         `json:"session_id,omitempty"`
}

// MessageType implements the Message interface.
func (m *ToolUseMessage) MessageType() string { return TypeToolUse }

// ToolResultMessage is a standalone tool result, correlated by ToolUseID.
type ToolResultMessage struct {
	ToolUseID string
	Content   []ContentBlock
	IsError   bool
	SessionID string
}

// MessageType implements the Message interface.
func (m *ToolResultMessage) MessageType() string { return TypeToolResult }

// ControlRequest is an out-of-band request in either direction. Request holds
// the full request body, including its subtype.
type ControlRequest struct {
	RequestID string
	Subtype   string
	Request   map[string]any
}

// MessageType implements the Message interface.
func (m *ControlRequest) MessageType() string { return TypeControlRequest }

// ControlResponse answers a ControlRequest with the same RequestID.
// Subtype is one of the ResponseSubtype constants.
type ControlResponse struct {
	RequestID string
	Subtype   string
	Response  map[string]any
	Error     string
}

// MessageType implements the Message interface.
func (m *ControlResponse) MessageType() string { return TypeControlResponse }

// IsError reports whether the response has the error subtype.
func (m *ControlResponse) IsError() bool {
	return m.Subtype == ResponseSubtypeError
}

// ControlCancelRequest asks the receiver to abandon an in-flight control request.
type ControlCancelRequest struct {
	RequestID string
}

// MessageType implements the Message interface.
func (m *ControlCancelRequest) MessageType() string { return TypeControlCancelRequest }

// UnknownMessage is a well-formed frame with a discriminant this package does
// not model. It is passed through to the caller unchanged.
type UnknownMessage struct {
	Type string
	Raw  json.RawMessage
}

// MessageType implements the Message interface.
func (m *UnknownMessage) MessageType() string { return m.Type }
