package message

import (
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/wagiedev/agentsession-go/internal/errors"
)

var errMissingType = stderrors.New("missing or invalid 'type' field")

// Decode converts one inbound frame into a typed Message.
//
// Frames that are not JSON objects, lack a type discriminant, or are missing
// fields required by their variant yield a *errors.MalformedMessageError.
// Well-formed frames with an unrecognized type decode to *UnknownMessage.
func Decode(frame []byte) (Message, error) {
	var envelope struct {
		Type *string `json:"type"`
	}

	if err := json.Unmarshal(frame, &envelope); err != nil {
		return nil, malformed(frame, err)
	}

	if envelope.Type == nil || *envelope.Type == "" {
		return nil, malformed(frame, errMissingType)
	}

	var (
		msg Message
		err error
	)

	switch *envelope.Type {
	case TypeUser:
		msg, err = decodeUser(frame)
	case TypeAssistant:
		msg, err = decodeAssistant(frame)
	case TypeSystem:
		msg, err = decodeSystem(frame)
	case TypeResult:
		msg, err = decodeResult(frame)
	case TypeStreamEvent:
		msg, err = decodeStreamEvent(frame)
	case TypeToolUse:
		msg, err = decodeToolUse(frame)
	case TypeToolResult:
		msg, err = decodeToolResult(frame)
	case TypeControlRequest:
		msg, err = decodeControlRequest(frame)
	case TypeControlResponse:
		msg, err = decodeControlResponse(frame)
	case TypeControlCancelRequest:
		msg, err = decodeControlCancel(frame)
	default:
		return &UnknownMessage{
			Type: *envelope.Type,
			Raw:  append(json.RawMessage(nil), frame...),
		}, nil
	}

	if err != nil {
		return nil, malformed(frame, err)
	}

	return msg, nil
}

// Encode converts a Message into a single-line JSON frame without the
// trailing newline.
func Encode(msg Message) ([]byte, error) {
	var wire any

	switch m := msg.(type) {
	case *UserMessage:
		wire = userWire{
			Type: TypeUser,
			Message: &userBody{
				Role:    "user",
				Content: m.Content,
			},
			UUID:            m.UUID,
			ParentToolUseID: m.ParentToolUseID,
			SessionID:       m.SessionID,
		}
	case *AssistantMessage:
		var errType *string

		if m.Error != nil {
			s := string(*m.Error)
			errType = &s
		}

		wire = assistantOutWire{
			Type: TypeAssistant,
			Message: assistantOutBody{
				ID:      m.ID,
				Role:    "assistant",
				Content: m.Content,
				Model:   m.Model,
			},
			ParentToolUseID: m.ParentToolUseID,
			Error:           errType,
		}
	case *AssistantFragment:
		frag := fragmentOutWire{
			Type:    TypeAssistant,
			ID:      m.ID,
			Content: m.Content,
			Model:   m.Model,
			Done:    m.Done,
		}

		if !m.Done || m.Delta != "" {
			frag.Delta = &m.Delta
		}

		wire = frag
	case *PartialAssistantMessage:
		wire = struct {
			Type    string         `json:"type"`
			ID      string         `json:"id"`
			Delta   string         `json:"delta"`
			Text    string         `json:"text"`
			Content []ContentBlock `json:"content,omitempty"`
			Model   string         `json:"model,omitempty"`
			Done    bool           `json:"done,omitempty"`
		}{TypePartialAssistant, m.ID, m.Delta, m.Text, m.Content, m.Model, m.Done}
	case *SystemMessage:
		out := make(map[string]any, len(m.Data)+2)

		for k, v := range m.Data {
			out[k] = v
		}

		out["type"] = TypeSystem
		out["subtype"] = m.Subtype
		wire = out
	case *ResultMessage:
		cp := *m
		cp.Type = TypeResult
		wire = &cp
	case *StreamEvent:
		cp := *m
		cp.Type = TypeStreamEvent
		wire = &cp
	case *ToolUseMessage:
		cp := *m
		cp.Type = TypeToolUse
		wire = &cp
	case *ToolResultMessage:
		wire = toolResultOutWire{
			Type:      TypeToolResult,
			ToolUseID: m.ToolUseID,
			Content:   m.Content,
			IsError:   m.IsError,
			SessionID: m.SessionID,
		}
	case *ControlRequest:
		request := make(map[string]any, len(m.Request)+1)

		for k, v := range m.Request {
			request[k] = v
		}

		if m.Subtype != "" {
			request["subtype"] = m.Subtype
		}

		wire = controlRequestWire{
			Type:      TypeControlRequest,
			RequestID: m.RequestID,
			Request:   request,
		}
	case *ControlResponse:
		wire = controlResponseWire{
			Type: TypeControlResponse,
			Response: &controlResponseBody{
				Subtype:   m.Subtype,
				RequestID: m.RequestID,
				Response:  m.Response,
				Error:     m.Error,
			},
		}
	case *ControlCancelRequest:
		wire = controlCancelWire{
			Type:      TypeControlCancelRequest,
			RequestID: m.RequestID,
		}
	case *UnknownMessage:
		return append([]byte(nil), m.Raw...), nil
	case nil:
		return nil, fmt.Errorf("encode nil message")
	default:
		return nil, fmt.Errorf("encode: unsupported message type %T", msg)
	}

	data, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.MessageType(), err)
	}

	return data, nil
}

func malformed(frame []byte, err error) error {
	return &errors.MalformedMessageError{Frame: string(frame), Err: err}
}

//nolint:tagliatelle // wire format uses snake_case
type userWire struct {
	Type            string    `json:"type"`
	Message         *userBody `json:"message"`
	UUID            *string   `json:"uuid,omitempty"`
	ParentToolUseID *string   `json:"parent_tool_use_id"`
	SessionID       string    `json:"session_id,omitempty"`
}

type userBody struct {
	Role    string             `json:"role"`
	Content UserMessageContent `json:"content"`
}

func decodeUser(frame []byte) (*UserMessage, error) {
	var wire struct {
		Message *struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
		UUID            *string `json:"uuid"`
		ParentToolUseID *string `json:"parent_tool_use_id"`
		SessionID       string  `json:"session_id"`
	}

	if err := json.Unmarshal(frame, &wire); err != nil {
		return nil, fmt.Errorf("user message: %w", err)
	}

	if wire.Message == nil {
		return nil, fmt.Errorf("user message: missing or invalid 'message' field")
	}

	if len(wire.Message.Content) == 0 {
		return nil, fmt.Errorf("user message: missing content field")
	}

	var content UserMessageContent
	if err := json.Unmarshal(wire.Message.Content, &content); err != nil {
		return nil, fmt.Errorf("user message: %w", err)
	}

	return &UserMessage{
		Content:         content,
		UUID:            wire.UUID,
		ParentToolUseID: wire.ParentToolUseID,
		SessionID:       wire.SessionID,
	}, nil
}

//nolint:tagliatelle // wire format uses snake_case
type assistantOutWire struct {
	Type            string           `json:"type"`
	Message         assistantOutBody `json:"message"`
	ParentToolUseID *string          `json:"parent_tool_use_id,omitempty"`
	Error           *string          `json:"error,omitempty"`
}

type assistantOutBody struct {
	ID      string         `json:"id,omitempty"`
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
	Model   string         `json:"model,omitempty"`
}

type fragmentOutWire struct {
	Type    string         `json:"type"`
	ID      string         `json:"id"`
	Delta   *string        `json:"delta,omitempty"`
	Content []ContentBlock `json:"content,omitempty"`
	Model   string         `json:"model,omitempty"`
	Done    bool           `json:"done,omitempty"`
}

// decodeAssistant distinguishes complete replies, which nest their body under
// "message", from streamed fragments, which carry "delta" or "done" inline.
func decodeAssistant(frame []byte) (Message, error) {
	var wire struct {
		Message *struct {
			ID      string            `json:"id"`
			Content []json.RawMessage `json:"content"`
			Model   string            `json:"model"`
		} `json:"message"`
		ParentToolUseID *string           `json:"parent_tool_use_id"`
		Error           *string           `json:"error"`
		ID              string            `json:"id"`
		Delta           *string           `json:"delta"`
		Done            bool              `json:"done"`
		Content         []json.RawMessage `json:"content"`
		Model           string            `json:"model"`
	}

	if err := json.Unmarshal(frame, &wire); err != nil {
		return nil, fmt.Errorf("assistant message: %w", err)
	}

	if wire.Message != nil {
		content, err := decodeBlocks(wire.Message.Content)
		if err != nil {
			return nil, fmt.Errorf("assistant content: %w", err)
		}

		msg := &AssistantMessage{
			ID:              wire.Message.ID,
			Content:         content,
			Model:           wire.Message.Model,
			ParentToolUseID: wire.ParentToolUseID,
		}

		if wire.Error != nil {
			errType := AssistantMessageError(*wire.Error)
			msg.Error = &errType
		}

		return msg, nil
	}

	if wire.Delta == nil && !wire.Done && wire.Content == nil {
		return nil, fmt.Errorf("assistant message: missing or invalid 'message' field")
	}

	if wire.ID == "" {
		return nil, fmt.Errorf("assistant fragment: missing 'id' field")
	}

	content, err := decodeBlocks(wire.Content)
	if err != nil {
		return nil, fmt.Errorf("assistant fragment content: %w", err)
	}

	frag := &AssistantFragment{
		ID:      wire.ID,
		Content: content,
		Model:   wire.Model,
		Done:    wire.Done,
	}

	if wire.Delta != nil {
		frag.Delta = *wire.Delta
	}

	return frag, nil
}

func decodeSystem(frame []byte) (*SystemMessage, error) {
	var data map[string]any
	if err := json.Unmarshal(frame, &data); err != nil {
		return nil, fmt.Errorf("system message: %w", err)
	}

	subtype, ok := data["subtype"].(string)
	if !ok {
		return nil, fmt.Errorf("system message: missing or invalid 'subtype' field")
	}

	msg := &SystemMessage{Subtype: subtype}

	// Some agents nest the payload under "data"; others send it at the root.
	if nested, ok := data["data"].(map[string]any); ok {
		msg.Data = nested

		return msg, nil
	}

	msg.Data = make(map[string]any, len(data))

	for k, v := range data {
		if k != "type" && k != "subtype" {
			msg.Data[k] = v
		}
	}

	return msg, nil
}

func decodeResult(frame []byte) (*ResultMessage, error) {
	var msg ResultMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, fmt.Errorf("result message: %w", err)
	}

	if msg.Subtype == "" {
		return nil, fmt.Errorf("result message: missing or invalid 'subtype' field")
	}

	return &msg, nil
}

func decodeStreamEvent(frame []byte) (*StreamEvent, error) {
	var event StreamEvent
	if err := json.Unmarshal(frame, &event); err != nil {
		return nil, fmt.Errorf("stream_event: %w", err)
	}

	switch {
	case event.UUID == "":
		return nil, fmt.Errorf("stream_event: missing or invalid 'uuid' field")
	case event.SessionID == "":
		return nil, fmt.Errorf("stream_event: missing or invalid 'session_id' field")
	case event.Event == nil:
		return nil, fmt.Errorf("stream_event: missing or invalid 'event' field")
	}

	return &event, nil
}

func decodeToolUse(frame []byte) (*ToolUseMessage, error) {
	var msg ToolUseMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, fmt.Errorf("tool_use message: %w", err)
	}

	if msg.ID == "" || msg.Name == "" {
		return nil, fmt.Errorf("tool_use message: 'id' and 'name' are required")
	}

	return &msg, nil
}

//nolint:tagliatelle // wire format uses snake_case
type toolResultOutWire struct {
	Type      string         `json:"type"`
	ToolUseID string         `json:"tool_use_id"`
	Content   []ContentBlock `json:"content,omitempty"`
	IsError   bool           `json:"is_error,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
}

func decodeToolResult(frame []byte) (*ToolResultMessage, error) {
	var wire struct {
		ToolUseID string          `json:"tool_use_id"`
		Content   json.RawMessage `json:"content"`
		IsError   bool            `json:"is_error"`
		SessionID string          `json:"session_id"`
	}

	if err := json.Unmarshal(frame, &wire); err != nil {
		return nil, fmt.Errorf("tool_result message: %w", err)
	}

	if wire.ToolUseID == "" {
		return nil, fmt.Errorf("tool_result message: missing 'tool_use_id' field")
	}

	content, err := decodeFlexibleContent(wire.Content)
	if err != nil {
		return nil, fmt.Errorf("tool_result content: %w", err)
	}

	return &ToolResultMessage{
		ToolUseID: wire.ToolUseID,
		Content:   content,
		IsError:   wire.IsError,
		SessionID: wire.SessionID,
	}, nil
}

//nolint:tagliatelle // wire format uses snake_case
type controlRequestWire struct {
	Type      string         `json:"type"`
	RequestID string         `json:"request_id"`
	Request   map[string]any `json:"request"`
}

// ControlRequestID returns the request_id of a control_request frame that may
// otherwise fail to decode, so the sender can still be answered.
func ControlRequestID(frame []byte) (string, bool) {
	var wire controlRequestWire
	if err := json.Unmarshal(frame, &wire); err != nil {
		return "", false
	}

	if wire.Type != TypeControlRequest || wire.RequestID == "" {
		return "", false
	}

	return wire.RequestID, true
}

func decodeControlRequest(frame []byte) (*ControlRequest, error) {
	var wire controlRequestWire
	if err := json.Unmarshal(frame, &wire); err != nil {
		return nil, fmt.Errorf("control_request: %w", err)
	}

	if wire.RequestID == "" {
		return nil, fmt.Errorf("control_request: missing 'request_id' field")
	}

	if wire.Request == nil {
		return nil, fmt.Errorf("control_request: missing 'request' field")
	}

	subtype, ok := wire.Request["subtype"].(string)
	if !ok {
		return nil, fmt.Errorf("control_request: missing or invalid 'subtype' field")
	}

	return &ControlRequest{
		RequestID: wire.RequestID,
		Subtype:   subtype,
		Request:   wire.Request,
	}, nil
}

type controlResponseWire struct {
	Type     string               `json:"type"`
	Response *controlResponseBody `json:"response"`
}

//nolint:tagliatelle // wire format uses snake_case
type controlResponseBody struct {
	Subtype   string         `json:"subtype"`
	RequestID string         `json:"request_id"`
	Response  map[string]any `json:"response,omitempty"`
	Error     string         `json:"error,omitempty"`
}

func decodeControlResponse(frame []byte) (*ControlResponse, error) {
	var wire controlResponseWire
	if err := json.Unmarshal(frame, &wire); err != nil {
		return nil, fmt.Errorf("control_response: %w", err)
	}

	if wire.Response == nil {
		return nil, fmt.Errorf("control_response: missing 'response' field")
	}

	if wire.Response.RequestID == "" {
		return nil, fmt.Errorf("control_response: missing 'request_id' field")
	}

	switch wire.Response.Subtype {
	case ResponseSubtypeSuccess, ResponseSubtypeError, ResponseSubtypeCancelAck:
	default:
		return nil, fmt.Errorf("control_response: invalid subtype %q", wire.Response.Subtype)
	}

	return &ControlResponse{
		RequestID: wire.Response.RequestID,
		Subtype:   wire.Response.Subtype,
		Response:  wire.Response.Response,
		Error:     wire.Response.Error,
	}, nil
}

//nolint:tagliatelle // wire format uses snake_case
type controlCancelWire struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
}

func decodeControlCancel(frame []byte) (*ControlCancelRequest, error) {
	var wire controlCancelWire
	if err := json.Unmarshal(frame, &wire); err != nil {
		return nil, fmt.Errorf("control_cancel_request: %w", err)
	}

	if wire.RequestID == "" {
		return nil, fmt.Errorf("control_cancel_request: missing 'request_id' field")
	}

	return &ControlCancelRequest{RequestID: wire.RequestID}, nil
}
