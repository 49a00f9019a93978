package message

import (
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/agentsession-go/internal/errors"
)

func ptr[T any](v T) *T { return &v }

func TestDecode_Assistant(t *testing.T) {
	tests := []struct {
		name           string
		frame          string
		wantErrorValue *AssistantMessageError
		wantModel      string
		wantContentLen int
		wantParent     *string
	}{
		{
			name:           "text reply",
			frame:          `{"type":"assistant","message":{"content":[{"type":"text","text":"hello"}],"model":"m-1"}}`,
			wantModel:      "m-1",
			wantContentLen: 1,
		},
		{
			name:           "error at top level",
			frame:          `{"type":"assistant","message":{"content":[],"model":"m-1"},"error":"rate_limit"}`,
			wantErrorValue: ptr(AssistantMessageErrorRateLimit),
			wantModel:      "m-1",
		},
		{
			name:           "parent tool use id",
			frame:          `{"type":"assistant","message":{"content":[{"type":"thinking","thinking":"hmm"}]},"parent_tool_use_id":"toolu_1"}`,
			wantContentLen: 1,
			wantParent:     ptr("toolu_1"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.frame))
			require.NoError(t, err)

			assistant, ok := msg.(*AssistantMessage)
			require.True(t, ok, "expected *AssistantMessage, got %T", msg)
			require.Equal(t, tt.wantModel, assistant.Model)
			require.Len(t, assistant.Content, tt.wantContentLen)
			require.Equal(t, tt.wantErrorValue, assistant.Error)
			require.Equal(t, tt.wantParent, assistant.ParentToolUseID)
		})
	}
}

func TestDecode_AssistantFragment(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"assistant","id":"m1","delta":"Hel"}`))
	require.NoError(t, err)

	frag, ok := msg.(*AssistantFragment)
	require.True(t, ok)
	require.Equal(t, "m1", frag.ID)
	require.Equal(t, "Hel", frag.Delta)
	require.False(t, frag.Done)

	msg, err = Decode([]byte(`{"type":"assistant","id":"m1","done":true}`))
	require.NoError(t, err)

	frag, ok = msg.(*AssistantFragment)
	require.True(t, ok)
	require.True(t, frag.Done)
	require.Empty(t, frag.Delta)
}

func TestDecode_AssistantFragmentWithToolUse(t *testing.T) {
	frame := `{"type":"assistant","id":"m2","content":[{"type":"tool_use","id":"toolu_9","name":"add","input":{"a":1}}]}`

	msg, err := Decode([]byte(frame))
	require.NoError(t, err)

	frag, ok := msg.(*AssistantFragment)
	require.True(t, ok)
	require.Len(t, frag.Content, 1)

	toolUse, ok := frag.Content[0].(*ToolUseBlock)
	require.True(t, ok)
	require.Equal(t, "toolu_9", toolUse.ID)
	require.Equal(t, "add", toolUse.Name)
	require.Equal(t, map[string]any{"a": float64(1)}, toolUse.Input)
}

func TestDecode_User(t *testing.T) {
	t.Run("string content", func(t *testing.T) {
		msg, err := Decode([]byte(`{"type":"user","message":{"role":"user","content":"hi"},"uuid":"u-1"}`))
		require.NoError(t, err)

		user, ok := msg.(*UserMessage)
		require.True(t, ok)
		require.True(t, user.Content.IsString())
		require.Equal(t, "hi", user.Content.String())
		require.Equal(t, ptr("u-1"), user.UUID)
	})

	t.Run("tool result blocks", func(t *testing.T) {
		frame := `{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"toolu_1","content":"42","is_error":false}]}}`

		msg, err := Decode([]byte(frame))
		require.NoError(t, err)

		user, ok := msg.(*UserMessage)
		require.True(t, ok)
		require.False(t, user.Content.IsString())

		blocks := user.Content.Blocks()
		require.Len(t, blocks, 1)

		result, ok := blocks[0].(*ToolResultBlock)
		require.True(t, ok)
		require.Equal(t, "toolu_1", result.ToolUseID)
		require.Equal(t, []ContentBlock{&TextBlock{Type: BlockTypeText, Text: "42"}}, result.Content)
	})
}

func TestDecode_System(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"system","subtype":"init","cwd":"/work","tools":["Read"]}`))
	require.NoError(t, err)

	sys, ok := msg.(*SystemMessage)
	require.True(t, ok)
	require.Equal(t, "init", sys.Subtype)
	require.Equal(t, "/work", sys.Data["cwd"])
	require.NotContains(t, sys.Data, "type")
}

func TestDecode_Result(t *testing.T) {
	frame := `{"type":"result","subtype":"success","duration_ms":12,"is_error":false,"num_turns":1,"session_id":"s","result":"done"}`

	msg, err := Decode([]byte(frame))
	require.NoError(t, err)

	result, ok := msg.(*ResultMessage)
	require.True(t, ok)
	require.Equal(t, "success", result.Subtype)
	require.Equal(t, 12, result.DurationMs)
	require.Equal(t, ptr("done"), result.Result)
}

func TestDecode_ControlFrames(t *testing.T) {
	t.Run("request", func(t *testing.T) {
		msg, err := Decode([]byte(`{"type":"control_request","request_id":"r1","request":{"subtype":"call_tool","tool_name":"add"}}`))
		require.NoError(t, err)

		req, ok := msg.(*ControlRequest)
		require.True(t, ok)
		require.Equal(t, "r1", req.RequestID)
		require.Equal(t, "call_tool", req.Subtype)
		require.Equal(t, "add", req.Request["tool_name"])
	})

	t.Run("success response", func(t *testing.T) {
		msg, err := Decode([]byte(`{"type":"control_response","response":{"subtype":"success","request_id":"r1","response":{"ok":true}}}`))
		require.NoError(t, err)

		resp, ok := msg.(*ControlResponse)
		require.True(t, ok)
		require.False(t, resp.IsError())
		require.Equal(t, map[string]any{"ok": true}, resp.Response)
	})

	t.Run("error response", func(t *testing.T) {
		msg, err := Decode([]byte(`{"type":"control_response","response":{"subtype":"error","request_id":"r1","error":"nope"}}`))
		require.NoError(t, err)

		resp, ok := msg.(*ControlResponse)
		require.True(t, ok)
		require.True(t, resp.IsError())
		require.Equal(t, "nope", resp.Error)
	})

	t.Run("cancel", func(t *testing.T) {
		msg, err := Decode([]byte(`{"type":"control_cancel_request","request_id":"r7"}`))
		require.NoError(t, err)
		require.Equal(t, &ControlCancelRequest{RequestID: "r7"}, msg)
	})
}

func TestDecode_UnknownTypePassesThrough(t *testing.T) {
	frame := `{"type":"rate_limit_event","retry_after":3}`

	msg, err := Decode([]byte(frame))
	require.NoError(t, err)

	unknown, ok := msg.(*UnknownMessage)
	require.True(t, ok)
	require.Equal(t, "rate_limit_event", unknown.MessageType())
	require.JSONEq(t, frame, string(unknown.Raw))
}

func TestDecode_UnknownContentBlockPreserved(t *testing.T) {
	frame := `{"type":"assistant","message":{"content":[{"type":"server_tool_use","id":"x"}]}}`

	msg, err := Decode([]byte(frame))
	require.NoError(t, err)

	assistant := msg.(*AssistantMessage)
	require.Len(t, assistant.Content, 1)
	require.Equal(t, "server_tool_use", assistant.Content[0].BlockType())
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"not json", `{"type":`},
		{"array", `[1,2]`},
		{"null", `null`},
		{"missing type", `{"message":{}}`},
		{"empty type", `{"type":""}`},
		{"non-string type", `{"type":7}`},
		{"assistant without body", `{"type":"assistant"}`},
		{"fragment without id", `{"type":"assistant","delta":"x"}`},
		{"user without message", `{"type":"user"}`},
		{"system without subtype", `{"type":"system"}`},
		{"result without subtype", `{"type":"result"}`},
		{"control request without id", `{"type":"control_request","request":{"subtype":"x"}}`},
		{"control request without subtype", `{"type":"control_request","request_id":"r","request":{}}`},
		{"control response bad subtype", `{"type":"control_response","response":{"subtype":"maybe","request_id":"r"}}`},
		{"control response without body", `{"type":"control_response"}`},
		{"cancel without id", `{"type":"control_cancel_request"}`},
		{"tool use without name", `{"type":"tool_use","id":"t"}`},
		{"content block without type", `{"type":"assistant","message":{"content":[{"text":"x"}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.frame))
			require.Nil(t, msg)

			malformedErr, ok := stderrors.AsType[*errors.MalformedMessageError](err)
			require.True(t, ok, "expected MalformedMessageError, got %v", err)
			require.Equal(t, tt.frame, malformedErr.Frame)
		})
	}
}

func TestControlRequestID(t *testing.T) {
	id, ok := ControlRequestID([]byte(`{"type":"control_request","request_id":"r1","request":{}}`))
	require.True(t, ok)
	require.Equal(t, "r1", id)

	for _, frame := range []string{
		`{not json`,
		`{"type":"control_request","request":{"subtype":"x"}}`,
		`{"type":"control_response","request_id":"r1"}`,
	} {
		_, ok := ControlRequestID([]byte(frame))
		require.False(t, ok, frame)
	}
}

func TestEncode_UserFrameShape(t *testing.T) {
	data, err := Encode(&UserMessage{
		Content:   NewUserMessageContent("hello"),
		SessionID: "default",
	})
	require.NoError(t, err)

	require.JSONEq(t,
		`{"type":"user","message":{"role":"user","content":"hello"},"parent_tool_use_id":null,"session_id":"default"}`,
		string(data),
	)
}

func TestEncode_ControlFrameShapes(t *testing.T) {
	data, err := Encode(&ControlRequest{
		RequestID: "req_1_abc",
		Subtype:   "interrupt",
		Request:   map[string]any{"subtype": "interrupt"},
	})
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"control_request","request_id":"req_1_abc","request":{"subtype":"interrupt"}}`, string(data))

	data, err = Encode(&ControlResponse{
		RequestID: "r9",
		Subtype:   ResponseSubtypeError,
		Error:     "tool not found: nope",
	})
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"control_response","response":{"subtype":"error","request_id":"r9","error":"tool not found: nope"}}`, string(data))
}

func TestEncode_Unsupported(t *testing.T) {
	_, err := Encode(nil)
	require.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	messages := []Message{
		&UserMessage{Content: NewUserMessageContent("hi"), SessionID: "default"},
		&UserMessage{
			Content: NewUserMessageContentBlocks([]ContentBlock{
				&ToolResultBlock{
					Type:      BlockTypeToolResult,
					ToolUseID: "toolu_1",
					Content:   []ContentBlock{&TextBlock{Type: BlockTypeText, Text: "ok"}},
				},
			}),
			ParentToolUseID: ptr("toolu_0"),
			SessionID:       "s",
		},
		&AssistantMessage{
			ID: "msg_1",
			Content: []ContentBlock{
				&TextBlock{Type: BlockTypeText, Text: "Hello"},
				&ThinkingBlock{Type: BlockTypeThinking, Thinking: "hm", Signature: "sig"},
				&ToolUseBlock{Type: BlockTypeToolUse, ID: "toolu_2", Name: "add", Input: map[string]any{"a": "b"}},
			},
			Model: "m-1",
			Error: ptr(AssistantMessageErrorServer),
		},
		&AssistantFragment{ID: "m1", Delta: "Hel"},
		&AssistantFragment{ID: "m1", Done: true},
		&SystemMessage{Subtype: "init", Data: map[string]any{"cwd": "/tmp"}},
		&ResultMessage{Type: TypeResult, Subtype: "success", NumTurns: 2, SessionID: "s", Result: ptr("fine")},
		&StreamEvent{Type: TypeStreamEvent, UUID: "u", SessionID: "s", Event: map[string]any{"type": "ping"}},
		&ToolUseMessage{Type: TypeToolUse, ID: "toolu_3", Name: "echo", Input: map[string]any{"text": "x"}},
		&ToolResultMessage{ToolUseID: "toolu_3", Content: []ContentBlock{&TextBlock{Type: BlockTypeText, Text: "x"}}, IsError: true},
		&ControlRequest{RequestID: "r1", Subtype: "can_use_tool", Request: map[string]any{"subtype": "can_use_tool", "tool_name": "Bash"}},
		&ControlResponse{RequestID: "r1", Subtype: ResponseSubtypeSuccess, Response: map[string]any{"behavior": "allow"}},
		&ControlResponse{RequestID: "r2", Subtype: ResponseSubtypeError, Error: "boom"},
		&ControlCancelRequest{RequestID: "r3"},
		&UnknownMessage{Type: "future", Raw: json.RawMessage(`{"type":"future","x":1}`)},
	}

	for _, original := range messages {
		t.Run(original.MessageType(), func(t *testing.T) {
			frame, err := Encode(original)
			require.NoError(t, err)
			require.NotContains(t, string(frame), "\n")

			decoded, err := Decode(frame)
			require.NoError(t, err)
			require.Equal(t, original, decoded)
		})
	}
}
