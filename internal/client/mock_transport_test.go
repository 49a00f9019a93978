package client

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/agentsession-go/internal/config"
)

// responder answers one outbound control request. Returning ok=false leaves
// the request unanswered.
type responder func(subtype string, request map[string]any) (response map[string]any, errMsg string, ok bool)

// echoResponder answers every control request with success.
func echoResponder(subtype string, _ map[string]any) (map[string]any, string, bool) {
	return map[string]any{"subtype": subtype}, "", true
}

// mockTransport implements config.Transport for tests.
type mockTransport struct {
	mu      sync.Mutex
	frames  chan config.Frame
	sent    [][]byte
	respond responder

	startErr error
	started  bool
	closed   bool
}

var _ config.Transport = (*mockTransport)(nil)

func newMockTransport(respond responder) *mockTransport {
	return &mockTransport{
		frames:  make(chan config.Frame, 256),
		respond: respond,
	}
}

func (m *mockTransport) Start(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.startErr != nil {
		return m.startErr
	}

	m.started = true

	return nil
}

func (m *mockTransport) ReadFrames(context.Context) <-chan config.Frame {
	return m.frames
}

func (m *mockTransport) SendMessage(_ context.Context, data []byte) error {
	m.mu.Lock()
	m.sent = append(m.sent, append([]byte(nil), data...))
	respond := m.respond
	m.mu.Unlock()

	var envelope struct {
		Type      string         `json:"type"`
		RequestID string         `json:"request_id"`
		Request   map[string]any `json:"request"`
	}

	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Type != "control_request" || respond == nil {
		return nil
	}

	subtype, _ := envelope.Request["subtype"].(string)

	response, errMsg, ok := respond(subtype, envelope.Request)
	if !ok {
		return nil
	}

	body := map[string]any{"subtype": "success", "request_id": envelope.RequestID, "response": response}
	if errMsg != "" {
		body = map[string]any{"subtype": "error", "request_id": envelope.RequestID, "error": errMsg}
	}

	frame, _ := json.Marshal(map[string]any{"type": "control_response", "response": body})
	m.frames <- config.Frame{Data: frame}

	return nil
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true

	return nil
}

func (m *mockTransport) IsReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.started && !m.closed
}

func (m *mockTransport) EndInput() error { return nil }

func (m *mockTransport) push(frame string) {
	m.frames <- config.Frame{Data: []byte(frame)}
}

func (m *mockTransport) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.closed
}

// sentOfType returns the decoded outbound frames whose type matches.
func (m *mockTransport) sentOfType(t *testing.T, typ string) []map[string]any {
	t.Helper()

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []map[string]any

	for _, data := range m.sent {
		var frame map[string]any
		require.NoError(t, json.Unmarshal(data, &frame))

		if frame["type"] == typ {
			out = append(out, frame)
		}
	}

	return out
}

// controlSubtypes lists the subtypes of outbound control requests in order.
func (m *mockTransport) controlSubtypes(t *testing.T) []string {
	t.Helper()

	var out []string

	for _, frame := range m.sentOfType(t, "control_request") {
		request, _ := frame["request"].(map[string]any)
		subtype, _ := request["subtype"].(string)
		out = append(out, subtype)
	}

	return out
}

func connectMock(t *testing.T, transport *mockTransport, mutate ...func(*config.Options)) *Client {
	t.Helper()

	options := &config.Options{Transport: transport, ControlTimeout: 2 * time.Second}
	for _, fn := range mutate {
		fn(options)
	}

	c := New()
	require.NoError(t, c.Connect(context.Background(), options))

	t.Cleanup(func() { _ = c.Disconnect() })

	return c
}
