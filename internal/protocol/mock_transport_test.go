package protocol

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/agentsession-go/internal/config"
	"github.com/wagiedev/agentsession-go/internal/message"
)

// mockTransport implements Transport for testing.
type mockTransport struct {
	mu       sync.Mutex
	messages [][]byte
	frames   chan config.Frame
	sendErr  error
	onSend   func(msg message.Message)
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		messages: make([][]byte, 0, 10),
		frames:   make(chan config.Frame, 256),
	}
}

func (m *mockTransport) ReadFrames(_ context.Context) <-chan config.Frame {
	return m.frames
}

func (m *mockTransport) SendMessage(_ context.Context, data []byte) error {
	m.mu.Lock()

	if m.sendErr != nil {
		err := m.sendErr
		m.mu.Unlock()

		return err
	}

	m.messages = append(m.messages, data)
	onSend := m.onSend
	m.mu.Unlock()

	if onSend != nil {
		if msg, err := message.Decode(data); err == nil {
			onSend(msg)
		}
	}

	return nil
}

func (m *mockTransport) getMessages() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([][]byte, len(m.messages))
	copy(result, m.messages)

	return result
}

func (m *mockTransport) sendToController(frame string) {
	m.frames <- config.Frame{Data: []byte(frame)}
}

func (m *mockTransport) sendJSON(t *testing.T, v map[string]any) {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err)

	m.frames <- config.Frame{Data: data}
}

// autoRespond answers every outgoing control request with a success
// response echoing the subtype.
func (m *mockTransport) autoRespond(t *testing.T) {
	t.Helper()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.onSend = func(msg message.Message) {
		req, ok := msg.(*message.ControlRequest)
		if !ok {
			return
		}

		m.sendJSON(t, map[string]any{
			"type": "control_response",
			"response": map[string]any{
				"subtype":    "success",
				"request_id": req.RequestID,
				"response":   map[string]any{"echo": req.Subtype},
			},
		})
	}
}

// sentControlResponses decodes every control_response written so far.
func (m *mockTransport) sentControlResponses(t *testing.T) []*message.ControlResponse {
	t.Helper()

	var out []*message.ControlResponse

	for _, data := range m.getMessages() {
		msg, err := message.Decode(data)
		require.NoError(t, err)

		if resp, ok := msg.(*message.ControlResponse); ok {
			out = append(out, resp)
		}
	}

	return out
}

// waitForResponse polls until a control_response for requestID was sent.
func (m *mockTransport) waitForResponse(t *testing.T, requestID string) *message.ControlResponse {
	t.Helper()

	var found *message.ControlResponse

	require.Eventually(t, func() bool {
		for _, resp := range m.sentControlResponses(t) {
			if resp.RequestID == requestID {
				found = resp

				return true
			}
		}

		return false
	}, 2*time.Second, 5*time.Millisecond)

	return found
}

func startController(t *testing.T) (*Controller, *mockTransport) {
	t.Helper()

	transport := newMockTransport()
	controller := NewController(slog.New(slog.DiscardHandler), transport)

	require.NoError(t, controller.Start(context.Background()))
	t.Cleanup(controller.Stop)

	return controller, transport
}

func waitPending(t *testing.T, c *Controller, n int) {
	t.Helper()

	require.Eventually(t, func() bool {
		return c.Pending() == n
	}, 2*time.Second, time.Millisecond)
}

func nextInbound(t *testing.T, c *Controller) Inbound {
	t.Helper()

	select {
	case item, ok := <-c.Inbound():
		require.True(t, ok, "inbound closed")

		return item
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for inbound message")

		return Inbound{}
	}
}
