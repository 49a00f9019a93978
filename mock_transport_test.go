package agentsession_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	agentsession "github.com/wagiedev/agentsession-go"
)

// scriptedTransport answers every outbound control request with success and
// lets tests inject agent frames.
type scriptedTransport struct {
	mu     sync.Mutex
	frames chan agentsession.Frame
	sent   []map[string]any
	closed bool
}

var _ agentsession.Transport = (*scriptedTransport)(nil)

func newScriptedTransport() *scriptedTransport {
	return &scriptedTransport{frames: make(chan agentsession.Frame, 64)}
}

func (s *scriptedTransport) Start(context.Context) error { return nil }

func (s *scriptedTransport) ReadFrames(context.Context) <-chan agentsession.Frame {
	return s.frames
}

func (s *scriptedTransport) SendMessage(_ context.Context, data []byte) error {
	var frame map[string]any
	if err := json.Unmarshal(data, &frame); err != nil {
		return err
	}

	s.mu.Lock()
	s.sent = append(s.sent, frame)
	s.mu.Unlock()

	if frame["type"] != "control_request" {
		return nil
	}

	request, _ := frame["request"].(map[string]any)

	resp, _ := json.Marshal(map[string]any{
		"type": "control_response",
		"response": map[string]any{
			"subtype":    "success",
			"request_id": frame["request_id"],
			"response":   map[string]any{"subtype": request["subtype"]},
		},
	})
	s.frames <- agentsession.Frame{Data: resp}

	return nil
}

func (s *scriptedTransport) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	return nil
}

func (s *scriptedTransport) IsReady() bool { return true }

func (s *scriptedTransport) EndInput() error { return nil }

func (s *scriptedTransport) push(t *testing.T, v any) {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err)

	s.frames <- agentsession.Frame{Data: data}
}

func (s *scriptedTransport) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

// waitForResponse returns the control_response body sent for requestID.
func (s *scriptedTransport) waitForResponse(t *testing.T, requestID string) map[string]any {
	t.Helper()

	var body map[string]any

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()

		for _, frame := range s.sent {
			if frame["type"] != "control_response" {
				continue
			}

			resp, _ := frame["response"].(map[string]any)
			if resp["request_id"] == requestID {
				body = resp

				return true
			}
		}

		return false
	}, 2*time.Second, 5*time.Millisecond)

	return body
}
