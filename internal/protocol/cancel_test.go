package protocol

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/agentsession-go/internal/errors"
	"github.com/wagiedev/agentsession-go/internal/message"
)

func ackFor(t *testing.T, transport *mockTransport, requestID string) *message.ControlResponse {
	t.Helper()

	var ack *message.ControlResponse

	require.Eventually(t, func() bool {
		for _, resp := range transport.sentControlResponses(t) {
			if resp.RequestID == requestID && resp.Subtype == "cancel_acknowledgment" {
				ack = resp

				return true
			}
		}

		return false
	}, 2*time.Second, 5*time.Millisecond)

	return ack
}

func TestCancelRequest_InFlightOperation(t *testing.T) {
	controller, transport := startController(t)

	handlerStarted := make(chan struct{})
	handlerCancelled := make(chan struct{})

	controller.RegisterHandler("slow_operation", func(ctx context.Context, _ *message.ControlRequest) (map[string]any, error) {
		close(handlerStarted)

		select {
		case <-ctx.Done():
			close(handlerCancelled)

			return nil, ctx.Err()
		case <-time.After(10 * time.Second):
			return map[string]any{"status": "completed"}, nil
		}
	})

	transport.sendToController(`{"type":"control_request","request_id":"req-123","request":{"subtype":"slow_operation"}}`)

	select {
	case <-handlerStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("Handler did not start in time")
	}

	transport.sendToController(`{"type":"control_cancel_request","request_id":"req-123"}`)

	select {
	case <-handlerCancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("Handler was not cancelled in time")
	}

	ack := ackFor(t, transport, "req-123")
	require.Equal(t, true, ack.Response["found"])
	require.Equal(t, false, ack.Response["already_completed"])

	require.Eventually(t, func() bool {
		for _, resp := range transport.sentControlResponses(t) {
			if resp.RequestID == "req-123" && resp.IsError() {
				return resp.Error == errors.ErrOperationCancelled.Error()
			}
		}

		return false
	}, 2*time.Second, 5*time.Millisecond)
}

func TestCancelRequest_UnknownRequestID(t *testing.T) {
	_, transport := startController(t)

	transport.sendToController(`{"type":"control_cancel_request","request_id":"nope"}`)

	ack := ackFor(t, transport, "nope")
	require.Equal(t, false, ack.Response["found"])
	require.Equal(t, false, ack.Response["already_completed"])
}

func TestCancelRequest_AfterCompletion(t *testing.T) {
	controller, transport := startController(t)

	controller.RegisterHandler("fast", func(context.Context, *message.ControlRequest) (map[string]any, error) {
		return map[string]any{"ok": true}, nil
	})

	transport.sendToController(`{"type":"control_request","request_id":"f1","request":{"subtype":"fast"}}`)
	transport.waitForResponse(t, "f1")

	// Completed operations leave the in-flight table.
	require.Eventually(t, func() bool {
		controller.inFlightMu.RLock()
		defer controller.inFlightMu.RUnlock()

		return len(controller.inFlight) == 0
	}, time.Second, time.Millisecond)

	transport.sendToController(`{"type":"control_cancel_request","request_id":"f1"}`)

	ack := ackFor(t, transport, "f1")
	require.Equal(t, false, ack.Response["found"])
}

func TestCancelAllInFlight_OnStop(t *testing.T) {
	transport := newMockTransport()
	controller := NewController(slog.New(slog.DiscardHandler), transport)
	require.NoError(t, controller.Start(context.Background()))

	const n = 3

	started := make(chan struct{}, n)
	cancelled := make(chan struct{}, n)

	controller.RegisterHandler("block", func(ctx context.Context, _ *message.ControlRequest) (map[string]any, error) {
		started <- struct{}{}

		<-ctx.Done()
		cancelled <- struct{}{}

		return nil, ctx.Err()
	})

	transport.sendToController(`{"type":"control_request","request_id":"b1","request":{"subtype":"block"}}`)
	transport.sendToController(`{"type":"control_request","request_id":"b2","request":{"subtype":"block"}}`)
	transport.sendToController(`{"type":"control_request","request_id":"b3","request":{"subtype":"block"}}`)

	for range n {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatal("handler did not start")
		}
	}

	controller.Stop()

	require.Len(t, cancelled, n)
}
