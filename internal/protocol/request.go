package protocol

import (
	"context"

	"github.com/wagiedev/agentsession-go/internal/message"
)

// RequestHandler handles a control request sent by the agent.
//
// Handlers are registered per subtype and each call runs on its own
// goroutine. The returned payload becomes the "response" body of a success
// control_response; a returned error (or panic) becomes an error response.
// ctx is cancelled if the agent sends a matching control_cancel_request or
// the controller stops.
type RequestHandler func(ctx context.Context, req *message.ControlRequest) (map[string]any, error)

// StringField returns req.Request[key] if it is a string.
func StringField(req *message.ControlRequest, key string) string {
	s, _ := req.Request[key].(string)

	return s
}

// MapField returns req.Request[key] if it is a JSON object.
func MapField(req *message.ControlRequest, key string) map[string]any {
	m, _ := req.Request[key].(map[string]any)

	return m
}
