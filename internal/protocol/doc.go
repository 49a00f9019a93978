// Package protocol implements bidirectional control message handling for the
// agent process.
//
// The Controller owns the single read loop. It decodes each inbound frame,
// completes pending control requests from control_response frames, runs
// registered handlers for control_request frames, and forwards everything
// else in arrival order on Inbound.
//
// Every request sent with SendRequest resolves exactly once: with its
// response, with ErrRequestTimeout, with ErrCancelled, or with the
// transport's fatal error. A response that arrives after its request timed
// out is ignored.
//
// Example usage:
//
//	controller := protocol.NewController(log, transport)
//	controller.Start(ctx)
//	defer controller.Stop()
//
//	resp, err := controller.SendRequest(ctx, "interrupt", nil, 5*time.Second)
//
// Session layers the session-level handlers (hooks, permissions, tools) on top
// of a Controller.
package protocol
