// Package errors defines the error taxonomy for agent sessions.
//
// Transport-level failures (SpawnError, CLINotFoundError, TransportClosedError)
// end the session and propagate to every in-flight caller. Per-frame failures
// (MalformedMessageError, FrameTooLargeError) are local and never disturb other
// in-flight state. Control round-trips fail with ErrRequestTimeout, ErrCancelled,
// or ControlError.
//
// All error types support errors.Is, errors.As, and errors.AsType.
package errors
