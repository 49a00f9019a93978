package errors

import (
	"errors"
	"fmt"
)

// AgentSessionError is the base interface for all typed SDK errors.
type AgentSessionError interface {
	error
	IsAgentSessionError() bool
}

// Compile-time verification that all error types implement AgentSessionError.
var (
	_ AgentSessionError = (*CLINotFoundError)(nil)
	_ AgentSessionError = (*SpawnError)(nil)
	_ AgentSessionError = (*TransportClosedError)(nil)
	_ AgentSessionError = (*MalformedMessageError)(nil)
	_ AgentSessionError = (*FrameTooLargeError)(nil)
	_ AgentSessionError = (*ControlError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrNotConnected indicates the client has no live session.
	ErrNotConnected = errors.New("client not connected")

	// ErrAlreadyConnected indicates Connect was called on a live session.
	ErrAlreadyConnected = errors.New("client already connected")

	// ErrTransportNotConnected indicates the transport has not been started.
	ErrTransportNotConnected = errors.New("transport not connected")

	// ErrTransportClosed indicates the agent process or its pipes went away.
	// TransportClosedError matches it via errors.Is.
	ErrTransportClosed = errors.New("transport closed")

	// ErrPipeClosed indicates a write was attempted after stdin was closed.
	ErrPipeClosed = errors.New("pipe closed")

	// ErrRequestTimeout indicates a control request exceeded its deadline.
	ErrRequestTimeout = errors.New("request timeout")

	// ErrCancelled indicates a control request was abandoned because the
	// session was torn down or the caller's context ended.
	ErrCancelled = errors.New("request cancelled")

	// ErrOperationCancelled indicates an inbound operation was cancelled by
	// a control_cancel_request from the agent.
	ErrOperationCancelled = errors.New("operation cancelled")

	// ErrToolNotFound indicates a tool invocation named an unregistered tool.
	ErrToolNotFound = errors.New("tool not found")

	// ErrRegistryFrozen indicates a tool was registered after connect.
	ErrRegistryFrozen = errors.New("tool registry frozen")
)

// CLINotFoundError indicates the agent binary could not be located.
type CLINotFoundError struct {
	SearchedPaths []string
}

func (e *CLINotFoundError) Error() string {
	return fmt.Sprintf("agent CLI not found in: %v", e.SearchedPaths)
}

// IsAgentSessionError implements AgentSessionError.
func (e *CLINotFoundError) IsAgentSessionError() bool { return true }

// SpawnError indicates the agent process could not be started.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("spawn agent process: %v", e.Err)
	}

	return fmt.Sprintf("spawn agent process %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// IsAgentSessionError implements AgentSessionError.
func (e *SpawnError) IsAgentSessionError() bool { return true }

// TransportClosedError indicates the agent process exited or its stdout
// closed while the session was still live.
type TransportClosedError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *TransportClosedError) Error() string {
	msg := fmt.Sprintf("transport closed (exit %d)", e.ExitCode)

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	if e.Stderr != "" {
		msg += "\nstderr: " + e.Stderr
	}

	return msg
}

func (e *TransportClosedError) Unwrap() error {
	return e.Err
}

// Is reports ErrTransportClosed as a match.
func (e *TransportClosedError) Is(target error) bool {
	return target == ErrTransportClosed
}

// IsAgentSessionError implements AgentSessionError.
func (e *TransportClosedError) IsAgentSessionError() bool { return true }

// MalformedMessageError indicates one inbound frame could not be decoded.
// It is local to that frame; the session keeps running.
type MalformedMessageError struct {
	Frame string
	Err   error
}

func (e *MalformedMessageError) Error() string {
	return fmt.Sprintf("malformed message: %v", e.Err)
}

func (e *MalformedMessageError) Unwrap() error {
	return e.Err
}

// IsAgentSessionError implements AgentSessionError.
func (e *MalformedMessageError) IsAgentSessionError() bool { return true }

// FrameTooLargeError indicates a line exceeded the configured frame limit.
type FrameTooLargeError struct {
	Size  int
	Limit int
}

func (e *FrameTooLargeError) Error() string {
	return fmt.Sprintf("frame too large: %d bytes exceeds limit of %d", e.Size, e.Limit)
}

// IsAgentSessionError implements AgentSessionError.
func (e *FrameTooLargeError) IsAgentSessionError() bool { return true }

// ControlError is returned when the agent answers a control request with an
// error-subtype response.
type ControlError struct {
	RequestID string
	Subtype   string
	Message   string
}

func (e *ControlError) Error() string {
	return fmt.Sprintf("control request %s (%s) failed: %s", e.RequestID, e.Subtype, e.Message)
}

// IsAgentSessionError implements AgentSessionError.
func (e *ControlError) IsAgentSessionError() bool { return true }

// IsLocal reports whether err affects only a single frame and leaves the
// session usable.
func IsLocal(err error) bool {
	if _, ok := errors.AsType[*MalformedMessageError](err); ok {
		return true
	}

	_, ok := errors.AsType[*FrameTooLargeError](err)

	return ok
}
