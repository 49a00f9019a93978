package agentsession

import "github.com/wagiedev/agentsession-go/internal/errors"

// Re-export error types from internal package

// AgentSessionError is implemented by every typed error in this package.
type AgentSessionError = errors.AgentSessionError

// CLINotFoundError indicates the agent binary was not found.
type CLINotFoundError = errors.CLINotFoundError

// SpawnError indicates the agent process could not be started.
type SpawnError = errors.SpawnError

// TransportClosedError indicates the agent process exited or closed stdout
// while the session was live. It matches ErrTransportClosed.
type TransportClosedError = errors.TransportClosedError

// MalformedMessageError indicates one inbound frame could not be decoded.
type MalformedMessageError = errors.MalformedMessageError

// FrameTooLargeError indicates one inbound line exceeded the frame limit.
type FrameTooLargeError = errors.FrameTooLargeError

// ControlError indicates the agent answered a control request with an error.
type ControlError = errors.ControlError

// Re-export sentinel errors from internal package.
var (
	// ErrNotConnected indicates the client has no live session.
	ErrNotConnected = errors.ErrNotConnected

	// ErrAlreadyConnected indicates Connect was called on a live client.
	ErrAlreadyConnected = errors.ErrAlreadyConnected

	// ErrTransportNotConnected indicates the transport was used before Start.
	ErrTransportNotConnected = errors.ErrTransportNotConnected

	// ErrTransportClosed indicates the transport has ended.
	ErrTransportClosed = errors.ErrTransportClosed

	// ErrPipeClosed indicates a write to a closed stdin.
	ErrPipeClosed = errors.ErrPipeClosed

	// ErrRequestTimeout indicates a control request timed out.
	ErrRequestTimeout = errors.ErrRequestTimeout

	// ErrCancelled indicates a control request was abandoned by Disconnect or
	// its context.
	ErrCancelled = errors.ErrCancelled

	// ErrToolNotFound indicates a call for an unregistered tool.
	ErrToolNotFound = errors.ErrToolNotFound

	// ErrRegistryFrozen indicates a tool was registered after Connect.
	ErrRegistryFrozen = errors.ErrRegistryFrozen
)

// IsLocal reports whether err affects a single frame and leaves the session
// usable.
func IsLocal(err error) bool {
	return errors.IsLocal(err)
}
