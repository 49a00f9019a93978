package config

import "context"

// Frame is one inbound line from the agent, or a read failure.
//
// A Frame with a local error (see errors.IsLocal) affects only that line and
// reading continues. Any other error is terminal and is the last item sent
// before the channel closes.
type Frame struct {
	Data []byte
	Err  error
}

// Transport defines the interface for agent communication.
// Implement this to provide custom transports for testing, mocking,
// or alternative communication methods.
//
// The default implementation is subprocess.CLITransport which spawns the
// agent binary. Custom transports can be injected via Options.Transport.
type Transport interface {
	// Start initializes the transport and prepares it for communication.
	Start(ctx context.Context) error

	// ReadFrames returns a channel of inbound frames in arrival order.
	// The channel is closed when the stream ends.
	ReadFrames(ctx context.Context) <-chan Frame

	// SendMessage sends one JSON frame to the agent. A trailing newline is
	// appended if missing. This method must be safe for concurrent use.
	SendMessage(ctx context.Context, data []byte) error

	// Close terminates the transport and releases resources.
	// It's safe to call Close multiple times.
	Close() error

	// IsReady returns true if the transport is ready for communication.
	IsReady() bool

	// EndInput signals that no more input will be sent.
	EndInput() error
}
