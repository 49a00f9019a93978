package agentsession

import (
	"log/slog"

	"github.com/wagiedev/agentsession-go/internal/config"
	"github.com/wagiedev/agentsession-go/internal/subprocess"
)

// Transport defines the interface for agent communication.
// Implement this to provide custom transports for testing, mocking,
// or alternative communication methods (e.g., remote connections).
//
// The default implementation is CLITransport which spawns a subprocess.
// Custom transports can be injected with WithTransport.
type Transport = config.Transport

// Frame is one inbound line, or a read failure, from a Transport.
type Frame = config.Frame

// CLITransport is the default Transport. It runs the agent binary.
type CLITransport = subprocess.CLITransport

// NewCLITransport creates the default transport for the given options.
// It is useful for wrapping the subprocess transport in a custom one.
func NewCLITransport(log *slog.Logger, opts ...Option) *CLITransport {
	return subprocess.NewCLITransport(log, applyOptions(opts))
}
