package agentsession

import (
	"context"
	"iter"
)

// Client drives one agent session at a time.
//
// Lifecycle: Disconnected → Connecting → Connected → Disconnecting →
// Disconnected, or Failed when Connect fails or the agent exits. A Client in
// the Disconnected or Failed state may Connect again; each connection gets a
// new session id.
//
// Example usage:
//
//	client := NewClient()
//	defer client.Disconnect()
//
//	if err := client.Connect(ctx, WithPermissionMode("plan")); err != nil {
//	    return err
//	}
//
//	if err := client.Send(ctx, "Summarize README.md"); err != nil {
//	    return err
//	}
//
//	for msg, err := range client.ReceiveResponse(ctx) {
//	    ...
//	}
type Client interface {
	// Connect starts the agent and performs the initialize handshake when
	// hooks, a permission callback, or tools are configured.
	// Returns ErrAlreadyConnected, CLINotFoundError, or SpawnError.
	Connect(ctx context.Context, opts ...Option) error

	// Send writes a user message. The optional session tag defaults to
	// "default".
	Send(ctx context.Context, prompt string, sessionTag ...string) error

	// ReceiveMessages yields messages until the session ends. Per-frame
	// errors are yielded without ending the sequence.
	// Use iter.Pull2 if you need pull-based iteration instead of range.
	ReceiveMessages(ctx context.Context) iter.Seq2[Message, error]

	// ReceiveResponse yields messages until and including the next
	// ResultMessage.
	ReceiveResponse(ctx context.Context) iter.Seq2[Message, error]

	// Interrupt asks the agent to stop its current turn.
	Interrupt(ctx context.Context) error

	// SetPermissionMode changes the permission mode during the session.
	// Valid modes: "default", "acceptEdits", "plan", "bypassPermissions", "dontAsk".
	SetPermissionMode(ctx context.Context, mode string) error

	// SetModel switches the model. Pass nil for the agent's default.
	SetModel(ctx context.Context, model *string) error

	// ServerInfo returns the agent's initialize response, or nil.
	ServerInfo() map[string]any

	// State returns the lifecycle state.
	State() State

	// SessionID returns the current session's id, or "".
	SessionID() string

	// Disconnect ends the session. Pending control requests fail with
	// ErrCancelled. Safe to call multiple times.
	Disconnect() error
}

// NewClient creates a disconnected client.
func NewClient() Client {
	return newClientImpl()
}
