package agentsession

import (
	"context"
	"iter"

	"github.com/wagiedev/agentsession-go/internal/client"
)

// clientWrapper adapts the internal client to the public interface.
type clientWrapper struct {
	impl *client.Client
}

// Compile-time check that *clientWrapper implements the Client interface.
var _ Client = (*clientWrapper)(nil)

func newClientImpl() Client {
	return &clientWrapper{impl: client.New()}
}

func (c *clientWrapper) Connect(ctx context.Context, opts ...Option) error {
	return c.impl.Connect(ctx, applyOptions(opts))
}

func (c *clientWrapper) Send(ctx context.Context, prompt string, sessionTag ...string) error {
	return c.impl.Send(ctx, prompt, sessionTag...)
}

func (c *clientWrapper) ReceiveMessages(ctx context.Context) iter.Seq2[Message, error] {
	return c.impl.ReceiveMessages(ctx)
}

func (c *clientWrapper) ReceiveResponse(ctx context.Context) iter.Seq2[Message, error] {
	return c.impl.ReceiveResponse(ctx)
}

func (c *clientWrapper) Interrupt(ctx context.Context) error {
	return c.impl.Interrupt(ctx)
}

func (c *clientWrapper) SetPermissionMode(ctx context.Context, mode string) error {
	return c.impl.SetPermissionMode(ctx, mode)
}

func (c *clientWrapper) SetModel(ctx context.Context, model *string) error {
	return c.impl.SetModel(ctx, model)
}

func (c *clientWrapper) ServerInfo() map[string]any {
	return c.impl.ServerInfo()
}

func (c *clientWrapper) State() State {
	return c.impl.State()
}

func (c *clientWrapper) SessionID() string {
	return c.impl.SessionID()
}

func (c *clientWrapper) Disconnect() error {
	return c.impl.Disconnect()
}
