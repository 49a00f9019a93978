package agentsession

import (
	"context"
	"fmt"
)

// WithClient manages client lifecycle with automatic cleanup.
//
// It connects a new client with opts, runs fn, and disconnects afterwards.
// A Disconnect failure is logged and never overrides fn's error.
//
// Example usage:
//
//	err := agentsession.WithClient(ctx, func(c agentsession.Client) error {
//	    if err := c.Send(ctx, "Hello"); err != nil {
//	        return err
//	    }
//	    for msg, err := range c.ReceiveResponse(ctx) {
//	        if err != nil {
//	            return err
//	        }
//	        // process message...
//	    }
//	    return nil
//	},
//	    agentsession.WithLogger(log),
//	    agentsession.WithPermissionMode("acceptEdits"),
//	)
func WithClient(ctx context.Context, fn func(Client) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	log := applyOptions(opts).Logger
	if log == nil {
		log = NopLogger()
	}

	client := NewClient()
	if err := client.Connect(ctx, opts...); err != nil {
		return fmt.Errorf("failed to connect client: %w", err)
	}

	defer func() {
		if err := client.Disconnect(); err != nil {
			log.Warn("failed to disconnect client", "error", err)
		}
	}()

	return fn(client)
}
