package client

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/agentsession-go/internal/assembler"
	"github.com/wagiedev/agentsession-go/internal/config"
	"github.com/wagiedev/agentsession-go/internal/errors"
	"github.com/wagiedev/agentsession-go/internal/message"
	"github.com/wagiedev/agentsession-go/internal/protocol"
	"github.com/wagiedev/agentsession-go/internal/subprocess"
)

const (
	// defaultMessageBufferSize is the buffer size for the messages channel.
	defaultMessageBufferSize = 10

	// DefaultSessionTag is the session tag used by Send when none is given.
	DefaultSessionTag = "default"
)

// item is one entry on the caller-facing stream.
type item struct {
	msg message.Message
	err error
}

// connection holds everything created by one successful Connect.
type connection struct {
	id         string
	log        *slog.Logger
	options    *config.Options
	transport  config.Transport
	controller *protocol.Controller
	session    *protocol.Session
	assembler  *assembler.Assembler

	messages chan item
	done     chan struct{}
	cancel   context.CancelFunc
	eg       *errgroup.Group

	errMu    sync.RWMutex
	fatalErr error

	closeOnce sync.Once
	closeErr  error
}

func (conn *connection) setFatalError(err error) {
	conn.errMu.Lock()
	defer conn.errMu.Unlock()

	if conn.fatalErr == nil {
		conn.fatalErr = err
	}
}

func (conn *connection) fatalError() error {
	conn.errMu.RLock()
	defer conn.errMu.RUnlock()

	return conn.fatalErr
}

// Client drives one agent session at a time.
type Client struct {
	mu    sync.Mutex
	state State
	conn  *connection
}

// New creates a disconnected Client.
func New() *Client {
	return &Client{}
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// SessionID returns the id of the current session, or "" when there is none.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ""
	}

	return c.conn.id
}

// ServerInfo returns the agent's initialize response, or nil when the
// session was not initialized.
func (c *Client) ServerInfo() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	return c.conn.session.GetInitializationResult()
}

// live returns the connection if the client is connected.
func (c *Client) live() (*connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateConnected || c.conn == nil {
		return nil, errors.ErrNotConnected
	}

	return c.conn, nil
}

// readable returns the connection while its stream can still be drained,
// which includes a session that failed.
func (c *Client) readable() (*connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || (c.state != StateConnected && c.state != StateFailed) {
		return nil, errors.ErrNotConnected
	}

	return c.conn, nil
}

// Connect starts a session.
//
// It returns ErrAlreadyConnected while a session is connecting or live, a
// *errors.CLINotFoundError or *errors.SpawnError when the agent cannot be
// started, and the initialize error when the agent rejects the handshake.
// ctx bounds only the connect itself; the session lives until Disconnect.
func (c *Client) Connect(ctx context.Context, options *config.Options) error {
	c.mu.Lock()

	if c.state == StateConnecting || c.state == StateConnected || c.state == StateDisconnecting {
		c.mu.Unlock()

		return errors.ErrAlreadyConnected
	}

	previous := c.conn
	c.conn = nil
	c.state = StateConnecting
	c.mu.Unlock()

	if previous != nil {
		_ = previous.teardown()
	}

	conn, err := open(ctx, options)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.state = StateFailed

		return err
	}

	c.conn = conn
	c.state = StateConnected

	conn.eg.Go(func() error {
		c.dispatch(conn)

		return nil
	})

	conn.log.Info("Client connected")

	return nil
}

func open(ctx context.Context, options *config.Options) (*connection, error) {
	if options == nil {
		options = &config.Options{}
	}

	id := newSessionID()

	log := options.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	log = log.With("session_id", id)
	clientLog := log.With("component", "client")

	transport := options.Transport
	if transport == nil {
		transport = subprocess.NewCLITransport(log, options)
	} else {
		clientLog.Debug("Using injected transport")
	}

	controller := protocol.NewController(log, transport)

	session, err := protocol.NewSession(log, controller, options)
	if err != nil {
		return nil, fmt.Errorf("build session: %w", err)
	}

	session.RegisterHandlers()

	if err := transport.Start(ctx); err != nil {
		clientLog.Error("Failed to start transport", "error", err)

		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	eg, egCtx := errgroup.WithContext(runCtx)

	conn := &connection{
		id:         id,
		log:        clientLog,
		options:    options,
		transport:  transport,
		controller: controller,
		session:    session,
		assembler:  assembler.New(log, options.IncludePartialMessages),
		messages:   make(chan item, defaultMessageBufferSize),
		done:       make(chan struct{}),
		cancel:     cancel,
		eg:         eg,
	}

	if err := controller.Start(egCtx); err != nil {
		_ = conn.teardown()

		return nil, fmt.Errorf("start protocol controller: %w", err)
	}

	if session.NeedsInitialization() {
		if err := session.Initialize(ctx); err != nil {
			_ = conn.teardown()

			return nil, fmt.Errorf("initialize session: %w", err)
		}
	}

	return conn, nil
}

func newSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}

// dispatch moves controller output to the caller, assembling fragments on
// the way. It closes conn.messages when the stream ends.
func (c *Client) dispatch(conn *connection) {
	defer close(conn.messages)
	defer conn.log.Debug("Dispatch loop stopped")

	inbound := conn.controller.Inbound()

	for {
		select {
		case in, ok := <-inbound:
			if !ok {
				if err := conn.controller.FatalError(); err != nil {
					c.fail(conn, err)
				}

				return
			}

			if !c.route(conn, in) {
				return
			}

		case <-conn.done:
			return
		}
	}
}

func (c *Client) route(conn *connection, in protocol.Inbound) bool {
	if in.Err != nil {
		return conn.deliver(item{err: in.Err})
	}

	frag, ok := in.Message.(*message.AssistantFragment)
	if !ok {
		return conn.deliver(item{msg: in.Message})
	}

	partial, complete := conn.assembler.Apply(frag)

	if partial != nil && !conn.deliver(item{msg: partial}) {
		return false
	}

	if complete != nil {
		return conn.deliver(item{msg: complete})
	}

	return true
}

func (conn *connection) deliver(it item) bool {
	select {
	case conn.messages <- it:
		return true
	case <-conn.done:
		return false
	}
}

// fail records a fatal transport error and moves the client to
// StateFailed. Buffered fragments are discarded.
func (c *Client) fail(conn *connection, err error) {
	conn.setFatalError(err)

	if n := conn.assembler.Discard(); n > 0 {
		conn.log.Warn("Discarded incomplete messages after transport failure", "count", n)
	}

	conn.log.Error("Session failed", "error", err)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == conn && c.state == StateConnected {
		c.state = StateFailed
	}
}

// Send writes a user message. The session tag defaults to "default".
func (c *Client) Send(ctx context.Context, prompt string, sessionTag ...string) error {
	conn, err := c.live()
	if err != nil {
		return err
	}

	tag := DefaultSessionTag
	if len(sessionTag) > 0 && sessionTag[0] != "" {
		tag = sessionTag[0]
	}

	data, err := message.Encode(&message.UserMessage{
		Content:   message.NewUserMessageContent(prompt),
		SessionID: tag,
	})
	if err != nil {
		return fmt.Errorf("encode user message: %w", err)
	}

	conn.log.Debug("Sending user message", "prompt_len", len(prompt), "session_tag", tag)

	if err := conn.transport.SendMessage(ctx, data); err != nil {
		return fmt.Errorf("send user message: %w", err)
	}

	return nil
}

// ReceiveMessages yields every message until the session ends. Per-frame
// errors are yielded without ending the sequence. A transport failure is
// yielded last. The sequence also ends, with ctx's error, when ctx is done.
func (c *Client) ReceiveMessages(ctx context.Context) iter.Seq2[message.Message, error] {
	return func(yield func(message.Message, error) bool) {
		conn, err := c.readable()
		if err != nil {
			yield(nil, err)

			return
		}

		for {
			select {
			case it, ok := <-conn.messages:
				if !ok {
					if err := conn.fatalError(); err != nil {
						yield(nil, err)
					}

					return
				}

				if !yield(it.msg, it.err) {
					return
				}

			case <-ctx.Done():
				yield(nil, ctx.Err())

				return
			}
		}
	}
}

// ReceiveResponse yields messages until and including the next
// *message.ResultMessage.
func (c *Client) ReceiveResponse(ctx context.Context) iter.Seq2[message.Message, error] {
	return func(yield func(message.Message, error) bool) {
		for msg, err := range c.ReceiveMessages(ctx) {
			if !yield(msg, err) {
				return
			}

			if _, ok := msg.(*message.ResultMessage); ok {
				return
			}
		}
	}
}

func (c *Client) control(ctx context.Context, subtype string, payload map[string]any) (*message.ControlResponse, error) {
	conn, err := c.live()
	if err != nil {
		return nil, err
	}

	return conn.controller.SendRequest(ctx, subtype, payload, conn.options.ControlTimeoutOrDefault())
}

// Interrupt asks the agent to stop its current turn.
func (c *Client) Interrupt(ctx context.Context) error {
	if _, err := c.control(ctx, "interrupt", nil); err != nil {
		return fmt.Errorf("interrupt: %w", err)
	}

	return nil
}

// SetPermissionMode changes the permission mode for the rest of the session.
// Legacy mode names are accepted and normalized.
func (c *Client) SetPermissionMode(ctx context.Context, mode string) error {
	parsed, err := config.ParsePermissionMode(mode)
	if err != nil {
		return err
	}

	if _, err := c.control(ctx, "set_permission_mode", map[string]any{"mode": string(parsed)}); err != nil {
		return fmt.Errorf("set permission mode to %q: %w", parsed, err)
	}

	conn, err := c.live()
	if err != nil {
		return err
	}

	conn.session.SetPermissionMode(parsed)

	return nil
}

// SetModel switches the model. Pass nil for the agent's default.
func (c *Client) SetModel(ctx context.Context, model *string) error {
	if _, err := c.control(ctx, "set_model", map[string]any{"model": model}); err != nil {
		return fmt.Errorf("set model: %w", err)
	}

	return nil
}

// Disconnect ends the session. Pending control requests resolve with
// errors.ErrCancelled, incomplete assistant messages are discarded, and the
// transport is closed. Safe to call more than once.
func (c *Client) Disconnect() error {
	c.mu.Lock()

	conn := c.conn
	if conn == nil || c.state == StateDisconnecting {
		c.mu.Unlock()

		return nil
	}

	c.state = StateDisconnecting
	c.mu.Unlock()

	conn.log.Info("Disconnecting")

	err := conn.teardown()

	c.mu.Lock()
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	conn.log.Info("Disconnected")

	return err
}

// teardown stops everything the connection started. Only the first call
// does any work.
func (conn *connection) teardown() error {
	conn.closeOnce.Do(func() {
		close(conn.done)

		conn.controller.Stop()

		if n := conn.assembler.Discard(); n > 0 {
			conn.log.Debug("Discarded incomplete messages", "count", n)
		}

		conn.closeErr = conn.transport.Close()

		conn.cancel()

		if err := conn.eg.Wait(); err != nil && conn.closeErr == nil {
			conn.closeErr = err
		}
	})

	return conn.closeErr
}
