package protocol

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/wagiedev/agentsession-go/internal/config"
	"github.com/wagiedev/agentsession-go/internal/errors"
	"github.com/wagiedev/agentsession-go/internal/message"
)

// DefaultRequestTimeout applies when SendRequest is given a non-positive timeout.
const DefaultRequestTimeout = 60 * time.Second

// Transport defines the minimal interface needed for protocol operations.
//
// This interface is satisfied by subprocess.CLITransport but allows for
// testing with mock transports.
type Transport interface {
	ReadFrames(ctx context.Context) <-chan config.Frame
	SendMessage(ctx context.Context, data []byte) error
}

// Controller correlates control requests with their responses and routes
// every other inbound message to a single ordered stream.
//
// The Controller handles:
//   - Sending control_request messages with unique request IDs
//   - Resolving each pending request exactly once: by response, timeout,
//     cancellation, or transport failure
//   - Ignoring late responses for requests that already timed out
//   - Dispatching inbound control_request messages to registered handlers
//   - Forwarding non-control messages and per-frame errors via Inbound
type Controller struct {
	log       *slog.Logger
	transport Transport

	counter atomic.Uint64

	// Request tracking. Whoever removes an entry from pending completes it.
	pendingMu sync.Mutex
	pending   map[string]*pendingRequest
	retired   map[string]time.Time // id -> when it stops being remembered
	closed    bool
	closedErr error

	// In-flight operation tracking for cancellation support
	inFlightMu sync.RWMutex
	inFlight   map[string]*inFlightOperation

	handlersMu sync.RWMutex
	handlers   map[string]RequestHandler

	queue   *inboundQueue
	inbound chan Inbound

	errMu    sync.RWMutex
	fatalErr error

	closeOnce sync.Once
	done      chan struct{}
	stopOnce  sync.Once
	stopped   chan struct{}
	wg        sync.WaitGroup
}

// pendingRequest tracks an outgoing request awaiting its terminal outcome.
type pendingRequest struct {
	subtype   string
	createdAt time.Time
	deadline  time.Time
	result    chan outcome
}

type outcome struct {
	resp *message.ControlResponse
	err  error
}

// inFlightOperation tracks an incoming control request being handled.
type inFlightOperation struct {
	requestID string
	subtype   string
	cancel    context.CancelFunc
	startTime time.Time
	completed bool
}

// NewController creates a new protocol controller.
func NewController(log *slog.Logger, transport Transport) *Controller {
	return &Controller{
		log:       log.With("component", "protocol"),
		transport: transport,
		pending:   make(map[string]*pendingRequest, 10),
		retired:   make(map[string]time.Time, 10),
		inFlight:  make(map[string]*inFlightOperation, 10),
		handlers:  make(map[string]RequestHandler, 10),
		queue:     newInboundQueue(),
		inbound:   make(chan Inbound),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
}

func (c *Controller) closeDone() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// SetFatalError records a transport failure, fails every pending request with
// it, and closes Done. Only the first error is kept.
func (c *Controller) SetFatalError(err error) {
	if _, ok := stderrors.AsType[*errors.TransportClosedError](err); !ok {
		err = &errors.TransportClosedError{Err: err}
	}

	c.errMu.Lock()

	if c.fatalErr == nil {
		c.fatalErr = err
	}

	c.errMu.Unlock()

	c.failAll(err)
	c.closeDone()
}

// FatalError returns the fatal error if one occurred.
func (c *Controller) FatalError() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()

	return c.fatalErr
}

// Done returns a channel that is closed when the controller stops or the
// transport fails.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Start begins reading frames from the transport and routing them.
func (c *Controller) Start(ctx context.Context) error {
	c.log.Debug("Starting protocol controller")

	frames := c.transport.ReadFrames(ctx)

	c.wg.Go(func() {
		c.queue.pump(c.inbound, c.stopped)
	})

	c.wg.Go(func() {
		c.readLoop(ctx, frames)
	})

	c.log.Info("Protocol controller started")

	return nil
}

// Stop shuts down the controller. Every pending request resolves with
// ErrCancelled and every in-flight handler is cancelled. Safe to call more
// than once.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		c.log.Debug("Stopping protocol controller")

		c.failAll(errors.ErrCancelled)
		close(c.stopped)
		c.closeDone()
		c.CancelAllInFlight()
	})

	c.wg.Wait()
	c.log.Info("Protocol controller stopped")
}

// Inbound returns the ordered stream of non-control messages and per-frame
// errors. It is closed once the transport ends and everything received has
// been delivered, or immediately on Stop.
func (c *Controller) Inbound() <-chan Inbound {
	return c.inbound
}

// Pending reports how many requests are awaiting an outcome.
func (c *Controller) Pending() int {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	return len(c.pending)
}

// SendRequest sends a control request and waits for its terminal outcome.
//
// It returns the matching response, a *errors.ControlError for an error
// response, an error wrapping ErrRequestTimeout, ErrCancelled (joined with the
// context error when ctx ends), or the transport's fatal error.
func (c *Controller) SendRequest(
	ctx context.Context,
	subtype string,
	payload map[string]any,
	timeout time.Duration,
) (*message.ControlResponse, error) {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	requestID := c.generateRequestID()
	now := time.Now()

	pending := &pendingRequest{
		subtype:   subtype,
		createdAt: now,
		deadline:  now.Add(timeout),
		result:    make(chan outcome, 1),
	}

	c.pendingMu.Lock()

	if c.closed {
		err := c.closedErr
		c.pendingMu.Unlock()

		return nil, err
	}

	c.pending[requestID] = pending
	c.pendingMu.Unlock()

	c.log.Debug("Sending control request", "request_id", requestID, "subtype", subtype)

	request := make(map[string]any, len(payload)+1)
	maps.Copy(request, payload)
	request["subtype"] = subtype

	data, err := message.Encode(&message.ControlRequest{
		RequestID: requestID,
		Subtype:   subtype,
		Request:   request,
	})
	if err != nil {
		c.claim(requestID, false)

		return nil, fmt.Errorf("encode request: %w", err)
	}

	if err := c.transport.SendMessage(ctx, data); err != nil {
		if c.claim(requestID, false) {
			return nil, fmt.Errorf("send request: %w", err)
		}

		// Teardown raced the write and already resolved this request.
		return c.finish(requestID, pending, <-pending.result)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-pending.result:
		return c.finish(requestID, pending, out)

	case <-timer.C:
		if c.claim(requestID, true) {
			c.log.Warn("Control request timed out", "request_id", requestID, "timeout", timeout)

			return nil, fmt.Errorf("%w after %s", errors.ErrRequestTimeout, timeout)
		}

		return c.finish(requestID, pending, <-pending.result)

	case <-ctx.Done():
		if c.claim(requestID, true) {
			c.log.Debug("Control request cancelled by caller", "request_id", requestID)

			return nil, stderrors.Join(errors.ErrCancelled, ctx.Err())
		}

		return c.finish(requestID, pending, <-pending.result)
	}
}

// claim removes requestID from the pending table and reports whether this
// caller did so. A retired id has its late response ignored for one more
// request timeout, after which it is forgotten.
func (c *Controller) claim(requestID string, retire bool) bool {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	p, ok := c.pending[requestID]
	if !ok {
		return false
	}

	delete(c.pending, requestID)

	if retire {
		now := time.Now()

		maps.DeleteFunc(c.retired, func(_ string, expires time.Time) bool {
			return now.After(expires)
		})

		c.retired[requestID] = now.Add(p.deadline.Sub(p.createdAt))
	}

	return true
}

func (c *Controller) finish(
	requestID string,
	pending *pendingRequest,
	out outcome,
) (*message.ControlResponse, error) {
	if out.err != nil {
		return nil, out.err
	}

	if out.resp.IsError() {
		c.log.Warn("Control request returned error", "request_id", requestID, "error", out.resp.Error)

		return nil, &errors.ControlError{
			RequestID: requestID,
			Subtype:   pending.subtype,
			Message:   out.resp.Error,
		}
	}

	c.log.Debug("Received control response",
		"request_id", requestID,
		"elapsed", time.Since(pending.createdAt),
	)

	return out.resp, nil
}

// failAll resolves every pending request with err and rejects new ones.
func (c *Controller) failAll(err error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	if !c.closed {
		c.closed = true
		c.closedErr = err
	}

	if len(c.pending) > 0 {
		c.log.Debug("Resolving pending control requests", "count", len(c.pending), "error", err)
	}

	for id, p := range c.pending {
		delete(c.pending, id)
		p.result <- outcome{err: err}
	}

	clear(c.retired)
}

// RegisterHandler registers a handler for incoming control requests.
//
// Only one handler can be registered per subtype. Registering a handler for
// the same subtype twice will override the previous handler.
func (c *Controller) RegisterHandler(subtype string, handler RequestHandler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()

	c.log.Debug("Registering control request handler", "subtype", subtype)
	c.handlers[subtype] = handler
}

// readLoop is the single reader. It never blocks on the consumer.
func (c *Controller) readLoop(ctx context.Context, frames <-chan config.Frame) {
	defer c.queue.close()
	defer c.log.Debug("Protocol read loop stopped")

	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				select {
				case <-c.done:
				default:
					c.log.Debug("Frame channel closed")
					c.SetFatalError(&errors.TransportClosedError{Err: io.ErrUnexpectedEOF})
				}

				return
			}

			if frame.Err != nil {
				if errors.IsLocal(frame.Err) {
					c.log.Warn("Dropping unreadable frame", "error", frame.Err)
					c.queue.push(Inbound{Err: frame.Err})

					continue
				}

				c.log.Error("Transport error in protocol", "error", frame.Err)
				c.SetFatalError(frame.Err)

				return
			}

			msg, err := message.Decode(frame.Data)
			if err != nil {
				c.log.Warn("Dropping malformed frame", "error", err)

				if requestID, ok := message.ControlRequestID(frame.Data); ok {
					c.sendErrorResponse(ctx, requestID, err.Error())
				}

				c.queue.push(Inbound{Err: err})

				continue
			}

			c.handleMessage(ctx, msg)

		case <-c.stopped:
			return

		case <-ctx.Done():
			c.log.Debug("Context cancelled in protocol read loop")

			return
		}
	}
}

func (c *Controller) handleMessage(ctx context.Context, msg message.Message) {
	switch m := msg.(type) {
	case *message.ControlResponse:
		c.handleControlResponse(m)

	case *message.ControlRequest:
		c.handleControlRequest(ctx, m)

	case *message.ControlCancelRequest:
		c.handleCancelRequest(ctx, m)

	default:
		c.queue.push(Inbound{Message: msg})
	}
}

// handleControlResponse completes the matching pending request. Responses for
// retired or unknown ids are dropped.
func (c *Controller) handleControlResponse(resp *message.ControlResponse) {
	requestID := resp.RequestID

	c.pendingMu.Lock()

	pending, exists := c.pending[requestID]
	if exists {
		delete(c.pending, requestID)
	}

	_, stale := c.retired[requestID]
	if stale {
		delete(c.retired, requestID)
	}

	c.pendingMu.Unlock()

	if !exists {
		if stale {
			c.log.Debug("Ignoring late control response", "request_id", requestID)
		} else {
			c.log.Warn("No pending request for control response", "request_id", requestID)
		}

		return
	}

	pending.result <- outcome{resp: resp}
}

// handleControlRequest invokes the registered handler on its own goroutine so
// the read loop can keep routing.
func (c *Controller) handleControlRequest(ctx context.Context, req *message.ControlRequest) {
	requestID := req.RequestID
	subtype := req.Subtype

	c.log.Debug("Received control request", "request_id", requestID, "subtype", subtype)

	c.handlersMu.RLock()
	handler, exists := c.handlers[subtype]
	c.handlersMu.RUnlock()

	if !exists {
		c.log.Warn("No handler registered for control request subtype", "subtype", subtype)
		c.sendErrorResponse(ctx, requestID, fmt.Sprintf("unsupported control request: %s", subtype))

		return
	}

	opCtx, cancel := context.WithCancel(ctx)

	op := &inFlightOperation{
		requestID: requestID,
		subtype:   subtype,
		cancel:    cancel,
		startTime: time.Now(),
	}

	c.inFlightMu.Lock()
	c.inFlight[requestID] = op
	c.inFlightMu.Unlock()

	c.wg.Go(func() {
		defer func() {
			c.inFlightMu.Lock()
			defer c.inFlightMu.Unlock()

			op.completed = true

			delete(c.inFlight, requestID)

			cancel()
		}()

		payload, err := invoke(opCtx, handler, req)

		if stderrors.Is(opCtx.Err(), context.Canceled) {
			c.log.Debug("Handler was cancelled", "request_id", requestID)
			c.sendErrorResponse(ctx, requestID, errors.ErrOperationCancelled.Error())

			return
		}

		if err != nil {
			c.log.Warn("Handler returned error", "request_id", requestID, "error", err.Error())
			c.sendErrorResponse(ctx, requestID, err.Error())

			return
		}

		c.sendSuccessResponse(ctx, requestID, payload)
	})
}

// invoke runs handler and converts a panic into an error.
func invoke(
	ctx context.Context,
	handler RequestHandler,
	req *message.ControlRequest,
) (payload map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return handler(ctx, req)
}

func (c *Controller) sendSuccessResponse(
	ctx context.Context,
	requestID string,
	payload map[string]any,
) {
	c.sendResponse(ctx, &message.ControlResponse{
		RequestID: requestID,
		Subtype:   message.ResponseSubtypeSuccess,
		Response:  payload,
	})
}

func (c *Controller) sendErrorResponse(
	ctx context.Context,
	requestID string,
	errMsg string,
) {
	c.sendResponse(ctx, &message.ControlResponse{
		RequestID: requestID,
		Subtype:   message.ResponseSubtypeError,
		Error:     errMsg,
	})
}

func (c *Controller) sendResponse(ctx context.Context, resp *message.ControlResponse) {
	data, err := message.Encode(resp)
	if err != nil {
		c.log.Error("Failed to encode control response", "error", err)

		return
	}

	if err := c.transport.SendMessage(ctx, data); err != nil {
		// Expected during shutdown.
		if ctx.Err() != nil {
			c.log.Debug("Could not send control response during shutdown", "error", err)

			return
		}

		c.log.Error("Failed to send control response", "request_id", resp.RequestID, "error", err)
	}
}

// generateRequestID combines a per-controller counter with a ULID so ids are
// unique for the session and across sessions.
func (c *Controller) generateRequestID() string {
	return fmt.Sprintf("req_%d_%s", c.counter.Add(1), ulid.Make().String())
}

// handleCancelRequest cancels the in-flight handler for the request, if any,
// and acknowledges.
func (c *Controller) handleCancelRequest(ctx context.Context, req *message.ControlCancelRequest) {
	requestID := req.RequestID

	c.log.Debug("Received cancel request", "request_id", requestID)

	c.inFlightMu.Lock()
	op, exists := c.inFlight[requestID]

	if !exists {
		c.inFlightMu.Unlock()
		c.log.Debug("Cancel request for unknown operation", "request_id", requestID)
		c.sendCancelAcknowledgment(ctx, requestID, false, false)

		return
	}

	alreadyCompleted := op.completed
	if !alreadyCompleted {
		op.cancel()
	}

	c.inFlightMu.Unlock()

	c.log.Debug("Cancel request processed",
		"request_id", requestID,
		"already_completed", alreadyCompleted,
		"running_for", time.Since(op.startTime),
	)

	c.sendCancelAcknowledgment(ctx, requestID, true, alreadyCompleted)
}

func (c *Controller) sendCancelAcknowledgment(
	ctx context.Context,
	requestID string,
	found bool,
	alreadyCompleted bool,
) {
	c.sendResponse(ctx, &message.ControlResponse{
		RequestID: requestID,
		Subtype:   message.ResponseSubtypeCancelAck,
		Response: map[string]any{
			"found":             found,
			"already_completed": alreadyCompleted,
		},
	})
}

// CancelAllInFlight cancels all in-flight operations.
func (c *Controller) CancelAllInFlight() {
	c.inFlightMu.Lock()
	defer c.inFlightMu.Unlock()

	for _, op := range c.inFlight {
		if !op.completed {
			op.cancel()
		}
	}
}
