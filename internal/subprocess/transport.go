package subprocess

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/wagiedev/agentsession-go/internal/cli"
	"github.com/wagiedev/agentsession-go/internal/config"
	"github.com/wagiedev/agentsession-go/internal/errors"
)

// CLITransport implements config.Transport by running the agent binary.
type CLITransport struct {
	log     *slog.Logger
	options *config.Options

	mu      sync.Mutex
	proc    *Process
	closing bool
	stopped chan struct{}
	readOne sync.Once
}

// Compile-time verification that CLITransport implements config.Transport.
var _ config.Transport = (*CLITransport)(nil)

// NewCLITransport creates a transport for options. Binary discovery is
// deferred to Start so it can use the caller's context.
func NewCLITransport(log *slog.Logger, options *config.Options) *CLITransport {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	if options == nil {
		options = &config.Options{}
	}

	return &CLITransport{
		log:     log.With("component", "cli_transport"),
		options: options,
		stopped: make(chan struct{}),
	}
}

// Start discovers the binary and spawns it.
func (t *CLITransport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.proc != nil {
		return errors.ErrAlreadyConnected
	}

	if t.closing {
		return errors.ErrTransportClosed
	}

	discoverer := cli.NewDiscoverer(&cli.Config{
		CliPath:          t.options.CliPath,
		SkipVersionCheck: t.options.SkipVersionCheck,
		Logger:           t.log,
	})

	path, err := discoverer.Discover(ctx)
	if err != nil {
		return fmt.Errorf("discover CLI: %w", err)
	}

	args := cli.BuildArgs(t.options)
	t.log.Debug("Built command arguments", "args", args)

	cwd := t.options.Cwd
	if cwd == "" {
		cwd, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
	}

	proc, err := Spawn(ctx, t.log, Spec{
		Path:   path,
		Args:   args,
		Cwd:    cwd,
		Env:    cli.BuildEnvironment(t.options),
		Stderr: t.options.Stderr,
	})
	if err != nil {
		return err
	}

	t.proc = proc

	return nil
}

func (t *CLITransport) process() *Process {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.proc
}

func (t *CLITransport) isClosing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.closing
}

// ReadFrames streams stdout frames. When stdout ends without Close having
// been called, the last frame carries a *errors.TransportClosedError with
// the exit code and cleaned stderr. Only the first call reads; later calls
// get a closed channel.
func (t *CLITransport) ReadFrames(ctx context.Context) <-chan config.Frame {
	out := make(chan config.Frame)

	proc := t.process()
	if proc == nil {
		go func() {
			defer close(out)

			t.send(ctx, out, config.Frame{Err: errors.ErrTransportNotConnected})
		}()

		return out
	}

	started := false

	t.readOne.Do(func() {
		started = true

		go t.readLoop(ctx, proc, out)
	})

	if !started {
		close(out)
	}

	return out
}

func (t *CLITransport) readLoop(ctx context.Context, proc *Process, out chan<- config.Frame) {
	defer close(out)

	var readErr error

	for line, err := range proc.Lines(t.options.MaxFrameSize) {
		if err != nil && !errors.IsLocal(err) {
			readErr = err

			break
		}

		if !t.send(ctx, out, config.Frame{Data: line, Err: err}) {
			return
		}
	}

	code, waitErr := proc.Wait()

	if t.isClosing() {
		t.log.Debug("Stdout closed after Close", "exit_code", code)

		return
	}

	if readErr == nil {
		readErr = waitErr
	}

	closed := &errors.TransportClosedError{
		ExitCode: code,
		Stderr:   cleanStderr(proc.Stderr()),
		Err:      readErr,
	}

	t.log.Warn("Agent process stream ended", "exit_code", code, "error", readErr)
	t.send(ctx, out, config.Frame{Err: closed})
}

func (t *CLITransport) send(ctx context.Context, out chan<- config.Frame, frame config.Frame) bool {
	select {
	case out <- frame:
		return true
	case <-ctx.Done():
		return false
	case <-t.stopped:
		return false
	}
}

// SendMessage writes one frame to the agent's stdin.
func (t *CLITransport) SendMessage(ctx context.Context, data []byte) error {
	proc := t.process()
	if proc == nil {
		return errors.ErrTransportNotConnected
	}

	if t.isClosing() {
		return errors.ErrTransportClosed
	}

	return proc.WriteLine(ctx, data)
}

// EndInput closes the agent's stdin.
func (t *CLITransport) EndInput() error {
	proc := t.process()
	if proc == nil {
		return errors.ErrTransportNotConnected
	}

	return proc.CloseStdin()
}

// IsReady reports whether the process is running and Close has not been
// called.
func (t *CLITransport) IsReady() bool {
	t.mu.Lock()
	proc, closing := t.proc, t.closing
	t.mu.Unlock()

	return proc != nil && !closing && proc.Alive()
}

// Close terminates the process, waiting up to the configured grace period
// before killing it. Safe to call more than once.
func (t *CLITransport) Close() error {
	t.mu.Lock()

	if t.closing {
		t.mu.Unlock()

		return nil
	}

	t.closing = true
	close(t.stopped)
	proc := t.proc
	t.mu.Unlock()

	if proc == nil {
		return nil
	}

	t.log.Info("Closing agent process")

	return proc.Terminate(t.options.GracePeriod())
}
