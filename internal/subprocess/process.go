package subprocess

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/wagiedev/agentsession-go/internal/errors"
	"github.com/wagiedev/agentsession-go/internal/framing"
)

const (
	// maxStderrBufferSize caps the stderr kept for error reports. The Stderr
	// callback still sees every line.
	maxStderrBufferSize = 1024 * 1024

	maxStderrLineSize = 1024 * 1024

	// stderrDrainTimeout bounds how long Wait waits for the stderr reader
	// when a grandchild keeps the pipe open.
	stderrDrainTimeout = 2 * time.Second
)

// Spec describes the process to start.
type Spec struct {
	Path string
	Args []string
	Cwd  string
	Env  []string

	// Stderr receives each stderr line. It runs on the drain goroutine.
	Stderr func(string)
}

// Process is a running agent process.
type Process struct {
	log *slog.Logger
	cmd *exec.Cmd

	stdin       io.WriteCloser
	stdout      io.ReadCloser
	writer      *framing.Writer
	stdinMu     sync.Mutex
	stdinClosed bool

	stderrMu   sync.Mutex
	stderrBuf  strings.Builder
	stderrDone chan struct{}

	linesTaken atomic.Bool

	waitOnce sync.Once
	waitDone chan struct{}
	exitCode int
	waitErr  error

	terminateOnce sync.Once
}

// Spawn starts the process described by spec. The process is not tied to
// ctx; use Terminate to stop it.
func Spawn(ctx context.Context, log *slog.Logger, spec Spec) (*Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, &errors.SpawnError{Path: spec.Path, Err: err}
	}

	//nolint:gosec // G204: the agent binary and its argv come from configuration
	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Cwd
	cmd.Env = spec.Env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &errors.SpawnError{Path: spec.Path, Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &errors.SpawnError{Path: spec.Path, Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &errors.SpawnError{Path: spec.Path, Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		log.Error("Failed to start agent process", "path", spec.Path, "error", err)

		return nil, &errors.SpawnError{Path: spec.Path, Err: err}
	}

	p := &Process{
		log:        log.With("pid", cmd.Process.Pid),
		cmd:        cmd,
		stdin:      stdin,
		stdout:     stdout,
		writer:     framing.NewWriter(stdin),
		stderrDone: make(chan struct{}),
		waitDone:   make(chan struct{}),
	}

	go p.drainStderr(stderr, spec.Stderr)

	p.log.Info("Agent process started", "path", spec.Path)

	return p, nil
}

// Pid returns the process id.
func (p *Process) Pid() int { return p.cmd.Process.Pid }

func (p *Process) drainStderr(r io.Reader, sink func(string)) {
	defer close(p.stderrDone)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxStderrLineSize)

	for scanner.Scan() {
		line := scanner.Text()

		p.stderrMu.Lock()

		if p.stderrBuf.Len() < maxStderrBufferSize {
			if p.stderrBuf.Len() > 0 {
				p.stderrBuf.WriteByte('\n')
			}

			p.stderrBuf.WriteString(line)
		}

		p.stderrMu.Unlock()

		if sink != nil {
			sink(line)
		}
	}

	if err := scanner.Err(); err != nil {
		p.log.Debug("Stderr reader stopped", "error", err)
	}
}

// Stderr returns the stderr captured so far.
func (p *Process) Stderr() string {
	p.stderrMu.Lock()
	defer p.stderrMu.Unlock()

	return p.stderrBuf.String()
}

// WriteLine writes one frame to stdin. If ctx ends while the write is
// blocked, stdin is closed to release it and later writes fail with
// errors.ErrPipeClosed.
func (p *Process) WriteLine(ctx context.Context, line []byte) error {
	p.stdinMu.Lock()
	closed := p.stdinClosed
	p.stdinMu.Unlock()

	if closed {
		return errors.ErrPipeClosed
	}

	done := make(chan error, 1)

	go func() {
		done <- p.writer.WriteLine(ctx, line)
	}()

	select {
	case err := <-done:
		if err == nil {
			return nil
		}

		if stderrors.Is(err, os.ErrClosed) || stderrors.Is(err, syscall.EPIPE) {
			p.markStdinClosed()

			return fmt.Errorf("%w: %w", errors.ErrPipeClosed, err)
		}

		return fmt.Errorf("write to stdin: %w", err)

	case <-ctx.Done():
		p.log.Debug("Context cancelled during write, closing stdin")
		_ = p.CloseStdin()

		select {
		case <-done:
		case <-time.After(time.Second):
			p.log.Warn("Write did not return after stdin close")
		}

		return ctx.Err()
	}
}

func (p *Process) markStdinClosed() {
	p.stdinMu.Lock()
	p.stdinClosed = true
	p.stdinMu.Unlock()
}

// CloseStdin signals end of input. Safe to call more than once.
func (p *Process) CloseStdin() error {
	p.stdinMu.Lock()
	defer p.stdinMu.Unlock()

	if p.stdinClosed {
		return nil
	}

	p.stdinClosed = true

	return p.stdin.Close()
}

// Lines returns the stdout frames in order. A frame over maxFrame yields a
// *errors.FrameTooLargeError and reading continues; any other read error is
// yielded once and ends the sequence. Lines may be ranged over only once.
func (p *Process) Lines(maxFrame int) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		if !p.linesTaken.CompareAndSwap(false, true) {
			yield(nil, fmt.Errorf("stdout already consumed"))

			return
		}

		reader := framing.NewReader(p.stdout, maxFrame)

		for {
			line, err := reader.Next()
			if err != nil {
				if stderrors.Is(err, io.EOF) {
					return
				}

				if errors.IsLocal(err) {
					if !yield(nil, err) {
						return
					}

					continue
				}

				yield(nil, err)

				return
			}

			if !yield(line, nil) {
				return
			}
		}
	}
}

// Wait waits for the process to exit and returns its exit code. Only the
// first call waits; later calls return the same result.
func (p *Process) Wait() (int, error) {
	p.waitOnce.Do(func() {
		select {
		case <-p.stderrDone:
		case <-time.After(stderrDrainTimeout):
			p.log.Debug("Stderr still open at wait")
		}

		err := p.cmd.Wait()

		p.exitCode = p.cmd.ProcessState.ExitCode()

		if err != nil {
			if _, ok := stderrors.AsType[*exec.ExitError](err); !ok {
				p.waitErr = err
			}
		}

		p.log.Debug("Agent process exited", "exit_code", p.exitCode)
		close(p.waitDone)
	})

	<-p.waitDone

	return p.exitCode, p.waitErr
}

// Exited returns a channel closed once Wait has returned.
func (p *Process) Exited() <-chan struct{} { return p.waitDone }

// Alive reports whether the process has not been reaped and still accepts
// signals.
func (p *Process) Alive() bool {
	select {
	case <-p.waitDone:
		return false
	default:
	}

	return p.cmd.Process.Signal(syscall.Signal(0)) == nil
}

// Terminate closes stdin, sends an interrupt, and kills the process if it
// has not exited after grace. It waits for the exit. Safe to call more than
// once.
func (p *Process) Terminate(grace time.Duration) error {
	var err error

	p.terminateOnce.Do(func() {
		_ = p.CloseStdin()

		go func() { _, _ = p.Wait() }()

		if sigErr := p.cmd.Process.Signal(os.Interrupt); sigErr != nil {
			p.log.Debug("Interrupt failed, killing", "error", sigErr)
			grace = 0
		}

		timer := time.NewTimer(grace)
		defer timer.Stop()

		select {
		case <-p.waitDone:
			p.log.Debug("Agent process exited after interrupt")

			return
		case <-timer.C:
		}

		p.log.Warn("Agent process did not exit in time, killing", "grace", grace)

		if killErr := p.cmd.Process.Kill(); killErr != nil && !stderrors.Is(killErr, os.ErrProcessDone) {
			err = fmt.Errorf("kill agent process (pid %d): %w", p.Pid(), killErr)

			return
		}

		<-p.waitDone
	})

	return err
}
