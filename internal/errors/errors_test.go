package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCLINotFoundError(t *testing.T) {
	err := &CLINotFoundError{
		SearchedPaths: []string{"/usr/bin/agent", "/opt/bin/agent"},
	}

	require.Equal(t, "agent CLI not found in: [/usr/bin/agent /opt/bin/agent]", err.Error())
	require.True(t, err.IsAgentSessionError())
}

func TestSpawnError(t *testing.T) {
	root := errors.New("exec format error")

	t.Run("with path", func(t *testing.T) {
		err := &SpawnError{Path: "/bin/agent", Err: root}

		require.Equal(t, "spawn agent process /bin/agent: exec format error", err.Error())
		require.ErrorIs(t, err, root)
	})

	t.Run("without path", func(t *testing.T) {
		err := &SpawnError{Err: root}

		require.Equal(t, "spawn agent process: exec format error", err.Error())
	})
}

func TestTransportClosedError(t *testing.T) {
	t.Run("matches sentinel", func(t *testing.T) {
		err := &TransportClosedError{ExitCode: 1}

		require.ErrorIs(t, err, ErrTransportClosed)
		require.Equal(t, "transport closed (exit 1)", err.Error())
	})

	t.Run("includes cause and stderr", func(t *testing.T) {
		root := errors.New("broken pipe")
		err := &TransportClosedError{ExitCode: 2, Stderr: "boom", Err: root}

		require.Equal(t, "transport closed (exit 2): broken pipe\nstderr: boom", err.Error())
		require.ErrorIs(t, err, root)
		require.ErrorIs(t, err, ErrTransportClosed)
	})

	t.Run("wrapped", func(t *testing.T) {
		err := fmt.Errorf("read loop: %w", &TransportClosedError{ExitCode: 137})

		closed, ok := errors.AsType[*TransportClosedError](err)
		require.True(t, ok)
		require.Equal(t, 137, closed.ExitCode)
	})
}

func TestMalformedMessageError(t *testing.T) {
	root := errors.New("unexpected end of JSON input")
	err := &MalformedMessageError{Frame: `{"type":`, Err: root}

	require.Equal(t, "malformed message: unexpected end of JSON input", err.Error())
	require.ErrorIs(t, err, root)
	require.True(t, err.IsAgentSessionError())
}

func TestFrameTooLargeError(t *testing.T) {
	err := &FrameTooLargeError{Size: 2048, Limit: 1024}

	require.Equal(t, "frame too large: 2048 bytes exceeds limit of 1024", err.Error())
}

func TestControlError(t *testing.T) {
	err := &ControlError{RequestID: "req_1_x", Subtype: "interrupt", Message: "nothing running"}

	require.Equal(t, "control request req_1_x (interrupt) failed: nothing running", err.Error())
}

func TestIsLocal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"malformed", &MalformedMessageError{Err: errors.New("x")}, true},
		{"wrapped malformed", fmt.Errorf("decode: %w", &MalformedMessageError{Err: errors.New("x")}), true},
		{"too large", &FrameTooLargeError{Size: 2, Limit: 1}, true},
		{"transport", &TransportClosedError{}, false},
		{"timeout", ErrRequestTimeout, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsLocal(tt.err))
		})
	}
}

func TestAgentSessionErrorMarker(t *testing.T) {
	var target AgentSessionError

	err := fmt.Errorf("outer: %w", &SpawnError{Err: errors.New("x")})
	require.ErrorAs(t, err, &target)
}
