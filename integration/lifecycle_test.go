//go:build integration

package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	agentsession "github.com/wagiedev/agentsession-go"
)

func connect(ctx context.Context, t *testing.T, opts ...agentsession.Option) agentsession.Client {
	t.Helper()

	client := agentsession.NewClient()

	opts = append([]agentsession.Option{
		agentsession.WithModel("haiku"),
		agentsession.WithPermissionMode("bypassPermissions"),
		agentsession.WithMaxTurns(3),
	}, opts...)

	if err := client.Connect(ctx, opts...); err != nil {
		skipIfCLINotInstalled(t, err)
		t.Fatalf("Connect failed: %v", err)
	}

	t.Cleanup(func() { _ = client.Disconnect() })

	return client
}

// TestSession_SimpleTurn sends one prompt and reads through the result.
func TestSession_SimpleTurn(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	client := connect(ctx, t)

	require.NoError(t, client.Send(ctx, "What is 40 + 2? Reply with just the number."))

	var (
		text   string
		result *agentsession.ResultMessage
	)

	for msg, err := range client.ReceiveResponse(ctx) {
		require.NoError(t, err)

		switch m := msg.(type) {
		case *agentsession.AssistantMessage:
			text += m.Text()
		case *agentsession.ResultMessage:
			result = m
		}
	}

	require.NotNil(t, result, "should receive a result message")
	require.False(t, result.IsError)
	require.True(t, contains42(text), "expected 42 in %q", text)
}

// TestSession_DisconnectMidStream disconnects while the agent is still
// writing and checks the client ends up disconnected without hanging.
func TestSession_DisconnectMidStream(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	client := connect(ctx, t)

	require.NoError(t, client.Send(ctx, "Write a short story about a robot. Include at least 3 paragraphs."))

	for _, err := range client.ReceiveMessages(ctx) {
		require.NoError(t, err)

		break
	}

	done := make(chan error, 1)

	go func() { done <- client.Disconnect() }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("Disconnect did not return")
	}

	require.Equal(t, agentsession.StateDisconnected, client.State())
}

// TestSession_Interrupt interrupts a long turn and expects the turn to end.
func TestSession_Interrupt(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	client := connect(ctx, t)

	require.NoError(t, client.Send(ctx, "Count from 1 to 500, one number per line."))
	require.NoError(t, client.Interrupt(ctx))

	for msg, err := range client.ReceiveResponse(ctx) {
		require.NoError(t, err)

		if _, ok := msg.(*agentsession.ResultMessage); ok {
			return
		}
	}
}

// TestSession_InProcessTool checks the agent can call a registered tool.
func TestSession_InProcessTool(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	called := make(chan struct{}, 1)

	add := agentsession.NewTool("add", "Add two numbers",
		agentsession.SimpleSchema(map[string]string{"a": "float64", "b": "float64"}),
		func(_ context.Context, req *agentsession.CallToolRequest) (*agentsession.CallToolResult, error) {
			args, err := agentsession.ParseArguments(req)
			if err != nil {
				return agentsession.ErrorResult(err.Error()), nil
			}

			select {
			case called <- struct{}{}:
			default:
			}

			a, _ := args["a"].(float64)
			b, _ := args["b"].(float64)

			return agentsession.TextResult(fmt.Sprint(a + b)), nil
		},
	)

	client := connect(ctx, t,
		agentsession.WithTools(add),
		agentsession.WithAllowedTools("mcp__local__add"),
	)

	require.NoError(t, client.Send(ctx, "Use the add tool to add 40 and 2, then tell me the answer."))

	var text string

	for msg, err := range client.ReceiveResponse(ctx) {
		require.NoError(t, err)

		if m, ok := msg.(*agentsession.AssistantMessage); ok {
			text += m.Text()
		}
	}

	select {
	case <-called:
	default:
		t.Fatal("tool was not called")
	}

	require.True(t, contains42(text), "expected 42 in %q", text)
}
