// Package agentsession drives an agent CLI as a subprocess and speaks its
// line-delimited JSON protocol over stdin and stdout.
//
// A Client owns one session at a time. Connect spawns the agent, Send writes
// user messages, and ReceiveMessages or ReceiveResponse yield the typed
// messages the agent emits. Control requests such as Interrupt are
// correlated with their responses by request id.
//
// # Interactive Sessions
//
//	client := agentsession.NewClient()
//	defer client.Disconnect()
//
//	if err := client.Connect(ctx,
//	    agentsession.WithLogger(slog.Default()),
//	    agentsession.WithPermissionMode("acceptEdits"),
//	); err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := client.Send(ctx, "What is 2+2?"); err != nil {
//	    log.Fatal(err)
//	}
//
//	for msg, err := range client.ReceiveResponse(ctx) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    if m, ok := msg.(*agentsession.AssistantMessage); ok {
//	        fmt.Println(m.Text())
//	    }
//	}
//
// WithClient wraps Connect and Disconnect around a callback.
//
// # In-Process Tools
//
// Tools registered with WithTools run inside the caller's process. The agent
// invokes them through call_tool or mcp_message control requests:
//
//	add := agentsession.NewTool("add", "Add two numbers",
//	    agentsession.SimpleSchema(map[string]string{"a": "float64", "b": "float64"}),
//	    func(ctx context.Context, req *agentsession.CallToolRequest) (*agentsession.CallToolResult, error) {
//	        args, err := agentsession.ParseArguments(req)
//	        if err != nil {
//	            return agentsession.ErrorResult(err.Error()), nil
//	        }
//
//	        return agentsession.TextResult(fmt.Sprint(args["a"].(float64) + args["b"].(float64))), nil
//	    },
//	)
//
// # Error Handling
//
// Typed errors wrap their causes and support errors.Is and errors.AsType:
//
//	if err := client.Connect(ctx); err != nil {
//	    if notFound, ok := errors.AsType[*agentsession.CLINotFoundError](err); ok {
//	        log.Fatalf("agent CLI not installed, searched: %v", notFound.SearchedPaths)
//	    }
//	}
//
// A per-frame error (MalformedMessageError, FrameTooLargeError) is yielded by
// ReceiveMessages and the stream continues. A TransportClosedError ends it.
package agentsession
