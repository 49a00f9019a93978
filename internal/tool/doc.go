// Package tool hosts caller-defined tools inside the client process.
//
// Tools are registered on a Registry before connect; the Registry is frozen
// once the session starts. The Bridge answers the agent's tool requests, both
// the direct call_tool control request and JSON-RPC messages addressed to the
// in-process server through mcp_message. A failing or panicking handler turns
// into a tool error result; it never ends the session.
package tool
