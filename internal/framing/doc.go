// Package framing implements newline-delimited JSON framing for the agent's
// stdin and stdout streams.
package framing
