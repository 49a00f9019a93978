// Package subprocess runs the agent binary and speaks to it over its stdio.
//
// Process owns one child process: stdin for outbound frames, stdout for
// inbound frames, and stderr drained on its own goroutine. CLITransport
// composes a Process with binary discovery and argv construction and
// implements config.Transport.
package subprocess
