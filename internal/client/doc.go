// Package client implements the stateful session client.
//
// A Client owns at most one live connection at a time. Connect starts the
// transport, the protocol controller, and a dispatch goroutine that feeds
// assistant fragments through the assembler before handing messages to the
// caller. Disconnect tears all of it down; the Client may then connect again
// with a new session id.
package client
