package client

// State is the lifecycle state of a Client.
type State int

const (
	// StateDisconnected means no session is live. This is the initial state.
	StateDisconnected State = iota
	// StateConnecting means Connect is in progress.
	StateConnecting
	// StateConnected means the session is live.
	StateConnected
	// StateDisconnecting means Disconnect is tearing the session down.
	StateDisconnecting
	// StateFailed means Connect failed or the agent process went away.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
