package session

// State represents the lifecycle state of a session
type State int

const (
	// StateUninitialized indicates construction has not begun
	StateUninitialized State = iota
	// StateStarting indicates the server and forwarder are being brought up
	StateStarting
	// StateReady indicates the server is confirmed reachable
	StateReady
	// StateClosed indicates all owned resources have been released
	StateClosed
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
