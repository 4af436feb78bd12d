package ftps

// SessionState is the position of the session in the login state machine.
// The transport mode (plain or secured) is tracked separately.
type SessionState int

const (
	// StateConnected: greeting received, not logged in.
	StateConnected SessionState = iota

	// StateAuthenticated: credentials accepted, session setup pending.
	StateAuthenticated

	// StateReady: navigation and transfer commands are accepted.
	StateReady

	// StateClosed: QUIT sent, Close called, or a fatal error occurred.
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s SessionState) CanTransitionTo(next SessionState) bool {
	switch s {
	case StateConnected:
		return next == StateAuthenticated || next == StateClosed
	case StateAuthenticated:
		return next == StateReady || next == StateClosed
	case StateReady:
		return next == StateClosed
	default:
		return false
	}
}

// in reports whether s is one of states.
func (s SessionState) in(states ...SessionState) bool {
	for _, st := range states {
		if s == st {
			return true
		}
	}
	return false
}
