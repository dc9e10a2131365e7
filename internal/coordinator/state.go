// Package coordinator implements ShareFlow's connection state machine
// (spec §4.7): discovery, the pending-connection handshake, and
// routing captured/received input once a session is established.
//
// The event loop is grounded on dantte-lp-gobfd's
// internal/bfd/session.go Run/runLoop shape: one goroutine owns all
// state, and every other goroutine (discovery listener, session
// accept loop, control-bus hub, capture hook, session reader) hands
// the coordinator work by a send into a channel it selects on, rather
// than by taking a lock. The discovery listener, control-bus hub and
// capture hook send without blocking and drop on a full channel; the
// accept loop, the outgoing dial and the session reader block until
// the event loop receives.
package coordinator

// State is one of the four connection states spec §4.7 names.
type State int

const (
	StateIdle State = iota
	StateOutgoingPending
	StateIncomingPending
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOutgoingPending:
		return "outgoing_pending"
	case StateIncomingPending:
		return "incoming_pending"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Role distinguishes which side of a connected session captures and
// sends input versus replays it (spec §4.7).
type Role int

const (
	RoleNone Role = iota
	RoleController
	RoleControlled
)
