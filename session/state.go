package session

// Role determines which side of the signaling handshake a session drives.
type Role string

const (
	// RoleInitiator creates the offer once a peer joins the room.
	RoleInitiator Role = "initiator"
	// RoleResponder answers the first offer addressed to it.
	RoleResponder Role = "responder"
)

// State is the fine-grained lifecycle state of one session.
type State string

const (
	StateIdle         State = "IDLE"
	StateAwaitingPeer State = "AWAITING_PEER"
	StateNegotiating  State = "NEGOTIATING"
	StateOpen         State = "OPEN"
	StateClosed       State = "CLOSED"
	StateFailed       State = "FAILED"
)

// CoarseState is the externally observable connection state reported on
// every transition.
type CoarseState string

const (
	CoarseDisconnected CoarseState = "disconnected"
	CoarseConnecting   CoarseState = "connecting"
	CoarseConnected    CoarseState = "connected"
	CoarseFailed       CoarseState = "failed"
)

// Coarse maps a lifecycle state to its observable form.
func (s State) Coarse() CoarseState {
	switch s {
	case StateAwaitingPeer, StateNegotiating:
		return CoarseConnecting
	case StateOpen:
		return CoarseConnected
	case StateFailed:
		return CoarseFailed
	default:
		return CoarseDisconnected
	}
}
