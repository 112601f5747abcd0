// Package signaling carries session negotiation payloads between two peers
// through a relay that forwards messages by room id or peer handle without
// interpreting them.
package signaling

const (
	// TypeJoinRoom registers the sender under a shared room id.
	TypeJoinRoom = "join-room"
	// TypeLeaveRoom unregisters the sender from its room.
	TypeLeaveRoom = "leave-room"
	// TypeUserJoined notifies the first participant that a second one
	// joined the same room.
	TypeUserJoined = "user-joined"
	// TypeOffer carries a session description from the initiator.
	TypeOffer = "offer"
	// TypeAnswer carries a session description from the responder.
	TypeAnswer = "answer"
	// TypeICECandidate carries one connectivity candidate blob.
	TypeICECandidate = "ice-candidate"
)

// Message is the relay wire format, used in both directions. From is the
// sending peer's handle; To targets a specific peer handle for forwarded
// payloads. The relay never interprets SDP or Candidate.
type Message struct {
	Type      string `json:"type"`
	Room      string `json:"room,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	SDP       string `json:"sdp,omitempty"`
	Candidate string `json:"candidate,omitempty"`
}
