// Package transport abstracts the negotiated point-to-point byte channel the
// engine sends frames through. The channel is ordered and reliable; its only
// backpressure signal is the queryable outbound buffer depth.
package transport

import "context"

// Message is one inbound channel message. Control messages arrive as text,
// chunk frames as binary, so the kind is carried by the transport rather
// than sniffed from payload bytes.
type Message struct {
	IsText bool
	Data   []byte
}

// Channel is an established bidirectional byte channel to the remote peer.
type Channel interface {
	// Send queues one binary message.
	Send(payload []byte) error
	// SendText queues one text message.
	SendText(payload string) error
	// BufferedAmount reports the number of bytes queued but not yet
	// handed to the network.
	BufferedAmount() uint64
	// Close releases the channel.
	Close() error
}

// Callbacks are invoked by a Transport as negotiation and channel events
// occur. All fields must be set before negotiation starts.
type Callbacks struct {
	// OnLocalCandidate fires for each locally gathered connectivity
	// candidate that must be relayed to the peer.
	OnLocalCandidate func(candidate string)
	// OnChannelOpen fires once the byte channel is usable.
	OnChannelOpen func(ch Channel)
	// OnMessage fires for each inbound channel message.
	OnMessage func(msg Message)
	// OnFailure fires once if the transport fails irrecoverably.
	OnFailure func(err error)
}

// Transport performs the session description exchange that establishes a
// Channel. One Transport backs exactly one session.
type Transport interface {
	// CreateOffer produces the local session description for the
	// initiating side.
	CreateOffer(ctx context.Context) (string, error)
	// HandleOffer consumes the remote offer on the responding side and
	// produces the local answer.
	HandleOffer(ctx context.Context, offer string) (string, error)
	// HandleAnswer consumes the remote answer on the initiating side.
	HandleAnswer(answer string) error
	// AddCandidate applies one remote connectivity candidate.
	AddCandidate(candidate string) error
	// Close tears the transport down along with any open channel.
	Close() error
}
