package signaling

// Client is the capability a session uses to exchange signaling messages.
// Implementations must deliver inbound relay messages on Events until the
// client closes; the channel is closed on terminal failure or Close.
type Client interface {
	// Handle returns this participant's own relay handle.
	Handle() string
	// JoinRoom registers under the shared room id.
	JoinRoom(room string) error
	// LeaveRoom unregisters from the joined room.
	LeaveRoom() error
	// SendOffer forwards a session description to the target handle.
	SendOffer(to, sdp string) error
	// SendAnswer forwards a session description to the target handle.
	SendAnswer(to, sdp string) error
	// SendCandidate forwards one connectivity candidate to the target handle.
	SendCandidate(to, candidate string) error
	// Events yields inbound relay messages.
	Events() <-chan Message
	// Close releases the relay connection.
	Close() error
}
