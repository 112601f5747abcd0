package signaling

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// echoRelay upgrades a single connection and reflects every JSON message
// back to its sender, recording what it saw.
type echoRelay struct {
	upgrader websocket.Upgrader
	received chan Message

	mu    sync.Mutex
	conns []*websocket.Conn
}

func newEchoRelay() *echoRelay {
	return &echoRelay{received: make(chan Message, 16)}
}

// closeConns drops every upgraded connection. httptest's
// CloseClientConnections cannot do this: the server stops tracking
// connections once they are hijacked, which gorilla's Upgrade does.
func (r *echoRelay) closeConns() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, conn := range r.conns {
		conn.Close()
	}
	r.conns = nil
}

func (r *echoRelay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}
	r.mu.Lock()
	r.conns = append(r.conns, conn)
	r.mu.Unlock()
	defer conn.Close()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		r.received <- msg
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func waitMessage(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatal("channel closed before message arrived")
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for relay message")
	}
	return Message{}
}

func TestJoinRoomRoundTrip(t *testing.T) {
	relay := newEchoRelay()
	server := httptest.NewServer(relay)
	defer server.Close()

	client, err := Dial(wsURL(server), "alice")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Close()

	if err := client.JoinRoom("room-1"); err != nil {
		t.Fatalf("JoinRoom failed: %v", err)
	}

	sent := waitMessage(t, relay.received)
	if sent.Type != TypeJoinRoom || sent.Room != "room-1" || sent.From != "alice" {
		t.Fatalf("unexpected join message: %+v", sent)
	}

	echoed := waitMessage(t, client.Events())
	if echoed.Type != TypeJoinRoom || echoed.Room != "room-1" {
		t.Fatalf("unexpected echoed message: %+v", echoed)
	}
}

func TestOfferAnswerCandidateCarryPayloads(t *testing.T) {
	relay := newEchoRelay()
	server := httptest.NewServer(relay)
	defer server.Close()

	client, err := Dial(wsURL(server), "alice")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Close()

	if err := client.SendOffer("bob", "offer-sdp"); err != nil {
		t.Fatalf("SendOffer failed: %v", err)
	}
	if err := client.SendAnswer("bob", "answer-sdp"); err != nil {
		t.Fatalf("SendAnswer failed: %v", err)
	}
	if err := client.SendCandidate("bob", "candidate-blob"); err != nil {
		t.Fatalf("SendCandidate failed: %v", err)
	}

	offer := waitMessage(t, client.Events())
	if offer.Type != TypeOffer || offer.To != "bob" || offer.From != "alice" || offer.SDP != "offer-sdp" {
		t.Fatalf("unexpected offer: %+v", offer)
	}
	answer := waitMessage(t, client.Events())
	if answer.Type != TypeAnswer || answer.SDP != "answer-sdp" {
		t.Fatalf("unexpected answer: %+v", answer)
	}
	candidate := waitMessage(t, client.Events())
	if candidate.Type != TypeICECandidate || candidate.Candidate != "candidate-blob" {
		t.Fatalf("unexpected candidate: %+v", candidate)
	}
}

func TestLeaveRoomWithoutJoinIsNoOp(t *testing.T) {
	relay := newEchoRelay()
	server := httptest.NewServer(relay)
	defer server.Close()

	client, err := Dial(wsURL(server), "alice")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Close()

	if err := client.LeaveRoom(); err != nil {
		t.Fatalf("LeaveRoom before join should be a no-op, got %v", err)
	}

	select {
	case msg := <-relay.received:
		t.Fatalf("relay received unexpected message: %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEventsChannelClosesWhenServerDisconnects(t *testing.T) {
	relay := newEchoRelay()
	server := httptest.NewServer(relay)

	client, err := Dial(wsURL(server), "alice")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Close()

	relay.closeConns()

	select {
	case _, ok := <-client.Events():
		if ok {
			t.Fatal("expected closed events channel, got a message")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("events channel did not close after disconnect")
	}
}
