package signaling

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// WSClient talks to a websocket relay. One connection serves one session.
type WSClient struct {
	conn   *websocket.Conn
	handle string

	writeMu sync.Mutex

	room   string
	events chan Message

	closeOnce sync.Once
}

// Dial connects to the relay and starts the read loop. The handle
// identifies this participant in every message it sends.
func Dial(url, handle string) (*WSClient, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay %q: %w", url, err)
	}

	c := &WSClient{
		conn:   conn,
		handle: handle,
		events: make(chan Message, 64),
	}
	go c.readLoop()
	return c, nil
}

// Handle returns this participant's relay handle.
func (c *WSClient) Handle() string {
	return c.handle
}

// JoinRoom registers under the shared room id.
func (c *WSClient) JoinRoom(room string) error {
	c.room = room
	return c.send(Message{Type: TypeJoinRoom, Room: room, From: c.handle})
}

// LeaveRoom unregisters from the joined room.
func (c *WSClient) LeaveRoom() error {
	if c.room == "" {
		return nil
	}
	return c.send(Message{Type: TypeLeaveRoom, Room: c.room, From: c.handle})
}

// SendOffer forwards a session description to the target handle.
func (c *WSClient) SendOffer(to, sdp string) error {
	return c.send(Message{Type: TypeOffer, To: to, From: c.handle, SDP: sdp})
}

// SendAnswer forwards a session description to the target handle.
func (c *WSClient) SendAnswer(to, sdp string) error {
	return c.send(Message{Type: TypeAnswer, To: to, From: c.handle, SDP: sdp})
}

// SendCandidate forwards one connectivity candidate to the target handle.
func (c *WSClient) SendCandidate(to, candidate string) error {
	return c.send(Message{Type: TypeICECandidate, To: to, From: c.handle, Candidate: candidate})
}

// Events yields inbound relay messages until the connection ends.
func (c *WSClient) Events() <-chan Message {
	return c.events
}

// Close releases the relay connection.
func (c *WSClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}

func (c *WSClient) send(msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send %s to relay: %w", msg.Type, err)
	}
	return nil
}

func (c *WSClient) readLoop() {
	defer close(c.events)

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithFields(log.Fields{"error": err}).Warn("relay connection lost")
			}
			return
		}
		if msg.Type == "" {
			log.Warn("dropping relay message without type")
			continue
		}

		select {
		case c.events <- msg:
		default:
			log.WithFields(log.Fields{"type": msg.Type}).Warn("relay event queue full, dropping message")
		}
	}
}
