package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	log "github.com/sirupsen/logrus"
)

const dataChannelLabel = "peerdrop"

// ErrTransportFailed indicates the peer connection failed irrecoverably.
var ErrTransportFailed = errors.New("transport: peer connection failed")

// WebRTCConfig controls the underlying peer connection.
type WebRTCConfig struct {
	STUNServers []string
}

// WebRTCTransport negotiates a pion data channel and adapts it to the
// engine's Channel interface.
type WebRTCTransport struct {
	pc        *webrtc.PeerConnection
	callbacks Callbacks

	mu        sync.Mutex
	remoteSet bool
	pending   []string

	closeOnce sync.Once
}

// NewWebRTCTransport builds a transport around a fresh peer connection.
func NewWebRTCTransport(cfg WebRTCConfig, callbacks Callbacks) (*WebRTCTransport, error) {
	var iceServers []webrtc.ICEServer
	if len(cfg.STUNServers) > 0 {
		iceServers = append(iceServers, webrtc.ICEServer{URLs: cfg.STUNServers})
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	t := &WebRTCTransport{pc: pc, callbacks: callbacks}

	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		t.callbacks.OnLocalCandidate(candidate.ToJSON().Candidate)
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.WithFields(log.Fields{"state": state.String()}).Debug("peer connection state changed")
		if state == webrtc.PeerConnectionStateFailed {
			t.callbacks.OnFailure(ErrTransportFailed)
		}
	})

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != dataChannelLabel {
			log.WithFields(log.Fields{"label": dc.Label()}).Warn("ignoring unexpected data channel")
			return
		}
		t.bindChannel(dc)
	})

	return t, nil
}

// CreateOffer opens the data channel and returns the local offer SDP.
func (t *WebRTCTransport) CreateOffer(_ context.Context) (string, error) {
	dc, err := t.pc.CreateDataChannel(dataChannelLabel, nil)
	if err != nil {
		return "", fmt.Errorf("create data channel: %w", err)
	}
	t.bindChannel(dc)

	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("create offer: %w", err)
	}
	if err := t.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	return offer.SDP, nil
}

// HandleOffer applies the remote offer and returns the local answer SDP.
func (t *WebRTCTransport) HandleOffer(_ context.Context, offer string) (string, error) {
	if err := t.setRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  offer,
	}); err != nil {
		return "", err
	}

	answer, err := t.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("create answer: %w", err)
	}
	if err := t.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	return answer.SDP, nil
}

// HandleAnswer applies the remote answer on the offering side.
func (t *WebRTCTransport) HandleAnswer(answer string) error {
	return t.setRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer,
	})
}

// AddCandidate applies one remote connectivity candidate. Candidates that
// arrive before the remote description are held back and applied once it is
// set.
func (t *WebRTCTransport) AddCandidate(candidate string) error {
	t.mu.Lock()
	if !t.remoteSet {
		t.pending = append(t.pending, candidate)
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	if err := t.pc.AddICECandidate(webrtc.ICECandidateInit{Candidate: candidate}); err != nil {
		return fmt.Errorf("add ice candidate: %w", err)
	}
	return nil
}

// Close releases the peer connection and any open channel.
func (t *WebRTCTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		err = t.pc.Close()
	})
	return err
}

func (t *WebRTCTransport) setRemoteDescription(desc webrtc.SessionDescription) error {
	if err := t.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}

	t.mu.Lock()
	t.remoteSet = true
	pending := t.pending
	t.pending = nil
	t.mu.Unlock()

	for _, candidate := range pending {
		if err := t.pc.AddICECandidate(webrtc.ICECandidateInit{Candidate: candidate}); err != nil {
			log.WithFields(log.Fields{"error": err}).Warn("dropping queued ice candidate")
		}
	}
	return nil
}

func (t *WebRTCTransport) bindChannel(dc *webrtc.DataChannel) {
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		t.callbacks.OnMessage(Message{IsText: msg.IsString, Data: msg.Data})
	})
	dc.OnOpen(func() {
		t.callbacks.OnChannelOpen(&dataChannel{dc: dc})
	})
}

// dataChannel adapts *webrtc.DataChannel to the Channel interface.
type dataChannel struct {
	dc *webrtc.DataChannel
}

func (c *dataChannel) Send(payload []byte) error {
	return c.dc.Send(payload)
}

func (c *dataChannel) SendText(payload string) error {
	return c.dc.SendText(payload)
}

func (c *dataChannel) BufferedAmount() uint64 {
	return c.dc.BufferedAmount()
}

func (c *dataChannel) Close() error {
	return c.dc.Close()
}
