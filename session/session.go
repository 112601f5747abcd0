package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"peerdrop/protocol"
	"peerdrop/signaling"
	"peerdrop/transfer"
	"peerdrop/transport"
)

const sessionIDLength = 8

var (
	// ErrNegotiationFailed indicates the transport reported irrecoverable
	// failure; the session is terminal and must be recreated.
	ErrNegotiationFailed = errors.New("session: negotiation failed")
)

// NewID returns a short shared session token two endpoints can rendezvous
// on.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:sessionIDLength]
}

// TransportFactory builds the transport a session owns, wired to the
// session's event callbacks.
type TransportFactory func(callbacks transport.Callbacks) (transport.Transport, error)

// Options tunes the session's send path. Zero values pick defaults.
type Options struct {
	ChunkSize     int
	HighWaterMark uint64
}

type eventKind int

const (
	evChannelOpen eventKind = iota
	evMessage
	evLocalCandidate
	evFailure
)

type event struct {
	kind      eventKind
	channel   transport.Channel
	message   transport.Message
	candidate string
	err       error
}

// Session drives one file-sharing interaction between two endpoints that
// share a session id. Signaling messages, transport readiness, and inbound
// frames are delivered as discrete events to a single actor goroutine; only
// the outbound send loop runs beside it, touching nothing but its own
// transfer state and the channel.
type Session struct {
	id       string
	role     Role
	relay    signaling.Client
	observer Observer
	options  Options

	transport transport.Transport

	// Actor-owned state, mutated only by the run loop.
	state       State
	peerHandle  string
	channel     transport.Channel
	queued      []OutgoingFile
	announced   map[string]protocol.FileDescriptor
	reassembler *transfer.Reassembler

	events chan event

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup

	log *log.Entry
}

// New builds a session around an injected relay client and transport
// factory. Nothing happens until Start.
func New(id string, role Role, relay signaling.Client, newTransport TransportFactory, observer Observer, options Options) (*Session, error) {
	if id == "" {
		return nil, errors.New("session: id is required")
	}
	if relay == nil {
		return nil, errors.New("session: relay client is required")
	}
	if observer == nil {
		return nil, errors.New("session: observer is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:          id,
		role:        role,
		relay:       relay,
		observer:    observer,
		options:     options,
		state:       StateIdle,
		announced:   make(map[string]protocol.FileDescriptor),
		reassembler: transfer.NewReassembler(),
		events:      make(chan event, 256),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
		log:         log.WithFields(log.Fields{"session": id, "role": role}),
	}

	t, err := newTransport(transport.Callbacks{
		OnLocalCandidate: func(candidate string) {
			s.post(event{kind: evLocalCandidate, candidate: candidate})
		},
		OnChannelOpen: func(ch transport.Channel) {
			s.post(event{kind: evChannelOpen, channel: ch})
		},
		OnMessage: func(msg transport.Message) {
			s.post(event{kind: evMessage, message: msg})
		},
		OnFailure: func(err error) {
			s.post(event{kind: evFailure, err: err})
		},
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create transport: %w", err)
	}
	s.transport = t

	return s, nil
}

// Queue adds files to send once the channel opens, in queue order. It must
// be called before Start; the whole batch is announced in one control
// message.
func (s *Session) Queue(files ...OutgoingFile) {
	s.queued = append(s.queued, files...)
}

// Start registers with the relay and begins driving the handshake.
func (s *Session) Start() error {
	if err := s.relay.JoinRoom(s.id); err != nil {
		return fmt.Errorf("join room %q: %w", s.id, err)
	}

	if s.role == RoleInitiator {
		s.setState(StateAwaitingPeer)
	}

	go s.run()
	return nil
}

// Close tears the session down: the send loop stops, the channel and
// transport are released, the relay registration is dropped, and all
// in-flight per-file state is discarded. Safe to call at any point after
// Start, including mid-transfer, and more than once, but not from an
// observer callback.
func (s *Session) Close() error {
	s.cancel()
	<-s.done
	return nil
}

// Done is closed once the session has fully torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) post(ev event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

func (s *Session) run() {
	defer close(s.done)

	relayEvents := s.relay.Events()
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown(StateClosed, nil)
			return
		case msg, ok := <-relayEvents:
			if !ok {
				if s.state != StateOpen {
					s.shutdown(StateFailed, fmt.Errorf("%w: relay connection lost", ErrNegotiationFailed))
					return
				}
				// Channel already established; signaling is no longer needed.
				relayEvents = nil
				continue
			}
			s.handleRelay(msg)
			if s.terminal() {
				return
			}
		case ev := <-s.events:
			s.handleEvent(ev)
			if s.terminal() {
				return
			}
		}
	}
}

// terminal reports whether the session reached a state it can never leave.
func (s *Session) terminal() bool {
	return s.state == StateClosed || s.state == StateFailed
}

func (s *Session) handleRelay(msg signaling.Message) {
	switch msg.Type {
	case signaling.TypeUserJoined:
		if s.role != RoleInitiator || s.state != StateAwaitingPeer {
			s.logStale(msg)
			return
		}
		s.peerHandle = msg.From
		offer, err := s.transport.CreateOffer(s.ctx)
		if err != nil {
			s.fail(fmt.Errorf("%w: %v", ErrNegotiationFailed, err))
			return
		}
		if err := s.relay.SendOffer(s.peerHandle, offer); err != nil {
			s.fail(fmt.Errorf("%w: %v", ErrNegotiationFailed, err))
			return
		}
		s.setState(StateNegotiating)

	case signaling.TypeOffer:
		if s.role != RoleResponder || s.state != StateIdle {
			s.logStale(msg)
			return
		}
		s.peerHandle = msg.From
		answer, err := s.transport.HandleOffer(s.ctx, msg.SDP)
		if err != nil {
			s.fail(fmt.Errorf("%w: %v", ErrNegotiationFailed, err))
			return
		}
		if err := s.relay.SendAnswer(s.peerHandle, answer); err != nil {
			s.fail(fmt.Errorf("%w: %v", ErrNegotiationFailed, err))
			return
		}
		s.setState(StateNegotiating)

	case signaling.TypeAnswer:
		if s.peerHandle == "" || msg.From != s.peerHandle || s.state != StateNegotiating {
			s.logStale(msg)
			return
		}
		if err := s.transport.HandleAnswer(msg.SDP); err != nil {
			s.fail(fmt.Errorf("%w: %v", ErrNegotiationFailed, err))
		}

	case signaling.TypeICECandidate:
		if s.peerHandle == "" || msg.From != s.peerHandle {
			s.logStale(msg)
			return
		}
		if err := s.transport.AddCandidate(msg.Candidate); err != nil {
			s.log.WithFields(log.Fields{"error": err}).Warn("dropping remote candidate")
		}

	default:
		s.log.WithFields(log.Fields{"type": msg.Type}).Debug("ignoring relay message")
	}
}

// handleEvent processes one transport event.
func (s *Session) handleEvent(ev event) {
	switch ev.kind {
	case evLocalCandidate:
		if s.peerHandle == "" {
			s.log.Warn("local candidate gathered before peer known, dropping")
			return
		}
		if err := s.relay.SendCandidate(s.peerHandle, ev.candidate); err != nil {
			s.log.WithFields(log.Fields{"error": err}).Warn("relaying local candidate failed")
		}

	case evChannelOpen:
		if s.state != StateNegotiating {
			s.log.WithFields(log.Fields{"state": s.state}).Warn("ignoring channel open outside negotiation")
			return
		}
		s.channel = ev.channel
		s.setState(StateOpen)
		if len(s.queued) > 0 {
			s.startSender()
		}

	case evMessage:
		if ev.message.IsText {
			s.handleControl(ev.message.Data)
		} else {
			s.handleChunkFrame(ev.message.Data)
		}

	case evFailure:
		s.observer.OnError(fmt.Errorf("%w: %v", ErrNegotiationFailed, ev.err))
		s.shutdown(StateFailed, nil)
	}
}

func (s *Session) handleControl(payload []byte) {
	msgType, err := protocol.DecodeControlType(payload)
	if err != nil {
		s.log.WithFields(log.Fields{"error": err}).Warn("dropping undecodable control message")
		return
	}

	switch msgType {
	case protocol.TypeFileAnnounce:
		announce, err := protocol.DecodeFileAnnounce(payload)
		if err != nil {
			s.log.WithFields(log.Fields{"error": err}).Warn("dropping malformed file announce")
			return
		}
		for _, descriptor := range announce.Files {
			s.announced[descriptor.FileID] = descriptor
		}
		s.log.WithFields(log.Fields{"files": len(announce.Files)}).Info("incoming batch announced")
	default:
		s.log.WithFields(log.Fields{"type": msgType}).Debug("ignoring control message")
	}
}

func (s *Session) handleChunkFrame(frame []byte) {
	chunk, err := protocol.DecodeChunk(frame)
	if err != nil {
		// Malformed frames are dropped before reassembly ever sees them.
		s.log.WithFields(log.Fields{"size": len(frame)}).Warn("dropping malformed chunk frame")
		s.observer.OnError(err)
		return
	}

	sample, completed, err := s.reassembler.OnChunk(chunk)
	if err != nil {
		s.log.WithFields(log.Fields{"file": chunk.FileID, "error": err}).Warn("dropping chunk")
		s.observer.OnError(err)
		return
	}

	s.observer.OnFileProgress(sample)
	if completed != nil {
		descriptor, ok := s.announced[completed.FileID]
		if !ok {
			// Unannounced file; the id is all the metadata there is.
			descriptor = protocol.FileDescriptor{FileID: completed.FileID}
		}
		s.observer.OnFileReceived(ReceivedFile{
			Descriptor: descriptor,
			Data:       completed.Data,
		})
	}
}

func (s *Session) startSender() {
	sender := transfer.NewSender(s.channel, transfer.SenderOptions{
		ChunkSize:     s.options.ChunkSize,
		HighWaterMark: s.options.HighWaterMark,
	}, s.observer.OnFileProgress)

	files := s.queued
	descriptors := make([]protocol.FileDescriptor, len(files))
	for i, f := range files {
		descriptors[i] = f.Descriptor
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if err := sender.Announce(descriptors); err != nil {
			s.observer.OnError(err)
			return
		}
		for _, f := range files {
			if s.ctx.Err() != nil {
				return
			}
			source, err := f.Open()
			if err != nil {
				// Unreadable source aborts this file, not the batch.
				s.observer.OnError(fmt.Errorf("open source %q: %w", f.Descriptor.Name, err))
				continue
			}
			err = sender.SendFile(s.ctx, f.Descriptor, source)
			_ = source.Close()
			if err != nil {
				if s.ctx.Err() != nil {
					return
				}
				s.observer.OnError(err)
			}
		}
	}()
}

func (s *Session) fail(err error) {
	s.observer.OnError(err)
	s.shutdown(StateFailed, nil)
}

func (s *Session) shutdown(final State, err error) {
	if s.state == StateClosed || s.state == StateFailed {
		return
	}
	if err != nil {
		s.observer.OnError(err)
	}

	s.cancel()
	s.wg.Wait()

	if s.channel != nil {
		_ = s.channel.Close()
		s.channel = nil
	}
	_ = s.transport.Close()
	if leaveErr := s.relay.LeaveRoom(); leaveErr != nil {
		s.log.WithFields(log.Fields{"error": leaveErr}).Debug("leave room failed")
	}

	s.reassembler.Reset()
	s.queued = nil
	s.setState(final)
}

func (s *Session) setState(state State) {
	previous := s.state
	s.state = state
	s.log.WithFields(log.Fields{"from": previous, "to": state}).Info("session state changed")
	s.observer.OnStateChange(state.Coarse())
}

func (s *Session) logStale(msg signaling.Message) {
	s.log.WithFields(log.Fields{
		"type": msg.Type,
		"from": msg.From,
		"peer": s.peerHandle,
	}).Warn("ignoring signaling message from unrecognized peer or state")
}
