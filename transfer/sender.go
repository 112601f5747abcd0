package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"peerdrop/protocol"
	"peerdrop/transport"
)

const (
	// DefaultHighWaterMark pauses sending once this many bytes sit in the
	// channel's outbound buffer.
	DefaultHighWaterMark = 4 * 1024 * 1024
	// DefaultDrainDelay is how long the sender sleeps between buffer depth
	// checks while paused.
	DefaultDrainDelay = 50 * time.Millisecond
)

var (
	// ErrChannelUnavailable indicates a send was attempted without an open
	// byte channel.
	ErrChannelUnavailable = errors.New("transfer: byte channel not open")
)

// SenderOptions tunes slicing and flow control. Zero values pick defaults.
type SenderOptions struct {
	ChunkSize     int
	HighWaterMark uint64
	DrainDelay    time.Duration
}

// Sender streams files over an open byte channel one at a time, slicing
// each into fixed-size chunks and pausing whenever the channel's outbound
// buffer exceeds the high-water mark.
type Sender struct {
	channel  transport.Channel
	options  SenderOptions
	progress func(ProgressSample)
	now      func() time.Time
}

// NewSender wraps an open channel. The progress callback may be nil.
func NewSender(channel transport.Channel, options SenderOptions, progress func(ProgressSample)) *Sender {
	if options.ChunkSize <= 0 {
		options.ChunkSize = protocol.DefaultChunkSize
	}
	if options.HighWaterMark == 0 {
		options.HighWaterMark = DefaultHighWaterMark
	}
	if options.DrainDelay <= 0 {
		options.DrainDelay = DefaultDrainDelay
	}
	return &Sender{
		channel:  channel,
		options:  options,
		progress: progress,
		now:      time.Now,
	}
}

// Announce sends the batch descriptor list as one control message. It must
// be called once per batch, before the first chunk of the batch.
func (s *Sender) Announce(files []protocol.FileDescriptor) error {
	if s.channel == nil {
		return ErrChannelUnavailable
	}

	payload, err := protocol.EncodeControl(protocol.FileAnnounce{
		Type:  protocol.TypeFileAnnounce,
		Files: files,
	})
	if err != nil {
		return err
	}
	if err := s.channel.SendText(string(payload)); err != nil {
		return fmt.Errorf("send file announce: %w", err)
	}
	return nil
}

// SendFile slices source into chunks and streams them in index order,
// emitting a progress sample per chunk and one final completed sample. A
// read failure aborts this file only and is returned wrapped.
func (s *Sender) SendFile(ctx context.Context, descriptor protocol.FileDescriptor, source io.Reader) error {
	if s.channel == nil {
		return ErrChannelUnavailable
	}

	totalChunks := protocol.ChunkCount(descriptor.SizeBytes, s.options.ChunkSize)
	if totalChunks == 0 {
		// A zero-byte file still travels as one empty chunk so the
		// receiver can complete it.
		totalChunks = 1
	}
	state := TransferState{TotalBytes: descriptor.SizeBytes, StartedAt: s.now()}
	buffer := make([]byte, s.options.ChunkSize)

	for chunkIndex := uint32(0); chunkIndex < totalChunks; chunkIndex++ {
		if err := s.waitForDrain(ctx); err != nil {
			return err
		}

		sliceSize := int64(s.options.ChunkSize)
		if remaining := descriptor.SizeBytes - state.BytesTransferred; remaining < sliceSize {
			sliceSize = remaining
		}
		slice := buffer[:sliceSize]
		if _, err := io.ReadFull(source, slice); err != nil {
			return fmt.Errorf("read source %q chunk %d: %w", descriptor.Name, chunkIndex, err)
		}

		frame := protocol.EncodeChunk(descriptor.FileID, chunkIndex, totalChunks, slice)
		if err := s.channel.Send(frame); err != nil {
			return fmt.Errorf("send chunk %d: %w", chunkIndex, err)
		}

		state.BytesTransferred += sliceSize
		speed := Speed(state.BytesTransferred, s.now().Sub(state.StartedAt))
		s.emit(ProgressSample{
			FileID:           descriptor.FileID,
			Direction:        DirectionSend,
			BytesTransferred: state.BytesTransferred,
			TotalBytes:       state.TotalBytes,
			SpeedBytesPerSec: speed,
			EtaSeconds:       Eta(state.BytesTransferred, state.TotalBytes, speed),
		})
	}

	s.emit(ProgressSample{
		FileID:           descriptor.FileID,
		Direction:        DirectionSend,
		BytesTransferred: descriptor.SizeBytes,
		TotalBytes:       descriptor.SizeBytes,
		Completed:        true,
	})
	return nil
}

// waitForDrain suspends until the outbound buffer depth drops below the
// high-water mark or the context is cancelled.
func (s *Sender) waitForDrain(ctx context.Context) error {
	for s.channel.BufferedAmount() > s.options.HighWaterMark {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.options.DrainDelay):
		}
	}
	return nil
}

func (s *Sender) emit(sample ProgressSample) {
	if s.progress != nil {
		s.progress(sample)
	}
}
