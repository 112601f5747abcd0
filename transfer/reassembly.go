package transfer

import (
	"errors"
	"time"

	"peerdrop/protocol"
)

var (
	// ErrChunkIndexRange indicates a chunk index outside 0..totalChunks-1.
	ErrChunkIndexRange = errors.New("transfer: chunk index out of range")
	// ErrZeroChunkCount indicates a frame declaring a file of zero chunks.
	ErrZeroChunkCount = errors.New("transfer: zero total chunk count")
)

// CompletedFile carries the reconstructed bytes of a fully received file.
type CompletedFile struct {
	FileID string
	Data   []byte
}

// reassemblyEntry accumulates the chunks of one file in flight. It is sparse
// until every index is populated, then concatenated and discarded.
type reassemblyEntry struct {
	chunks      [][]byte
	received    []bool
	totalChunks uint32
	populated   uint32
	state       TransferState
}

// Reassembler rebuilds files from chunk frames arriving in any order,
// possibly duplicated, possibly interleaved across files. It is driven by a
// single goroutine and keeps all per-file state in one table keyed by file
// id.
type Reassembler struct {
	entries map[string]*reassemblyEntry
	now     func() time.Time
}

// NewReassembler returns an empty reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{
		entries: make(map[string]*reassemblyEntry),
		now:     time.Now,
	}
}

// OnChunk consumes one decoded chunk. It always returns a fresh progress
// sample; when the chunk completes its file it also returns the
// reconstructed bytes and drops all state held for that file id.
//
// The sample's TotalBytes is an estimate derived from the chunks seen so
// far; only the completion sample reports the exact cumulative byte count.
func (r *Reassembler) OnChunk(chunk protocol.Chunk) (ProgressSample, *CompletedFile, error) {
	if chunk.TotalChunks == 0 {
		return ProgressSample{}, nil, ErrZeroChunkCount
	}
	if chunk.ChunkIndex >= chunk.TotalChunks {
		return ProgressSample{}, nil, ErrChunkIndexRange
	}

	entry, ok := r.entries[chunk.FileID]
	if !ok {
		entry = &reassemblyEntry{
			chunks:      make([][]byte, chunk.TotalChunks),
			received:    make([]bool, chunk.TotalChunks),
			totalChunks: chunk.TotalChunks,
			state:       TransferState{StartedAt: r.now()},
		}
		r.entries[chunk.FileID] = entry
	}
	if chunk.ChunkIndex >= entry.totalChunks {
		return ProgressSample{}, nil, ErrChunkIndexRange
	}

	payload := append([]byte(nil), chunk.Payload...)
	if entry.received[chunk.ChunkIndex] {
		// Redelivery overwrites in place without recounting.
		entry.state.BytesTransferred += int64(len(payload)) - int64(len(entry.chunks[chunk.ChunkIndex]))
	} else {
		entry.received[chunk.ChunkIndex] = true
		entry.populated++
		entry.state.BytesTransferred += int64(len(payload))
	}
	entry.chunks[chunk.ChunkIndex] = payload

	// The exact size is unknown until the last chunk; estimate from the
	// chunks seen so far.
	entry.state.TotalBytes = entry.state.BytesTransferred *
		int64(entry.totalChunks) / int64(chunk.ChunkIndex+1)

	if entry.populated == entry.totalChunks {
		data := make([]byte, 0, entry.state.BytesTransferred)
		for _, fragment := range entry.chunks {
			data = append(data, fragment...)
		}
		delete(r.entries, chunk.FileID)

		sample := ProgressSample{
			FileID:           chunk.FileID,
			Direction:        DirectionReceive,
			BytesTransferred: int64(len(data)),
			TotalBytes:       int64(len(data)),
			Completed:        true,
		}
		return sample, &CompletedFile{FileID: chunk.FileID, Data: data}, nil
	}

	elapsed := r.now().Sub(entry.state.StartedAt)
	speed := Speed(entry.state.BytesTransferred, elapsed)
	sample := ProgressSample{
		FileID:           chunk.FileID,
		Direction:        DirectionReceive,
		BytesTransferred: entry.state.BytesTransferred,
		TotalBytes:       entry.state.TotalBytes,
		SpeedBytesPerSec: speed,
		EtaSeconds:       Eta(entry.state.BytesTransferred, entry.state.TotalBytes, speed),
	}
	return sample, nil, nil
}

// InFlight reports how many files currently have partial state.
func (r *Reassembler) InFlight() int {
	return len(r.entries)
}

// Reset discards all partial per-file state, dropping any partially
// received files.
func (r *Reassembler) Reset() {
	r.entries = make(map[string]*reassemblyEntry)
}
