package protocol

import (
	"encoding/binary"
	"errors"
	"strings"
)

const (
	// FileIDFieldSize is the fixed width of the file id field in a chunk
	// header. A canonical UUID string is exactly this long; shorter ids are
	// space-padded, longer ones truncated.
	FileIDFieldSize = 36
	// ChunkHeaderSize is the constant length of a chunk frame header:
	// file id field plus two 4-byte little-endian counters.
	ChunkHeaderSize = FileIDFieldSize + 4 + 4
	// DefaultChunkSize is the payload size each file is sliced into.
	DefaultChunkSize = 64 * 1024
)

var (
	// ErrMalformedFrame indicates a binary frame shorter than the chunk header.
	ErrMalformedFrame = errors.New("protocol: malformed chunk frame")
)

// Chunk is one decoded chunk frame.
type Chunk struct {
	FileID      string
	ChunkIndex  uint32
	TotalChunks uint32
	Payload     []byte
}

// EncodeChunk serializes a chunk into one wire frame: a 44-byte header
// followed by the payload.
func EncodeChunk(fileID string, chunkIndex, totalChunks uint32, payload []byte) []byte {
	frame := make([]byte, ChunkHeaderSize+len(payload))

	idField := frame[:FileIDFieldSize]
	for i := range idField {
		idField[i] = ' '
	}
	copy(idField, fileID)

	binary.LittleEndian.PutUint32(frame[FileIDFieldSize:], chunkIndex)
	binary.LittleEndian.PutUint32(frame[FileIDFieldSize+4:], totalChunks)
	copy(frame[ChunkHeaderSize:], payload)

	return frame
}

// DecodeChunk parses one wire frame back into its chunk fields. The file id
// field is trimmed of padding; the payload is everything after the header.
func DecodeChunk(frame []byte) (Chunk, error) {
	if len(frame) < ChunkHeaderSize {
		return Chunk{}, ErrMalformedFrame
	}

	return Chunk{
		FileID:      strings.TrimRight(string(frame[:FileIDFieldSize]), " "),
		ChunkIndex:  binary.LittleEndian.Uint32(frame[FileIDFieldSize:]),
		TotalChunks: binary.LittleEndian.Uint32(frame[FileIDFieldSize+4:]),
		Payload:     frame[ChunkHeaderSize:],
	}, nil
}

// ChunkCount returns ceil(size / chunkSize) for a file of the given size.
func ChunkCount(size int64, chunkSize int) uint32 {
	if size <= 0 || chunkSize <= 0 {
		return 0
	}
	chunks := size / int64(chunkSize)
	if size%int64(chunkSize) != 0 {
		chunks++
	}
	return uint32(chunks)
}
