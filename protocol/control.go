package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// TypeFileAnnounce announces the batch of files about to be sent.
	TypeFileAnnounce = "file_announce"
)

var (
	// ErrInvalidControlType indicates the control message type is missing or unknown.
	ErrInvalidControlType = errors.New("protocol: invalid control message type")
)

// Control messages travel as text channel messages, chunk frames as binary
// ones, so the two kinds are distinguished by the transport-level message
// type rather than by sniffing payload bytes.

// Envelope identifies the control message type.
type Envelope struct {
	Type string `json:"type"`
}

// FileDescriptor describes one file in a batch. Immutable once announced.
type FileDescriptor struct {
	FileID    string `json:"file_id"`
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
	MimeType  string `json:"mime_type"`
}

// FileAnnounce is sent once per batch, before the first chunk frame.
type FileAnnounce struct {
	Type  string           `json:"type"`
	Files []FileDescriptor `json:"files"`
}

// EncodeControl marshals a control message to its wire form.
func EncodeControl(message any) ([]byte, error) {
	payload, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("marshal control message: %w", err)
	}
	return payload, nil
}

// DecodeControlType extracts the "type" field from a control payload.
func DecodeControlType(payload []byte) (string, error) {
	var envelope Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return "", fmt.Errorf("decode control envelope: %w", err)
	}
	if envelope.Type == "" {
		return "", ErrInvalidControlType
	}
	return envelope.Type, nil
}

// DecodeFileAnnounce parses a batch announcement.
func DecodeFileAnnounce(payload []byte) (FileAnnounce, error) {
	var announce FileAnnounce
	if err := json.Unmarshal(payload, &announce); err != nil {
		return FileAnnounce{}, fmt.Errorf("decode file announce: %w", err)
	}
	return announce, nil
}
