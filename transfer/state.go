package transfer

import "time"

const (
	// DirectionSend marks progress for an outbound file.
	DirectionSend = "send"
	// DirectionReceive marks progress for an inbound file.
	DirectionReceive = "receive"
)

// TransferState tracks one file in flight. The sender's TotalBytes is exact;
// the receiver's is an estimate until the final chunk arrives.
type TransferState struct {
	BytesTransferred int64
	TotalBytes       int64
	StartedAt        time.Time
}

// ProgressSample is one point-in-time progress observation. It is recomputed
// on every chunk event and never persisted.
type ProgressSample struct {
	FileID           string
	Direction        string
	BytesTransferred int64
	TotalBytes       int64
	SpeedBytesPerSec float64
	EtaSeconds       float64
	Completed        bool
}
