package session

import (
	"io"

	"peerdrop/protocol"
	"peerdrop/transfer"
)

// ReceivedFile is a fully reassembled inbound file. Descriptor is the
// announced metadata for the file id, or a zero value if the peer never
// announced it.
type ReceivedFile struct {
	Descriptor protocol.FileDescriptor
	Data       []byte
}

// Observer receives session events. Methods may be invoked from more than
// one goroutine (progress for outbound files is reported from the send
// loop); implementations must be safe for concurrent use and must not call
// back into Session.Close.
type Observer interface {
	// OnStateChange fires on every session state transition.
	OnStateChange(state CoarseState)
	// OnFileProgress fires per chunk sent or received.
	OnFileProgress(sample transfer.ProgressSample)
	// OnFileReceived fires once per completed inbound file.
	OnFileReceived(file ReceivedFile)
	// OnError reports per-file and per-frame failures; the session stays up.
	OnError(err error)
}

// OutgoingFile is one queued file. Open is called when its turn to stream
// comes, so an unreadable source aborts only that file.
type OutgoingFile struct {
	Descriptor protocol.FileDescriptor
	Open       func() (io.ReadCloser, error)
}
