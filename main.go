package main

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"peerdrop/config"
	"peerdrop/protocol"
	"peerdrop/session"
	"peerdrop/signaling"
	"peerdrop/storage"
	"peerdrop/transfer"
	"peerdrop/transport"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if os.Getenv("PEERDROP_DEBUG") != "" {
		log.SetLevel(log.DebugLevel)
	}

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, cfgPath, err := config.LoadOrCreate()
	if err != nil {
		log.Fatalf("startup failed while loading config: %v", err)
	}

	fmt.Printf("Device ID:    %s\n", cfg.DeviceID)
	fmt.Printf("Device Name:  %s\n", cfg.DeviceName)
	fmt.Printf("Relay:        %s\n", cfg.RelayURL)
	fmt.Printf("Config File:  %s\n", cfgPath)
	dataDir := filepath.Dir(cfgPath)

	store, dbPath, err := storage.Open(dataDir)
	if err != nil {
		log.Fatalf("startup failed while opening database: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warnf("database close error: %v", err)
		}
	}()
	fmt.Printf("History DB:   %s\n", dbPath)

	switch os.Args[1] {
	case "send":
		if len(os.Args) < 3 {
			usage()
			os.Exit(2)
		}
		err = runSession(cfg, store, session.NewID(), session.RoleInitiator, os.Args[2:])
	case "join":
		if len(os.Args) != 3 {
			usage()
			os.Exit(2)
		}
		err = runSession(cfg, store, os.Args[2], session.RoleResponder, nil)
	case "history":
		if len(os.Args) != 3 {
			usage()
			os.Exit(2)
		}
		err = writeHistory(os.Stdout, store, os.Args[2])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("session failed: %v", err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage:\n  %[1]s send <file> [file ...]\n  %[1]s join <session-id>\n  %[1]s history <session-id>\n", filepath.Base(os.Args[0]))
}

// writeHistory lists the recorded transfers of one session.
func writeHistory(w io.Writer, store *storage.Store, sessionID string) error {
	records, err := store.ListSessionTransfers(sessionID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintf(w, "No transfers recorded for session %s\n", sessionID)
		return nil
	}

	for _, record := range records {
		line := fmt.Sprintf("%s  %-7s  %-9s  %10d  %s",
			record.FileID, record.Direction, record.Status, record.SizeBytes, record.Filename)
		if record.StoredPath != "" {
			line += "  -> " + record.StoredPath
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

func runSession(cfg *config.DeviceConfig, store *storage.Store, sessionID string, role session.Role, paths []string) error {
	outgoing, err := prepareOutgoing(paths)
	if err != nil {
		return err
	}

	relay, err := signaling.Dial(cfg.RelayURL, cfg.DeviceID)
	if err != nil {
		return fmt.Errorf("connect to relay: %w", err)
	}

	newTransport := func(callbacks transport.Callbacks) (transport.Transport, error) {
		return transport.NewWebRTCTransport(transport.WebRTCConfig{STUNServers: cfg.STUNServers}, callbacks)
	}

	observer := &cliObserver{
		store:       store,
		sessionID:   sessionID,
		downloadDir: cfg.DownloadDir,
	}

	sess, err := session.New(sessionID, role, relay, newTransport, observer, session.Options{
		ChunkSize:     cfg.ChunkSize,
		HighWaterMark: cfg.HighWaterMark,
	})
	if err != nil {
		return err
	}

	for _, file := range outgoing {
		recordOutgoing(store, sessionID, file.Descriptor)
	}
	sess.Queue(outgoing...)

	if err := sess.Start(); err != nil {
		return err
	}
	fmt.Printf("Session:      %s\n", sessionID)
	if role == session.RoleInitiator {
		fmt.Printf("Share this id with the receiving device: %s\n", sessionID)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		fmt.Println("Shutting down")
	case <-sess.Done():
	}
	return sess.Close()
}

// prepareOutgoing builds descriptors for the files to send, assigning each
// a fresh file id.
func prepareOutgoing(paths []string) ([]session.OutgoingFile, error) {
	var outgoing []session.OutgoingFile
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %q: %w", path, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%q is a directory, only regular files can be sent", path)
		}

		descriptor := protocol.FileDescriptor{
			FileID:    uuid.NewString(),
			Name:      filepath.Base(path),
			SizeBytes: info.Size(),
			MimeType:  mime.TypeByExtension(filepath.Ext(path)),
		}

		outgoing = append(outgoing, session.OutgoingFile{
			Descriptor: descriptor,
			Open: func() (io.ReadCloser, error) {
				return os.Open(path)
			},
		})
	}
	return outgoing, nil
}

func recordOutgoing(store *storage.Store, sessionID string, descriptor protocol.FileDescriptor) {
	err := store.RecordTransfer(storage.TransferRecord{
		FileID:    descriptor.FileID,
		SessionID: sessionID,
		Direction: storage.DirectionSend,
		Filename:  descriptor.Name,
		SizeBytes: descriptor.SizeBytes,
		MimeType:  descriptor.MimeType,
		Status:    storage.StatusAnnounced,
	})
	if err != nil {
		log.Warnf("record outbound transfer %s: %v", descriptor.FileID, err)
	}
}

// cliObserver prints session events and persists transfer history. Its
// methods are invoked from session goroutines.
type cliObserver struct {
	store       *storage.Store
	sessionID   string
	downloadDir string
}

func (o *cliObserver) OnStateChange(state session.CoarseState) {
	fmt.Printf("Connection:   %s\n", state)
}

func (o *cliObserver) OnFileProgress(sample transfer.ProgressSample) {
	if sample.Completed {
		direction := storage.DirectionReceive
		if sample.Direction == transfer.DirectionSend {
			direction = storage.DirectionSend
		}
		if err := o.store.UpdateTransferStatus(sample.FileID, direction, storage.StatusComplete); err != nil {
			log.Debugf("mark transfer %s complete: %v", sample.FileID, err)
		}
		name := sample.FileID
		if record, err := o.store.GetTransfer(sample.FileID, direction); err == nil {
			name = record.Filename
		}
		fmt.Printf("Transfer:     %s done (%d bytes)\n", name, sample.BytesTransferred)
		return
	}

	log.WithFields(log.Fields{
		"file":      sample.FileID,
		"direction": sample.Direction,
		"bytes":     sample.BytesTransferred,
		"total":     sample.TotalBytes,
		"speed":     sample.SpeedBytesPerSec,
		"eta":       sample.EtaSeconds,
	}).Debug("transfer progress")
}

func (o *cliObserver) OnFileReceived(file session.ReceivedFile) {
	name := file.Descriptor.Name
	if name == "" {
		name = "unnamed"
	}
	storedPath := filepath.Join(o.downloadDir, fmt.Sprintf("%s_%s", file.Descriptor.FileID, filepath.Base(name)))

	// The history row exists even if the disk write fails; the stored path
	// is stamped only on success.
	err := o.store.RecordTransfer(storage.TransferRecord{
		FileID:    file.Descriptor.FileID,
		SessionID: o.sessionID,
		Direction: storage.DirectionReceive,
		Filename:  name,
		SizeBytes: int64(len(file.Data)),
		MimeType:  file.Descriptor.MimeType,
		Status:    storage.StatusComplete,
	})
	if err != nil {
		log.Warnf("record inbound transfer %s: %v", file.Descriptor.FileID, err)
	}

	if err := os.MkdirAll(o.downloadDir, 0o700); err != nil {
		log.Errorf("create download directory: %v", err)
		return
	}
	if err := os.WriteFile(storedPath, file.Data, 0o600); err != nil {
		log.Errorf("write received file %q: %v", storedPath, err)
		return
	}
	if err := o.store.SetStoredPath(file.Descriptor.FileID, storedPath); err != nil {
		log.Warnf("record stored path for %s: %v", file.Descriptor.FileID, err)
	}

	fmt.Printf("Received:     %s (%d bytes) -> %s\n", name, len(file.Data), storedPath)
}

func (o *cliObserver) OnError(err error) {
	log.Warnf("session error: %v", err)
}
