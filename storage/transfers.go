package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound indicates a requested row does not exist.
	ErrNotFound = errors.New("storage: record not found")
)

const (
	// DirectionSend marks an outbound transfer row.
	DirectionSend = "send"
	// DirectionReceive marks an inbound transfer row.
	DirectionReceive = "receive"
)

const (
	// StatusAnnounced is the initial state of a recorded transfer.
	StatusAnnounced = "announced"
	// StatusComplete marks a fully delivered file.
	StatusComplete = "complete"
	// StatusFailed marks a transfer aborted by an error.
	StatusFailed = "failed"
	// StatusCancelled marks a transfer dropped by session teardown.
	StatusCancelled = "cancelled"
)

// TransferRecord is one row of transfer history.
type TransferRecord struct {
	FileID     string
	SessionID  string
	Direction  string
	Filename   string
	SizeBytes  int64
	MimeType   string
	StoredPath string
	Status     string
	StartedAt  int64
	FinishedAt *int64
}

func validDirection(direction string) bool {
	return direction == DirectionSend || direction == DirectionReceive
}

func validStatus(status string) bool {
	switch status {
	case StatusAnnounced, StatusComplete, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// RecordTransfer inserts a transfer row, or replaces the existing row for
// the same file id and direction.
func (s *Store) RecordTransfer(record TransferRecord) error {
	if record.FileID == "" {
		return errors.New("file_id is required")
	}
	if record.Filename == "" {
		return errors.New("filename is required")
	}
	if !validDirection(record.Direction) {
		return fmt.Errorf("invalid direction %q", record.Direction)
	}
	if record.Status == "" {
		record.Status = StatusAnnounced
	}
	if !validStatus(record.Status) {
		return fmt.Errorf("invalid status %q", record.Status)
	}
	if record.StartedAt == 0 {
		record.StartedAt = nowUnixMilli()
	}

	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO transfers (
			file_id,
			session_id,
			direction,
			filename,
			size_bytes,
			mime_type,
			stored_path,
			status,
			started_at,
			finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.FileID,
		record.SessionID,
		record.Direction,
		record.Filename,
		record.SizeBytes,
		record.MimeType,
		record.StoredPath,
		record.Status,
		record.StartedAt,
		nullInt64(record.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert transfer %q: %w", record.FileID, err)
	}

	return nil
}

// UpdateTransferStatus moves a transfer row to a new status and stamps the
// finish time for terminal states.
func (s *Store) UpdateTransferStatus(fileID, direction, status string) error {
	if fileID == "" {
		return errors.New("file_id is required")
	}
	if !validDirection(direction) {
		return fmt.Errorf("invalid direction %q", direction)
	}
	if !validStatus(status) {
		return fmt.Errorf("invalid status %q", status)
	}

	var finishedAt *int64
	if status != StatusAnnounced {
		now := nowUnixMilli()
		finishedAt = &now
	}

	res, err := s.db.Exec(
		`UPDATE transfers
		SET status = ?, finished_at = ?
		WHERE file_id = ? AND direction = ?`,
		status,
		nullInt64(finishedAt),
		fileID,
		direction,
	)
	if err != nil {
		return fmt.Errorf("update transfer status %q: %w", fileID, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected for transfer %q: %w", fileID, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// SetStoredPath records where a received file landed on disk.
func (s *Store) SetStoredPath(fileID, path string) error {
	res, err := s.db.Exec(
		`UPDATE transfers
		SET stored_path = ?
		WHERE file_id = ? AND direction = ?`,
		path,
		fileID,
		DirectionReceive,
	)
	if err != nil {
		return fmt.Errorf("set stored path %q: %w", fileID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected for stored path %q: %w", fileID, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetTransfer fetches one transfer row.
func (s *Store) GetTransfer(fileID, direction string) (*TransferRecord, error) {
	row := s.db.QueryRow(
		`SELECT
			file_id,
			session_id,
			direction,
			filename,
			size_bytes,
			mime_type,
			stored_path,
			status,
			started_at,
			finished_at
		FROM transfers
		WHERE file_id = ? AND direction = ?`,
		fileID,
		direction,
	)

	record, err := scanTransfer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get transfer %q: %w", fileID, err)
	}
	return record, nil
}

// ListSessionTransfers returns all transfer rows for a session, newest
// first.
func (s *Store) ListSessionTransfers(sessionID string) ([]TransferRecord, error) {
	rows, err := s.db.Query(
		`SELECT
			file_id,
			session_id,
			direction,
			filename,
			size_bytes,
			mime_type,
			stored_path,
			status,
			started_at,
			finished_at
		FROM transfers
		WHERE session_id = ?
		ORDER BY started_at DESC, file_id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list transfers for session %q: %w", sessionID, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var records []TransferRecord
	for rows.Next() {
		record, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transfer row: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfer rows: %w", err)
	}

	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransfer(row rowScanner) (*TransferRecord, error) {
	var record TransferRecord
	var finishedAt sql.NullInt64

	if err := row.Scan(
		&record.FileID,
		&record.SessionID,
		&record.Direction,
		&record.Filename,
		&record.SizeBytes,
		&record.MimeType,
		&record.StoredPath,
		&record.Status,
		&record.StartedAt,
		&finishedAt,
	); err != nil {
		return nil, err
	}

	if finishedAt.Valid {
		record.FinishedAt = &finishedAt.Int64
	}
	return &record, nil
}

func nullInt64(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

func nowUnixMilli() int64 {
	return time.Now().UnixMilli()
}
