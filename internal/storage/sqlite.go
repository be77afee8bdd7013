// Package storage archives completed meeting summaries locally so they
// survive the session reset that discards all in-memory state.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sjawhar/coachwire/internal/protocol"
)

// ArchivedSummary is one stored meeting summary row.
type ArchivedSummary struct {
	MeetingID  string
	ReceivedAt time.Time
	OnTime     bool
	Markdown   string
	Record     protocol.SummaryRecord
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "coachwire.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS summaries (
			meeting_id TEXT PRIMARY KEY,
			received_at TEXT NOT NULL,
			on_time INTEGER NOT NULL,
			markdown TEXT NOT NULL,
			record_json TEXT NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create summaries table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_summaries_received_at ON summaries(received_at)"); err != nil {
		return fmt.Errorf("create summaries index: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveSummary archives one meeting's summary. The record is stored once and
// never updated: a second save for the same meeting is rejected, matching
// the record's immutability on receipt.
func (s *SQLiteStore) SaveSummary(meetingID string, receivedAt time.Time, markdown string, rec protocol.SummaryRecord) error {
	if strings.TrimSpace(meetingID) == "" {
		return errors.New("meeting id is required")
	}

	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal summary record: %w", err)
	}

	onTime := 0
	if rec.OnTime {
		onTime = 1
	}

	_, err = s.db.Exec(
		`INSERT INTO summaries(meeting_id, received_at, on_time, markdown, record_json) VALUES(?, ?, ?, ?, ?)`,
		meetingID,
		receivedAt.UTC().Format(time.RFC3339Nano),
		onTime,
		markdown,
		string(recordJSON),
	)
	if err != nil {
		return fmt.Errorf("archive summary for meeting %s: %w", meetingID, err)
	}
	return nil
}

// GetSummary loads one archived summary, or sql.ErrNoRows when absent.
func (s *SQLiteStore) GetSummary(meetingID string) (ArchivedSummary, error) {
	row := s.db.QueryRow(
		`SELECT meeting_id, received_at, on_time, markdown, record_json FROM summaries WHERE meeting_id = ?`,
		meetingID,
	)

	var (
		out        ArchivedSummary
		receivedAt string
		onTime     int
		recordJSON string
	)
	if err := row.Scan(&out.MeetingID, &receivedAt, &onTime, &out.Markdown, &recordJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ArchivedSummary{}, sql.ErrNoRows
		}
		return ArchivedSummary{}, fmt.Errorf("load summary for meeting %s: %w", meetingID, err)
	}

	parsed, err := time.Parse(time.RFC3339Nano, receivedAt)
	if err != nil {
		return ArchivedSummary{}, fmt.Errorf("parse received_at for meeting %s: %w", meetingID, err)
	}
	out.ReceivedAt = parsed
	out.OnTime = onTime != 0

	if err := json.Unmarshal([]byte(recordJSON), &out.Record); err != nil {
		return ArchivedSummary{}, fmt.Errorf("unmarshal summary record for meeting %s: %w", meetingID, err)
	}
	return out, nil
}
