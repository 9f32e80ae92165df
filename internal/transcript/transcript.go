// Package transcript keeps the full chat log in sqlite. The in-record
// history window is a prompt buffer; this is the durable record of every
// message and narration that passed through a channel.
package transcript

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Event types written to the transcript.
const (
	EventPlayer    = "player"
	EventNarration = "narration"
	EventSystem    = "system"
	EventCommand   = "command"
)

// Event is one transcript row.
type Event struct {
	ID         int64
	EventID    string
	TraceID    string
	ChannelID  string
	SenderID   string
	SenderName string
	EventType  string
	Content    string
	Tokens     int
	CreatedAt  time.Time
}

// Service wraps the transcript database.
type Service struct {
	db *sql.DB
}

// NewService opens (or creates) the transcript database at dbPath.
func NewService(dbPath string) (*Service, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open transcript db: %w", err)
	}
	s, err := newService(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewServiceWithDB wraps an already-open database. Used by tests that
// supply their own driver.
func NewServiceWithDB(db *sql.DB) (*Service, error) {
	return newService(db)
}

func newService(db *sql.DB) (*Service, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("apply transcript schema: %w", err)
	}
	// Best-effort migrations for existing dbs (no-op when the column exists).
	_, _ = db.Exec(`ALTER TABLE events ADD COLUMN trace_id TEXT DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE events ADD COLUMN tokens INTEGER NOT NULL DEFAULT 0`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_events_trace ON events(trace_id)`)
	return &Service{db: db}, nil
}

// DB returns the underlying handle for shared access.
func (s *Service) DB() *sql.DB { return s.db }

func (s *Service) Close() error { return s.db.Close() }

// AddEvent appends one event. A missing EventID is generated.
func (s *Service) AddEvent(evt *Event) error {
	if evt.EventID == "" {
		evt.EventID = uuid.NewString()
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO events (event_id, trace_id, channel_id, sender_id, sender_name, event_type, content, tokens, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		evt.EventID, evt.TraceID, evt.ChannelID, evt.SenderID, evt.SenderName,
		evt.EventType, evt.Content, evt.Tokens, evt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("add transcript event: %w", err)
	}
	return nil
}

// Tail returns the most recent events for a channel, oldest first.
func (s *Service) Tail(channelID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, event_id, COALESCE(trace_id,''), channel_id, sender_id, sender_name, event_type, content, tokens, created_at
		FROM events WHERE channel_id = ?
		ORDER BY id DESC LIMIT ?`, channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("transcript tail: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.EventID, &e.TraceID, &e.ChannelID, &e.SenderID,
			&e.SenderName, &e.EventType, &e.Content, &e.Tokens, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Reverse into chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// ByTrace returns every event recorded under one trace id.
func (s *Service) ByTrace(traceID string) ([]Event, error) {
	rows, err := s.db.Query(`
		SELECT id, event_id, COALESCE(trace_id,''), channel_id, sender_id, sender_name, event_type, content, tokens, created_at
		FROM events WHERE trace_id = ? ORDER BY id ASC`, traceID)
	if err != nil {
		return nil, fmt.Errorf("transcript by trace: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.EventID, &e.TraceID, &e.ChannelID, &e.SenderID,
			&e.SenderName, &e.EventType, &e.Content, &e.Tokens, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountByChannel returns the number of events recorded for a channel.
func (s *Service) CountByChannel(channelID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM events WHERE channel_id = ?`, channelID).Scan(&n)
	return n, err
}

// DeleteChannel removes every event for a channel. Part of a campaign reset.
func (s *Service) DeleteChannel(channelID string) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM events WHERE channel_id = ?`, channelID)
	if err != nil {
		return 0, fmt.Errorf("delete transcript channel: %w", err)
	}
	return res.RowsAffected()
}

// GetSetting returns a setting value by key.
func (s *Service) GetSetting(key string) (string, error) {
	var val string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&val)
	if err != nil {
		return "", err
	}
	return val, nil
}

// SetSetting persists a setting value.
func (s *Service) SetSetting(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	return err
}
