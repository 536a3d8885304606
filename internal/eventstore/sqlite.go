package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT    NOT NULL,
	event_type TEXT    NOT NULL,
	at_ms      INTEGER NOT NULL,
	payload    BLOB    NOT NULL,
	metadata   TEXT
);
CREATE INDEX IF NOT EXISTS events_run_id ON events(run_id);
CREATE INDEX IF NOT EXISTS events_at_ms ON events(at_ms);
`

const selectEvents = "SELECT id, run_id, event_type, at_ms, payload, metadata FROM events"

// SQLiteStore is a Store backed by a SQLite file under the cache folder.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens, creating when needed, the history database at path.
// ":memory:" gives a throwaway store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, wrap(ErrOpen, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, wrap(ErrOpen, err)
	}
	// each ":memory:" connection is its own database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, wrap(ErrSchema, err)
	}
	return &SQLiteStore{db: db}, nil
}

// Append stores e. A zero At means now.
func (s *SQLiteStore) Append(ctx context.Context, e Event) error {
	var metadata []byte
	if e.Metadata != nil {
		var err error
		if metadata, err = json.Marshal(e.Metadata); err != nil {
			return wrap(ErrAppend, fmt.Errorf("encode metadata: %w", err))
		}
	}
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	payload := []byte(e.Payload)
	if payload == nil {
		payload = []byte("{}")
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO events (run_id, event_type, at_ms, payload, metadata) VALUES (?, ?, ?, ?, ?)",
		e.RunID, string(e.Type), at.UnixMilli(), payload, metadata)
	if err != nil {
		return wrap(ErrAppend, err)
	}
	return nil
}

func (s *SQLiteStore) ForRun(ctx context.Context, runID string) ([]Event, error) {
	return s.query(ctx, selectEvents+" WHERE run_id = ? ORDER BY id", runID)
}

func (s *SQLiteStore) Between(ctx context.Context, start, end time.Time) ([]Event, error) {
	return s.query(ctx, selectEvents+" WHERE at_ms >= ? AND at_ms <= ? ORDER BY id", start.UnixMilli(), end.UnixMilli())
}

func (s *SQLiteStore) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM events WHERE run_id NOT IN (
			SELECT run_id FROM events GROUP BY run_id ORDER BY MIN(id) DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, wrap(ErrAppend, fmt.Errorf("prune: %w", err))
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, wrap(ErrQuery, err)
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		var (
			e        Event
			typ      string
			atMS     int64
			payload  []byte
			metadata []byte
		)
		if err := rows.Scan(&e.ID, &e.RunID, &typ, &atMS, &payload, &metadata); err != nil {
			return nil, wrap(ErrQuery, fmt.Errorf("scan event: %w", err))
		}
		e.Type = EventType(typ)
		e.At = time.UnixMilli(atMS)
		e.Payload = payload
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, wrap(ErrQuery, fmt.Errorf("decode metadata: %w", err))
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(ErrQuery, err)
	}
	return events, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
