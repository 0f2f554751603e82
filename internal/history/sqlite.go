package history

import (
	"database/sql"
	"errors"
	"time"

	"github.com/0DidUStudy/ragchat/internal/logger"
)

// SQLiteBackend stores one serialized conversation per session id.
type SQLiteBackend struct {
	db        *sql.DB
	sessionID string
}

// NewSQLiteBackend creates the history table if needed.
func NewSQLiteBackend(db *sql.DB, sessionID string) (*SQLiteBackend, error) {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS history (
		session_id TEXT PRIMARY KEY,
		messages TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);`); err != nil {
		return nil, err
	}
	return &SQLiteBackend{db: db, sessionID: sessionID}, nil
}

func (b *SQLiteBackend) Read() ([]byte, bool, error) {
	var data []byte
	err := b.db.QueryRow(`SELECT messages FROM history WHERE session_id = ?;`, b.sessionID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (b *SQLiteBackend) Write(data []byte) error {
	_, err := b.db.Exec(`INSERT INTO history (session_id, messages, updated_at) VALUES (?,?,?)
		ON CONFLICT(session_id) DO UPDATE SET messages = excluded.messages, updated_at = excluded.updated_at;`,
		b.sessionID, data, time.Now())
	return err
}

func (b *SQLiteBackend) Clear() error {
	_, err := b.db.Exec(`DELETE FROM history WHERE session_id = ?;`, b.sessionID)
	return err
}

// OpenBackend returns a SQLite backend for the session, or an in-memory
// backend when db is nil or the table cannot be created.
func OpenBackend(db *sql.DB, sessionID string) Backend {
	if db == nil {
		return NewMemoryBackend()
	}
	b, err := NewSQLiteBackend(db, sessionID)
	if err != nil {
		logger.L.Warn("sqlite history unavailable; using in-memory history", "error", err)
		return NewMemoryBackend()
	}
	return b
}
