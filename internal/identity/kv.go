package identity

import (
	"database/sql"
	"errors"
	"sync"

	"github.com/0DidUStudy/ragchat/internal/logger"
)

// SQLiteKV persists identifiers in the shared client database.
type SQLiteKV struct {
	db *sql.DB
}

// NewSQLiteKV creates the identity table if needed.
func NewSQLiteKV(db *sql.DB) (*SQLiteKV, error) {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS identity (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`); err != nil {
		return nil, err
	}
	return &SQLiteKV{db: db}, nil
}

func (s *SQLiteKV) Get(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM identity WHERE key = ?;`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *SQLiteKV) Set(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO identity (key, value) VALUES (?,?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value;`, key, value)
	return err
}

// MemoryKV is the in-memory fallback and the test substitute.
type MemoryKV struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryKV returns an empty in-memory key-value backend.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string]string)}
}

func (m *MemoryKV) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// OpenKV returns a SQLite-backed KV, or an in-memory KV when db is nil or the
// table cannot be created.
func OpenKV(db *sql.DB) KV {
	if db == nil {
		return NewMemoryKV()
	}
	kv, err := NewSQLiteKV(db)
	if err != nil {
		logger.L.Warn("sqlite identity unavailable; using in-memory identity", "error", err)
		return NewMemoryKV()
	}
	return kv
}
