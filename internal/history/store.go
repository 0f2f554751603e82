// Package history persists the ordered conversation transcript. The durable
// representation is a single JSON document per session, overwritten wholesale
// on every save. When SQLite is unavailable the store degrades to an
// in-memory backend for the process lifetime; nothing in this package is
// fatal to the caller.
package history

import (
	"encoding/json"
	"sync"

	"github.com/0DidUStudy/ragchat/internal/logger"
)

// Backend holds one serialized conversation.
type Backend interface {
	// Read returns the serialized conversation, or ok=false when absent.
	Read() (data []byte, ok bool, err error)
	Write(data []byte) error
	Clear() error
}

// Store is the durable, ordered log of messages.
type Store struct {
	backend Backend
}

// NewStore builds a store over the given backend. Tests inject a
// MemoryBackend here.
func NewStore(b Backend) *Store {
	return &Store{backend: b}
}

// Load returns the persisted history, or a single canned greeting when the
// history is absent, empty, or malformed. Malformed data is logged and
// treated as absent; it never propagates to the caller.
func (s *Store) Load() []Message {
	data, ok, err := s.backend.Read()
	if err != nil {
		logger.L.Warn("failed to read history; starting fresh", "error", err)
		return []Message{Greeting()}
	}
	if !ok || len(data) == 0 {
		return []Message{Greeting()}
	}
	var msgs []Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		logger.L.Warn("malformed persisted history; starting fresh", "error", err)
		return []Message{Greeting()}
	}
	if len(msgs) == 0 {
		return []Message{Greeting()}
	}
	return msgs
}

// Save overwrites the persisted history wholesale.
func (s *Store) Save(msgs []Message) {
	data, err := json.Marshal(msgs)
	if err != nil {
		logger.L.Error("failed to encode history", "error", err)
		return
	}
	if err := s.backend.Write(data); err != nil {
		logger.L.Error("failed to persist history", "error", err)
	}
}

// Clear removes the persisted history; the next Load returns the greeting.
func (s *Store) Clear() {
	if err := s.backend.Clear(); err != nil {
		logger.L.Error("failed to clear history", "error", err)
	}
}

// MemoryBackend keeps the serialized conversation in memory. It is the
// fallback when SQLite cannot be opened, and the substitute backend in tests.
type MemoryBackend struct {
	mu      sync.Mutex
	data    []byte
	present bool
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (m *MemoryBackend) Read() ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.present {
		return nil, false, nil
	}
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out, true, nil
}

func (m *MemoryBackend) Write(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make([]byte, len(data))
	copy(m.data, data)
	m.present = true
	return nil
}

func (m *MemoryBackend) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	m.present = false
	return nil
}

// Seed stores raw bytes directly, bypassing Save. Tests use it to simulate
// malformed persisted data.
func (m *MemoryBackend) Seed(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	m.present = true
}
