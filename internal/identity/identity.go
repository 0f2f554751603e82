// Package identity generates and persists the user and session identifiers
// sent with every query. Identifiers are UUIDs; collisions are negligible for
// casual multi-client use and no coordination is attempted. When durable
// storage is unavailable the store degrades to in-memory values for the
// process lifetime.
package identity

import (
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/0DidUStudy/ragchat/internal/logger"
)

const (
	keyUserID    = "user_id"
	keySessionID = "session_id"
)

// Identity is the pair of identifiers attached to outgoing queries.
type Identity struct {
	UserID    string
	SessionID string
}

// KV is the persistence the store writes through.
type KV interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
}

// Store owns identifier generation and persistence.
type Store struct {
	kv KV
}

// NewStore builds a store over the given key-value backend.
func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// LoadOrCreateUserID returns the persisted user identifier, generating and
// persisting a new one when absent.
func (s *Store) LoadOrCreateUserID() string {
	return s.loadOrCreate(keyUserID)
}

// SetUserID overwrites and persists the user identifier. Control characters
// are stripped; no other validation is applied.
func (s *Store) SetUserID(id string) {
	id = stripControl(id)
	if err := s.kv.Set(keyUserID, id); err != nil {
		logger.L.Warn("failed to persist user id; keeping in-memory value", "error", err)
	}
}

// LoadOrCreateSessionID returns the persisted session identifier, generating
// and persisting a new one when absent. It is never user-edited and is
// independent of the user identifier.
func (s *Store) LoadOrCreateSessionID() string {
	return s.loadOrCreate(keySessionID)
}

// Identity loads both identifiers at once.
func (s *Store) Identity() Identity {
	return Identity{
		UserID:    s.LoadOrCreateUserID(),
		SessionID: s.LoadOrCreateSessionID(),
	}
}

func (s *Store) loadOrCreate(key string) string {
	v, ok, err := s.kv.Get(key)
	if err != nil {
		logger.L.Warn("failed to read identifier; generating ephemeral value", "key", key, "error", err)
	}
	if ok && v != "" {
		return v
	}
	v = uuid.NewString()
	if err := s.kv.Set(key, v); err != nil {
		logger.L.Warn("failed to persist identifier; value lives for this process only", "key", key, "error", err)
	}
	return v
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
