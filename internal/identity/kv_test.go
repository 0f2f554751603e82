package identity

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/0DidUStudy/ragchat/internal/storage"
)

func TestSQLiteKV_GetSet(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	kv, err := NewSQLiteKV(db)
	require.NoError(t, err)

	_, ok, err := kv.Get("user_id")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, kv.Set("user_id", "u-1"))
	v, ok, err := kv.Get("user_id")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "u-1", v)

	require.NoError(t, kv.Set("user_id", "u-2"))
	v, _, err = kv.Get("user_id")
	require.NoError(t, err)
	require.Equal(t, "u-2", v)
}

func TestOpenKV_NilDBFallsBackToMemory(t *testing.T) {
	kv := OpenKV(nil)
	_, ok := kv.(*MemoryKV)
	require.True(t, ok)
}

func TestStore_PersistsAcrossStoreInstances(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	kv, err := NewSQLiteKV(db)
	require.NoError(t, err)

	first := NewStore(kv).LoadOrCreateSessionID()
	second := NewStore(kv).LoadOrCreateSessionID()
	require.Equal(t, first, second, "session id is generated once per durable-storage lifetime")
}
