package state

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	type record struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	in := []record{{Name: "a", Count: 1}, {Name: "b", Count: 2}}
	require.NoError(t, store.SetItem(ctx, "workflows", in))

	var out []record
	found, err := store.GetItem(ctx, "workflows", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, in, out)
}

func TestSQLiteStoreMissingKey(t *testing.T) {
	store := newTestSQLiteStore(t)

	var out string
	found, err := store.GetItem(context.Background(), "absent", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLiteStoreOverwrite(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetItem(ctx, "k", "first"))
	require.NoError(t, store.SetItem(ctx, "k", "second"))

	var out string
	found, err := store.GetItem(ctx, "k", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "second", out)
}

func TestNewStoreFactory(t *testing.T) {
	dir := t.TempDir()

	jsonStore, err := NewStore("json", dir)
	require.NoError(t, err)
	assert.IsType(t, &JSONStore{}, jsonStore)

	sqliteStore, err := NewStore("sqlite", dir)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, sqliteStore)
	require.NoError(t, CloseStore(sqliteStore))

	_, err = NewStore("bolt", dir)
	require.Error(t, err)
}
