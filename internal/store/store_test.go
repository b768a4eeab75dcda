package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

// exerciseKV runs the shared contract against any KV implementation.
func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	var got doc
	found, err := kv.Get(ctx, "missing", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, kv.Set(ctx, NameConfig, doc{Name: "a", Items: []string{"x"}}))
	found, err = kv.Get(ctx, NameConfig, &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, doc{Name: "a", Items: []string{"x"}}, got)

	// Overwrite replaces the whole value.
	require.NoError(t, kv.Set(ctx, NameConfig, doc{Name: "b"}))
	var again doc
	_, err = kv.Get(ctx, NameConfig, &again)
	require.NoError(t, err)
	assert.Equal(t, doc{Name: "b"}, again)

	require.NoError(t, kv.Delete(ctx, NameConfig))
	require.NoError(t, kv.Delete(ctx, NameConfig))
	found, err = kv.Get(ctx, NameConfig, &again)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStore(t *testing.T) {
	exerciseKV(t, NewMemoryStore())
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryStore()
	items := []string{"one"}
	require.NoError(t, kv.Set(ctx, "k", doc{Items: items}))
	items[0] = "mutated"

	var got doc
	_, err := kv.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.Equal(t, []string{"one"}, got.Items)
}

func TestMemoryStore_DecodeError(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryStore()
	require.NoError(t, kv.Set(ctx, "k", "a string"))

	var got doc
	_, err := kv.Get(ctx, "k", &got)
	assert.ErrorContains(t, err, "decode k")
}

func TestSQLiteStore_PureGo(t *testing.T) {
	s, err := OpenSQLite("sqlite", ":memory:")
	require.NoError(t, err)
	defer s.Close()
	exerciseKV(t, s)
}

func TestSQLiteStore_CGO(t *testing.T) {
	s, err := OpenSQLite("sqlite3", ":memory:")
	if err != nil {
		t.Skipf("sqlite3 driver unavailable: %v", err)
	}
	defer s.Close()
	exerciseKV(t, s)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sub", "pagebrain.db")

	s, err := OpenSQLite("sqlite", path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, NameResearchNotes, []doc{{Name: "n1"}}))
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite("sqlite", path)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, path, reopened.Path())

	var notes []doc
	found, err := reopened.Get(ctx, NameResearchNotes, &notes)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []doc{{Name: "n1"}}, notes)
}

func TestOpen(t *testing.T) {
	kv, closeFn, err := Open("memory", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, kv)
	assert.NoError(t, closeFn())

	kv, closeFn, err = Open("sqlite", filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, kv)
	assert.NoError(t, closeFn())

	_, _, err = Open("postgres", "x")
	assert.ErrorContains(t, err, "unsupported sqlite driver")
}
