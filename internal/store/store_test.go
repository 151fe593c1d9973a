package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Badger {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBadgerRoundTrip(t *testing.T) {
	s := openTestStore(t)

	_, ok, err := s.Get("User")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set("User", `{"token":"tok-1"}`))

	value, ok, err := s.Get("User")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"token":"tok-1"}`, value)
}

func TestBadgerOverwrite(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Set("User", "first"))
	require.NoError(t, s.Set("User", "second"))

	value, ok, err := s.Get("User")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", value)
}

func TestBadgerRemove(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Set("User", "blob"))
	require.NoError(t, s.Remove("User"))

	_, ok, err := s.Get("User")
	require.NoError(t, err)
	assert.False(t, ok)

	// Removing again is fine.
	assert.NoError(t, s.Remove("User"))
}

func TestBadgerPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set("User", "survives"))
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()

	value, ok, err := s.Get("User")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "survives", value)
}

func TestMemoryStore(t *testing.T) {
	var s Store = NewMemory()

	_, ok, err := s.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set("k", "v"))
	value, ok, _ := s.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", value)

	require.NoError(t, s.Remove("k"))
	_, ok, _ = s.Get("k")
	assert.False(t, ok)

	assert.NoError(t, s.Close())
}
