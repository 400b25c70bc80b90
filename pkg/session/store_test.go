package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	store := NewFileStore(path)

	value, err := store.Get(KeyAccessToken)
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, store.Set(KeyAccessToken, "a"))
	require.NoError(t, store.Set(KeyTokenExpiry, "1700000000000"))

	reopened := NewFileStore(path)
	value, err = reopened.Get(KeyTokenExpiry)
	require.NoError(t, err)
	assert.Equal(t, "1700000000000", value)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())
	value, err = reopened.Get(KeyAccessToken)
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileStore(path).Get(KeyAccessToken)
	assert.Error(t, err)
}

func TestMemoryStoreClear(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set(KeyRefreshToken, "r"))
	require.NoError(t, store.Clear())
	value, _ := store.Get(KeyRefreshToken)
	assert.Empty(t, value)
}
