package statestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetGetDelete(t *testing.T) {
	t.Parallel()
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	require.Empty(t, s.Get(KeyAccessToken))

	s.Set(KeyAccessToken, "tok")
	require.Equal(t, "tok", s.Get(KeyAccessToken))

	s.Delete(KeyAccessToken)
	require.Empty(t, s.Get(KeyAccessToken))
}

func TestReopenKeepsValues(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	s.Set(KeyAuthMode, "token")
	s.Set(KeyCurrentConversation, "42")

	reopened, err := Open(dir)
	require.NoError(t, err)
	require.Equal(t, "token", reopened.Get(KeyAuthMode))
	require.Equal(t, "42", reopened.Get(KeyCurrentConversation))
}

func TestCorruptFileTreatedAsEmpty(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "state.json"), []byte("{not json"), 0o600))

	s, err := Open(dir)
	require.NoError(t, err)
	require.Empty(t, s.Get(KeyAuthMode))

	// A fresh write replaces the corrupt file.
	s.Set(KeyAuthMode, "session")
	reopened, err := Open(dir)
	require.NoError(t, err)
	require.Equal(t, "session", reopened.Get(KeyAuthMode))
}

func TestOpenCreatesDirectory(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "nested", "chatkit")
	_, err := Open(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}
