package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConversationID(t *testing.T) {
	t.Parallel()

	var zero ConversationID
	require.True(t, zero.IsZero())

	remote := RemoteID(7)
	require.False(t, remote.IsZero())
	n, ok := remote.Remote()
	require.True(t, ok)
	require.EqualValues(t, 7, n)
	_, ok = remote.Local()
	require.False(t, ok)
	require.Equal(t, "7", remote.String())

	local := LocalID("guest-abc")
	require.False(t, local.IsZero())
	_, ok = local.Remote()
	require.False(t, ok)
	tok, ok := local.Local()
	require.True(t, ok)
	require.Equal(t, "guest-abc", tok)
	require.Equal(t, "guest-abc", local.String())

	require.Equal(t, RemoteID(7), remote)
	require.NotEqual(t, RemoteID(8), remote)
}

func TestPlaceholderIDs(t *testing.T) {
	t.Parallel()

	p := NewPlaceholderID()
	g := NewGuestID()
	require.NotEqual(t, p, NewPlaceholderID())
	require.True(t, IsPlaceholderID(p))
	require.True(t, IsPlaceholderID(g))
	require.False(t, IsPlaceholderID("123"))
	require.False(t, IsPlaceholderID(""))
}
