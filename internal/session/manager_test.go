package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cocoja-ai/chatkit/internal/api"
	"github.com/cocoja-ai/chatkit/internal/apitest"
	"github.com/cocoja-ai/chatkit/internal/errs"
	"github.com/cocoja-ai/chatkit/internal/statestore"
	"github.com/cocoja-ai/chatkit/pkg/logger"
)

func newFixture(t *testing.T, srv *apitest.Server, mode Mode) (*Manager, *api.Client, *statestore.Store) {
	t.Helper()
	state, err := statestore.Open(t.TempDir())
	require.NoError(t, err)
	client, err := api.New(srv.URL, 5*time.Second, logger.NewNop())
	require.NoError(t, err)
	return NewManager(client, state, mode, logger.NewNop()), client, state
}

func TestLogin_TokenMode(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.AddUser("alice", "alice@example.com", "pw")

	m, client, state := newFixture(t, srv, ModeToken)
	require.NoError(t, m.Login(context.Background(), "alice", "pw"))

	user, ok := m.User()
	require.True(t, ok)
	require.Equal(t, "alice", user.Username)

	// Both credentials persisted, bearer header installed.
	require.NotEmpty(t, state.Get(statestore.KeyAccessToken))
	require.NotEmpty(t, state.Get(statestore.KeyRefreshToken))
	require.True(t, client.HasCredential())
}

func TestLogin_SessionMode(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.AddUser("alice", "alice@example.com", "pw")

	m, client, state := newFixture(t, srv, ModeSession)
	require.NoError(t, m.Login(context.Background(), "alice", "pw"))

	require.True(t, m.Authenticated())
	require.False(t, client.HasCredential())
	require.Empty(t, state.Get(statestore.KeyAccessToken))
}

func TestLogin_BadCredentials(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.AddUser("alice", "alice@example.com", "pw")

	m, _, _ := newFixture(t, srv, ModeSession)
	err := m.Login(context.Background(), "alice", "wrong")
	require.Error(t, err)
	require.False(t, m.Authenticated())
}

func TestInitialize_TokenMode_ValidAccess(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.AddUser("alice", "alice@example.com", "pw")

	state, err := statestore.Open(t.TempDir())
	require.NoError(t, err)
	state.Set(statestore.KeyAuthMode, string(ModeToken))
	state.Set(statestore.KeyAccessToken, srv.IssueAccessToken("alice", time.Hour))

	client, err := api.New(srv.URL, 5*time.Second, logger.NewNop())
	require.NoError(t, err)
	m := NewManager(client, state, ModeSession, logger.NewNop())
	require.Equal(t, ModeToken, m.Mode())

	require.NoError(t, m.Initialize(context.Background()))
	require.True(t, m.Authenticated())
}

func TestInitialize_TokenMode_ExpiredAccessValidRefresh(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.AddUser("alice", "alice@example.com", "pw")

	state, err := statestore.Open(t.TempDir())
	require.NoError(t, err)
	state.Set(statestore.KeyAuthMode, string(ModeToken))
	state.Set(statestore.KeyAccessToken, srv.IssueAccessToken("alice", -time.Minute))
	state.Set(statestore.KeyRefreshToken, srv.IssueRefreshToken("alice"))

	client, err := api.New(srv.URL, 5*time.Second, logger.NewNop())
	require.NoError(t, err)
	m := NewManager(client, state, ModeToken, logger.NewNop())

	require.NoError(t, m.Initialize(context.Background()))
	require.True(t, m.Authenticated())

	// Refreshed access token was persisted.
	require.NotEqual(t, "", state.Get(statestore.KeyAccessToken))
	require.True(t, client.HasCredential())
}

func TestInitialize_TokenMode_AllInvalid(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.AddUser("alice", "alice@example.com", "pw")
	srv.RejectRefresh = true

	state, err := statestore.Open(t.TempDir())
	require.NoError(t, err)
	state.Set(statestore.KeyAuthMode, string(ModeToken))
	state.Set(statestore.KeyAccessToken, srv.IssueAccessToken("alice", -time.Minute))
	state.Set(statestore.KeyRefreshToken, srv.IssueRefreshToken("alice"))

	client, err := api.New(srv.URL, 5*time.Second, logger.NewNop())
	require.NoError(t, err)
	m := NewManager(client, state, ModeToken, logger.NewNop())

	err = m.Initialize(context.Background())
	require.ErrorIs(t, err, errs.ErrRefreshFailed)
	require.False(t, m.Authenticated())
	require.Empty(t, state.Get(statestore.KeyAccessToken))
	require.Empty(t, state.Get(statestore.KeyRefreshToken))
	require.False(t, client.HasCredential())
}

func TestInitialize_TokenMode_NoRefresh(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.AddUser("alice", "alice@example.com", "pw")

	state, err := statestore.Open(t.TempDir())
	require.NoError(t, err)
	state.Set(statestore.KeyAuthMode, string(ModeToken))
	state.Set(statestore.KeyAccessToken, "garbage")

	client, err := api.New(srv.URL, 5*time.Second, logger.NewNop())
	require.NoError(t, err)
	m := NewManager(client, state, ModeToken, logger.NewNop())

	require.NoError(t, m.Initialize(context.Background()))
	require.False(t, m.Authenticated())
	require.Empty(t, state.Get(statestore.KeyAccessToken))
}

func TestInitialize_SessionMode_NotLoggedInIsNotAnError(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	m, _, _ := newFixture(t, srv, ModeSession)
	require.NoError(t, m.Initialize(context.Background()))
	require.False(t, m.Authenticated())
}

func TestSetMode_SessionClearsTokenState(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.AddUser("alice", "alice@example.com", "pw")

	m, client, state := newFixture(t, srv, ModeToken)
	require.NoError(t, m.Login(context.Background(), "alice", "pw"))
	require.True(t, client.HasCredential())

	m.SetMode(ModeSession)

	require.Equal(t, ModeSession, m.Mode())
	require.Empty(t, state.Get(statestore.KeyAccessToken))
	require.Empty(t, state.Get(statestore.KeyRefreshToken))
	require.False(t, client.HasCredential())
	require.Equal(t, string(ModeSession), state.Get(statestore.KeyAuthMode))
}

func TestLogout_CleanupRunsEvenWhenServerFails(t *testing.T) {
	srv := apitest.NewServer()
	srv.AddUser("alice", "alice@example.com", "pw")

	m, client, state := newFixture(t, srv, ModeToken)
	require.NoError(t, m.Login(context.Background(), "alice", "pw"))
	m.SetMode(ModeSession) // session strategy so Logout hits the server

	require.NoError(t, m.Login(context.Background(), "alice", "pw"))
	require.True(t, m.Authenticated())

	srv.Close() // server gone; logout call will fail

	require.NoError(t, m.Logout(context.Background()))
	require.False(t, m.Authenticated())
	require.Empty(t, state.Get(statestore.KeyAccessToken))
	require.Empty(t, state.Get(statestore.KeyRefreshToken))
	require.False(t, client.HasCredential())
}

func TestRegister_DoesNotEstablishSession(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	m, _, _ := newFixture(t, srv, ModeSession)
	u, err := m.Register(context.Background(), "carol", "carol@example.com", "pw")
	require.NoError(t, err)
	require.Equal(t, "carol", u.Username)
	require.False(t, m.Authenticated())

	require.NoError(t, m.Login(context.Background(), "carol", "pw"))
	require.True(t, m.Authenticated())
}
