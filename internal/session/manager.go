// Package session owns the authentication state of the client: the current
// identity and one of two interchangeable credential strategies, a cookie
// session (CSRF-protected) or a bearer access/refresh pair.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/cocoja-ai/chatkit/internal/api"
	"github.com/cocoja-ai/chatkit/internal/errs"
	"github.com/cocoja-ai/chatkit/internal/model"
	"github.com/cocoja-ai/chatkit/internal/statestore"
	"github.com/cocoja-ai/chatkit/pkg/logger"
	"github.com/cocoja-ai/chatkit/pkg/metrics"
)

// Mode selects the credential strategy.
type Mode string

const (
	ModeSession Mode = "session"
	ModeToken   Mode = "token"
)

// ParseMode maps a persisted/configured string onto a Mode, defaulting to
// session for anything unrecognized.
func ParseMode(s string) Mode {
	if Mode(s) == ModeToken {
		return ModeToken
	}
	return ModeSession
}

// Manager owns the current user identity and credentials. Identity-changing
// operations share one mutex; callers must not run them concurrently with
// in-flight requests on the same transport client.
type Manager struct {
	api   *api.Client
	store *statestore.Store
	log   *logger.Logger

	mu      sync.Mutex
	mode    Mode
	user    *model.User
	access  string
	refresh string
}

// NewManager restores persisted mode and credentials. defaultMode applies
// when nothing is persisted yet.
func NewManager(client *api.Client, store *statestore.Store, defaultMode Mode, log *logger.Logger) *Manager {
	mode := defaultMode
	if persisted := store.Get(statestore.KeyAuthMode); persisted != "" {
		mode = ParseMode(persisted)
	}
	m := &Manager{
		api:   client,
		store: store,
		log:   log.WithComponent("session"),
		mode:  mode,
	}
	if mode == ModeToken {
		m.access = store.Get(statestore.KeyAccessToken)
		m.refresh = store.Get(statestore.KeyRefreshToken)
	}
	return m
}

// Mode returns the active credential strategy.
func (m *Manager) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// User returns the current identity, if any.
func (m *Manager) User() (model.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return model.User{}, false
	}
	return *m.user, true
}

// Authenticated reports whether an identity has been resolved.
func (m *Manager) Authenticated() bool {
	_, ok := m.User()
	return ok
}

// SetMode switches the credential strategy. Switching to session mode
// unconditionally discards any token state so credentials cannot leak across
// strategies.
func (m *Manager) SetMode(mode Mode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = mode
	m.store.Set(statestore.KeyAuthMode, string(mode))
	if mode == ModeSession {
		m.clearTokensLocked()
	}
}

// Initialize resolves the identity at startup.
//
// Token mode distinguishes "expired access, valid refresh" (recoverable, one
// refresh then one identity fetch) from "everything invalid" (terminal: all
// token state cleared and errs.ErrRefreshFailed returned so callers can tell
// an ended session from a user who never signed in). Session mode has no
// refresh concept: a failed identity fetch just means "not logged in" and is
// not an error.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	mode, access, refresh := m.mode, m.access, m.refresh
	m.mu.Unlock()

	if mode != ModeToken {
		u, err := m.api.Me(ctx)
		if err != nil {
			if isCtxErr(err) {
				return err
			}
			m.setUser(nil)
			return nil
		}
		m.setUser(&u)
		return nil
	}

	if access != "" {
		m.api.SetCredential(access)
		m.logTokenExpiry(access)
	}

	u, err := m.api.Me(ctx)
	if err == nil {
		m.setUser(&u)
		return nil
	}
	if isCtxErr(err) {
		return err
	}

	if refresh == "" {
		m.clearTokens()
		return nil
	}

	newAccess, err := m.api.RefreshToken(ctx, refresh)
	if err != nil {
		if isCtxErr(err) {
			return err
		}
		metrics.RecordRefresh("failure")
		m.log.Warn("token refresh rejected, session is over", zap.Error(err))
		m.clearTokens()
		return fmt.Errorf("%w: %v", errs.ErrRefreshFailed, err)
	}
	metrics.RecordRefresh("success")

	m.mu.Lock()
	m.access = newAccess
	m.store.Set(statestore.KeyAccessToken, newAccess)
	m.mu.Unlock()
	m.api.SetCredential(newAccess)

	u, err = m.api.Me(ctx)
	if err != nil {
		if isCtxErr(err) {
			return err
		}
		m.clearTokens()
		return nil
	}
	m.setUser(&u)
	return nil
}

// Register creates an account. It never establishes a session; callers log in
// separately. Session mode primes the anti-forgery cookie first.
func (m *Manager) Register(ctx context.Context, username, email, password string) (model.User, error) {
	if m.Mode() == ModeSession {
		if err := m.api.PrimeCSRF(ctx); err != nil {
			return model.User{}, err
		}
	}
	return m.api.Register(ctx, username, email, password)
}

// Login authenticates with the active strategy and resolves the identity.
func (m *Manager) Login(ctx context.Context, identifier, password string) error {
	if m.Mode() == ModeToken {
		return m.loginToken(ctx, identifier, password)
	}
	return m.loginSession(ctx, identifier, password)
}

func (m *Manager) loginSession(ctx context.Context, identifier, password string) error {
	if err := m.api.PrimeCSRF(ctx); err != nil {
		return err
	}
	u, err := m.api.LoginSession(ctx, identifier, password)
	if err != nil {
		return err
	}
	m.setUser(&u)
	return nil
}

func (m *Manager) loginToken(ctx context.Context, identifier, password string) error {
	pair, err := m.api.CreateToken(ctx, identifier, password)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.access = pair.Access
	m.refresh = pair.Refresh
	m.store.Set(statestore.KeyAccessToken, pair.Access)
	m.store.Set(statestore.KeyRefreshToken, pair.Refresh)
	m.mu.Unlock()
	m.api.SetCredential(pair.Access)

	u, err := m.api.Me(ctx)
	if err != nil {
		return err
	}
	m.setUser(&u)
	return nil
}

// Logout ends the session. The server call in session mode is best effort;
// the local cleanup always runs.
func (m *Manager) Logout(ctx context.Context) error {
	if m.Mode() == ModeSession {
		if err := m.api.LogoutSession(ctx); err != nil {
			m.log.Warn("server logout failed, clearing local state anyway", zap.Error(err))
		}
	}
	m.setUser(nil)
	m.clearTokens()
	return nil
}

func (m *Manager) setUser(u *model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = u
	if u == nil {
		m.store.Delete(statestore.KeyUserProfile)
		return
	}
	if b, err := json.Marshal(u); err == nil {
		m.store.Set(statestore.KeyUserProfile, string(b))
	}
}

func (m *Manager) clearTokens() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearTokensLocked()
}

func (m *Manager) clearTokensLocked() {
	m.access = ""
	m.refresh = ""
	m.store.Delete(statestore.KeyAccessToken)
	m.store.Delete(statestore.KeyRefreshToken)
	m.api.SetCredential("")
}

// logTokenExpiry decodes the access token's exp claim without verifying the
// signature; the client has no signing key and only wants telemetry.
func (m *Manager) logTokenExpiry(access string) {
	var claims jwt.RegisteredClaims
	_, _ = jwt.ParseWithClaims(access, &claims,
		func(*jwt.Token) (any, error) { return nil, nil },
		jwt.WithoutClaimsValidation(),
	)
	if claims.ExpiresAt != nil {
		m.log.Debug("persisted access token", zap.Time("expires_at", claims.ExpiresAt.Time))
	}
}

func isCtxErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
