// Package apitest runs an in-process stand-in for the chat backend so client
// packages can be tested against real HTTP, cookies and CSRF handling.
package apitest

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/golang-jwt/jwt/v5"
)

const (
	sessionCookie = "sessionid"
	csrfCookie    = "csrftoken"
	csrfHeader    = "X-CSRFToken"
)

type user struct {
	id       int64
	username string
	email    string
	password string
}

type message struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type conversation struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	messages []message
}

// Server is the fake backend. Behavior toggles are safe to flip between
// requests but not concurrently with one.
type Server struct {
	URL string

	hs     *httptest.Server
	secret []byte

	// Behavior toggles for failure-path tests.
	Answer        string
	FailAsk       bool
	AskStall      time.Duration
	RejectRefresh bool
	AccessTTL     time.Duration

	mu        sync.Mutex
	users     map[string]*user
	sessions  map[string]string
	convs     map[int64]*conversation
	convOrder []int64
	nextUser  int64
	nextConv  int64
	nextMsg   int64
}

// Option configures the fake server before it starts.
type Option func(*options)

type options struct {
	askLimit  int
	askWindow time.Duration
}

// WithAskRateLimit throttles the ask endpoint by client IP.
func WithAskRateLimit(requests int, window time.Duration) Option {
	return func(o *options) {
		o.askLimit = requests
		o.askWindow = window
	}
}

// NewServer starts the fake backend. Callers must Close it.
func NewServer(opts ...Option) *Server {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{
		secret:    []byte("apitest-secret"),
		Answer:    "the model's answer",
		AccessTTL: 15 * time.Minute,
		users:     map[string]*user{},
		sessions:  map[string]string{},
		convs:     map[int64]*conversation{},
	}

	r := chi.NewRouter()
	r.Route("/auth", func(r chi.Router) {
		r.Get("/csrf/", s.handleCSRF)
		r.Post("/register/", s.requireCSRF(s.handleRegister))
		r.Post("/login/", s.requireCSRF(s.handleLogin))
		r.Post("/logout/", s.requireCSRF(s.handleLogout))
		r.Get("/me/", s.handleMe)
		r.Post("/jwt/create/", s.handleTokenCreate)
		r.Post("/jwt/refresh/", s.handleTokenRefresh)
	})
	r.Route("/chat", func(r chi.Router) {
		r.Route("/conversations", func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/", s.handleListConversations)
			r.Post("/", s.handleCreateConversation)
			r.Get("/{id}/", s.handleGetConversation)
			r.Patch("/{id}/", s.handleRenameConversation)
			r.Delete("/{id}/", s.handleDeleteConversation)
			r.Post("/{id}/add_message/", s.handleAddMessage)
			r.Get("/{id}/messages/", s.handleListMessages)
		})
		ask := http.HandlerFunc(s.handleAsk)
		if o.askLimit > 0 {
			r.With(httprate.LimitByIP(o.askLimit, o.askWindow)).Post("/ask/", ask)
		} else {
			r.Post("/ask/", ask)
		}
	})

	s.hs = httptest.NewServer(r)
	s.URL = s.hs.URL
	return s
}

// Close shuts the fake backend down.
func (s *Server) Close() {
	s.hs.Close()
}

// AddUser registers an account directly, bypassing the HTTP surface.
func (s *Server) AddUser(username, email, password string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUser++
	s.users[username] = &user{id: s.nextUser, username: username, email: email, password: password}
	return s.nextUser
}

// IssueAccessToken mints an access token with the given lifetime; negative
// lifetimes produce already-expired tokens.
func (s *Server) IssueAccessToken(username string, ttl time.Duration) string {
	return s.signToken(username, "access", ttl)
}

// IssueRefreshToken mints a refresh token.
func (s *Server) IssueRefreshToken(username string) string {
	return s.signToken(username, "refresh", 24*time.Hour)
}

// MessageTexts returns the persisted message bodies of one conversation.
func (s *Server) MessageTexts(convID int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[convID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(conv.messages))
	for _, m := range conv.messages {
		out = append(out, m.Content)
	}
	return out
}

// ConversationTitle returns the stored title of one conversation.
func (s *Server) ConversationTitle(convID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.convs[convID]; ok {
		return conv.Title
	}
	return ""
}

// ConversationCount returns how many conversations the server holds.
func (s *Server) ConversationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.convs)
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Use string `json:"use"`
}

func (s *Server) signToken(username, use string, ttl time.Duration) string {
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Use: use,
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		panic(err)
	}
	return tok
}

func (s *Server) parseToken(raw, use string) (string, bool) {
	claims := &tokenClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil || !tok.Valid || claims.Use != use {
		return "", false
	}
	return claims.Subject, true
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeDetail writes a DRF-style detail error.
func writeDetail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"detail": message})
}
