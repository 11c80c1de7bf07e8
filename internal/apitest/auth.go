package apitest

import (
	"encoding/json"
	"net/http"
	"strings"
)

func (s *Server) handleCSRF(w http.ResponseWriter, r *http.Request) {
	tok := randomHex(16)
	http.SetCookie(w, &http.Cookie{Name: csrfCookie, Value: tok, Path: "/"})
	writeJSON(w, http.StatusOK, map[string]string{"csrfToken": tok})
}

// requireCSRF mirrors the backend: unsafe requests carrying cookies must echo
// the anti-forgery cookie in the header. Cookie-less requests (token mode)
// pass through.
func (s *Server) requireCSRF(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie(csrfCookie); err == nil {
			if r.Header.Get(csrfHeader) != ck.Value {
				writeDetail(w, http.StatusForbidden, "CSRF verification failed.")
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fields := map[string][]string{}
	if req.Username == "" {
		fields["username"] = []string{"This field may not be blank."}
	}
	if req.Password == "" {
		fields["password"] = []string{"This field may not be blank."}
	}
	s.mu.Lock()
	if _, taken := s.users[req.Username]; taken {
		fields["username"] = []string{"A user with that username already exists."}
	}
	s.mu.Unlock()
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, fields)
		return
	}

	id := s.AddUser(req.Username, req.Email, req.Password)
	writeJSON(w, http.StatusCreated, map[string]any{
		"id": id, "username": req.Username, "email": req.Email,
	})
}

func (s *Server) authenticate(identifier, password string) (*user, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[identifier]; ok && u.password == password {
		return u, true
	}
	if strings.Contains(identifier, "@") {
		for _, u := range s.users {
			if strings.EqualFold(u.email, identifier) && u.password == password {
				return u, true
			}
		}
	}
	return nil, false
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Identifier == "" || req.Password == "" {
		writeDetail(w, http.StatusBadRequest, "Identifier and password are required.")
		return
	}
	u, ok := s.authenticate(req.Identifier, req.Password)
	if !ok {
		writeDetail(w, http.StatusBadRequest, "Invalid credentials.")
		return
	}

	sid := randomHex(16)
	s.mu.Lock()
	s.sessions[sid] = u.username
	s.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: sid, Path: "/", HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]any{
		"id": u.id, "username": u.username, "email": u.email,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if ck, err := r.Cookie(sessionCookie); err == nil {
		s.mu.Lock()
		delete(s.sessions, ck.Value)
		s.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Logged out."})
}

// currentUser resolves the requester via session cookie or bearer token.
func (s *Server) currentUser(r *http.Request) (*user, bool) {
	if ck, err := r.Cookie(sessionCookie); err == nil {
		s.mu.Lock()
		username, ok := s.sessions[ck.Value]
		u := s.users[username]
		s.mu.Unlock()
		if ok && u != nil {
			return u, true
		}
	}
	auth := r.Header.Get("Authorization")
	if parts := strings.SplitN(auth, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		if username, ok := s.parseToken(parts[1], "access"); ok {
			s.mu.Lock()
			u := s.users[username]
			s.mu.Unlock()
			if u != nil {
				return u, true
			}
		}
	}
	return nil, false
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id": u.id, "username": u.username, "email": u.email,
	})
}

func (s *Server) handleTokenCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, ok := s.authenticate(req.Username, req.Password)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "No active account found with the given credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"access":  s.IssueAccessToken(u.username, s.AccessTTL),
		"refresh": s.IssueRefreshToken(u.username),
	})
}

func (s *Server) handleTokenRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	username, ok := s.parseToken(req.Refresh, "refresh")
	if s.RejectRefresh || !ok {
		writeDetail(w, http.StatusUnauthorized, "Token is invalid or expired")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"access": s.IssueAccessToken(username, s.AccessTTL),
	})
}

// requireAuth guards the conversation routes.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.currentUser(r); !ok {
			writeDetail(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
