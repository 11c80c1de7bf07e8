// Package statestore persists client state as a small key/value file, the
// stand-in for the browser's local storage. Absence of a key means "use the
// default", never an error.
package statestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// Well-known keys.
const (
	KeyAuthMode            = "auth_mode"
	KeyAccessToken         = "access_token"
	KeyRefreshToken        = "refresh_token"
	KeyCurrentConversation = "current_conversation"
	KeyUserProfile         = "user_profile"
)

const stateFile = "state.json"

// Store is a file-backed key/value store. The file is read once at Open;
// writes update memory first and flush to disk best effort, so a failed
// flush never blocks or reverts an in-memory change.
type Store struct {
	path string

	mu sync.Mutex
	kv map[string]string
}

// Open reads the state file under dir, creating the directory if needed.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	s := &Store{
		path: filepath.Join(dir, stateFile),
		kv:   map[string]string{},
	}
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(b, &s.kv); err != nil {
		// A corrupt state file is treated as empty rather than fatal.
		s.kv = map[string]string{}
	}
	return s, nil
}

// Get returns the value for key, or "" when unset.
func (s *Store) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv[key]
}

// Set stores key=value and flushes.
func (s *Store) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv[key] = value
	s.flushLocked()
}

// Delete removes key and flushes.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.kv, key)
	s.flushLocked()
}

func (s *Store) flushLocked() {
	b, err := json.MarshalIndent(s.kv, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(s.path, b, 0o600)
}
