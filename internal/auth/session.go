package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Session is a file-backed Provider. Login writes the principal to a
// session file so the signed-in state survives process restarts; Logout
// removes it. This mirrors how the device keeps a user signed in between
// launches.
type Session struct {
	path string

	mu  sync.RWMutex
	uid string
}

type sessionFile struct {
	UID      string    `json:"uid"`
	SignedIn time.Time `json:"signedIn"`
}

// OpenSession loads the session state from path. A missing or corrupt
// session file means signed out, not an error.
func OpenSession(path string) (*Session, error) {
	s := &Session{path: path}

	blob, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var sf sessionFile
	if err := json.Unmarshal(blob, &sf); err != nil {
		// Treat a corrupt session as signed out.
		return s, nil
	}
	s.uid = sf.UID
	return s, nil
}

// CurrentPrincipal implements Provider.
func (s *Session) CurrentPrincipal() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.uid == "" {
		return "", ErrNotAuthenticated
	}
	return s.uid, nil
}

// Login records uid as the signed-in principal and persists it.
func (s *Session) Login(uid string) error {
	if uid == "" {
		return fmt.Errorf("uid is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	blob, err := json.Marshal(sessionFile{UID: uid, SignedIn: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := os.WriteFile(s.path, blob, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	s.uid = uid
	return nil
}

// Logout clears the signed-in principal and removes the session file.
func (s *Session) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	s.uid = ""
	return nil
}
