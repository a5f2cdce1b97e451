package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/campusbite/canteen/app/models"
)

// Session is the signed-in user and their token. It lives in memory and is
// written to disk only by Persist.
type Session struct {
	path string

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
	user      models.User
}

type sessionFile struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      models.User `json:"user"`
}

// NewSession returns an empty session bound to path.
func NewSession(path string) *Session {
	return &Session{path: path}
}

// LoadSession reads path. A missing file yields an empty session; an expired
// one is loaded empty as well.
func LoadSession(path string) (*Session, error) {
	s := NewSession(path)
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) Load() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("session: read %s: %w", s.path, err)
	}
	var f sessionFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("session: decode %s: %w", s.path, err)
	}
	if !f.ExpiresAt.IsZero() && time.Now().After(f.ExpiresAt) {
		return nil
	}

	s.mu.Lock()
	s.token, s.expiresAt, s.user = f.Token, f.ExpiresAt, f.User
	s.mu.Unlock()
	return nil
}

// Persist writes the session atomically with owner-only permissions.
func (s *Session) Persist() error {
	s.mu.RLock()
	f := sessionFile{Token: s.token, ExpiresAt: s.expiresAt, User: s.user}
	s.mu.RUnlock()

	raw, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("session: write: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

// Clear signs out: memory is reset and the file removed.
func (s *Session) Clear() error {
	s.mu.Lock()
	s.token, s.expiresAt, s.user = "", time.Time{}, models.User{}
	s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("session: %w", err)
	}
	return nil
}

// Set replaces the signed-in user without persisting.
func (s *Session) Set(token string, expiresAt time.Time, user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.expiresAt, s.user = token, expiresAt, user
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) User() models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Active reports whether a non-expired token is held.
func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && (s.expiresAt.IsZero() || time.Now().Before(s.expiresAt))
}
