package client

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// SessionUser is the part of the logged-in user the CLI keeps around.
type SessionUser struct {
	ID       uuid.UUID `yaml:"id"`
	Username string    `yaml:"username"`
	FullName string    `yaml:"full_name"`
	Role     string    `yaml:"role"`
}

type Session struct {
	Server      string      `yaml:"server"`
	Domain      string      `yaml:"domain"`
	Username    string      `yaml:"username"`
	SessionCode string      `yaml:"session_code"`
	ExpiresAt   time.Time   `yaml:"expires_at"`
	User        SessionUser `yaml:"user"`
}

// Empty reports whether the session carries no usable credentials.
func (s *Session) Empty() bool {
	return s == nil || s.SessionCode == ""
}

// SessionStore persists the session as YAML in a single file readable only
// by its owner.
type SessionStore struct {
	path string
	now  func() time.Time
}

func NewSessionStore(path string) *SessionStore {
	return &SessionStore{path: path, now: time.Now}
}

// DefaultSessionPath is ~/.inspectctl/session.yaml.
func DefaultSessionPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".inspectctl", "session.yaml"), nil
}

func (s *SessionStore) Path() string { return s.path }

// Load returns the stored session. A missing file or an expired session
// yields an empty session, not an error.
func (s *SessionStore) Load() (*Session, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &Session{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	var sess Session
	if err := yaml.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", s.path, err)
	}
	if !sess.ExpiresAt.IsZero() && !s.now().Before(sess.ExpiresAt) {
		return &Session{Server: sess.Server}, nil
	}
	return &sess, nil
}

// Save replaces the session file atomically.
func (s *SessionStore) Save(sess *Session) error {
	data, err := yaml.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod session file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *SessionStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
