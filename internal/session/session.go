// Package session holds the acting user and persists it between CLI runs.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reelshare/internal/observability"

	"github.com/spf13/viper"
)

// ErrNoSession is returned by Load when nobody is logged in.
var ErrNoSession = errors.New("no active session")

const (
	keyUserID  = "user_id"
	keySavedAt = "saved_at"
)

// Session identifies the user every social operation acts as.
type Session struct {
	UserID string
}

// New returns a session for userID.
func New(userID string) Session {
	return Session{UserID: strings.TrimSpace(userID)}
}

// Valid reports whether the session names a user.
func (s Session) Valid() bool { return s.UserID != "" }

// Context attaches the acting user to ctx for logging and the X-User-ID header.
func (s Session) Context(ctx context.Context) context.Context {
	return observability.WithUserID(ctx, s.UserID)
}

// Store persists the current user id to a small YAML file.
type Store struct {
	path string
}

// DefaultPath is ~/.config/reelshare/session.yml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".config", "reelshare", "session.yml"), nil
}

// NewStore returns a store at path. An empty path uses DefaultPath; a path
// without an extension gets ".yml".
func NewStore(path string) (*Store, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if filepath.Ext(path) == "" {
		path += ".yml"
	}
	return &Store{path: path}, nil
}

// Path returns the session file location.
func (s *Store) Path() string { return s.path }

// Load reads the saved session.
func (s *Store) Load() (Session, error) {
	if _, err := os.Stat(s.path); err != nil {
		if os.IsNotExist(err) {
			return Session{}, ErrNoSession
		}
		return Session{}, fmt.Errorf("stat session file: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(s.path)
	if err := v.ReadInConfig(); err != nil {
		return Session{}, fmt.Errorf("read session file: %w", err)
	}
	sess := New(v.GetString(keyUserID))
	if !sess.Valid() {
		return Session{}, ErrNoSession
	}
	return sess, nil
}

// Save writes sess, replacing any previous session.
func (s *Store) Save(sess Session) error {
	if !sess.Valid() {
		return errors.New("session: user id is required")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	v := viper.New()
	v.Set(keyUserID, sess.UserID)
	v.Set(keySavedAt, time.Now().UTC().Format(time.RFC3339))
	if err := v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

// Clear removes the saved session. Clearing an empty store is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}
