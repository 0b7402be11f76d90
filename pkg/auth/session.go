// Package auth keeps named platform sessions. A session is an opaque set
// of browser cookies obtained outside this tool; nothing here speaks the
// platform's login protocol.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

// Session is a named, externally obtained platform session
type Session struct {
	Name      string    `json:"name"`
	SessionID string    `json:"session_id"`
	CSRFToken string    `json:"csrf_token"`
	UserAgent string    `json:"user_agent,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate rejects sessions that cannot authenticate a request
func (s *Session) Validate() error {
	switch {
	case s == nil:
		return ErrInvalidSession
	case strings.TrimSpace(s.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidSession)
	case strings.TrimSpace(s.SessionID) == "" || strings.HasPrefix(s.SessionID, "YOUR_"):
		return fmt.Errorf("%w: session id is missing", ErrInvalidSession)
	case strings.TrimSpace(s.CSRFToken) == "":
		return fmt.Errorf("%w: csrf token is missing", ErrInvalidSession)
	}
	return nil
}

// Masked returns a copy safe to print
func (s *Session) Masked() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.SessionID = maskString(s.SessionID)
	c.CSRFToken = maskString(s.CSRFToken)
	return &c
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Store persists sessions by name
type Store interface {
	Save(session *Session) error
	Load(name string) (*Session, error)
	List() ([]*Session, error)
	Delete(name string) error
}

// Manager consults its stores in order: the first store that accepts a
// save wins, the first that has a session answers a load.
type Manager struct {
	stores []Store
}

// NewManager wires the keyring, an encrypted file under the user config
// directory and the environment, in that order of preference.
func NewManager() (*Manager, error) {
	var stores []Store

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := ConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "sessions.enc"), "")
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore, NewEnvironmentStore())

	return NewManagerWithStores(stores...), nil
}

// NewManagerWithStores builds a manager over explicit stores
func NewManagerWithStores(stores ...Store) *Manager {
	return &Manager{stores: stores}
}

// Save validates the session, stamps it and stores it in the first store that accepts it
func (m *Manager) Save(session *Session) error {
	if err := session.Validate(); err != nil {
		return err
	}
	session.UpdatedAt = time.Now()

	var errs []error
	for _, store := range m.stores {
		err := store.Save(session)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return ErrStoreUnavailable
	}
	return fmt.Errorf("failed to store session: %w", errors.Join(errs...))
}

// Load returns the named session from the first store that has a valid one
func (m *Manager) Load(name string) (*Session, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: session name is required", ErrInvalidSession)
	}
	for _, store := range m.stores {
		session, err := store.Load(name)
		if err != nil || session == nil {
			continue
		}
		if err := session.Validate(); err != nil {
			return nil, err
		}
		return session, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, name)
}

// List returns every stored session, newest version per name, sorted by name
func (m *Manager) List() ([]*Session, error) {
	byName := make(map[string]*Session)
	for _, store := range m.stores {
		sessions, err := store.List()
		if err != nil {
			continue
		}
		for _, s := range sessions {
			if existing, ok := byName[s.Name]; !ok || s.UpdatedAt.After(existing.UpdatedAt) {
				byName[s.Name] = s
			}
		}
	}

	result := make([]*Session, 0, len(byName))
	for _, s := range byName {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Delete removes the named session from every store holding it
func (m *Manager) Delete(name string) error {
	deleted := false
	for _, store := range m.stores {
		if err := store.Delete(name); err == nil {
			deleted = true
		}
	}
	if !deleted {
		return fmt.Errorf("%w: %q", ErrSessionNotFound, name)
	}
	return nil
}

// ConfigDir returns (and creates) the per-user igepub configuration directory
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "igepub")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "igepub")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "igepub")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "igepub")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// CookieGuide explains where the session values come from
const CookieGuide = `A session is copied from a logged-in browser:
  1. Log into https://www.instagram.com
  2. Open Developer Tools (F12) > Application/Storage > Cookies
  3. Copy the values of the "sessionid" and "csrftoken" cookies
Never share these values; they grant full access to the account.`

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrInvalidSession   = errors.New("invalid session")
	ErrStoreUnavailable = errors.New("session store unavailable")
)
