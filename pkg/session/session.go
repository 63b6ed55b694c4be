// Package session stores the browser-bridge session token the page
// driver needs to reach the photo library. Tokens live in the system
// keychain when one is available, with an encrypted file and plain
// environment variables as fallbacks.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Session is one authenticated bridge session for a library profile
type Session struct {
	Profile      string    `json:"profile"`
	BridgeToken  string    `json:"bridge_token"`
	DeviceID     string    `json:"device_id,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Store is the interface for persisting and retrieving sessions
type Store interface {
	// Save persists a session for its profile
	Save(session *Session) error

	// Retrieve gets the session for a specific profile
	Retrieve(profile string) (*Session, error)

	// List returns all stored sessions
	List() ([]*Session, error)

	// Delete removes the session for a specific profile
	Delete(profile string) error

	// Exists checks if a session exists for a profile
	Exists(profile string) bool
}

// Manager handles session storage with fallback mechanisms
type Manager struct {
	stores []Store
}

// NewManager creates a session manager with the available backends, in
// preference order: system keychain, encrypted file, environment.
func NewManager() (*Manager, error) {
	var stores []Store

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "sessions.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// Save persists a session using the first store that accepts it
func (m *Manager) Save(session *Session) error {
	if session.Profile == "" {
		return errors.New("profile is required")
	}
	if session.BridgeToken == "" {
		return errors.New("bridge token is required")
	}

	session.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Save(session); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to save session: %w", lastErr)
	}
	return errors.New("no available session stores")
}

// Retrieve gets the session from the first store that has it
func (m *Manager) Retrieve(profile string) (*Session, error) {
	for _, store := range m.stores {
		if session, err := store.Retrieve(profile); err == nil && session != nil {
			return session, nil
		}
	}
	return nil, fmt.Errorf("session not found for profile: %s", profile)
}

// RetrieveDefault gets the session for the default profile or the first
// available one. The environment store wins so CI and scripted runs can
// inject a token without touching any on-disk state.
func (m *Manager) RetrieveDefault() (*Session, error) {
	if envStore, ok := m.stores[len(m.stores)-1].(*EnvironmentStore); ok {
		if session, err := envStore.Retrieve(""); err == nil && session != nil {
			return session, nil
		}
	}

	sessions, err := m.List()
	if err == nil && len(sessions) > 0 {
		return sessions[0], nil
	}

	return nil, errors.New("no session found")
}

// List returns all stored sessions from all stores
func (m *Manager) List() ([]*Session, error) {
	sessionMap := make(map[string]*Session)

	for _, store := range m.stores {
		sessions, err := store.List()
		if err != nil {
			continue
		}
		for _, session := range sessions {
			if existing, ok := sessionMap[session.Profile]; !ok || session.LastModified.After(existing.LastModified) {
				sessionMap[session.Profile] = session
			}
		}
	}

	var result []*Session
	for _, session := range sessionMap {
		result = append(result, session)
	}

	return result, nil
}

// Delete removes the session from all stores
func (m *Manager) Delete(profile string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(profile); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete session: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("session not found for profile: %s", profile)
	}

	return nil
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	configDir := filepath.Join(xdg.ConfigHome, "phototriage")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// Sanitize creates a copy of the session with the token masked
func Sanitize(session *Session) *Session {
	if session == nil {
		return nil
	}

	return &Session{
		Profile:      session.Profile,
		BridgeToken:  maskString(session.BridgeToken),
		DeviceID:     session.DeviceID,
		LastModified: session.LastModified,
	}
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrInvalidSession   = errors.New("invalid session")
	ErrStoreUnavailable = errors.New("session store unavailable")
)
