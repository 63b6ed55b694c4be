package session

import (
	"os"
	"time"
)

// EnvironmentStore implements Store using environment variables. Tokens
// arrive via PHOTOTRIAGE_BRIDGE_TOKEN, which suits CI and one-off runs.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based session store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Save is not supported for environment variables
func (e *EnvironmentStore) Save(session *Session) error {
	return ErrStoreUnavailable
}

// Retrieve builds a session from environment variables
func (e *EnvironmentStore) Retrieve(profile string) (*Session, error) {
	token := os.Getenv("PHOTOTRIAGE_BRIDGE_TOKEN")
	deviceID := os.Getenv("PHOTOTRIAGE_DEVICE_ID")

	if token == "" {
		return nil, ErrSessionNotFound
	}

	if profile == "" {
		profile = "default"
	}

	return &Session{
		Profile:      profile,
		BridgeToken:  token,
		DeviceID:     deviceID,
		LastModified: time.Now(),
	}, nil
}

// List returns a single session if the environment variable is set
func (e *EnvironmentStore) List() ([]*Session, error) {
	session, err := e.Retrieve("")
	if err != nil {
		return []*Session{}, nil
	}
	return []*Session{session}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(profile string) error {
	return ErrStoreUnavailable
}

// Exists checks if an environment session is present
func (e *EnvironmentStore) Exists(profile string) bool {
	return os.Getenv("PHOTOTRIAGE_BRIDGE_TOKEN") != ""
}
