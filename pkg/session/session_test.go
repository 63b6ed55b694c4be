package session

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerSaveAndRetrieve(t *testing.T) {
	manager, store := NewMockManager()

	err := manager.Save(&Session{Profile: "personal", BridgeToken: "tok-1234567890"})
	require.NoError(t, err)
	assert.Equal(t, 1, store.Count())

	got, err := manager.Retrieve("personal")
	require.NoError(t, err)
	assert.Equal(t, "personal", got.Profile)
	assert.Equal(t, "tok-1234567890", got.BridgeToken)
	assert.False(t, got.LastModified.IsZero(), "save stamps the modification time")
}

func TestManagerSaveRequiresProfileAndToken(t *testing.T) {
	manager, _ := NewMockManager()

	assert.Error(t, manager.Save(&Session{BridgeToken: "tok"}))
	assert.Error(t, manager.Save(&Session{Profile: "personal"}))
}

func TestManagerSaveFallsThroughToNextStore(t *testing.T) {
	broken := NewMockStore()
	broken.SaveError = errors.New("keychain locked")
	working := NewMockStore()
	manager := NewMockManagerWithStores(broken, working)

	require.NoError(t, manager.Save(&Session{Profile: "personal", BridgeToken: "tok-1234567890"}))
	assert.Equal(t, 0, broken.Count())
	assert.Equal(t, 1, working.Count())
}

func TestManagerSaveAllStoresFailing(t *testing.T) {
	broken := NewMockStore()
	broken.SaveError = errors.New("keychain locked")
	manager := NewMockManagerWithStores(broken)

	err := manager.Save(&Session{Profile: "personal", BridgeToken: "tok-1234567890"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keychain locked")
}

func TestManagerRetrieveUnknownProfile(t *testing.T) {
	manager, _ := NewMockManager()

	_, err := manager.Retrieve("missing")
	assert.Error(t, err)
}

func TestManagerListMostRecentWins(t *testing.T) {
	older := NewMockStore()
	newer := NewMockStore()
	require.NoError(t, older.Save(&Session{
		Profile: "personal", BridgeToken: "old-token-1234",
		LastModified: time.Now().Add(-time.Hour),
	}))
	require.NoError(t, newer.Save(&Session{
		Profile: "personal", BridgeToken: "new-token-1234",
		LastModified: time.Now(),
	}))

	manager := NewMockManagerWithStores(older, newer)
	sessions, err := manager.List()
	require.NoError(t, err)
	require.Len(t, sessions, 1, "the same profile across stores collapses to one entry")
	assert.Equal(t, "new-token-1234", sessions[0].BridgeToken)
}

func TestManagerListSkipsFailingStores(t *testing.T) {
	broken := NewMockStore()
	broken.ListError = errors.New("file corrupt")
	working := NewMockStore()
	require.NoError(t, working.Save(&Session{Profile: "personal", BridgeToken: "tok-1234567890"}))

	manager := NewMockManagerWithStores(broken, working)
	sessions, err := manager.List()
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestManagerDelete(t *testing.T) {
	manager, store := NewMockManager()
	require.NoError(t, manager.Save(&Session{Profile: "personal", BridgeToken: "tok-1234567890"}))

	require.NoError(t, manager.Delete("personal"))
	assert.Equal(t, 0, store.Count())

	assert.Error(t, manager.Delete("personal"), "deleting a missing profile fails")
}

func TestManagerDeleteRemovesFromAllStores(t *testing.T) {
	first := NewMockStore()
	second := NewMockStore()
	session := &Session{Profile: "personal", BridgeToken: "tok-1234567890"}
	require.NoError(t, first.Save(session))
	require.NoError(t, second.Save(session))

	manager := NewMockManagerWithStores(first, second)
	require.NoError(t, manager.Delete("personal"))
	assert.False(t, first.Exists("personal"))
	assert.False(t, second.Exists("personal"))
}

func TestRetrieveDefaultPrefersEnvironment(t *testing.T) {
	t.Setenv("PHOTOTRIAGE_BRIDGE_TOKEN", "env-token-1234")

	disk := NewMockStore()
	require.NoError(t, disk.Save(&Session{Profile: "personal", BridgeToken: "disk-token-1234"}))
	manager := NewMockManagerWithStores(disk, NewEnvironmentStore())

	got, err := manager.RetrieveDefault()
	require.NoError(t, err)
	assert.Equal(t, "env-token-1234", got.BridgeToken)
}

func TestRetrieveDefaultFallsBackToStoredSession(t *testing.T) {
	t.Setenv("PHOTOTRIAGE_BRIDGE_TOKEN", "")

	disk := NewMockStore()
	require.NoError(t, disk.Save(&Session{Profile: "personal", BridgeToken: "disk-token-1234"}))
	manager := NewMockManagerWithStores(disk, NewEnvironmentStore())

	got, err := manager.RetrieveDefault()
	require.NoError(t, err)
	assert.Equal(t, "disk-token-1234", got.BridgeToken)
}

func TestRetrieveDefaultNoSessions(t *testing.T) {
	t.Setenv("PHOTOTRIAGE_BRIDGE_TOKEN", "")
	manager, _ := NewMockManager()

	_, err := manager.RetrieveDefault()
	assert.Error(t, err)
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv("PHOTOTRIAGE_BRIDGE_TOKEN", "env-token-1234")
	t.Setenv("PHOTOTRIAGE_DEVICE_ID", "pixel-8")

	store := NewEnvironmentStore()
	got, err := store.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "env-token-1234", got.BridgeToken)
	assert.Equal(t, "pixel-8", got.DeviceID)

	assert.ErrorIs(t, store.Save(&Session{Profile: "p", BridgeToken: "t"}), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete("p"), ErrStoreUnavailable)
}

func TestEnvironmentStoreWithoutToken(t *testing.T) {
	t.Setenv("PHOTOTRIAGE_BRIDGE_TOKEN", "")

	store := NewEnvironmentStore()
	_, err := store.Retrieve("")
	assert.Error(t, err)
}

func TestSanitize(t *testing.T) {
	assert.Nil(t, Sanitize(nil))

	got := Sanitize(&Session{Profile: "personal", BridgeToken: "abcd1234efgh5678"})
	assert.Equal(t, "abcd...5678", got.BridgeToken)
	assert.Equal(t, "personal", got.Profile)

	short := Sanitize(&Session{Profile: "personal", BridgeToken: "tiny"})
	assert.Equal(t, "********", short.BridgeToken)
}
