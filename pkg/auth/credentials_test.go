package auth

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyperdrive/pkg/config"
)

func clearKeyEnv(t *testing.T) {
	t.Helper()
	for _, vars := range EnvVars {
		for _, v := range vars {
			t.Setenv(v, "")
		}
	}
}

func TestManagerLifecycle(t *testing.T) {
	manager, store := NewMockManager()

	require.NoError(t, manager.Store(&Credential{Provider: "googleai", APIKey: "  AIzaSyExampleKey123  "}))

	cred, err := manager.Retrieve("googleai")
	require.NoError(t, err)
	assert.Equal(t, "AIzaSyExampleKey123", cred.APIKey)
	assert.False(t, cred.LastModified.IsZero())

	key, err := manager.APIKey("googleai")
	require.NoError(t, err)
	assert.Equal(t, "AIzaSyExampleKey123", key)

	creds, err := manager.List()
	require.NoError(t, err)
	require.Len(t, creds, 1)

	require.NoError(t, manager.Delete("googleai"))
	_, err = manager.Retrieve("googleai")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.Zero(t, store.Count())

	assert.ErrorIs(t, manager.Delete("googleai"), ErrCredentialsNotFound)
}

func TestManagerStoreValidates(t *testing.T) {
	manager, _ := NewMockManager()
	assert.Error(t, manager.Store(&Credential{APIKey: "k"}))
	assert.Error(t, manager.Store(&Credential{Provider: "openai", APIKey: "   "}))
	assert.Error(t, manager.Store(nil))
}

func TestManagerFallsThroughStores(t *testing.T) {
	broken := NewMockStore()
	broken.StoreError = errors.New("keychain locked")
	backup := NewMockStore()
	manager := NewManagerWithStores(broken, backup)

	require.NoError(t, manager.Store(&Credential{Provider: "openai", APIKey: "sk-test-123456789"}))
	assert.True(t, backup.Exists("openai"))
	assert.False(t, broken.Exists("openai"))

	cred, err := manager.Retrieve("openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-test-123456789", cred.APIKey)
}

func TestSanitize(t *testing.T) {
	s := Sanitize(&Credential{Provider: "openai", APIKey: "sk-abcdefghijkl"})
	assert.Equal(t, "sk-a...ijkl", s.APIKey)
	assert.Equal(t, "openai", s.Provider)
	assert.Equal(t, "********", Sanitize(&Credential{APIKey: "short"}).APIKey)
	assert.Nil(t, Sanitize(nil))
}

func TestEncryptedFileStore(t *testing.T) {
	t.Setenv(PassphraseEnv, "test_passphrase_123")
	path := filepath.Join(t.TempDir(), "credentials.enc")

	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Store(&Credential{Provider: "anthropic", APIKey: "sk-ant-secret-value"}))
	require.NoError(t, store.Store(&Credential{Provider: "openai", APIKey: "sk-openai-secret"}))

	cred, err := store.Retrieve("anthropic")
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-secret-value", cred.APIKey)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(content, []byte("sk-ant-secret-value")), "file holds plaintext key")

	// A second handle with the same passphrase reads the same data
	again, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	creds, err := again.List()
	require.NoError(t, err)
	require.Len(t, creds, 2)
	assert.Equal(t, "anthropic", creds[0].Provider)

	require.NoError(t, store.Delete("anthropic"))
	require.NoError(t, store.Delete("openai"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "file removed with last credential")
	assert.ErrorIs(t, store.Delete("openai"), ErrCredentialsNotFound)
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.enc")

	t.Setenv(PassphraseEnv, "right")
	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(&Credential{Provider: "openai", APIKey: "sk-x"}))

	t.Setenv(PassphraseEnv, "wrong")
	other, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	_, err = other.Retrieve("openai")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCredentialsNotFound)
}

func TestEncryptedFileStoreGeneratesPassphrase(t *testing.T) {
	t.Setenv(PassphraseEnv, "")
	dir := t.TempDir()

	store, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	require.NoError(t, err)
	require.NoError(t, store.Store(&Credential{Provider: "openai", APIKey: "sk-x"}))

	info, err := os.Stat(filepath.Join(dir, ".passphrase"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reopened, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	require.NoError(t, err)
	assert.True(t, reopened.Exists("openai"))
}

func TestEnvironmentStore(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("GEMINI_API_KEY", "legacy-key")

	store := NewEnvironmentStore()
	cred, err := store.Retrieve("googleai")
	require.NoError(t, err)
	assert.Equal(t, "legacy-key", cred.APIKey)

	t.Setenv("HYPERDRIVE_GOOGLEAI_API_KEY", "new-key")
	cred, err = store.Retrieve("googleai")
	require.NoError(t, err)
	assert.Equal(t, "new-key", cred.APIKey)

	_, err = store.Retrieve("openai")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	creds, err := store.List()
	require.NoError(t, err)
	assert.Len(t, creds, 1)

	assert.ErrorIs(t, store.Store(&Credential{Provider: "openai", APIKey: "k"}), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete("googleai"), ErrStoreUnavailable)
}

func TestResolveAPIKey(t *testing.T) {
	manager, _ := NewMockManager()
	require.NoError(t, manager.Store(&Credential{Provider: "openai", APIKey: "stored"}))

	key, err := ResolveAPIKey(&config.AnalysisConfig{Provider: "openai", APIKey: "configured"}, manager)
	require.NoError(t, err)
	assert.Equal(t, "configured", key)

	key, err = ResolveAPIKey(&config.AnalysisConfig{Provider: "openai"}, manager)
	require.NoError(t, err)
	assert.Equal(t, "stored", key)

	key, err = ResolveAPIKey(&config.AnalysisConfig{Provider: "ollama"}, nil)
	require.NoError(t, err)
	assert.Empty(t, key)

	_, err = ResolveAPIKey(&config.AnalysisConfig{Provider: "anthropic"}, manager)
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestShowKeyGuide(t *testing.T) {
	var buf bytes.Buffer
	ShowKeyGuide(&buf, "openai")
	assert.Contains(t, buf.String(), "platform.openai.com")
	assert.Contains(t, buf.String(), "OPENAI_API_KEY")
}
