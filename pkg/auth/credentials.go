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

	"hyperdrive/pkg/config"
)

// Credential is the API key of one completion-service provider
type Credential struct {
	Provider     string    `json:"provider"`
	APIKey       string    `json:"api_key"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is the interface for storing and retrieving credentials
type CredentialStore interface {
	// Store saves the credential for its provider
	Store(cred *Credential) error

	// Retrieve gets the credential for a provider
	Retrieve(provider string) (*Credential, error)

	// List returns all stored credentials
	List() ([]*Credential, error)

	// Delete removes the credential for a provider
	Delete(provider string) error

	// Exists checks if a credential exists for a provider
	Exists(provider string) bool
}

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a manager over the system keyring, an encrypted file in
// dir and the environment, in that order. An empty dir uses the user config
// directory.
func NewManager(dir string) (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	if dir == "" {
		var err error
		if dir, err = getConfigDir(); err != nil {
			return nil, fmt.Errorf("failed to get config directory: %w", err)
		}
	}
	encryptedStore, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a manager over the given stores
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves the credential in the first store that accepts it
func (m *Manager) Store(cred *Credential) error {
	if cred == nil || cred.Provider == "" {
		return errors.New("provider is required")
	}
	if strings.TrimSpace(cred.APIKey) == "" {
		return errors.New("API key is required")
	}
	cred.APIKey = strings.TrimSpace(cred.APIKey)
	cred.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(cred)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve gets the credential from the first store that has it
func (m *Manager) Retrieve(provider string) (*Credential, error) {
	for _, store := range m.stores {
		if cred, err := store.Retrieve(provider); err == nil && cred != nil {
			return cred, nil
		}
	}
	return nil, fmt.Errorf("%w for provider: %s", ErrCredentialsNotFound, provider)
}

// APIKey returns the stored key for provider
func (m *Manager) APIKey(provider string) (string, error) {
	cred, err := m.Retrieve(provider)
	if err != nil {
		return "", err
	}
	return cred.APIKey, nil
}

// List returns one credential per provider, the most recently modified
// across stores.
func (m *Manager) List() ([]*Credential, error) {
	byProvider := make(map[string]*Credential)

	for _, store := range m.stores {
		creds, err := store.List()
		if err != nil {
			continue
		}
		for _, cred := range creds {
			if existing, ok := byProvider[cred.Provider]; !ok || cred.LastModified.After(existing.LastModified) {
				byProvider[cred.Provider] = cred
			}
		}
	}

	result := make([]*Credential, 0, len(byProvider))
	for _, cred := range byProvider {
		result = append(result, cred)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Provider < result[j].Provider })
	return result, nil
}

// Delete removes the credential from every store
func (m *Manager) Delete(provider string) error {
	var (
		deleted bool
		lastErr error
	)
	for _, store := range m.stores {
		if err := store.Delete(provider); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if deleted {
		return nil
	}
	if lastErr != nil && !errors.Is(lastErr, ErrCredentialsNotFound) && !errors.Is(lastErr, ErrStoreUnavailable) {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	return fmt.Errorf("%w for provider: %s", ErrCredentialsNotFound, provider)
}

// KeySource looks up stored API keys
type KeySource interface {
	APIKey(provider string) (string, error)
}

// ResolveAPIKey returns the configured key, falling back to keys. Providers
// that run locally need no key.
func ResolveAPIKey(cfg *config.AnalysisConfig, keys KeySource) (string, error) {
	if cfg.APIKey != "" {
		return cfg.APIKey, nil
	}
	if !NeedsKey(cfg.Provider) {
		return "", nil
	}
	if keys == nil {
		return "", fmt.Errorf("%w for provider: %s", ErrCredentialsNotFound, cfg.Provider)
	}
	return keys.APIKey(cfg.Provider)
}

// NeedsKey reports whether provider requires an API key
func NeedsKey(provider string) bool {
	return provider != "ollama"
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "hyperdrive")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "hyperdrive")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "hyperdrive")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "hyperdrive")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// Sanitize returns a copy of cred with the key masked
func Sanitize(cred *Credential) *Credential {
	if cred == nil {
		return nil
	}
	return &Credential{
		Provider:     cred.Provider,
		APIKey:       maskString(cred.APIKey),
		LastModified: cred.LastModified,
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
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
