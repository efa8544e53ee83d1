package auth

import (
	"os"
	"sort"
	"time"
)

// EnvVars lists the environment variables read per provider, first match wins
var EnvVars = map[string][]string{
	"googleai":  {"HYPERDRIVE_GOOGLEAI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"openai":    {"HYPERDRIVE_OPENAI_API_KEY", "OPENAI_API_KEY"},
	"anthropic": {"HYPERDRIVE_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"},
}

// EnvironmentStore implements CredentialStore over environment variables.
// It is read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(*Credential) error {
	return ErrStoreUnavailable
}

// Retrieve reads the provider's key from the environment
func (e *EnvironmentStore) Retrieve(provider string) (*Credential, error) {
	for _, name := range EnvVars[provider] {
		if v := os.Getenv(name); v != "" {
			return &Credential{Provider: provider, APIKey: v, LastModified: time.Time{}}, nil
		}
	}
	return nil, ErrCredentialsNotFound
}

// List returns the providers whose keys are set
func (e *EnvironmentStore) List() ([]*Credential, error) {
	providers := make([]string, 0, len(EnvVars))
	for p := range EnvVars {
		providers = append(providers, p)
	}
	sort.Strings(providers)

	out := []*Credential{}
	for _, p := range providers {
		if cred, err := e.Retrieve(p); err == nil {
			out = append(out, cred)
		}
	}
	return out, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(string) error {
	return ErrStoreUnavailable
}

// Exists checks if the provider's key is set
func (e *EnvironmentStore) Exists(provider string) bool {
	_, err := e.Retrieve(provider)
	return err == nil
}
