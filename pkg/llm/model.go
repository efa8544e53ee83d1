// Package llm implements the analysis Generator over langchaingo providers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"hyperdrive/pkg/config"
	errs "hyperdrive/pkg/errors"
)

// Supported providers
const (
	ProviderGoogleAI  = "googleai"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// ErrFatalAPI marks provider errors that will not go away on retry
var ErrFatalAPI = errors.New("fatal completion API error")

// Model wraps a langchaingo model for single-prompt completion
type Model struct {
	llm       llms.Model
	provider  string
	modelName string
}

// NewModel creates a Model for the configured provider. apiKey overrides
// cfg.APIKey when non-empty.
func NewModel(ctx context.Context, cfg *config.AnalysisConfig, apiKey string) (*Model, error) {
	if apiKey == "" {
		apiKey = cfg.APIKey
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderGoogleAI
	}

	var (
		model llms.Model
		err   error
	)
	switch provider {
	case ProviderGoogleAI:
		if apiKey == "" {
			return nil, errs.New(errs.ErrorTypeConfig, "Google AI API key required")
		}
		opts := []googleai.Option{googleai.WithAPIKey(apiKey)}
		if cfg.Model != "" {
			opts = append(opts, googleai.WithDefaultModel(cfg.Model))
		}
		model, err = googleai.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("create googleai model: %w", err)
		}

	case ProviderOpenAI:
		if apiKey == "" {
			return nil, errs.New(errs.ErrorTypeConfig, "OpenAI API key required")
		}
		opts := []openai.Option{openai.WithToken(apiKey)}
		if cfg.Model != "" {
			opts = append(opts, openai.WithModel(cfg.Model))
		}
		if cfg.ServerURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.ServerURL))
		}
		model, err = openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case ProviderAnthropic:
		if apiKey == "" {
			return nil, errs.New(errs.ErrorTypeConfig, "Anthropic API key required")
		}
		opts := []anthropic.Option{anthropic.WithToken(apiKey)}
		if cfg.Model != "" {
			opts = append(opts, anthropic.WithModel(cfg.Model))
		}
		model, err = anthropic.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	case ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.ServerURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.ServerURL))
		}
		model, err = ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	default:
		return nil, errs.Newf(errs.ErrorTypeConfig, "unsupported LLM provider: %s", cfg.Provider)
	}

	return &Model{llm: model, provider: provider, modelName: cfg.Model}, nil
}

// NewFromLLM wraps an existing langchaingo model
func NewFromLLM(m llms.Model, provider, modelName string) *Model {
	return &Model{llm: m, provider: provider, modelName: modelName}
}

// Generate completes a single prompt
func (m *Model) Generate(ctx context.Context, prompt string) (string, error) {
	response, err := llms.GenerateFromSinglePrompt(ctx, m.llm, prompt)
	if err != nil {
		return "", wrapFatalError(fmt.Errorf("generate: %w", err))
	}
	return response, nil
}

// Provider returns the provider name
func (m *Model) Provider() string {
	return m.provider
}

// Model returns the model name
func (m *Model) Model() string {
	return m.modelName
}

var fatalMarkers = []string{
	"credit balance",
	"quota exceeded",
	"billing",
	"invalid api key",
	"api key not valid",
	"authentication",
	"unauthorized",
	"permission denied",
	"401",
	"403",
}

// IsFatalAPIError reports whether err looks like an account or credential
// problem rather than a transient failure
func IsFatalAPIError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range fatalMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

func wrapFatalError(err error) error {
	if IsFatalAPIError(err) {
		return fmt.Errorf("%w: %w", ErrFatalAPI, err)
	}
	return err
}
