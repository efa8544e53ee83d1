package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"hyperdrive/pkg/analysis"
	"hyperdrive/pkg/config"
	errs "hyperdrive/pkg/errors"
)

// stubLLM answers every prompt with a fixed reply
type stubLLM struct {
	reply  string
	err    error
	prompt string
}

func (s *stubLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	for _, m := range messages {
		for _, p := range m.Parts {
			if tp, ok := p.(llms.TextContent); ok {
				s.prompt = tp.Text
			}
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: s.reply}}}, nil
}

func (s *stubLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, s, prompt, options...)
}

var _ analysis.Generator = (*Model)(nil)

func TestGenerate(t *testing.T) {
	stub := &stubLLM{reply: `{"summary": "ok"}`}
	m := NewFromLLM(stub, ProviderGoogleAI, "gemini-2.0-flash")

	out, err := m.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, `{"summary": "ok"}`, out)
	assert.Equal(t, "hello", stub.prompt)
	assert.Equal(t, "gemini-2.0-flash", m.Model())
	assert.Equal(t, ProviderGoogleAI, m.Provider())
}

func TestGenerateErrors(t *testing.T) {
	m := NewFromLLM(&stubLLM{err: errors.New("HTTP 403: forbidden")}, ProviderOpenAI, "x")
	_, err := m.Generate(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrFatalAPI)

	m = NewFromLLM(&stubLLM{err: errors.New("connection reset")}, ProviderOpenAI, "x")
	_, err = m.Generate(context.Background(), "hello")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrFatalAPI)
}

func TestIsFatalAPIError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil error", nil, false},
		{"generic error", errors.New("connection reset"), false},
		{"quota exceeded", errors.New("quota exceeded for model"), true},
		{"invalid key", errors.New("API key not valid. Please pass a valid API key."), true},
		{"unauthorized", errors.New("unauthorized request"), true},
		{"wrapped", fmt.Errorf("generate: %w", errors.New("credit balance too low")), true},
		{"timeout", errors.New("context deadline exceeded"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fatal, IsFatalAPIError(tt.err))
		})
	}
}

func TestNewModelValidation(t *testing.T) {
	ctx := context.Background()

	_, err := NewModel(ctx, &config.AnalysisConfig{Provider: "googleai"}, "")
	assert.True(t, errs.Is(err, errs.ErrorTypeConfig))

	_, err = NewModel(ctx, &config.AnalysisConfig{Provider: "openai"}, "")
	assert.True(t, errs.Is(err, errs.ErrorTypeConfig))

	_, err = NewModel(ctx, &config.AnalysisConfig{Provider: "anthropic"}, "")
	assert.True(t, errs.Is(err, errs.ErrorTypeConfig))

	_, err = NewModel(ctx, &config.AnalysisConfig{Provider: "palm"}, "key")
	assert.True(t, errs.Is(err, errs.ErrorTypeConfig))
	assert.Contains(t, err.Error(), "unsupported LLM provider")
}

func TestNewModelOpenAI(t *testing.T) {
	m, err := NewModel(context.Background(), &config.AnalysisConfig{
		Provider:  "OpenAI",
		Model:     "gpt-4o-mini",
		ServerURL: "http://127.0.0.1:1/v1",
	}, "sk-test")
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, m.Provider())
}
