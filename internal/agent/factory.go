package agent

import (
	"context"
	"fmt"
)

// Config selects and configures the hosted-model provider.
type Config struct {
	// Provider is one of "gemini", "openai", "mock", or "" (agent disabled).
	Provider string

	Gemini GeminiConfig
	OpenAI OpenAIConfig
}

// GeminiConfig holds Gemini-specific settings.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// OpenAIConfig holds OpenAI-specific settings.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string // optional override for OpenAI-compatible APIs
}

// NewProvider creates a Provider from configuration. An empty provider name
// returns (nil, nil): the caller treats a nil provider as "agent disabled"
// and renders from templates instead.
func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "gemini":
		return NewGeminiProvider(ctx, cfg.Gemini)
	case "openai":
		return NewOpenAIProvider(cfg.OpenAI)
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown agent provider: %q", cfg.Provider)
	}
}
