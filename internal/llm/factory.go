package llm

import (
	"context"
	"fmt"
	"strings"
)

// Provider names accepted by New.
const (
	ProviderNone      = "none"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
	ProviderGemini    = "gemini"
)

// Config selects and configures a backend.
type Config struct {
	Provider   string
	Model      string
	APIKey     string
	AWSRegion  string
	AWSProfile string
}

// New builds the configured Completer. Provider "none" or "" returns a nil
// Completer, which callers treat as "no LLM available".
func New(ctx context.Context, cfg Config) (Completer, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "", ProviderNone:
		return nil, nil
	case ProviderAnthropic, ProviderBedrock:
		c, err := NewAnthropic(AnthropicConfig{
			Model:      cfg.Model,
			APIKey:     cfg.APIKey,
			UseBedrock: provider == ProviderBedrock,
			AWSRegion:  cfg.AWSRegion,
			AWSProfile: cfg.AWSProfile,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	case ProviderGemini:
		c, err := NewGemini(ctx, GeminiConfig{Model: cfg.Model, APIKey: cfg.APIKey})
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
