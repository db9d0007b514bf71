// Package llm wraps the language model used by the dashboard assistant.
package llm

import "github.com/jonathan/parts-dashboard/internal/config"

// ModelTier selects how capable (and how expensive) a model a call needs.
type ModelTier string

const (
	// TierLite is for extraction and filter parsing.
	TierLite ModelTier = "lite"
	// TierStandard is for chat, analysis and summaries.
	TierStandard ModelTier = "standard"
)

// Provider names an LLM provider.
type Provider string

// ProviderGemini is the Google Gemini provider, the only one wired.
const ProviderGemini Provider = "gemini"

// Default generation settings.
const (
	DefaultMaxTokens   = 1024
	DefaultTemperature = 0.2
)

// Config holds model selection and generation settings.
type Config struct {
	Provider    Provider
	Models      map[ModelTier]string
	MaxTokens   int
	Temperature float32
}

// DefaultConfig returns the default Gemini configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
		},
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
	}
}

// FromSettings builds a Config from the [llm] section of the app config.
// Empty settings keep the defaults.
func FromSettings(settings config.LLMConfig) *Config {
	cfg := DefaultConfig()
	if settings.LiteModel != "" {
		cfg.Models[TierLite] = settings.LiteModel
	}
	if settings.StandardModel != "" {
		cfg.Models[TierStandard] = settings.StandardModel
	}
	if settings.MaxTokens > 0 {
		cfg.MaxTokens = settings.MaxTokens
	}
	return cfg
}

// GetModel returns the model name for a tier, falling back to standard then lite.
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok && model != "" {
		return model
	}
	if model, ok := c.Models[TierStandard]; ok && model != "" {
		return model
	}
	return c.Models[TierLite]
}

// WithModel returns a copy of c using model for tier.
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	next := *c
	next.Models = make(map[ModelTier]string, len(c.Models)+1)
	for k, v := range c.Models {
		next.Models[k] = v
	}
	next.Models[tier] = model
	return &next
}
