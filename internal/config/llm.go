package config

import "fmt"

// LLM providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// ValidProviders lists all supported LLM providers.
var ValidProviders = []string{ProviderAnthropic, ProviderGemini}

// Default model per provider.
const (
	DefaultAnthropicModel = "claude-sonnet-4-20250514"
	DefaultGeminiModel    = "gemini-2.5-flash"
)

// Environment variables carrying provider credentials.
const (
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvGeminiAPIKey    = "GEMINI_API_KEY"
)

// LLMConfig configures the reasoning service used for enrichment.
type LLMConfig struct {
	Provider   string `yaml:"provider"` // anthropic, gemini
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	Timeout    string `yaml:"timeout"`
	MaxRetries int    `yaml:"max_retries"`
}

// ConfigurationError reports a missing credential or an invalid setting.
type ConfigurationError struct {
	Field   string // config key, e.g. llm.api_key
	EnvVar  string // environment variable that can satisfy it, if any
	Message string
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
	if e.EnvVar != "" {
		msg += fmt.Sprintf(" (set %s)", e.EnvVar)
	}
	return msg
}

// EnvVarFor returns the credential environment variable for a provider.
func EnvVarFor(provider string) string {
	if provider == ProviderGemini {
		return EnvGeminiAPIKey
	}
	return EnvAnthropicAPIKey
}

// RequireLLM returns a ConfigurationError unless an LLM can be called. It is
// checked before any network call is attempted.
func (c *LLMConfig) RequireLLM() error {
	provider := c.Provider
	if provider == "" {
		provider = ProviderAnthropic
	}
	if !contains(ValidProviders, provider) {
		return &ConfigurationError{Field: "llm.provider", Message: fmt.Sprintf("unsupported provider %q", c.Provider)}
	}
	if c.APIKey == "" {
		return &ConfigurationError{
			Field:   "llm.api_key",
			EnvVar:  EnvVarFor(provider),
			Message: fmt.Sprintf("no API key configured for %s enrichment", provider),
		}
	}
	return nil
}
