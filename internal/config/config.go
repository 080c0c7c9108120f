package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all specforge configuration.
type Config struct {
	// LLM used for documentation enrichment and tier prompts
	LLM LLMConfig `yaml:"llm"`

	// Documentation extraction
	Extraction ExtractionConfig `yaml:"extraction"`

	// Enrichment batching and pacing
	Enrichment EnrichmentConfig `yaml:"enrichment"`

	// Generated package output
	Output OutputConfig `yaml:"output"`

	// Benchmark results used when minting snapshots
	Benchmark BenchmarkConfig `yaml:"benchmark"`

	// validate --watch
	Watch WatchConfig `yaml:"watch"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ExtractionConfig configures documentation extraction.
type ExtractionConfig struct {
	Depth          string `yaml:"depth"`           // shallow, standard, deep
	MaxConcurrency int    `yaml:"max_concurrency"` // per-source fan-out limit
	Timeout        string `yaml:"timeout"`         // per HTTP fetch
	UserAgent      string `yaml:"user_agent"`
}

// EnrichmentConfig configures the enrichment batch.
type EnrichmentConfig struct {
	Concurrency int      `yaml:"concurrency"`  // in-flight LLM calls
	MinInterval string   `yaml:"min_interval"` // minimum spacing between call starts
	Tiers       []string `yaml:"tiers"`        // tier identifiers for task prompts
}

// OutputConfig configures where generated packages go.
type OutputConfig struct {
	Dir    string `yaml:"dir"`
	Format string `yaml:"format"` // json5, json, yaml
}

// BenchmarkConfig locates benchmark results.
type BenchmarkConfig struct {
	Database string `yaml:"database"` // SQLite results database
}

// WatchConfig configures validate --watch.
type WatchConfig struct {
	Pattern  string `yaml:"pattern"`
	Debounce string `yaml:"debounce"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:   ProviderAnthropic,
			Model:      DefaultAnthropicModel,
			BaseURL:    "https://api.anthropic.com/v1",
			Timeout:    "120s",
			MaxRetries: 3,
		},

		Extraction: ExtractionConfig{
			Depth:          "standard",
			MaxConcurrency: 4,
			Timeout:        "30s",
			UserAgent:      "specforge/1.0 (documentation extractor)",
		},

		Enrichment: EnrichmentConfig{
			Concurrency: 2,
			MinInterval: "100ms",
			Tiers:       []string{"L0", "L1", "L2", "L3"},
		},

		Output: OutputConfig{
			Dir:    "specialists",
			Format: "json5",
		},

		Benchmark: BenchmarkConfig{
			Database: "",
		},

		Watch: WatchConfig{
			Pattern:  "**/*-template*.{json5,jsonc,json,yaml,yml}",
			Debounce: "300ms",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultConfigPath returns the default path to .specforge/config.yaml.
func DefaultConfigPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return filepath.Join(".specforge", "config.yaml")
	}
	return filepath.Join(cwd, ".specforge", "config.yaml")
}

// Load loads configuration from a YAML file. A missing file yields defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	anthropicKey := os.Getenv(EnvAnthropicAPIKey)
	geminiKey := os.Getenv(EnvGeminiAPIKey)

	// The key matching the configured provider wins; otherwise the first key
	// present selects its provider.
	switch {
	case c.LLM.Provider == ProviderGemini && geminiKey != "":
		c.LLM.APIKey = geminiKey
	case c.LLM.Provider != ProviderGemini && anthropicKey != "":
		c.LLM.APIKey = anthropicKey
		c.LLM.Provider = ProviderAnthropic
	case c.LLM.APIKey == "" && anthropicKey != "":
		c.LLM.APIKey = anthropicKey
		c.LLM.Provider = ProviderAnthropic
		c.LLM.Model = DefaultAnthropicModel
	case c.LLM.APIKey == "" && geminiKey != "":
		c.LLM.APIKey = geminiKey
		c.LLM.Provider = ProviderGemini
		c.LLM.Model = DefaultGeminiModel
	}

	if dir := os.Getenv("SPECFORGE_OUTPUT_DIR"); dir != "" {
		c.Output.Dir = dir
	}
	if db := os.Getenv("SPECFORGE_BENCHMARK_DB"); db != "" {
		c.Benchmark.Database = db
	}
	if level := os.Getenv("SPECFORGE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// GetLLMTimeout returns the LLM request timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 120*time.Second)
}

// GetExtractionTimeout returns the per-fetch extraction timeout.
func (c *Config) GetExtractionTimeout() time.Duration {
	return parseDuration(c.Extraction.Timeout, 30*time.Second)
}

// GetEnrichmentInterval returns the minimum spacing between enrichment calls.
func (c *Config) GetEnrichmentInterval() time.Duration {
	return parseDuration(c.Enrichment.MinInterval, 100*time.Millisecond)
}

// GetWatchDebounce returns the watch debounce window.
func (c *Config) GetWatchDebounce() time.Duration {
	return parseDuration(c.Watch.Debounce, 300*time.Millisecond)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

var (
	validDepths     = []string{"shallow", "standard", "deep"}
	validFormats    = []string{"json5", "json", "yaml"}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"json", "text"}
)

// Validate checks settings that would otherwise fail deep inside the
// pipeline. A missing API key is not an error here; it only blocks enrichment
// (see RequireLLM).
func (c *Config) Validate() error {
	if c.LLM.Provider != "" && !contains(ValidProviders, c.LLM.Provider) {
		return &ConfigurationError{Field: "llm.provider", Message: fmt.Sprintf("invalid provider %q (valid: %s)", c.LLM.Provider, strings.Join(ValidProviders, ", "))}
	}
	if !contains(validDepths, c.Extraction.Depth) {
		return &ConfigurationError{Field: "extraction.depth", Message: fmt.Sprintf("invalid depth %q (valid: %s)", c.Extraction.Depth, strings.Join(validDepths, ", "))}
	}
	if c.Extraction.MaxConcurrency < 1 {
		return &ConfigurationError{Field: "extraction.max_concurrency", Message: "must be at least 1"}
	}
	if c.Enrichment.Concurrency < 1 {
		return &ConfigurationError{Field: "enrichment.concurrency", Message: "must be at least 1"}
	}
	if !contains(validFormats, c.Output.Format) {
		return &ConfigurationError{Field: "output.format", Message: fmt.Sprintf("invalid format %q (valid: %s)", c.Output.Format, strings.Join(validFormats, ", "))}
	}
	if !contains(validLogLevels, c.Logging.Level) {
		return &ConfigurationError{Field: "logging.level", Message: fmt.Sprintf("invalid level %q (valid: %s)", c.Logging.Level, strings.Join(validLogLevels, ", "))}
	}
	if c.Logging.Format != "" && !contains(validLogFormats, c.Logging.Format) {
		return &ConfigurationError{Field: "logging.format", Message: fmt.Sprintf("invalid format %q (valid: %s)", c.Logging.Format, strings.Join(validLogFormats, ", "))}
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
