package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable applyEnvOverrides reads.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvAnthropicAPIKey, EnvGeminiAPIKey, "SPECFORGE_OUTPUT_DIR", "SPECFORGE_BENCHMARK_DB", "SPECFORGE_LOG_LEVEL"} {
		t.Setenv(key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ProviderAnthropic, cfg.LLM.Provider)
	assert.Equal(t, "standard", cfg.Extraction.Depth)
	assert.Equal(t, []string{"L0", "L1", "L2", "L3"}, cfg.Enrichment.Tiers)
	assert.Equal(t, "json5", cfg.Output.Format)
	require.NoError(t, cfg.Validate())
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".specforge", "config.yaml")

	cfg := DefaultConfig()
	cfg.LLM.Provider = ProviderGemini
	cfg.LLM.APIKey = "g-test"
	cfg.Output.Dir = "out"
	cfg.Logging.Categories = map[string]bool{"enrich": false}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, loaded.LLM.Provider)
	assert.Equal(t, "g-test", loaded.LLM.APIKey)
	assert.Equal(t, "out", loaded.Output.Dir)
	assert.False(t, loaded.Logging.IsCategoryEnabled("enrich"))
	assert.True(t, loaded.Logging.IsCategoryEnabled("extract"))
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("extraction:\n  depth: deep\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "deep", cfg.Extraction.Depth)
	assert.Equal(t, 4, cfg.Extraction.MaxConcurrency)
	assert.Equal(t, "json5", cfg.Output.Format)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [unterminated"), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("ANTHROPIC_API_KEY fills the default provider", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(EnvAnthropicAPIKey, "ant-key")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, "ant-key", cfg.LLM.APIKey)
		assert.Equal(t, ProviderAnthropic, cfg.LLM.Provider)
	})

	t.Run("GEMINI_API_KEY used when gemini is configured", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(EnvAnthropicAPIKey, "ant-key")
		t.Setenv(EnvGeminiAPIKey, "gem-key")

		cfg := DefaultConfig()
		cfg.LLM.Provider = ProviderGemini
		cfg.applyEnvOverrides()
		assert.Equal(t, "gem-key", cfg.LLM.APIKey)
		assert.Equal(t, ProviderGemini, cfg.LLM.Provider)
	})

	t.Run("GEMINI_API_KEY alone switches provider", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(EnvGeminiAPIKey, "gem-key")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, "gem-key", cfg.LLM.APIKey)
		assert.Equal(t, ProviderGemini, cfg.LLM.Provider)
		assert.Equal(t, DefaultGeminiModel, cfg.LLM.Model)
	})

	t.Run("paths and log level", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SPECFORGE_OUTPUT_DIR", "/tmp/specialists")
		t.Setenv("SPECFORGE_BENCHMARK_DB", "/tmp/bench.db")
		t.Setenv("SPECFORGE_LOG_LEVEL", "debug")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, "/tmp/specialists", cfg.Output.Dir)
		assert.Equal(t, "/tmp/bench.db", cfg.Benchmark.Database)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})
}

func TestRequireLLM(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.LLM.RequireLLM()

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "llm.api_key", cfgErr.Field)
	assert.Equal(t, EnvAnthropicAPIKey, cfgErr.EnvVar)
	assert.Contains(t, err.Error(), EnvAnthropicAPIKey)

	cfg.LLM.Provider = ProviderGemini
	err = cfg.LLM.RequireLLM()
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, EnvGeminiAPIKey, cfgErr.EnvVar)

	cfg.LLM.APIKey = "set"
	assert.NoError(t, cfg.LLM.RequireLLM())

	cfg.LLM.Provider = "openai"
	assert.Error(t, cfg.LLM.RequireLLM())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"provider", func(c *Config) { c.LLM.Provider = "zai" }, "llm.provider"},
		{"depth", func(c *Config) { c.Extraction.Depth = "abyssal" }, "extraction.depth"},
		{"fan-out", func(c *Config) { c.Extraction.MaxConcurrency = 0 }, "extraction.max_concurrency"},
		{"enrich concurrency", func(c *Config) { c.Enrichment.Concurrency = 0 }, "enrichment.concurrency"},
		{"format", func(c *Config) { c.Output.Format = "toml" }, "output.format"},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			var cfgErr *ConfigurationError
			require.ErrorAs(t, cfg.Validate(), &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestDurationGetters(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 120*time.Second, cfg.GetLLMTimeout())
	assert.Equal(t, 30*time.Second, cfg.GetExtractionTimeout())
	assert.Equal(t, 100*time.Millisecond, cfg.GetEnrichmentInterval())
	assert.Equal(t, 300*time.Millisecond, cfg.GetWatchDebounce())

	cfg.LLM.Timeout = "garbage"
	cfg.Watch.Debounce = "1s"
	assert.Equal(t, 120*time.Second, cfg.GetLLMTimeout())
	assert.Equal(t, time.Second, cfg.GetWatchDebounce())
}
