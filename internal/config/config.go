// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"llm-playground/internal/provider"
)

// configDirName is the directory under the user's home holding config.toml.
const configDirName = ".llm-playground"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete playground configuration.
type Config struct {
	Defaults DefaultsConfig `toml:"defaults"`

	OpenAI    ProviderConfig `toml:"openai"`
	Anthropic ProviderConfig `toml:"anthropic"`
	Google    ProviderConfig `toml:"google"`
	Groq      ProviderConfig `toml:"groq"`
	Ollama    ProviderConfig `toml:"ollama"`
}

// DefaultsConfig holds the generation parameters new sessions start with.
type DefaultsConfig struct {
	Provider    string  `toml:"provider"`
	Model       string  `toml:"model"`
	Temperature float64 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
}

// ProviderConfig configures one provider entry.
type ProviderConfig struct {
	// BaseURL overrides the provider's default endpoint.
	BaseURL string `toml:"base_url"`
	// APIKeyEnv names the environment variable holding the API key.
	// Empty means the provider needs no credential.
	APIKeyEnv string `toml:"api_key_env"`
	// Models overrides the supported model set.
	Models []string `toml:"models"`
	// TimeoutSecs is the per-request deadline for non-streaming calls.
	TimeoutSecs int `toml:"timeout_secs"`
	// RequestsPerSecond caps the client-side request rate (0 = unlimited).
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// APIKey reads the provider's credential from the environment.
func (p ProviderConfig) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(p.APIKeyEnv))
}

// Timeout returns the configured request timeout as a duration.
func (p ProviderConfig) Timeout() time.Duration {
	if p.TimeoutSecs <= 0 {
		return 0
	}
	return time.Duration(p.TimeoutSecs) * time.Second
}

// Provider returns the section for a provider id, or a zero value for
// unknown ids (the registry rejects those separately).
func (c *Config) Provider(id string) ProviderConfig {
	switch id {
	case "openai":
		return c.OpenAI
	case "anthropic":
		return c.Anthropic
	case "google":
		return c.Google
	case "groq":
		return c.Groq
	case "ollama":
		return c.Ollama
	default:
		return ProviderConfig{}
	}
}

// DefaultModels maps each provider to the model used when none is chosen.
var DefaultModels = map[string]string{
	"openai":    "gpt-3.5-turbo",
	"anthropic": "claude-3-5-haiku-20241022",
	"google":    "gemini-2.5-flash",
	"groq":      "llama-3.1-8b-instant",
	"ollama":    "qwen2.5-coder:14b",
}

// DefaultGenerationConfig returns the generation parameters a new session
// starts with.
func (c *Config) DefaultGenerationConfig() provider.GenerationConfig {
	model := c.Defaults.Model
	if model == "" {
		model = DefaultModels[c.Defaults.Provider]
	}
	return provider.GenerationConfig{
		Provider:    c.Defaults.Provider,
		Model:       model,
		Temperature: c.Defaults.Temperature,
		MaxTokens:   c.Defaults.MaxTokens,
	}
}

// =============================================================================
// DEFAULTS
// =============================================================================

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Defaults: DefaultsConfig{
			Provider:    "google",
			Model:       "gemini-2.5-flash",
			Temperature: 0.7,
			MaxTokens:   1000,
		},
		OpenAI:    ProviderConfig{APIKeyEnv: "OPENAI_API_KEY", TimeoutSecs: 60},
		Anthropic: ProviderConfig{APIKeyEnv: "ANTHROPIC_API_KEY", TimeoutSecs: 60},
		Google:    ProviderConfig{APIKeyEnv: "GOOGLE_API_KEY", TimeoutSecs: 60},
		Groq:      ProviderConfig{APIKeyEnv: "GROQ_API_KEY", TimeoutSecs: 60},
		Ollama:    ProviderConfig{TimeoutSecs: 120},
	}
}

// =============================================================================
// LOADING
// =============================================================================

// ConfigPath returns the path of the user's config file.
func ConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, configDirName, "config.toml"), nil
}

// Load reads the configuration: built-in defaults, overlaid with the
// user's config file if present, overlaid with environment overrides.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if _, decodeErr := toml.DecodeFile(path, cfg); decodeErr != nil {
				return nil, fmt.Errorf("parse %s: %w", path, decodeErr)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.normalize()
	return cfg, nil
}

// LoadFile reads configuration from an explicit path, for tests and
// non-standard setups.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyEnvOverrides()
	cfg.normalize()
	return cfg, nil
}

// applyEnvOverrides overlays LLM_PLAYGROUND_* environment variables.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LLM_PLAYGROUND_PROVIDER"); v != "" {
		c.Defaults.Provider = v
		// A provider override without a model override falls back to that
		// provider's default model.
		if os.Getenv("LLM_PLAYGROUND_MODEL") == "" {
			c.Defaults.Model = ""
		}
	}
	if v := os.Getenv("LLM_PLAYGROUND_MODEL"); v != "" {
		c.Defaults.Model = v
	}
	if v := os.Getenv("LLM_PLAYGROUND_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Defaults.Temperature = f
		}
	}
	if v := os.Getenv("LLM_PLAYGROUND_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Defaults.MaxTokens = n
		}
	}
}

// normalize clamps out-of-range values to valid bounds rather than failing.
func (c *Config) normalize() {
	if c.Defaults.Temperature < 0 {
		c.Defaults.Temperature = 0
	}
	if c.Defaults.Temperature > 2 {
		c.Defaults.Temperature = 2
	}
	if c.Defaults.MaxTokens <= 0 {
		c.Defaults.MaxTokens = 1000
	}
	if c.Defaults.Provider == "" {
		c.Defaults.Provider = "google"
	}
	if c.Defaults.Model == "" {
		c.Defaults.Model = DefaultModels[c.Defaults.Provider]
	}
}
