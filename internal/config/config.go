// Package config loads crosstab configuration: YAML file, built-in
// defaults, and environment overrides, applied in that order.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all crosstab configuration.
type Config struct {
	// LLM collaborator settings
	LLM LLMConfig `yaml:"llm"`

	// Study data locations
	Data DataConfig `yaml:"data"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the planning/chat collaborator.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // openai-compatible endpoints
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Timeout     string  `yaml:"timeout"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// DataConfig locates the study inputs: a directory holding questions.json,
// responses.csv, and an optional scope.md.
type DataConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			BaseURL:     "https://api.openai.com/v1",
			Timeout:     "60s",
			Temperature: 0.1,
			MaxTokens:   2048,
		},
		Data: DataConfig{
			Dir: ".",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file. A missing file is not an
// error: defaults plus environment overrides apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides on top of the
// file values.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "openai"
		}
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "anthropic"
	}
	if key := os.Getenv("CROSSTAB_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if model := os.Getenv("CROSSTAB_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if url := os.Getenv("CROSSTAB_BASE_URL"); url != "" {
		c.LLM.BaseURL = url
	}
	if dir := os.Getenv("CROSSTAB_DATA_DIR"); dir != "" {
		c.Data.Dir = dir
	}
	if level := os.Getenv("CROSSTAB_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// GetLLMTimeout returns the collaborator timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// Validate checks the configuration is runnable.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key not configured (set OPENAI_API_KEY or llm.api_key)")
	}
	if c.Data.Dir == "" {
		return fmt.Errorf("data directory not configured")
	}
	return nil
}
