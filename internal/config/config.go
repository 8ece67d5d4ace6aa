// Package config holds all ghostshell configuration: the translation
// provider, execution limits, and logging settings. Config lives at
// ~/.ghostshell/config.yaml and supports environment variable overrides
// for API keys so secrets never have to live on disk.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all ghostshell configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Translator configuration
	Translator TranslatorConfig `yaml:"translator"`

	// Execution settings
	Execution ExecutionConfig `yaml:"execution"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// TranslatorConfig configures the natural-language translation gateway.
type TranslatorConfig struct {
	Provider string `yaml:"provider"` // openai, anthropic, ollama
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// ExecutionConfig configures the command executor.
type ExecutionConfig struct {
	// Hard wall-clock bound for a command or pipeline.
	DefaultTimeout string `yaml:"default_timeout"`

	// Cap on captured stdout/stderr per execution.
	MaxOutputBytes int64 `yaml:"max_output_bytes"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the configuration used on first run.
func DefaultConfig() *Config {
	return &Config{
		Name:    "ghostshell",
		Version: "0.1.0",
		Translator: TranslatorConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			BaseURL:  "https://api.openai.com/v1",
			Timeout:  "120s",
		},
		Execution: ExecutionConfig{
			DefaultTimeout: "300s",
			MaxOutputBytes: 1 << 20,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".ghostshell", "config.yaml")
	}
	return filepath.Join(home, ".ghostshell", "config.yaml")
}

// Load reads a config file and applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// LoadOrCreate loads the config at path, writing the defaults there first
// if no file exists yet.
func LoadOrCreate(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := cfg.Save(path); err != nil {
			return nil, err
		}
	}
	return Load(path)
}

// Save writes the config to path, creating parent directories as needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides lets environment variables win over file values.
// GHOSTSHELL_API_KEY takes precedence over provider-specific keys.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GHOSTSHELL_API_KEY"); key != "" {
		c.Translator.APIKey = key
		return
	}
	switch c.Translator.Provider {
	case "openai":
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			c.Translator.APIKey = key
		}
	case "anthropic":
		if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
			c.Translator.APIKey = key
		}
	}
}

// Validate checks the config for consistency.
func (c *Config) Validate() error {
	switch c.Translator.Provider {
	case "openai", "anthropic", "ollama":
	default:
		return fmt.Errorf("invalid translator provider: %s", c.Translator.Provider)
	}

	// Ollama runs locally and needs no key.
	if c.Translator.Provider != "ollama" && c.Translator.APIKey == "" {
		return fmt.Errorf("translator API key is required for provider %s", c.Translator.Provider)
	}

	if _, err := time.ParseDuration(c.Execution.DefaultTimeout); err != nil {
		return fmt.Errorf("invalid execution default_timeout: %w", err)
	}
	if c.Translator.Timeout != "" {
		if _, err := time.ParseDuration(c.Translator.Timeout); err != nil {
			return fmt.Errorf("invalid translator timeout: %w", err)
		}
	}
	return nil
}

// CommandTimeout returns the parsed execution timeout, falling back to
// five minutes when unset or unparsable.
func (c *Config) CommandTimeout() time.Duration {
	d, err := time.ParseDuration(c.Execution.DefaultTimeout)
	if err != nil || d <= 0 {
		return 300 * time.Second
	}
	return d
}

// TranslatorTimeout returns the parsed translation timeout.
func (c *Config) TranslatorTimeout() time.Duration {
	d, err := time.ParseDuration(c.Translator.Timeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}
