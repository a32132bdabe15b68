// Package config loads service configuration from a YAML file with
// environment overrides for secrets.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level service configuration.
type Config struct {
	Listen   string       `yaml:"listen"`
	LogLevel string       `yaml:"log_level"`
	Store    StoreConfig  `yaml:"store"`
	LLM      LLMConfig    `yaml:"llm"`
	Search   SearchConfig `yaml:"search"`
}

// StoreConfig selects and configures the checkpoint backend.
type StoreConfig struct {
	// Backend is one of memory, sqlite, redis, postgres.
	Backend string `yaml:"backend"`

	// Path is the sqlite database file.
	Path string `yaml:"path"`

	// Addr, Password and DB configure redis.
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// ConnString configures postgres.
	ConnString string `yaml:"conn_string"`
}

// LLMConfig configures the reply generator. An empty provider runs the
// service without an external model.
type LLMConfig struct {
	// Provider is one of "", "openai".
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
}

// SearchConfig configures the research backend for the blog pipeline.
type SearchConfig struct {
	// Backend is one of duckduckgo, brave.
	Backend    string `yaml:"backend"`
	APIKey     string `yaml:"api_key"`
	MaxResults int    `yaml:"max_results"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Listen:   ":8000",
		LogLevel: "info",
		Store: StoreConfig{
			Backend: "memory",
			Path:    "checkpoints.db",
			Addr:    "localhost:6379",
		},
		Search: SearchConfig{
			Backend:    "duckduckgo",
			MaxResults: 5,
		},
	}
}

// Load reads the file at path on top of the defaults. A missing file is not
// an error: the defaults are returned. Secrets absent from the file are
// taken from the environment (OPENAI_API_KEY, BRAVE_API_KEY).
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to defaults
		case err != nil:
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Search.APIKey == "" {
		cfg.Search.APIKey = os.Getenv("BRAVE_API_KEY")
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Store.Backend {
	case "memory", "sqlite", "redis", "postgres":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	switch c.Search.Backend {
	case "", "duckduckgo", "brave":
	default:
		return fmt.Errorf("unknown search backend %q", c.Search.Backend)
	}
	switch c.LLM.Provider {
	case "", "openai":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	return nil
}
