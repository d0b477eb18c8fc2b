package llm

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Provider names understood by the registry.
const (
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
)

// ProviderConfig configures one model endpoint.
type ProviderConfig struct {
	Name        string  `toml:"name"`
	BaseURL     string  `toml:"base_url"`
	Model       string  `toml:"model"`
	Token       string  `toml:"token"`
	Timeout     string  `toml:"timeout"`
	Temperature float64 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *ProviderConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Config lists providers in fallback order.
type Config struct {
	Providers []ProviderConfig `toml:"providers"`
}

// Env maps the primary provider's fields to environment variable names.
type Env struct {
	Name        string
	BaseURL     string
	Model       string
	Token       string
	Timeout     string
	Temperature string
}

// Finalize applies defaults, environment variable overrides, and validation.
// Environment overrides target the first (primary) provider.
func (c *Config) Finalize(env *Env) error {
	if len(c.Providers) == 0 {
		c.Providers = []ProviderConfig{{}}
	}
	if env != nil {
		c.loadEnv(env)
	}
	for i := range c.Providers {
		c.Providers[i].loadDefaults()
	}
	return c.validate()
}

// Merge replaces the provider list when the overlay defines one.
func (c *Config) Merge(overlay *Config) {
	if len(overlay.Providers) > 0 {
		c.Providers = overlay.Providers
	}
}

func (c *ProviderConfig) loadDefaults() {
	if c.Name == "" {
		c.Name = ProviderOpenAI
	}
	if c.Timeout == "" {
		c.Timeout = "2m"
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	switch c.Name {
	case ProviderOpenAI:
		if c.BaseURL == "" {
			c.BaseURL = "https://api.groq.com/openai/v1"
		}
		if c.Model == "" {
			c.Model = "llama-3.3-70b-versatile"
		}
	case ProviderOllama:
		if c.BaseURL == "" {
			c.BaseURL = "http://localhost:11434"
		}
		if c.Model == "" {
			c.Model = "llama3.1"
		}
	case ProviderAnthropic:
		if c.BaseURL == "" {
			c.BaseURL = "https://api.anthropic.com"
		}
		if c.Model == "" {
			c.Model = "claude-sonnet-4-20250514"
		}
	}
}

func (c *Config) loadEnv(env *Env) {
	p := &c.Providers[0]
	if env.Name != "" {
		if v := os.Getenv(env.Name); v != "" {
			p.Name = v
		}
	}
	if env.BaseURL != "" {
		if v := os.Getenv(env.BaseURL); v != "" {
			p.BaseURL = v
		}
	}
	if env.Model != "" {
		if v := os.Getenv(env.Model); v != "" {
			p.Model = v
		}
	}
	if env.Token != "" {
		if v := os.Getenv(env.Token); v != "" {
			p.Token = v
		}
	}
	if env.Timeout != "" {
		if v := os.Getenv(env.Timeout); v != "" {
			p.Timeout = v
		}
	}
	if env.Temperature != "" {
		if v := os.Getenv(env.Temperature); v != "" {
			if t, err := strconv.ParseFloat(v, 64); err == nil {
				p.Temperature = t
			}
		}
	}
}

func (c *Config) validate() error {
	for i, p := range c.Providers {
		if _, err := time.ParseDuration(p.Timeout); err != nil {
			return fmt.Errorf("provider %d: invalid timeout: %w", i, err)
		}
		if p.Temperature < 0 || p.Temperature > 2 {
			return fmt.Errorf("provider %d: temperature out of range: %v", i, p.Temperature)
		}
	}
	return nil
}
