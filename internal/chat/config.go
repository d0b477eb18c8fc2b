package chat

import (
	"fmt"
	"os"
	"strconv"
)

// Config bounds the context assembled for each answer.
type Config struct {
	TopK          int `toml:"top_k"`
	HistoryTurns  int `toml:"history_turns"`
	RawTextBudget int `toml:"raw_text_budget"`
}

// Env maps config fields to environment variable names.
type Env struct {
	TopK          string
	HistoryTurns  string
	RawTextBudget string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.TopK != 0 {
		c.TopK = overlay.TopK
	}
	if overlay.HistoryTurns != 0 {
		c.HistoryTurns = overlay.HistoryTurns
	}
	if overlay.RawTextBudget != 0 {
		c.RawTextBudget = overlay.RawTextBudget
	}
}

func (c *Config) loadDefaults() {
	if c.TopK == 0 {
		c.TopK = 5
	}
	if c.HistoryTurns == 0 {
		c.HistoryTurns = 5
	}
	if c.RawTextBudget == 0 {
		c.RawTextBudget = 5000
	}
}

func (c *Config) loadEnv(env *Env) {
	for _, f := range []struct {
		name string
		dst  *int
	}{
		{env.TopK, &c.TopK},
		{env.HistoryTurns, &c.HistoryTurns},
		{env.RawTextBudget, &c.RawTextBudget},
	} {
		if f.name == "" {
			continue
		}
		if v := os.Getenv(f.name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*f.dst = n
			}
		}
	}
}

func (c *Config) validate() error {
	if c.TopK < 1 {
		return fmt.Errorf("top_k must be positive")
	}
	if c.HistoryTurns < 0 {
		return fmt.Errorf("history_turns cannot be negative")
	}
	if c.RawTextBudget < 1 {
		return fmt.Errorf("raw_text_budget must be positive")
	}
	return nil
}
