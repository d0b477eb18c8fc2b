package pipeline

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config bounds how long stages and the indexer may run.
type Config struct {
	StageTimeout string `toml:"stage_timeout"`
	IndexTimeout string `toml:"index_timeout"`
	Concurrency  int    `toml:"index_concurrency"`
}

// Env maps config fields to environment variable names.
type Env struct {
	StageTimeout string
	IndexTimeout string
	Concurrency  string
}

// StageTimeoutDuration returns StageTimeout as a time.Duration.
func (c *Config) StageTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.StageTimeout)
	return d
}

// IndexTimeoutDuration returns IndexTimeout as a time.Duration.
func (c *Config) IndexTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.IndexTimeout)
	return d
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
	if overlay.StageTimeout != "" {
		c.StageTimeout = overlay.StageTimeout
	}
	if overlay.IndexTimeout != "" {
		c.IndexTimeout = overlay.IndexTimeout
	}
	if overlay.Concurrency != 0 {
		c.Concurrency = overlay.Concurrency
	}
}

func (c *Config) loadDefaults() {
	if c.StageTimeout == "" {
		c.StageTimeout = "2m"
	}
	if c.IndexTimeout == "" {
		c.IndexTimeout = "5m"
	}
	if c.Concurrency == 0 {
		c.Concurrency = 4
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.StageTimeout != "" {
		if v := os.Getenv(env.StageTimeout); v != "" {
			c.StageTimeout = v
		}
	}
	if env.IndexTimeout != "" {
		if v := os.Getenv(env.IndexTimeout); v != "" {
			c.IndexTimeout = v
		}
	}
	if env.Concurrency != "" {
		if v := os.Getenv(env.Concurrency); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.Concurrency = n
			}
		}
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.StageTimeout); err != nil {
		return fmt.Errorf("invalid stage_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.IndexTimeout); err != nil {
		return fmt.Errorf("invalid index_timeout: %w", err)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("index_concurrency must be positive: %d", c.Concurrency)
	}
	return nil
}
