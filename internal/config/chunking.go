package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	EnvChunkingSize    = "HEMALYZE_CHUNK_SIZE"
	EnvChunkingOverlap = "HEMALYZE_CHUNK_OVERLAP"
)

// ChunkingConfig sizes the windows report text is split into for retrieval.
// Both values count characters.
type ChunkingConfig struct {
	Size    int `toml:"size"`
	Overlap int `toml:"overlap"`
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *ChunkingConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *ChunkingConfig) Merge(overlay *ChunkingConfig) {
	if overlay.Size != 0 {
		c.Size = overlay.Size
	}
	if overlay.Overlap != 0 {
		c.Overlap = overlay.Overlap
	}
}

func (c *ChunkingConfig) loadDefaults() {
	if c.Size == 0 {
		c.Size = 1000
	}
	if c.Overlap == 0 {
		c.Overlap = 200
	}
}

func (c *ChunkingConfig) loadEnv() {
	if v := os.Getenv(EnvChunkingSize); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Size = n
		}
	}
	if v := os.Getenv(EnvChunkingOverlap); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Overlap = n
		}
	}
}

func (c *ChunkingConfig) validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("size must be positive: %d", c.Size)
	}
	if c.Overlap < 0 || c.Overlap >= c.Size {
		return fmt.Errorf("overlap must be in [0, size): %d", c.Overlap)
	}
	return nil
}
