package vectors

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"
)

// Backend names.
const (
	BackendMemory   = "memory"
	BackendPGVector = "pgvector"
)

// Config selects the vector store backend.
type Config struct {
	Backend     string `toml:"backend"`
	AutoMigrate bool   `toml:"auto_migrate"`
}

// Env maps config fields to environment variable names.
type Env struct {
	Backend     string
	AutoMigrate string
}

// UsesDatabase reports whether the backend needs a PostgreSQL connection.
func (c *Config) UsesDatabase() bool {
	return c.Backend == BackendPGVector
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
	if overlay.Backend != "" {
		c.Backend = overlay.Backend
	}
	if overlay.AutoMigrate {
		c.AutoMigrate = true
	}
}

func (c *Config) loadDefaults() {
	if c.Backend == "" {
		c.Backend = BackendMemory
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Backend != "" {
		if v := os.Getenv(env.Backend); v != "" {
			c.Backend = v
		}
	}
	if env.AutoMigrate != "" {
		if v := os.Getenv(env.AutoMigrate); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.AutoMigrate = b
			}
		}
	}
}

func (c *Config) validate() error {
	if c.Backend != BackendMemory && c.Backend != BackendPGVector {
		return fmt.Errorf("%w: %s", ErrUnknownBackend, c.Backend)
	}
	return nil
}

// New creates the configured store. db is required for the pgvector
// backend and ignored otherwise.
func New(cfg *Config, db *sql.DB) (Store, error) {
	switch cfg.Backend {
	case BackendMemory:
		return NewMemory(), nil
	case BackendPGVector:
		if db == nil {
			return nil, fmt.Errorf("%s backend requires a database connection", BackendPGVector)
		}
		return NewPostgres(db), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}
}
