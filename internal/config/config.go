// Package config loads the service configuration from TOML files and
// HEMALYZE_ environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/hemalyze/internal/chat"
	"github.com/JaimeStill/hemalyze/internal/embedding"
	"github.com/JaimeStill/hemalyze/internal/llm"
	"github.com/JaimeStill/hemalyze/internal/pipeline"
	"github.com/JaimeStill/hemalyze/internal/vectors"
	"github.com/JaimeStill/hemalyze/pkg/database"
	"github.com/JaimeStill/hemalyze/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvHemalyzeEnv             = "HEMALYZE_ENV"
	EnvHemalyzeShutdownTimeout = "HEMALYZE_SHUTDOWN_TIMEOUT"
	EnvHemalyzeVersion         = "HEMALYZE_VERSION"
)

var databaseEnv = &database.Env{
	Host:            "HEMALYZE_DB_HOST",
	Port:            "HEMALYZE_DB_PORT",
	Name:            "HEMALYZE_DB_NAME",
	User:            "HEMALYZE_DB_USER",
	Password:        "HEMALYZE_DB_PASSWORD",
	SSLMode:         "HEMALYZE_DB_SSL_MODE",
	MaxOpenConns:    "HEMALYZE_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "HEMALYZE_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "HEMALYZE_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "HEMALYZE_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "HEMALYZE_STORAGE_CONTAINER_NAME",
	ConnectionString: "HEMALYZE_STORAGE_CONNECTION_STRING",
	ServiceURL:       "HEMALYZE_STORAGE_SERVICE_URL",
	MaxListSize:      "HEMALYZE_STORAGE_MAX_LIST_SIZE",
}

var llmEnv = &llm.Env{
	Name:        "HEMALYZE_LLM_PROVIDER",
	BaseURL:     "HEMALYZE_LLM_BASE_URL",
	Model:       "HEMALYZE_LLM_MODEL",
	Token:       "HEMALYZE_LLM_TOKEN",
	Timeout:     "HEMALYZE_LLM_TIMEOUT",
	Temperature: "HEMALYZE_LLM_TEMPERATURE",
}

var embeddingEnv = &embedding.Env{
	Provider: "HEMALYZE_EMBEDDING_PROVIDER",
	BaseURL:  "HEMALYZE_EMBEDDING_BASE_URL",
	Model:    "HEMALYZE_EMBEDDING_MODEL",
	Token:    "HEMALYZE_EMBEDDING_TOKEN",
	Timeout:  "HEMALYZE_EMBEDDING_TIMEOUT",
}

var vectorsEnv = &vectors.Env{
	Backend:     "HEMALYZE_VECTORS_BACKEND",
	AutoMigrate: "HEMALYZE_VECTORS_AUTO_MIGRATE",
}

var pipelineEnv = &pipeline.Env{
	StageTimeout: "HEMALYZE_PIPELINE_STAGE_TIMEOUT",
	IndexTimeout: "HEMALYZE_PIPELINE_INDEX_TIMEOUT",
	Concurrency:  "HEMALYZE_PIPELINE_INDEX_CONCURRENCY",
}

var chatEnv = &chat.Env{
	TopK:          "HEMALYZE_CHAT_TOP_K",
	HistoryTurns:  "HEMALYZE_CHAT_HISTORY_TURNS",
	RawTextBudget: "HEMALYZE_CHAT_RAW_TEXT_BUDGET",
}

// Config is the root configuration for the Hemalyze service.
type Config struct {
	Server          ServerConfig     `toml:"server"`
	Logging         LoggingConfig    `toml:"logging"`
	API             APIConfig        `toml:"api"`
	LLM             llm.Config       `toml:"llm"`
	Embedding       embedding.Config `toml:"embedding"`
	Vectors         vectors.Config   `toml:"vectors"`
	Database        database.Config  `toml:"database"`
	Storage         storage.Config   `toml:"storage"`
	Pipeline        pipeline.Config  `toml:"pipeline"`
	Chunking        ChunkingConfig   `toml:"chunking"`
	Chat            chat.Config      `toml:"chat"`
	Telemetry       TelemetryConfig  `toml:"telemetry"`
	ShutdownTimeout string           `toml:"shutdown_timeout"`
	Version         string           `toml:"version"`
}

// Env returns the HEMALYZE_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvHemalyzeEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	return LoadFile(BaseConfigFile)
}

// LoadFile is Load with an explicit base config path.
func LoadFile(path string) (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(path); err == nil {
		loaded, err := load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if overlay := overlayPath(); overlay != "" {
		o, err := load(overlay)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", overlay, err)
		}
		cfg.Merge(o)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Logging.Merge(&overlay.Logging)
	c.API.Merge(&overlay.API)
	c.LLM.Merge(&overlay.LLM)
	c.Embedding.Merge(&overlay.Embedding)
	c.Vectors.Merge(&overlay.Vectors)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.Pipeline.Merge(&overlay.Pipeline)
	c.Chunking.Merge(&overlay.Chunking)
	c.Chat.Merge(&overlay.Chat)
	c.Telemetry.Merge(&overlay.Telemetry)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}

	sections := []struct {
		name     string
		finalize func() error
	}{
		{"server", c.Server.Finalize},
		{"logging", c.Logging.Finalize},
		{"api", c.API.Finalize},
		{"llm", func() error { return c.LLM.Finalize(llmEnv) }},
		{"embedding", func() error { return c.Embedding.Finalize(embeddingEnv) }},
		{"vectors", func() error { return c.Vectors.Finalize(vectorsEnv) }},
		{"storage", func() error { return c.Storage.Finalize(storageEnv) }},
		{"pipeline", func() error { return c.Pipeline.Finalize(pipelineEnv) }},
		{"chunking", c.Chunking.Finalize},
		{"chat", func() error { return c.Chat.Finalize(chatEnv) }},
		{"telemetry", c.Telemetry.Finalize},
	}

	for _, s := range sections {
		if err := s.finalize(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}

	// The database is only required by the pgvector backend.
	if c.Vectors.UsesDatabase() {
		if err := c.Database.Finalize(databaseEnv); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvHemalyzeShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvHemalyzeVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvHemalyzeEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
