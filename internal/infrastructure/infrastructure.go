// Package infrastructure provides core service initialization for application startup.
// It assembles the dependencies domain systems require: logging, tracing,
// the model and embedding clients, the vector store, and the optional
// database and blob storage.
package infrastructure

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/JaimeStill/hemalyze/internal/config"
	"github.com/JaimeStill/hemalyze/internal/embedding"
	"github.com/JaimeStill/hemalyze/internal/llm"
	"github.com/JaimeStill/hemalyze/internal/vectors"
	"github.com/JaimeStill/hemalyze/pkg/database"
	"github.com/JaimeStill/hemalyze/pkg/lifecycle"
	"github.com/JaimeStill/hemalyze/pkg/storage"
)

// Infrastructure holds the core systems required by all domain modules.
// Database is nil unless the pgvector backend is selected, and Storage is
// nil unless blob storage is configured.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Model     llm.Completer
	Embedder  embedding.Embedder
	Vectors   vectors.Store
	Database  database.System
	Storage   storage.System

	tracing     *Tracing
	migrate     bool
	databaseURL string
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	return NewWithLogger(cfg, NewLogger(&cfg.Logging, os.Stderr))
}

// NewWithLogger is New with an explicit logger.
func NewWithLogger(cfg *config.Config, logger *slog.Logger) (*Infrastructure, error) {
	lc := lifecycle.New()

	tracing, err := NewTracing(context.Background(), &cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("tracing init failed: %w", err)
	}

	model, err := llm.New(&cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("llm init failed: %w", err)
	}

	embedder, err := embedding.New(&cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("embedding init failed: %w", err)
	}

	infra := &Infrastructure{
		Lifecycle: lc,
		Logger:    logger,
		Model:     model,
		Embedder:  embedder,
		tracing:   tracing,
	}

	if cfg.Vectors.UsesDatabase() {
		db, err := database.New(&cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("database init failed: %w", err)
		}
		infra.Database = db
		infra.migrate = cfg.Vectors.AutoMigrate
		infra.databaseURL = cfg.Database.URL()
	}

	store, err := vectors.New(&cfg.Vectors, databaseConnection(infra.Database))
	if err != nil {
		return nil, fmt.Errorf("vectors init failed: %w", err)
	}
	infra.Vectors = store

	if cfg.Storage.Enabled() {
		blobs, err := storage.New(&cfg.Storage, logger)
		if err != nil {
			return nil, fmt.Errorf("storage init failed: %w", err)
		}
		infra.Storage = blobs
	}

	logger.Info(
		"infrastructure initialized",
		"vectors", cfg.Vectors.Backend,
		"embedding", cfg.Embedding.Provider,
		"llm_providers", len(cfg.LLM.Providers),
		"storage", infra.Storage != nil,
		"tracing", cfg.Telemetry.Enabled,
	)

	return infra, nil
}

// Start registers all infrastructure systems with the lifecycle coordinator.
func (i *Infrastructure) Start() error {
	if i.Database != nil {
		if err := i.Database.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("database start failed: %w", err)
		}
		if i.migrate {
			i.Lifecycle.OnStartupErr(func() error {
				if err := vectors.Migrate(i.databaseURL); err != nil {
					i.Logger.Error("vector schema migration failed", "error", err)
					return err
				}
				i.Logger.Info("vector schema up to date")
				return nil
			})
		}
	}

	if i.Storage != nil {
		if err := i.Storage.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("storage start failed: %w", err)
		}
	}

	i.tracing.Start(i.Lifecycle, i.Logger)
	return nil
}

func databaseConnection(db database.System) *sql.DB {
	if db == nil {
		return nil
	}
	return db.Connection()
}
