package api

import (
	"github.com/JaimeStill/hemalyze/internal/config"
	"github.com/JaimeStill/hemalyze/internal/infrastructure"
	"github.com/JaimeStill/hemalyze/internal/sessions"
)

// Runtime extends Infrastructure with API-specific state.
type Runtime struct {
	*infrastructure.Infrastructure
	Sessions    *sessions.Store
	MaxBodySize int64
}

// NewRuntime creates an API runtime with a module-scoped logger.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure, store *sessions.Store) *Runtime {
	scoped := *infra
	scoped.Logger = infra.Logger.With("module", "api")

	return &Runtime{
		Infrastructure: &scoped,
		Sessions:       store,
		MaxBodySize:    cfg.API.MaxBodySizeBytes(),
	}
}
