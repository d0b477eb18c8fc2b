// Package api assembles the HTTP surface over report analysis, chat, and
// session state.
package api

import (
	"net/http"

	"github.com/JaimeStill/hemalyze/internal/config"
	"github.com/JaimeStill/hemalyze/internal/infrastructure"
	"github.com/JaimeStill/hemalyze/internal/sessions"
	"github.com/JaimeStill/hemalyze/pkg/middleware"
	"github.com/JaimeStill/hemalyze/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, error) {
	runtime := NewRuntime(cfg, infra, sessions.New())

	domain, err := NewDomain(cfg, runtime)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	registerRoutes(mux, domain, runtime)

	m, err := module.New(cfg.API.BasePath, mux)
	if err != nil {
		return nil, err
	}
	m.Use(middleware.Recover(runtime.Logger))
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Logger(runtime.Logger))

	return m, nil
}
