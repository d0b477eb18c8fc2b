package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/JaimeStill/hemalyze/internal/api"
	"github.com/JaimeStill/hemalyze/internal/config"
	"github.com/JaimeStill/hemalyze/internal/infrastructure"
	"github.com/JaimeStill/hemalyze/internal/sessions"
)

// app is a started infrastructure with the analysis domain on top.
type app struct {
	cfg    *config.Config
	infra  *infrastructure.Infrastructure
	domain *api.Domain
}

func openApp() (*app, error) {
	cfg, err := config.LoadFile(rootFlags.config)
	if err != nil {
		return nil, err
	}

	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}

	domain, err := api.NewDomain(cfg, api.NewRuntime(cfg, infra, sessions.New()))
	if err != nil {
		return nil, err
	}

	if err := infra.Start(); err != nil {
		return nil, err
	}
	if err := infra.Lifecycle.WaitForStartup(); err != nil {
		infra.Lifecycle.Shutdown(cfg.ShutdownTimeoutDuration())
		return nil, fmt.Errorf("startup failed: %w", err)
	}

	return &app{cfg: cfg, infra: infra, domain: domain}, nil
}

func (a *app) Close() error {
	return a.infra.Lifecycle.Shutdown(a.cfg.ShutdownTimeoutDuration())
}

// readReport reads path, or standard input when path is "-". The returned
// source is the file's base name.
func readReport(path string, stdin io.Reader) (text, source string, err error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), "stdin", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("read report: %w", err)
	}
	return string(data), filepath.Base(path), nil
}
