package main

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JaimeStill/hemalyze/internal/infrastructure"
	"github.com/JaimeStill/hemalyze/pkg/lifecycle"
)

func probe(t *testing.T, infra *infrastructure.Infrastructure, path string) int {
	t.Helper()
	rec := httptest.NewRecorder()
	buildRouter(infra).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec.Code
}

func TestProbes(t *testing.T) {
	newInfra := func() *infrastructure.Infrastructure {
		return &infrastructure.Infrastructure{
			Lifecycle: lifecycle.New(),
			Logger:    slog.New(slog.DiscardHandler),
		}
	}

	t.Run("healthz", func(t *testing.T) {
		if got := probe(t, newInfra(), "/healthz"); got != http.StatusOK {
			t.Errorf("status = %d, want %d", got, http.StatusOK)
		}
	})

	t.Run("not ready", func(t *testing.T) {
		if got := probe(t, newInfra(), "/readyz"); got != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want %d", got, http.StatusServiceUnavailable)
		}
	})

	t.Run("ready", func(t *testing.T) {
		infra := newInfra()
		if err := infra.Lifecycle.WaitForStartup(); err != nil {
			t.Fatalf("WaitForStartup() error = %v", err)
		}
		if got := probe(t, infra, "/readyz"); got != http.StatusOK {
			t.Errorf("status = %d, want %d", got, http.StatusOK)
		}
	})

	t.Run("startup failed", func(t *testing.T) {
		infra := newInfra()
		infra.Lifecycle.OnStartupErr(func() error { return errors.New("database unreachable") })
		if err := infra.Lifecycle.WaitForStartup(); err == nil {
			t.Fatal("WaitForStartup() error = nil, want error")
		}
		if got := probe(t, infra, "/readyz"); got != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want %d", got, http.StatusServiceUnavailable)
		}
	})
}
