package infrastructure

import (
	"io"
	"log/slog"

	"github.com/JaimeStill/hemalyze/internal/config"
)

// NewLogger builds the service logger from the logging section.
func NewLogger(cfg *config.LoggingConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}

	if cfg.Format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
