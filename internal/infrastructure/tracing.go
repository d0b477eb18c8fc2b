package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/JaimeStill/hemalyze/internal/config"
	"github.com/JaimeStill/hemalyze/pkg/lifecycle"
)

const tracingFlushTimeout = 5 * time.Second

// Tracing owns the OTLP tracer provider. When telemetry is disabled the
// global no-op provider is left in place and provider is nil.
type Tracing struct {
	provider *sdktrace.TracerProvider
	endpoint string
}

// NewTracing installs a global tracer provider exporting to the configured
// OTLP HTTP endpoint.
func NewTracing(ctx context.Context, cfg *config.TelemetryConfig, version string) (*Tracing, error) {
	if !cfg.Enabled {
		return &Tracing{}, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(version),
		)),
	)

	otel.SetTracerProvider(tp)

	return &Tracing{provider: tp, endpoint: cfg.Endpoint}, nil
}

// Enabled reports whether spans are exported. A nil Tracing is disabled.
func (t *Tracing) Enabled() bool {
	return t != nil && t.provider != nil
}

// Start registers a shutdown hook that flushes pending spans.
func (t *Tracing) Start(lc *lifecycle.Coordinator, logger *slog.Logger) {
	if !t.Enabled() {
		return
	}

	logger.Info("tracing enabled", "endpoint", t.endpoint)

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		if err := t.Shutdown(); err != nil {
			logger.Error("tracer shutdown failed", "error", err)
		}
	})
}

// Shutdown flushes and stops the provider.
func (t *Tracing) Shutdown() error {
	if !t.Enabled() {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), tracingFlushTimeout)
	defer cancel()
	return t.provider.Shutdown(ctx)
}
