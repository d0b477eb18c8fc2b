package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	EnvTelemetryEnabled     = "HEMALYZE_TELEMETRY_ENABLED"
	EnvTelemetryEndpoint    = "HEMALYZE_TELEMETRY_ENDPOINT"
	EnvTelemetryServiceName = "HEMALYZE_TELEMETRY_SERVICE_NAME"
	EnvTelemetryInsecure    = "HEMALYZE_TELEMETRY_INSECURE"
)

// TelemetryConfig controls OTLP trace export. Tracing is a no-op when
// disabled.
type TelemetryConfig struct {
	Enabled     bool   `toml:"enabled"`
	Endpoint    string `toml:"endpoint"`
	ServiceName string `toml:"service_name"`
	Insecure    bool   `toml:"insecure"`
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *TelemetryConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites fields from overlay. Boolean fields always apply.
func (c *TelemetryConfig) Merge(overlay *TelemetryConfig) {
	c.Enabled = overlay.Enabled
	c.Insecure = overlay.Insecure
	if overlay.Endpoint != "" {
		c.Endpoint = overlay.Endpoint
	}
	if overlay.ServiceName != "" {
		c.ServiceName = overlay.ServiceName
	}
}

func (c *TelemetryConfig) loadDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.ServiceName == "" {
		c.ServiceName = "hemalyze"
	}
}

func (c *TelemetryConfig) loadEnv() {
	if v := os.Getenv(EnvTelemetryEnabled); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Enabled = b
		}
	}
	if v := os.Getenv(EnvTelemetryEndpoint); v != "" {
		c.Endpoint = v
	}
	if v := os.Getenv(EnvTelemetryServiceName); v != "" {
		c.ServiceName = v
	}
	if v := os.Getenv(EnvTelemetryInsecure); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Insecure = b
		}
	}
}

func (c *TelemetryConfig) validate() error {
	if c.Enabled && c.Endpoint == "" {
		return fmt.Errorf("endpoint required when telemetry is enabled")
	}
	return nil
}
