package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"go.opentelemetry.io/otel/attribute"
)

// OTELConfig is the standard OTEL_* environment that controls chunk span export.
type OTELConfig struct {
	ServiceName        string `env:"OTEL_SERVICE_NAME" envDefault:"alloc-tracer"`
	ResourceAttributes string `env:"OTEL_RESOURCE_ATTRIBUTES"`
	ExporterEndpoint   string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	TracesEndpoint     string `env:"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"`
	SDKDisabled        bool   `env:"OTEL_SDK_DISABLED"`
}

// ParseOTELConfig reads the OTEL_* environment.
func ParseOTELConfig() (*OTELConfig, error) {
	var cfg OTELConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse OTEL config: %w", err)
	}
	return &cfg, nil
}

// Endpoint returns the collector to export chunk spans to, the traces
// endpoint winning over the generic one. Empty means none is configured.
func (c *OTELConfig) Endpoint() string {
	if c.TracesEndpoint != "" {
		return c.TracesEndpoint
	}
	return c.ExporterEndpoint
}

// Enabled reports whether chunk spans are exported at all. Export is opt-in.
func (c *OTELConfig) Enabled() bool {
	return !c.SDKDisabled && c.Endpoint() != ""
}

// Resource returns the key=value pairs of OTEL_RESOURCE_ATTRIBUTES.
// Pairs without '=' or with an empty key are skipped.
func (c *OTELConfig) Resource() []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for pair := range strings.SplitSeq(c.ResourceAttributes, ",") {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			continue
		}
		attrs = append(attrs, attribute.String(k, strings.TrimSpace(v)))
	}
	return attrs
}
