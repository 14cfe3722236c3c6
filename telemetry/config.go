//revive:disable:line-length-limit
package telemetry

import (
	"slices"
	"strings"
	"time"
)

// Config configures the OpenTelemetry signals of the simulator.
// Environment variable names follow the OTel SDK conventions.
type Config struct {
	// Enabled turns telemetry on. When false every provider constructor returns ErrDisabled.
	Enabled *bool `yaml:"enabled" default:"false" env:"SENSORSIM_TELEMETRY_ENABLED"`

	// ServiceName identifies the simulator in the backend.
	ServiceName string `yaml:"serviceName" env:"OTEL_SERVICE_NAME" default:"sensorsim"`

	Version string `yaml:"version" env:"OTEL_SERVICE_VERSION"`

	Environment string `yaml:"environment" env:"OTEL_DEPLOYMENT_ENVIRONMENT" default:"development"`

	// ResourceAttributes are added to every signal's resource.
	ResourceAttributes map[string]string `yaml:"resourceAttributes,omitempty" env:"OTEL_RESOURCE_ATTRIBUTES"`

	// OTLP holds exporter settings shared by all signals.
	OTLP *OTLPConfig `yaml:"otlp,omitempty"`

	Traces *TracesConfig `yaml:"traces,omitempty"`

	// Logs enables the slog to OTel log bridge.
	Logs *LogsConfig `yaml:"logs,omitempty"`

	// Metrics enables tick and gateway metrics.
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`

	Propagation *PropConfig `yaml:"propagation,omitempty"`
}

// OTLPConfig contains shared OTLP exporter settings.
type OTLPConfig struct {
	// Endpoint is "host:port" for gRPC and a full URL for HTTP.
	Endpoint string `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`

	Insecure *bool `yaml:"insecure" env:"OTEL_EXPORTER_OTLP_INSECURE" default:"true"`

	// Headers may carry credentials; never log them.
	Headers map[string]string `yaml:"headers,omitempty" env:"OTEL_EXPORTER_OTLP_HEADERS"`

	Protocol string `yaml:"protocol" env:"OTEL_EXPORTER_OTLP_PROTOCOL" default:"grpc" validate:"oneof=grpc http/protobuf http"`

	Timeout time.Duration `yaml:"timeout" env:"OTEL_EXPORTER_OTLP_TIMEOUT" default:"10s" validate:"gte=0"`

	Compression string `yaml:"compression,omitempty" env:"OTEL_EXPORTER_OTLP_COMPRESSION" validate:"omitempty,oneof=gzip none"`
}

// IsInsecure reports whether TLS is disabled. Defaults to true.
func (c *OTLPConfig) IsInsecure() bool {
	return c == nil || c.Insecure == nil || *c.Insecure
}

// TracesConfig configures tracing.
type TracesConfig struct {
	// Enabled defaults to true when telemetry is enabled.
	Enabled *bool `yaml:"enabled" default:"true"`

	// Exporter is one of "otlp", "console", "stdout", "none".
	Exporter string `yaml:"exporter" env:"OTEL_TRACES_EXPORTER" default:"otlp" validate:"oneof=otlp console stdout none"`

	// Endpoint overrides OTLP.Endpoint for traces.
	Endpoint string `yaml:"endpoint,omitempty" env:"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"`

	Sampling *SamplingConfig `yaml:"sampling,omitempty"`
}

// IsEnabled reports whether tracing is on.
func (c *TracesConfig) IsEnabled() bool {
	return c == nil || c.Enabled == nil || *c.Enabled
}

// LogsConfig configures OTel log export. It is opt-in.
type LogsConfig struct {
	Enabled *bool `yaml:"enabled" default:"false"`

	Exporter string `yaml:"exporter" env:"OTEL_LOGS_EXPORTER" default:"otlp" validate:"oneof=otlp console stdout none"`

	Endpoint string `yaml:"endpoint,omitempty" env:"OTEL_EXPORTER_OTLP_LOGS_ENDPOINT"`
}

// IsEnabled reports whether log export is on.
func (c *LogsConfig) IsEnabled() bool {
	return c != nil && c.Enabled != nil && *c.Enabled
}

// MetricsConfig configures metric export. It is opt-in.
type MetricsConfig struct {
	Enabled *bool `yaml:"enabled" default:"false"`

	Exporter string `yaml:"exporter" env:"OTEL_METRICS_EXPORTER" default:"otlp" validate:"oneof=otlp console stdout none"`

	Endpoint string `yaml:"endpoint,omitempty" env:"OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"`

	// Interval is the periodic reader's export interval.
	// Numeric env values are read as milliseconds.
	Interval time.Duration `yaml:"interval,omitempty" env:"OTEL_METRIC_EXPORT_INTERVAL" default:"60s" validate:"omitempty,gt=0"`
}

// IsEnabled reports whether metric export is on.
func (c *MetricsConfig) IsEnabled() bool {
	return c != nil && c.Enabled != nil && *c.Enabled
}

// SamplingConfig selects the trace sampler (OTEL_TRACES_SAMPLER / OTEL_TRACES_SAMPLER_ARG).
type SamplingConfig struct {
	Sampler string `yaml:"sampler" env:"OTEL_TRACES_SAMPLER" default:"parentbased_always_on" validate:"oneof=always_on always_off traceidratio parentbased_always_on parentbased_always_off parentbased_traceidratio"`

	// SamplerArg is the ratio for the traceidratio samplers, in [0, 1].
	SamplerArg float64 `yaml:"samplerArg" env:"OTEL_TRACES_SAMPLER_ARG" default:"1.0" validate:"gte=0,lte=1"`
}

// PropConfig configures context propagation.
type PropConfig struct {
	// Propagators is a comma-separated list; only "tracecontext" and "baggage" are installed.
	Propagators string `yaml:"propagators" env:"OTEL_PROPAGATORS" default:"tracecontext,baggage"`
}

// HasTraceContext reports whether the tracecontext propagator is selected.
func (c *PropConfig) HasTraceContext() bool {
	if c == nil || c.Propagators == "" {
		return true
	}

	return slices.Contains(splitPropagators(c.Propagators), "tracecontext")
}

// HasBaggage reports whether the baggage propagator is selected.
func (c *PropConfig) HasBaggage() bool {
	if c == nil || c.Propagators == "" {
		return true
	}

	return slices.Contains(splitPropagators(c.Propagators), "baggage")
}

func splitPropagators(propagators string) []string {
	var result []string
	for p := range strings.SplitSeq(propagators, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}

	return result
}

// IsEnabled reports whether telemetry is on. A nil config is disabled.
func (c *Config) IsEnabled() bool {
	return c != nil && c.Enabled != nil && *c.Enabled
}

func (c *Config) sampling() *SamplingConfig {
	if c == nil || c.Traces == nil {
		return nil
	}

	return c.Traces.Sampling
}

func (c *Config) otlp() *OTLPConfig {
	if c == nil || c.OTLP == nil {
		return &OTLPConfig{}
	}

	return c.OTLP
}

// BoolPtr returns a pointer to v, for filling optional config flags.
func BoolPtr(v bool) *bool { return &v }
