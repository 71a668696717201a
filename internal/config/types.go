package config

import (
	"time"

	"entitymeta/internal/naming"
	"entitymeta/internal/observability"
)

// Config holds the application configuration.
type Config struct {
	Naming        naming.Config       `mapstructure:"naming"`
	Embedded      EmbeddedConfig      `mapstructure:"embedded"`
	Platform      PlatformConfig      `mapstructure:"platform"`
	Declarations  DeclarationsConfig  `mapstructure:"declarations"`
	Output        OutputConfig        `mapstructure:"output"`
	Sample        SampleConfig        `mapstructure:"sample"`
	Inspect       InspectConfig       `mapstructure:"inspect"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// EmbeddedConfig controls how embedded properties are flattened into columns.
type EmbeddedConfig struct {
	// Separator joins an embedded property name with its children ("address" + "_" + "street").
	Separator string `mapstructure:"separator"`
	// PrefixMode is "relative" (nested prefixes chain) or "absolute".
	PrefixMode string `mapstructure:"prefix_mode"`
}

// PlatformConfig selects the database platform the metadata is resolved for.
type PlatformConfig struct {
	// Name is generic, mysql, postgres or sqlite.
	Name string `mapstructure:"name"`
	// Timezone is "Z", "local", an offset like "+02:00" or an IANA name. Empty means the
	// DSN's timezone, or UTC.
	Timezone string `mapstructure:"timezone"`

	// DSN is only needed for row sampling and DSN-derived timezones.
	// Configured via "dsn" in YAML or EMETA_PLATFORM_DSN.
	DSN string `mapstructure:"dsn"`
	// DSNFile reads the DSN from a file. Supports "@-" for stdin.
	DSNFile        string `mapstructure:"dsn_file"`
	Password       string `mapstructure:"password"`
	PasswordFile   string `mapstructure:"password_file"`
	PasswordPrompt bool   `mapstructure:"password_prompt"`

	// ConnectTimeout bounds the initial ping before sampling.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// DeclarationsConfig locates the declaration document.
type DeclarationsConfig struct {
	// Source is a file path, "-" for stdin, or s3://bucket/key.
	Source string `mapstructure:"source"`
	// Namespace overrides the document namespace.
	Namespace    string `mapstructure:"namespace"`
	AWSRegion    string `mapstructure:"aws_region"`
	AWSEndpoint  string `mapstructure:"aws_endpoint"`
	AWSPathStyle bool   `mapstructure:"aws_path_style"`
}

// OutputConfig controls the registry dump.
type OutputConfig struct {
	Format string `mapstructure:"format"` // json, summary
	// Path is the dump destination. Empty or "-" writes to stdout.
	Path string `mapstructure:"path"`
}

// SampleConfig requests a row sample of one entity after resolution.
type SampleConfig struct {
	Entity string `mapstructure:"entity"`
	Limit  int    `mapstructure:"limit"`
}

// InspectConfig controls the optional HTTP inspector.
type InspectConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// GraphiQL serves the in-browser query editor on GET /graphql.
	GraphiQL bool `mapstructure:"graphiql"`
}

// LoggingConfig holds logging parameters.
type LoggingConfig struct {
	Level          string `mapstructure:"level"`           // debug, info, warn, error
	Format         string `mapstructure:"format"`          // json, text
	ExportsEnabled bool   `mapstructure:"exports_enabled"` // Enable OTLP log export
}

// ObservabilityConfig holds observability parameters.
type ObservabilityConfig struct {
	ServiceName      string        `mapstructure:"service_name"`
	ServiceVersion   string        `mapstructure:"service_version"`
	Environment      string        `mapstructure:"environment"`
	MetricsEnabled   bool          `mapstructure:"metrics_enabled"`
	TracingEnabled   bool          `mapstructure:"tracing_enabled"`
	TraceSampleRatio float64       `mapstructure:"trace_sample_ratio"`
	Logging          LoggingConfig `mapstructure:"logging"`

	// Global OTLP settings (defaults for all signals)
	OTLP OTLPConfig `mapstructure:"otlp"`

	// Signal-specific overrides (optional)
	Traces *OTLPConfig `mapstructure:"traces,omitempty"`
	Logs   *OTLPConfig `mapstructure:"logs,omitempty"`
}

// OTLPConfig holds OTLP exporter configuration
type OTLPConfig struct {
	Endpoint          string            `mapstructure:"endpoint"`
	Protocol          string            `mapstructure:"protocol"` // "grpc", "http/protobuf"
	Insecure          bool              `mapstructure:"insecure"`
	TLSCertFile       string            `mapstructure:"tls_cert_file"`
	TLSClientCertFile string            `mapstructure:"tls_client_cert_file"`
	TLSClientKeyFile  string            `mapstructure:"tls_client_key_file"`
	Headers           map[string]string `mapstructure:"headers"`
	Timeout           time.Duration     `mapstructure:"timeout"`
	Compression       string            `mapstructure:"compression"` // "none", "gzip"
	RetryEnabled      bool              `mapstructure:"retry_enabled"`
	RetryMaxAttempts  int               `mapstructure:"retry_max_attempts"`
}

// GetTracesConfig returns the effective OTLP config for traces
func (c *ObservabilityConfig) GetTracesConfig() OTLPConfig {
	if c.Traces != nil {
		return mergeOTLPConfigs(c.OTLP, *c.Traces)
	}
	return c.OTLP
}

// GetLogsConfig returns the effective OTLP config for logs
func (c *ObservabilityConfig) GetLogsConfig() OTLPConfig {
	if c.Logs != nil {
		return mergeOTLPConfigs(c.OTLP, *c.Logs)
	}
	return c.OTLP
}

// Providers converts the section into the observability provider config.
func (c *ObservabilityConfig) Providers() observability.Config {
	return observability.Config{
		ServiceName:       c.ServiceName,
		ServiceVersion:    c.ServiceVersion,
		Environment:       c.Environment,
		TraceSampleRatio:  c.TraceSampleRatio,
		MetricsEnabled:    c.MetricsEnabled,
		TracingEnabled:    c.TracingEnabled,
		LogExportsEnabled: c.Logging.ExportsEnabled,
		Traces:            c.GetTracesConfig().exporter(),
		Logs:              c.GetLogsConfig().exporter(),
	}
}

func (o OTLPConfig) exporter() observability.ExporterConfig {
	return observability.ExporterConfig{
		Endpoint:          o.Endpoint,
		Protocol:          o.Protocol,
		Insecure:          o.Insecure,
		TLSCertFile:       o.TLSCertFile,
		TLSClientCertFile: o.TLSClientCertFile,
		TLSClientKeyFile:  o.TLSClientKeyFile,
		Headers:           o.Headers,
		Timeout:           o.Timeout,
		Compression:       o.Compression,
		RetryEnabled:      o.RetryEnabled,
		RetryMaxAttempts:  o.RetryMaxAttempts,
	}
}

// mergeOTLPConfigs merges signal-specific config over global defaults
func mergeOTLPConfigs(base OTLPConfig, override OTLPConfig) OTLPConfig {
	result := base

	if override.Endpoint != "" {
		result.Endpoint = override.Endpoint
	}
	if override.Protocol != "" {
		result.Protocol = override.Protocol
	}
	// A present override block always decides Insecure; false cannot be told apart from unset.
	result.Insecure = override.Insecure

	if override.TLSCertFile != "" {
		result.TLSCertFile = override.TLSCertFile
	}
	if override.TLSClientCertFile != "" {
		result.TLSClientCertFile = override.TLSClientCertFile
	}
	if override.TLSClientKeyFile != "" {
		result.TLSClientKeyFile = override.TLSClientKeyFile
	}

	if override.Headers != nil {
		result.Headers = make(map[string]string, len(base.Headers)+len(override.Headers))
		for k, v := range base.Headers {
			result.Headers[k] = v
		}
		for k, v := range override.Headers {
			result.Headers[k] = v
		}
	}

	if override.Timeout != 0 {
		result.Timeout = override.Timeout
	}
	if override.Compression != "" {
		result.Compression = override.Compression
	}
	if override.RetryMaxAttempts != 0 {
		result.RetryEnabled = override.RetryEnabled
		result.RetryMaxAttempts = override.RetryMaxAttempts
	}
	return result
}
