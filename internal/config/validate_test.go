package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entitymeta/internal/naming"
)

func validConfig() *Config {
	return &Config{
		Naming:       naming.DefaultConfig(),
		Embedded:     EmbeddedConfig{Separator: "_", PrefixMode: "relative"},
		Platform:     PlatformConfig{Name: "generic", ConnectTimeout: time.Second},
		Declarations: DeclarationsConfig{Source: "library.yaml"},
		Output:       OutputConfig{Format: "json"},
		Sample:       SampleConfig{Limit: 10},
		Inspect:      InspectConfig{Port: 8080, ShutdownTimeout: time.Second},
		Observability: ObservabilityConfig{
			TraceSampleRatio: 1,
			Logging:          LoggingConfig{Level: "info", Format: "text"},
			OTLP:             OTLPConfig{Endpoint: "localhost:4317", Protocol: "grpc", Compression: "gzip"},
		},
	}
}

func fields(errs []ValidationError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Field)
	}
	return out
}

func TestValidate_Valid(t *testing.T) {
	result := validConfig().Validate()
	assert.False(t, result.HasErrors(), result.Error())
	assert.Empty(t, result.Warnings)
	assert.Equal(t, "", result.Error())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"naming strategy", func(c *Config) { c.Naming.Strategy = "camel" }, "naming.strategy"},
		{"empty separator", func(c *Config) { c.Embedded.Separator = "" }, "embedded.separator"},
		{"prefix mode", func(c *Config) { c.Embedded.PrefixMode = "nested" }, "embedded.prefix_mode"},
		{"platform", func(c *Config) { c.Platform.Name = "oracle" }, "platform.name"},
		{"timezone", func(c *Config) { c.Platform.Timezone = "+25:00" }, "platform.timezone"},
		{"missing source", func(c *Config) { c.Declarations.Source = " " }, "declarations.source"},
		{"bad s3 uri", func(c *Config) { c.Declarations.Source = "s3://bucket" }, "declarations.source"},
		{"s3 endpoint", func(c *Config) {
			c.Declarations.Source = "s3://bucket/key.yaml"
			c.Declarations.AWSEndpoint = "not a url"
		}, "declarations.aws_endpoint"},
		{"output format", func(c *Config) { c.Output.Format = "xml" }, "output.format"},
		{"sample limit", func(c *Config) { c.Sample.Limit = -1 }, "sample.limit"},
		{"sample without dsn", func(c *Config) {
			c.Platform.Name = "sqlite"
			c.Sample.Entity = "Book"
		}, "platform.dsn"},
		{"sample on generic", func(c *Config) {
			c.Platform.DSN = "file.db"
			c.Sample.Entity = "Book"
		}, "platform.name"},
		{"inspect port", func(c *Config) {
			c.Inspect.Enabled = true
			c.Inspect.Port = 70000
		}, "inspect.port"},
		{"log level", func(c *Config) { c.Observability.Logging.Level = "trace" }, "observability.logging.level"},
		{"sample ratio", func(c *Config) { c.Observability.TraceSampleRatio = 2 }, "observability.trace_sample_ratio"},
		{"otlp protocol", func(c *Config) { c.Observability.OTLP.Protocol = "thrift" }, "observability.otlp.protocol"},
		{"http endpoint", func(c *Config) {
			c.Observability.Traces = &OTLPConfig{Protocol: "http/protobuf", Endpoint: "nohost"}
		}, "observability.traces.endpoint"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			result := cfg.Validate()
			require.True(t, result.HasErrors())
			assert.Contains(t, fields(result.Errors), tt.field)
			assert.Contains(t, result.Error(), tt.field)
		})
	}
}

func TestValidate_Warnings(t *testing.T) {
	cfg := validConfig()
	cfg.Platform.Password = "secret"
	cfg.Naming.PluralOverrides = map[string]string{"person": "people"}
	cfg.Declarations.AWSRegion = "eu-west-1"

	result := cfg.Validate()
	assert.False(t, result.HasErrors(), result.Error())

	var warned []string
	for _, w := range result.Warnings {
		warned = append(warned, w.Field)
	}
	assert.ElementsMatch(t, []string{"platform.password", "naming.plural_overrides", "declarations.aws_region"}, warned)
}

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{Field: "output.format", Message: "bad", Hint: "use json"}
	assert.Equal(t, "output.format: bad (hint: use json)", err.Error())
	assert.False(t, strings.Contains(ValidationError{Field: "f", Message: "m"}.Error(), "hint"))
}

func TestGetTracesConfig_MergesOverride(t *testing.T) {
	o := ObservabilityConfig{
		OTLP: OTLPConfig{
			Endpoint:    "collector:4317",
			Protocol:    "grpc",
			Headers:     map[string]string{"a": "1"},
			Compression: "gzip",
			Timeout:     10 * time.Second,
		},
		Traces: &OTLPConfig{
			Endpoint: "https://traces.example.com",
			Protocol: "http/protobuf",
			Insecure: true,
			Headers:  map[string]string{"b": "2"},
		},
	}
	traces := o.GetTracesConfig()
	assert.Equal(t, "https://traces.example.com", traces.Endpoint)
	assert.Equal(t, "http/protobuf", traces.Protocol)
	assert.True(t, traces.Insecure)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, traces.Headers)
	assert.Equal(t, "gzip", traces.Compression)
	assert.Equal(t, 10*time.Second, traces.Timeout)

	assert.Equal(t, o.OTLP, o.GetLogsConfig())

	providers := o.Providers()
	assert.Equal(t, "https://traces.example.com", providers.Traces.Endpoint)
	assert.Equal(t, "collector:4317", providers.Logs.Endpoint)
}
