package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"entitymeta/internal/coerce"
	"entitymeta/internal/declsource"
	"entitymeta/internal/dump"
	"entitymeta/internal/naming"
)

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns a combined error message if there are validation errors.
func (r *ValidationResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

func (r *ValidationResult) addError(field, message, hint string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message, Hint: hint})
}

func (r *ValidationResult) addWarning(field, message, hint string) {
	r.Warnings = append(r.Warnings, ValidationWarning{Field: field, Message: message, Hint: hint})
}

// Validate checks the configuration for errors and returns validation results.
// It returns both errors (fatal) and warnings (non-fatal issues).
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}

	validateNamingConfig(result, c.Naming)
	c.Embedded.validate(result)
	c.Platform.validate(result)
	c.Declarations.validate(result)
	c.Output.validate(result)
	c.Sample.validate(result, c.Platform)
	c.Inspect.validate(result)
	c.Observability.validate(result)

	return result
}

func validateNamingConfig(result *ValidationResult, cfg naming.Config) {
	switch strings.ToLower(strings.TrimSpace(cfg.Strategy)) {
	case "", naming.StrategyUnderscore, naming.StrategyEntityCase:
	default:
		result.addError("naming.strategy", fmt.Sprintf("unknown naming strategy %q", cfg.Strategy),
			"valid values are: underscore, entity")
	}
	for singular, plural := range cfg.PluralOverrides {
		if strings.TrimSpace(singular) == "" || strings.TrimSpace(plural) == "" {
			result.addError("naming.plural_overrides", "override keys and values cannot be empty", "")
		}
	}
	for plural, singular := range cfg.SingularOverrides {
		if strings.TrimSpace(singular) == "" || strings.TrimSpace(plural) == "" {
			result.addError("naming.singular_overrides", "override keys and values cannot be empty", "")
		}
	}
	if !cfg.PluralizeTables && len(cfg.PluralOverrides) > 0 {
		result.addWarning("naming.plural_overrides", "plural overrides are set but table pluralization is disabled",
			"enable naming.pluralize_tables to apply them to table names")
	}
}

func (e *EmbeddedConfig) validate(result *ValidationResult) {
	if e.Separator == "" {
		result.addError("embedded.separator", "separator cannot be empty", "the usual separator is _")
	}
	switch e.PrefixMode {
	case "relative", "absolute":
	default:
		result.addError("embedded.prefix_mode", fmt.Sprintf("invalid prefix mode %q", e.PrefixMode),
			"valid values are: relative, absolute")
	}
}

var validPlatforms = map[string]bool{
	"generic": true, "mysql": true, "tidb": true, "mariadb": true,
	"postgres": true, "postgresql": true, "sqlite": true, "sqlite3": true,
}

func (p *PlatformConfig) validate(result *ValidationResult) {
	if !validPlatforms[strings.ToLower(strings.TrimSpace(p.Name))] {
		result.addError("platform.name", fmt.Sprintf("unknown platform %q", p.Name),
			"valid values are: generic, mysql, postgres, sqlite")
	}
	if p.Timezone != "" {
		if _, err := coerce.ParseTimezone(p.Timezone); err != nil {
			result.addError("platform.timezone", err.Error(), "use Z, local, an offset like +02:00, or an IANA name")
		}
	}
	if p.ConnectTimeout < 0 {
		result.addError("platform.connect_timeout", "connect_timeout cannot be negative", "")
	}
	if p.Password != "" && p.DSN == "" {
		result.addWarning("platform.password", "a password is set but there is no DSN to use it with",
			"set platform.dsn or platform.dsn_file")
	}
	if p.DSN != "" && strings.EqualFold(p.Name, "generic") {
		result.addWarning("platform.dsn", "the generic platform has no database driver; the DSN is ignored",
			"set platform.name to mysql, postgres or sqlite")
	}
}

func (d *DeclarationsConfig) validate(result *ValidationResult) {
	source := strings.TrimSpace(d.Source)
	if source == "" {
		result.addError("declarations.source", "a declaration source is required",
			"pass a file path, - for stdin, or s3://bucket/key")
		return
	}
	if strings.HasPrefix(source, "s3://") {
		if _, _, err := declsource.ParseS3URI(source); err != nil {
			result.addError("declarations.source", err.Error(), "use s3://bucket/key")
		}
		if d.AWSEndpoint != "" && !validURL(d.AWSEndpoint) {
			result.addError("declarations.aws_endpoint", fmt.Sprintf("invalid endpoint %q", d.AWSEndpoint),
				"use a full URL like http://localhost:9000")
		}
		return
	}
	if d.AWSRegion != "" || d.AWSEndpoint != "" || d.AWSPathStyle {
		result.addWarning("declarations.aws_region", "AWS settings are ignored for non-S3 sources", "")
	}
}

func (o *OutputConfig) validate(result *ValidationResult) {
	switch o.Format {
	case dump.FormatJSON, dump.FormatSummary:
	default:
		result.addError("output.format", fmt.Sprintf("invalid output format %q", o.Format),
			"valid values are: json, summary")
	}
}

func (s *SampleConfig) validate(result *ValidationResult, platform PlatformConfig) {
	if s.Limit < 0 {
		result.addError("sample.limit", "limit cannot be negative", "")
	}
	if s.Entity == "" {
		return
	}
	if s.Limit == 0 {
		result.addError("sample.limit", "limit must be greater than 0 when sampling", "")
	}
	if platform.DSN == "" && platform.DSNFile == "" {
		result.addError("platform.dsn", "sampling needs a database DSN", "set platform.dsn or platform.dsn_file")
	}
	if strings.EqualFold(platform.Name, "generic") {
		result.addError("platform.name", "sampling needs a concrete platform",
			"set platform.name to mysql, postgres or sqlite")
	}
}

func (i *InspectConfig) validate(result *ValidationResult) {
	if !i.Enabled {
		return
	}
	if i.Port < 1 || i.Port > 65535 {
		result.addError("inspect.port", fmt.Sprintf("port %d is out of valid range (1-65535)", i.Port), "")
	}
	if i.ShutdownTimeout <= 0 {
		result.addError("inspect.shutdown_timeout", "shutdown_timeout must be greater than 0", "")
	}
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[o.Logging.Level] {
		result.addError("observability.logging.level", fmt.Sprintf("invalid log level %q", o.Logging.Level),
			"valid values are: debug, info, warn, error")
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[o.Logging.Format] {
		result.addError("observability.logging.format", fmt.Sprintf("invalid log format %q", o.Logging.Format),
			"valid values are: json, text")
	}

	if o.TraceSampleRatio < 0 || o.TraceSampleRatio > 1 {
		result.addError("observability.trace_sample_ratio",
			fmt.Sprintf("trace_sample_ratio %v is out of range", o.TraceSampleRatio), "use a value from 0.0 to 1.0")
	}

	o.OTLP.validate("observability.otlp", result)
	if o.Traces != nil {
		o.Traces.validate("observability.traces", result)
	}
	if o.Logs != nil {
		o.Logs.validate("observability.logs", result)
	}
}

func (o *OTLPConfig) validate(prefix string, result *ValidationResult) {
	validProtocols := map[string]bool{"": true, "grpc": true, "http/protobuf": true}
	if !validProtocols[o.Protocol] {
		result.addError(prefix+".protocol", fmt.Sprintf("invalid OTLP protocol %q", o.Protocol),
			"valid values are: grpc, http/protobuf")
	}
	if o.Protocol == "http/protobuf" && !validOTLPEndpoint(o.Endpoint) {
		result.addError(prefix+".endpoint", fmt.Sprintf("invalid OTLP endpoint %q for http/protobuf", o.Endpoint),
			"use host:port or a full URL")
	}

	validCompressions := map[string]bool{"": true, "none": true, "gzip": true}
	if !validCompressions[o.Compression] {
		result.addError(prefix+".compression", fmt.Sprintf("invalid OTLP compression %q", o.Compression),
			"valid values are: none, gzip")
	}
	if o.RetryMaxAttempts < 0 {
		result.addError(prefix+".retry_max_attempts", "retry_max_attempts cannot be negative", "")
	}
}

func validOTLPEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	if strings.Contains(endpoint, "://") {
		return validURL(endpoint)
	}
	_, _, err := net.SplitHostPort(endpoint)
	return err == nil
}

func validURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return parsed.Scheme != "" && parsed.Host != ""
}
