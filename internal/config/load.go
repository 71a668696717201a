// Package config loads configuration from files, env vars, and flags, and validates it.
package config

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"syscall"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// EnvPrefix prefixes every environment variable: EMETA_PLATFORM_NAME.
const EnvPrefix = "EMETA"

// Loader reads configuration. Stdin and the password prompt are replaceable for tests.
type Loader struct {
	Flags  *pflag.FlagSet
	Args   []string
	Stdin  io.Reader
	Prompt func() (string, error)
}

// Load loads configuration from the process command line with the following precedence:
// 1. Explicit overrides (v.Set) used for secrets read from files or the prompt
// 2. Command line flags
// 3. Environment variables
// 4. Config file
// 5. Default values
func Load() (*Config, error) {
	l := Loader{Flags: pflag.CommandLine, Args: os.Args[1:], Stdin: os.Stdin, Prompt: promptPassword}
	return l.Load()
}

// Load parses l.Args into l.Flags and builds the configuration.
func (l Loader) Load() (*Config, error) {
	if l.Flags == nil {
		l.Flags = pflag.NewFlagSet("entitymeta", pflag.ContinueOnError)
	}
	if l.Stdin == nil {
		l.Stdin = os.Stdin
	}
	if l.Prompt == nil {
		l.Prompt = promptPassword
	}

	v := viper.New()
	setDefaults(v)

	DefineFlags(l.Flags)
	if !l.Flags.Parsed() {
		if err := l.Flags.Parse(l.Args); err != nil {
			return nil, fmt.Errorf("failed to parse flags: %w", err)
		}
	}

	cfgPath, _ := l.Flags.GetString("config")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigName("entitymeta")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/entitymeta/")
		v.AddConfigPath("$HOME/.entitymeta")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if cfgPath != "" {
			return nil, fmt.Errorf("failed to read config file %q: %w", cfgPath, err)
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Canonical keys: dot + snake_case. Env vars: EMETA_PLATFORM_DSN_FILE.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	bindChangedFlags(v, l.Flags)
	if err := validateSingleStdinSource(v); err != nil {
		return nil, err
	}

	if v.GetString("platform.dsn") == "" && v.GetString("platform.dsn_file") != "" {
		dsn, err := l.readSecretFile(v.GetString("platform.dsn_file"))
		if err != nil {
			return nil, fmt.Errorf("failed to read platform DSN file: %w", err)
		}
		v.Set("platform.dsn", dsn)
	}
	if v.GetString("platform.password") == "" && v.GetString("platform.password_file") != "" {
		pwd, err := l.readSecretFile(v.GetString("platform.password_file"))
		if err != nil {
			return nil, fmt.Errorf("failed to read platform password file: %w", err)
		}
		v.Set("platform.password", pwd)
	}
	if v.GetString("platform.password") == "" && v.GetBool("platform.password_prompt") {
		pwd, err := l.Prompt()
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		v.Set("platform.password", pwd)
	}

	var cfg Config
	if err := v.UnmarshalExact(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		stringToStringSliceHookFunc(","),
	)
}

// bindChangedFlags copies only explicitly-set flags into Viper,
// preserving precedence: flags > env > file > defaults.
func bindChangedFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.Visit(func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "version" {
			return
		}
		switch f.Value.Type() {
		case "string":
			val, _ := fs.GetString(f.Name)
			v.Set(f.Name, val)
		case "int":
			val, _ := fs.GetInt(f.Name)
			v.Set(f.Name, val)
		case "bool":
			val, _ := fs.GetBool(f.Name)
			v.Set(f.Name, val)
		case "float64":
			val, _ := fs.GetFloat64(f.Name)
			v.Set(f.Name, val)
		case "duration":
			val, _ := fs.GetDuration(f.Name)
			v.Set(f.Name, val)
		case "stringSlice":
			val, _ := fs.GetStringSlice(f.Name)
			v.Set(f.Name, val)
		default:
			v.Set(f.Name, f.Value.String())
		}
	})
}

// DefineFlags defines all command line flags using canonical snake_case keys.
// Calling it twice on the same set is a no-op.
func DefineFlags(fs *pflag.FlagSet) {
	if fs.Lookup("config") != nil {
		return
	}

	// Naming
	fs.String("naming.strategy", "", "Naming strategy (underscore, entity)")
	fs.Bool("naming.pluralize_tables", false, "Pluralize table names derived from entity names")

	// Embedded flattening
	fs.String("embedded.separator", "", "Separator between an embedded property and its children")
	fs.String("embedded.prefix_mode", "", "Embedded prefix mode (relative, absolute)")

	// Platform
	fs.String("platform.name", "", "Database platform (generic, mysql, postgres, sqlite)")
	fs.String("platform.timezone", "", "Platform timezone (Z, local, +02:00, or an IANA name)")
	fs.String("platform.dsn", "", "Database DSN used for row sampling")
	fs.String("platform.dsn_file", "", "Path to file containing the DSN (use @- for stdin)")
	fs.String("platform.password_file", "", "Path to file containing the database password (use @- for stdin)")
	fs.Bool("platform.password_prompt", false, "Prompt for the database password securely")
	fs.Duration("platform.connect_timeout", 0, "Timeout for the initial database ping")

	// Declarations
	fs.String("declarations.source", "", "Declaration document: path, - for stdin, or s3://bucket/key")
	fs.String("declarations.namespace", "", "Namespace overriding the document namespace")
	fs.String("declarations.aws_region", "", "AWS region for s3:// sources")
	fs.String("declarations.aws_endpoint", "", "Custom S3 endpoint (e.g. a local object store)")
	fs.Bool("declarations.aws_path_style", false, "Use path-style S3 addressing")

	// Output
	fs.String("output.format", "", "Dump format (json, summary)")
	fs.String("output.path", "", "Dump destination (default stdout)")

	// Sampling
	fs.String("sample.entity", "", "Entity to sample rows for after resolution")
	fs.Int("sample.limit", 0, "Maximum number of sampled rows")

	// Inspector
	fs.Bool("inspect.enabled", false, "Serve the resolved metadata over HTTP")
	fs.Int("inspect.port", 0, "Inspector HTTP port")
	fs.Duration("inspect.shutdown_timeout", 0, "Inspector graceful shutdown timeout")
	fs.Bool("inspect.graphiql", false, "Serve GraphiQL on the inspector's /graphql endpoint")

	// Observability
	fs.String("observability.service_name", "", "Service name for observability")
	fs.String("observability.service_version", "", "Service version for observability")
	fs.String("observability.environment", "", "Environment name (dev, staging, prod)")
	fs.Bool("observability.metrics_enabled", false, "Enable metrics collection")
	fs.Bool("observability.tracing_enabled", false, "Enable distributed tracing")
	fs.Float64("observability.trace_sample_ratio", 0, "Trace sampling ratio from 0.0 to 1.0")
	fs.String("observability.logging.level", "", "Log level (debug, info, warn, error)")
	fs.String("observability.logging.format", "", "Log format (json, text)")
	fs.Bool("observability.logging.exports_enabled", false, "Enable OTLP log export")
	fs.String("observability.otlp.endpoint", "", "OTLP endpoint for all signals (e.g., localhost:4317)")
	fs.String("observability.otlp.protocol", "", "OTLP protocol for all signals (grpc, http/protobuf)")
	fs.Bool("observability.otlp.insecure", false, "Use insecure connection (no TLS)")
	fs.Duration("observability.otlp.timeout", 0, "OTLP export timeout")
	fs.String("observability.otlp.compression", "", "OTLP compression (none, gzip)")

	fs.StringP("config", "c", "", "Config file path")
	fs.Bool("version", false, "Print version and exit")
}

// setDefaults sets default values (lowest precedence).
func setDefaults(v *viper.Viper) {
	v.SetDefault("naming.strategy", "underscore")
	v.SetDefault("naming.pluralize_tables", false)
	v.SetDefault("naming.plural_overrides", map[string]string{})
	v.SetDefault("naming.singular_overrides", map[string]string{})

	v.SetDefault("embedded.separator", "_")
	v.SetDefault("embedded.prefix_mode", "relative")

	v.SetDefault("platform.name", "generic")
	v.SetDefault("platform.timezone", "")
	v.SetDefault("platform.dsn", "")
	v.SetDefault("platform.dsn_file", "")
	v.SetDefault("platform.password", "")
	v.SetDefault("platform.password_file", "")
	v.SetDefault("platform.password_prompt", false)
	v.SetDefault("platform.connect_timeout", 10*time.Second)

	v.SetDefault("declarations.source", "")
	v.SetDefault("declarations.namespace", "")
	v.SetDefault("declarations.aws_region", "")
	v.SetDefault("declarations.aws_endpoint", "")
	v.SetDefault("declarations.aws_path_style", false)

	v.SetDefault("output.format", "json")
	v.SetDefault("output.path", "")

	v.SetDefault("sample.entity", "")
	v.SetDefault("sample.limit", 10)

	v.SetDefault("inspect.enabled", false)
	v.SetDefault("inspect.port", 8080)
	v.SetDefault("inspect.read_timeout", 15*time.Second)
	v.SetDefault("inspect.write_timeout", 15*time.Second)
	v.SetDefault("inspect.idle_timeout", 60*time.Second)
	v.SetDefault("inspect.shutdown_timeout", 30*time.Second)
	v.SetDefault("inspect.graphiql", false)

	v.SetDefault("observability.service_name", "entitymeta")
	v.SetDefault("observability.service_version", "")
	v.SetDefault("observability.environment", "development")
	v.SetDefault("observability.metrics_enabled", true)
	v.SetDefault("observability.tracing_enabled", false)
	v.SetDefault("observability.trace_sample_ratio", 1.0)

	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "text")
	v.SetDefault("observability.logging.exports_enabled", false)

	v.SetDefault("observability.otlp.endpoint", "localhost:4317")
	v.SetDefault("observability.otlp.protocol", "grpc")
	v.SetDefault("observability.otlp.insecure", false)
	v.SetDefault("observability.otlp.tls_cert_file", "")
	v.SetDefault("observability.otlp.tls_client_cert_file", "")
	v.SetDefault("observability.otlp.tls_client_key_file", "")
	v.SetDefault("observability.otlp.headers", map[string]string{})
	v.SetDefault("observability.otlp.timeout", 10*time.Second)
	v.SetDefault("observability.otlp.compression", "gzip")
	v.SetDefault("observability.otlp.retry_enabled", true)
	v.SetDefault("observability.otlp.retry_max_attempts", 3)
}

// promptPassword prompts the user for a password without echoing to terminal.
func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Enter database password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(bytePassword), nil
}

func (l Loader) readSecretFile(path string) (string, error) {
	var data []byte
	var err error
	if path == "@-" {
		data, err = io.ReadAll(l.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// validateSingleStdinSource rejects configurations that would read stdin twice.
// A declaration source of "-" counts as a stdin reader too.
func validateSingleStdinSource(v *viper.Viper) error {
	stdinBacked := map[string]string{
		"platform.dsn_file":      "@-",
		"platform.password_file": "@-",
		"declarations.source":    "-",
	}
	var configured []string
	for _, key := range []string{"platform.dsn_file", "platform.password_file", "declarations.source"} {
		if strings.TrimSpace(v.GetString(key)) == stdinBacked[key] {
			configured = append(configured, key)
		}
	}
	if len(configured) > 1 {
		return fmt.Errorf(
			"multiple settings read from stdin (%s); only one stdin source is allowed",
			strings.Join(configured, ", "),
		)
	}
	return nil
}

func stringToStringSliceHookFunc(sep string) mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf([]string{}) {
			return data, nil
		}
		raw := strings.TrimSpace(data.(string))
		if raw == "" {
			return []string{}, nil
		}
		parts := strings.Split(raw, sep)
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, nil
	}
}
