// Package platform describes the storage engine capabilities the metadata core consumes:
// column types for logical types, date normalization and the timezone convention.
package platform

import (
	"fmt"
	"strings"
	"time"

	"entitymeta/internal/coerce"
)

// Platform is the storage engine seen by the resolver and the compiled functions.
type Platform interface {
	// Name identifies the platform, e.g. "mysql".
	Name() string
	// DriverName is the database/sql driver used to read rows.
	DriverName() string
	// ColumnTypeFor returns the column type declared for a logical type.
	ColumnTypeFor(logicalType string) string
	// NormalizeDate brings a time to the precision and location values read back from storage have.
	NormalizeDate(t time.Time) time.Time
	// Timezone is the configured convention for literals without an offset.
	Timezone() string
	// Location is Timezone as a location.
	Location() *time.Location
}

// Config selects and configures a platform.
type Config struct {
	Name     string `mapstructure:"name"`
	Timezone string `mapstructure:"timezone"`
	// DSN is optional; mysql and postgres read their timezone from it when Timezone is empty.
	DSN string `mapstructure:"dsn"`
}

// DefaultConfig returns the generic platform in UTC.
func DefaultConfig() Config {
	return Config{Name: "generic", Timezone: "Z"}
}

// New builds the platform named by cfg.Name.
func New(cfg Config) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Name)) {
	case "", "generic":
		return NewGeneric(cfg.Timezone)
	case "mysql", "tidb", "mariadb":
		return NewMySQL(cfg.DSN, cfg.Timezone)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN, cfg.Timezone)
	case "sqlite", "sqlite3":
		return NewSQLite(cfg.Timezone)
	default:
		return nil, fmt.Errorf("unknown platform %q", cfg.Name)
	}
}

// Base implements Platform from a column type table and a precision.
type Base struct {
	name        string
	driver      string
	timezone    string
	loc         *time.Location
	precision   time.Duration
	columnTypes map[string]string
}

func newBase(name, driver, timezone string, precision time.Duration, columnTypes map[string]string) (*Base, error) {
	loc, err := coerce.ParseTimezone(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to configure %s platform: %w", name, err)
	}
	return &Base{
		name:        name,
		driver:      driver,
		timezone:    timezone,
		loc:         loc,
		precision:   precision,
		columnTypes: columnTypes,
	}, nil
}

func (b *Base) Name() string       { return b.name }
func (b *Base) DriverName() string { return b.driver }
func (b *Base) Timezone() string   { return b.timezone }

func (b *Base) Location() *time.Location { return b.loc }

// ColumnTypeFor looks the logical type up case-insensitively. Size arguments are carried over,
// and unknown types are returned unchanged so declarations can name native column types.
func (b *Base) ColumnTypeFor(logicalType string) string {
	name, args := logicalType, ""
	if idx := strings.Index(logicalType, "("); idx != -1 {
		name, args = logicalType[:idx], logicalType[idx:]
	}
	if strings.HasSuffix(name, "[]") {
		if mapped, ok := b.columnTypes["array"]; ok {
			return mapped
		}
	}
	mapped, ok := b.columnTypes[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return logicalType
	}
	if args == "" {
		return mapped
	}
	if idx := strings.Index(mapped, "("); idx != -1 {
		mapped = mapped[:idx]
	}
	return mapped + args
}

// NormalizeDate truncates to the platform precision and moves the time into the configured location.
func (b *Base) NormalizeDate(t time.Time) time.Time {
	if b.precision > 0 {
		t = t.Truncate(b.precision)
	}
	return t.In(b.loc)
}
