package platform

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

var postgresColumnTypes = map[string]string{
	"number":   "numeric",
	"integer":  "int",
	"int":      "int",
	"bigint":   "bigint",
	"float":    "real",
	"double":   "double precision",
	"decimal":  "numeric(10,2)",
	"string":   "varchar(255)",
	"text":     "text",
	"boolean":  "boolean",
	"bool":     "boolean",
	"date":     "date",
	"datetime": "timestamptz",
	"time":     "time(0)",
	"blob":     "bytea",
	"json":     "jsonb",
	"uuid":     "uuid",
	"enum":     "text",
	"array":    "text[]",
}

// NewPostgres returns the PostgreSQL platform with microsecond date precision. Without an
// explicit timezone the DSN's timezone runtime parameter is used.
func NewPostgres(dsn, timezone string) (*Base, error) {
	if timezone == "" {
		tz, err := postgresDSNTimezone(dsn)
		if err != nil {
			return nil, err
		}
		timezone = tz
	}
	return newBase("postgres", "pgx", timezone, time.Microsecond, postgresColumnTypes)
}

func postgresDSNTimezone(dsn string) (string, error) {
	if dsn == "" {
		return "Z", nil
	}
	cfg, err := pgconn.ParseConfig(dsn)
	if err != nil {
		return "", fmt.Errorf("failed to parse postgres DSN: %w", err)
	}
	if tz := cfg.RuntimeParams["timezone"]; tz != "" {
		return tz, nil
	}
	return "Z", nil
}
