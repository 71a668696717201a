package platform

import "time"

var sqliteColumnTypes = map[string]string{
	"number":   "numeric",
	"integer":  "integer",
	"int":      "integer",
	"bigint":   "integer",
	"float":    "real",
	"double":   "real",
	"decimal":  "numeric",
	"string":   "text",
	"text":     "text",
	"boolean":  "integer",
	"bool":     "integer",
	"date":     "text",
	"datetime": "datetime",
	"time":     "text",
	"blob":     "blob",
	"json":     "json",
	"uuid":     "text",
	"enum":     "text",
	"array":    "text",
}

// NewSQLite returns the SQLite platform. Dates are stored as text with millisecond precision.
func NewSQLite(timezone string) (*Base, error) {
	if timezone == "" {
		timezone = "Z"
	}
	return newBase("sqlite", "sqlite", timezone, time.Millisecond, sqliteColumnTypes)
}
