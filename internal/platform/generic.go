package platform

import "time"

var genericColumnTypes = map[string]string{
	"number":   "numeric",
	"integer":  "integer",
	"int":      "integer",
	"bigint":   "bigint",
	"float":    "float",
	"double":   "double",
	"decimal":  "numeric",
	"string":   "varchar(255)",
	"text":     "text",
	"boolean":  "boolean",
	"bool":     "boolean",
	"date":     "date",
	"datetime": "timestamp",
	"time":     "time",
	"blob":     "blob",
	"json":     "json",
	"uuid":     "uuid",
	"enum":     "varchar(255)",
	"array":    "text",
}

// NewGeneric returns an engine-neutral platform with millisecond date precision.
func NewGeneric(timezone string) (*Base, error) {
	if timezone == "" {
		timezone = "Z"
	}
	return newBase("generic", "", timezone, time.Millisecond, genericColumnTypes)
}
