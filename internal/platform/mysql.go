package platform

import (
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

var mysqlColumnTypes = map[string]string{
	"number":   "double",
	"integer":  "int",
	"int":      "int",
	"bigint":   "bigint",
	"float":    "float",
	"double":   "double",
	"decimal":  "decimal(10,2)",
	"string":   "varchar(255)",
	"text":     "text",
	"boolean":  "tinyint(1)",
	"bool":     "tinyint(1)",
	"date":     "date",
	"datetime": "datetime(3)",
	"time":     "time",
	"blob":     "blob",
	"json":     "json",
	"uuid":     "varchar(36)",
	"enum":     "varchar(255)",
	"array":    "text",
}

// NewMySQL returns the MySQL platform. Without an explicit timezone the driver's loc
// parameter from the DSN is used; the driver default is UTC.
func NewMySQL(dsn, timezone string) (*Base, error) {
	if timezone == "" {
		tz, err := mysqlDSNTimezone(dsn)
		if err != nil {
			return nil, err
		}
		timezone = tz
	}
	return newBase("mysql", "mysql", timezone, time.Millisecond, mysqlColumnTypes)
}

func mysqlDSNTimezone(dsn string) (string, error) {
	if dsn == "" {
		return "Z", nil
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("failed to parse mysql DSN: %w", err)
	}
	if cfg.Loc == nil || cfg.Loc == time.UTC {
		return "Z", nil
	}
	if cfg.Loc == time.Local {
		return "local", nil
	}
	return cfg.Loc.String(), nil
}
