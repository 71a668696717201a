// Package sqlutil provides SQL utility functions.
package sqlutil

import "strings"

// QuoteIdentifier quotes a SQL identifier (table name, column name, etc.)
// with backticks and escapes any backticks within the identifier.
func QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, "`", "``")
	return "`" + escaped + "`"
}

// QuoteANSIIdentifier quotes an identifier with double quotes, as postgres and sqlite expect.
func QuoteANSIIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, `"`, `""`)
	return `"` + escaped + `"`
}

// QuoteFor quotes an identifier for the named platform. MySQL-family platforms use
// backticks, everything else ANSI double quotes.
func QuoteFor(platformName, name string) string {
	switch strings.ToLower(platformName) {
	case "mysql", "tidb", "mariadb":
		return QuoteIdentifier(name)
	default:
		return QuoteANSIIdentifier(name)
	}
}
