// Package logicaltype classifies logical property type names into the categories that drive
// equality, snapshot normalization and row mapping.
package logicaltype

import "strings"

// Category groups logical types that share comparison and mapping rules.
type Category int

const (
	// Generic is the fallback for unknown types; values compare by deep structural equality.
	Generic Category = iota
	// Number covers integer, floating-point and decimal types.
	Number
	// BigInt covers 64-bit keys that may arrive as strings.
	BigInt
	// String covers character data and enums.
	String
	// Boolean values may arrive from storage as 0/1.
	Boolean
	// Date is a calendar date without time, kept as YYYY-MM-DD.
	Date
	// DateTime is an instant compared at millisecond precision.
	DateTime
	// Time is a time of day kept as a string.
	Time
	// Bytes compare byte-wise.
	Bytes
	// Array compares element by element.
	Array
	// JSON values compare structurally.
	JSON
	// UUID values compare case-insensitively.
	UUID
)

// Classify maps a logical type name to its category.
// The input is case-insensitive. Size specifiers like (10,2) or (255) are stripped before matching,
// and a trailing "[]" marks an array of the element type.
func Classify(typeName string) Category {
	typeName = strings.TrimSpace(typeName)
	if strings.HasSuffix(typeName, "[]") {
		return Array
	}
	if idx := strings.Index(typeName, "("); idx != -1 {
		typeName = typeName[:idx]
	}
	switch strings.ToLower(typeName) {
	case "number", "int", "integer", "smallint", "tinyint", "mediumint",
		"float", "double", "real", "decimal", "numeric", "serial":
		return Number
	case "bigint", "bigserial":
		return BigInt
	case "string", "text", "varchar", "char", "character", "enum", "tinytext", "mediumtext", "longtext":
		return String
	case "bool", "boolean":
		return Boolean
	case "date":
		return Date
	case "datetime", "timestamp", "timestamptz", "datetimetz":
		return DateTime
	case "time", "timetz":
		return Time
	case "blob", "bytes", "bytea", "binary", "varbinary", "buffer", "uint8array":
		return Bytes
	case "array", "simple_array":
		return Array
	case "json", "jsonb", "object":
		return JSON
	case "uuid":
		return UUID
	default:
		return Generic
	}
}

// String returns the category name used in dumps and logs.
func (c Category) String() string {
	switch c {
	case Number:
		return "number"
	case BigInt:
		return "bigint"
	case String:
		return "string"
	case Boolean:
		return "boolean"
	case Date:
		return "date"
	case DateTime:
		return "datetime"
	case Time:
		return "time"
	case Bytes:
		return "bytes"
	case Array:
		return "array"
	case JSON:
		return "json"
	case UUID:
		return "uuid"
	default:
		return "generic"
	}
}

// IsTemporal reports whether values of the category go through date normalization.
func (c Category) IsTemporal() bool {
	return c == Date || c == DateTime
}

// IsScalarIdentity reports whether values compare by plain identity after numeric widening.
func (c Category) IsScalarIdentity() bool {
	return c == Number || c == BigInt || c == String || c == Time
}
