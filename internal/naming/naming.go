package naming

import (
	"log/slog"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Strategy maps entity and property names to physical names.
type Strategy interface {
	// ClassToTableName returns the table backing an entity.
	ClassToTableName(entityName string) string
	// PropertyToColumnName returns the column backing a scalar property.
	PropertyToColumnName(propertyName string) string
	// JoinColumnName returns the default foreign key column of a relation property.
	JoinColumnName(propertyName string) string
	// JoinKeyColumnName combines an entity or property name with a referenced key column.
	JoinKeyColumnName(entityName, referencedColumnName string) string
	// JoinTableName returns the pivot table of a many-to-many property.
	JoinTableName(sourceEntity, targetEntity, propertyName string) string
	// ReferenceColumnName is the key column assumed when none is resolved.
	ReferenceColumnName() string
}

// Namer holds the configuration shared by the built-in strategies.
type Namer struct {
	config Config
	logger *slog.Logger
}

// New returns the strategy selected by cfg.Strategy.
// Unknown strategies fall back to underscore naming with a warning.
func New(cfg Config, logger *slog.Logger) Strategy {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Namer{config: cfg, logger: logger}
	switch strings.ToLower(strings.TrimSpace(cfg.Strategy)) {
	case "", StrategyUnderscore:
		return &Underscore{Namer: n}
	case StrategyEntityCase:
		return &EntityCase{Namer: n}
	default:
		logger.Warn("unknown naming strategy, using underscore",
			slog.String("strategy", cfg.Strategy),
		)
		return &Underscore{Namer: n}
	}
}

// Default returns underscore naming with default configuration
func Default() Strategy {
	return New(DefaultConfig(), nil)
}

// Underscore converts camelCase names to snake_case.
// Example: entity "BookTag" -> table "book_tag", property "firstName" -> column "first_name".
type Underscore struct {
	*Namer
}

func (u *Underscore) ClassToTableName(entityName string) string {
	table := toSnakeCase(entityName)
	if u.config.PluralizeTables {
		table = u.pluralizeLast(table)
	}
	return table
}

func (u *Underscore) PropertyToColumnName(propertyName string) string {
	return toSnakeCase(propertyName)
}

func (u *Underscore) JoinColumnName(propertyName string) string {
	return toSnakeCase(propertyName) + "_" + u.ReferenceColumnName()
}

func (u *Underscore) JoinKeyColumnName(entityName, referencedColumnName string) string {
	if referencedColumnName == "" {
		referencedColumnName = u.ReferenceColumnName()
	}
	return toSnakeCase(entityName) + "_" + referencedColumnName
}

func (u *Underscore) JoinTableName(sourceEntity, _, propertyName string) string {
	return toSnakeCase(sourceEntity) + "_" + toSnakeCase(propertyName)
}

func (u *Underscore) ReferenceColumnName() string {
	return "id"
}

// EntityCase keeps entity and property names as declared.
// Example: entity "BookTag" -> table "BookTag", relation "author" -> column "authorId".
type EntityCase struct {
	*Namer
}

func (e *EntityCase) ClassToTableName(entityName string) string {
	if e.config.PluralizeTables {
		return e.Pluralize(entityName)
	}
	return entityName
}

func (e *EntityCase) PropertyToColumnName(propertyName string) string {
	return propertyName
}

func (e *EntityCase) JoinColumnName(propertyName string) string {
	return propertyName + upperFirst(e.ReferenceColumnName())
}

func (e *EntityCase) JoinKeyColumnName(entityName, referencedColumnName string) string {
	if referencedColumnName == "" {
		referencedColumnName = e.ReferenceColumnName()
	}
	return lowerFirst(entityName) + upperFirst(referencedColumnName)
}

func (e *EntityCase) JoinTableName(sourceEntity, _, propertyName string) string {
	return sourceEntity + upperFirst(propertyName)
}

func (e *EntityCase) ReferenceColumnName() string {
	return "id"
}

// EntityName converts a snake_case table name to a PascalCase entity name.
// Example: "book_tags" -> "BookTags"
func EntityName(table string) string {
	return toPascalCase(table)
}

// toPascalCase converts snake_case to PascalCase
func toPascalCase(s string) string {
	// Casers are stateful, so each call gets its own.
	caser := cases.Title(language.Und, cases.NoLower)
	parts := strings.Split(s, "_")
	for i, part := range parts {
		if len(part) > 0 {
			parts[i] = caser.String(part)
		}
	}
	return strings.Join(parts, "")
}

// toSnakeCase inserts an underscore at every lower-to-upper boundary and lowercases the result.
// Example: "firstName" -> "first_name", "BookTag" -> "book_tag"
func toSnakeCase(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	var prev rune
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)) {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToLower(r))
		prev = r
	}
	return b.String()
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
