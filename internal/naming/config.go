// Package naming derives physical table and column names from entity and property names.
// Strategies are pure string transforms and can be swapped without touching the resolver.
package naming

// Strategy names accepted by New.
const (
	StrategyUnderscore = "underscore"
	StrategyEntityCase = "entity"
)

// Config holds naming customization options
type Config struct {
	// Strategy selects the naming strategy: "underscore" (default) or "entity".
	Strategy string `mapstructure:"strategy"`

	// PluralizeTables pluralizes table names derived from entity names.
	// Example: "BookTag" -> "book_tags"
	PluralizeTables bool `mapstructure:"pluralize_tables"`

	// PluralOverrides maps singular -> custom plural
	// Example: {"person": "people", "status": "statuses"}
	PluralOverrides map[string]string `mapstructure:"plural_overrides"`

	// SingularOverrides maps plural -> custom singular
	// Example: {"people": "person", "data": "datum"}
	SingularOverrides map[string]string `mapstructure:"singular_overrides"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Strategy:          StrategyUnderscore,
		PluralOverrides:   make(map[string]string),
		SingularOverrides: make(map[string]string),
	}
}
