package naming

import (
	"strings"

	"github.com/jinzhu/inflection"
)

// Pluralize converts a singular word to its plural form.
// Checks custom overrides first, then falls back to the inflection library.
func (n *Namer) Pluralize(word string) string {
	if override, ok := n.config.PluralOverrides[word]; ok {
		return override
	}
	return inflection.Plural(word)
}

// Singularize converts a plural word to its singular form.
// Checks custom overrides first, then falls back to the inflection library.
func (n *Namer) Singularize(word string) string {
	if override, ok := n.config.SingularOverrides[word]; ok {
		return override
	}
	return inflection.Singular(word)
}

// pluralizeLast pluralizes the last underscore-separated word of a table name.
// Example: "book_tag" -> "book_tags"
func (n *Namer) pluralizeLast(table string) string {
	idx := strings.LastIndex(table, "_")
	if idx < 0 {
		return n.Pluralize(table)
	}
	return table[:idx+1] + n.Pluralize(table[idx+1:])
}
