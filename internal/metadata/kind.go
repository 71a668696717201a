package metadata

import (
	"fmt"
	"strings"
)

// Kind classifies a property as a scalar, an embedded value or one side of a relation.
type Kind int

const (
	KindScalar Kind = iota
	KindEmbedded
	KindManyToOne
	KindOneToMany
	KindManyToMany
	KindOneToOne
)

// String returns the declaration spelling of the kind.
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindEmbedded:
		return "embedded"
	case KindManyToOne:
		return "m:1"
	case KindOneToMany:
		return "1:m"
	case KindManyToMany:
		return "m:n"
	case KindOneToOne:
		return "1:1"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// IsRelation reports whether the kind links to another entity.
func (k Kind) IsRelation() bool {
	return k == KindManyToOne || k == KindOneToMany || k == KindManyToMany || k == KindOneToOne
}

// IsCollection reports whether the kind holds many related instances.
func (k Kind) IsCollection() bool {
	return k == KindOneToMany || k == KindManyToMany
}

// IsReference reports whether the kind holds at most one related instance.
func (k Kind) IsReference() bool {
	return k == KindManyToOne || k == KindOneToOne
}

// ParseKind accepts the short spellings used by String and a few long aliases.
// An empty string is a scalar.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "scalar":
		return KindScalar, nil
	case "embedded", "embed":
		return KindEmbedded, nil
	case "m:1", "many_to_one", "manytoone":
		return KindManyToOne, nil
	case "1:m", "one_to_many", "onetomany":
		return KindOneToMany, nil
	case "m:n", "many_to_many", "manytomany":
		return KindManyToMany, nil
	case "1:1", "one_to_one", "onetoone":
		return KindOneToOne, nil
	default:
		return KindScalar, fmt.Errorf("unknown property kind %q", s)
	}
}

// MarshalText renders the kind for JSON dumps.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Cascade is one cascade rule applied along a relation.
type Cascade string

const (
	CascadePersist Cascade = "persist"
	CascadeMerge   Cascade = "merge"
	CascadeRemove  Cascade = "remove"
	CascadeAll     Cascade = "all"
)
