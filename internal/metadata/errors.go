package metadata

import (
	"errors"
	"strings"
)

// Resolution errors. Every one of them is fatal; match with errors.Is.
var (
	ErrMissingPrimaryKey           = errors.New("missing primary key")
	ErrUnknownOrWrongReferenceType = errors.New("unknown or wrong reference type")
	ErrConflictingOwnership        = errors.New("conflicting ownership")
	ErrConflictingPropertyName     = errors.New("conflicting property name")
	ErrDuplicateEntityName         = errors.New("duplicate entity name")
	ErrUnknownBaseEntity           = errors.New("unknown base entity")
	ErrInvalidVersionField         = errors.New("invalid version field")
	ErrMissingRequiredOption       = errors.New("missing required option")
	ErrInvalidDiscriminatorMap     = errors.New("invalid discriminator map")

	// ErrUnknownEntity is returned by lookups of names that were never registered.
	ErrUnknownEntity = errors.New("unknown entity")
)

// Error identifies the entity and property a metadata error refers to.
type Error struct {
	Kind     error
	Entity   string
	Property string
	// Related names the other side of the problem, e.g. "Address.street" for a flattening collision.
	Related string
	Detail  string
}

// NewError builds an Error for entity.property.
func NewError(kind error, entity, property, detail string) *Error {
	return &Error{Kind: kind, Entity: entity, Property: property, Detail: detail}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	b.WriteString(": ")
	b.WriteString(e.Subject())
	if e.Related != "" {
		b.WriteString(" conflicts with ")
		b.WriteString(e.Related)
	}
	if e.Detail != "" {
		b.WriteString(" (")
		b.WriteString(e.Detail)
		b.WriteString(")")
	}
	return b.String()
}

// Subject renders "Entity.property", or just the entity name.
func (e *Error) Subject() string {
	if e.Property == "" {
		return e.Entity
	}
	return e.Entity + "." + e.Property
}

func (e *Error) Unwrap() error {
	return e.Kind
}
