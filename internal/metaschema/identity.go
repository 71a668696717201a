package metaschema

import (
	"errors"
	"fmt"

	"entitymeta/internal/metadata"
	"entitymeta/internal/pkey"
)

// ErrInvalidIdentity is returned for identities that do not decode against the registry.
var ErrInvalidIdentity = errors.New("invalid identity")

// keyPart is one primary key property with its canonical value.
type keyPart struct {
	Property string `json:"property"`
	Value    string `json:"value"`
}

// Identity is a decoded entity identity: the entity and its primary key values in key order.
type Identity struct {
	ID     string           `json:"id"`
	Entity *metadata.Entity `json:"entity"`
	Key    []keyPart        `json:"key"`
}

// ResolveIdentity decodes an identity produced by pkey.Encode and checks it against reg.
// Unknown entities wrap metadata.ErrUnknownEntity; malformed identities or key arity
// mismatches wrap ErrInvalidIdentity.
func ResolveIdentity(reg *metadata.Registry, id string) (*Identity, error) {
	name, parts, err := pkey.Decode(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	e, err := reg.Get(name)
	if err != nil {
		return nil, err
	}
	props := e.PrimaryKeyProps()
	if len(parts) != len(props) {
		return nil, fmt.Errorf("%w: %s has %d key properties, identity carries %d",
			ErrInvalidIdentity, e.Name, len(props), len(parts))
	}

	key := make([]keyPart, len(props))
	for i, p := range props {
		key[i] = keyPart{Property: p.Name, Value: pkey.Serialize(parts[i])}
	}
	return &Identity{ID: id, Entity: e, Key: key}, nil
}
