package metadata

import (
	"fmt"
	"sort"
	"sync"
)

// Registry stores entity descriptors by name, by numeric id and by unique name.
// A Registry is created per resolution and is read-only once Seal has been called.
type Registry struct {
	mu           sync.RWMutex
	namespace    string
	byName       map[string]*Entity
	byID         map[int]*Entity
	byUniqueName map[string]*Entity
	nextID       int
	sealed       bool
}

// NewRegistry creates an empty registry. The namespace prefixes unique names.
func NewRegistry(namespace string) *Registry {
	return &Registry{
		namespace:    namespace,
		byName:       make(map[string]*Entity),
		byID:         make(map[int]*Entity),
		byUniqueName: make(map[string]*Entity),
	}
}

// Namespace returns the prefix used for unique names.
func (r *Registry) Namespace() string {
	return r.namespace
}

// Add registers a new descriptor, assigning its id and unique name.
// A placeholder with the same name is replaced in place so earlier lookups stay valid.
func (r *Registry) Add(e *Entity) (*Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return nil, fmt.Errorf("registry is sealed")
	}

	if existing, ok := r.byName[e.Name]; ok {
		if !existing.placeholder {
			return nil, NewError(ErrDuplicateEntityName, e.Name, "", "")
		}
		id, unique := existing.ID, existing.UniqueName
		*existing = *e
		existing.ID = id
		existing.UniqueName = unique
		existing.placeholder = false
		return existing, nil
	}

	r.index(e)
	return e, nil
}

func (r *Registry) index(e *Entity) {
	r.nextID++
	e.ID = r.nextID
	if r.namespace != "" {
		e.UniqueName = r.namespace + "." + e.Name
	} else {
		e.UniqueName = e.Name
	}
	r.byName[e.Name] = e
	r.byID[e.ID] = e
	r.byUniqueName[e.UniqueName] = e
}

// Get returns the named descriptor or ErrUnknownEntity.
func (r *Registry) Get(name string) (*Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byName[name]
	if !ok {
		return nil, NewError(ErrUnknownEntity, name, "", "")
	}
	return e, nil
}

// Lookup returns the named descriptor and whether it exists.
func (r *Registry) Lookup(name string) (*Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byName[name]
	return e, ok
}

// GetOrPlaceholder returns the named descriptor, registering an empty placeholder
// when it does not exist yet. Placeholders support forward references during resolution.
func (r *Registry) GetOrPlaceholder(name string) (*Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.byName[name]; ok {
		return e, nil
	}
	if r.sealed {
		return nil, NewError(ErrUnknownEntity, name, "", "registry is sealed")
	}
	e := NewEntity(name)
	e.placeholder = true
	r.index(e)
	return e, nil
}

// ByID returns the descriptor with the given id.
func (r *Registry) ByID(id int) (*Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	return e, ok
}

// ByUniqueName returns the descriptor with the given unique name.
func (r *Registry) ByUniqueName(unique string) (*Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byUniqueName[unique]
	return e, ok
}

// Entities returns all descriptors ordered by id.
func (r *Registry) Entities() []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entity, 0, len(r.byName))
	for _, e := range r.byName {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Placeholders returns the names of descriptors that were referenced but never declared.
func (r *Registry) Placeholders() []string {
	var names []string
	for _, e := range r.Entities() {
		if e.placeholder {
			names = append(names, e.Name)
		}
	}
	return names
}

// Len returns the number of registered descriptors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// Seal marks the registry and every descriptor read-only.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.byName {
		e.Seal()
	}
	r.sealed = true
}

// Sealed reports whether resolution has completed.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}
