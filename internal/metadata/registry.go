package metadata

import "sync"

// Registry holds all entity types, loaded at startup and reloaded after
// admin mutations. Reads vastly outnumber writes.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*EntityType
}

func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*EntityType)}
}

// Get returns the entity type with the given name, or nil.
func (r *Registry) Get(name string) *EntityType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.types[name]
}

// All returns all registered entity types.
func (r *Registry) All() []*EntityType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]*EntityType, 0, len(r.types))
	for _, e := range r.types {
		types = append(types, e)
	}
	return types
}

// Load replaces all entity types in the registry.
func (r *Registry) Load(types []*EntityType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = make(map[string]*EntityType, len(types))
	for _, e := range types {
		r.types[e.Name] = e
	}
}
