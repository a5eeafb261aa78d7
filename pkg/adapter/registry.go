package adapter

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory constructs a fresh, unloaded adapter instance.
type Factory func() Adapter

type registration struct {
	desc    Descriptor
	factory Factory
}

// Registry maps adapter IDs and aliases to adapter factories. It is
// populated once at startup with an explicit registration list and is
// passed into handlers rather than accessed as a global.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]registration
	aliases  map[string]string // lowercased alias -> adapter id
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]registration),
		aliases:  make(map[string]string),
	}
}

// Register adds one adapter factory under the descriptor's ID and
// aliases. Duplicate IDs and alias collisions are rejected so route
// resolution stays unambiguous.
func (r *Registry) Register(factory Factory) error {
	probe := factory()
	desc := probe.Descriptor()
	if desc.ID == "" {
		return fmt.Errorf("adapter: registration with empty id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[desc.ID]; exists {
		return fmt.Errorf("adapter: duplicate adapter id %q", desc.ID)
	}
	for _, alias := range desc.Aliases {
		lower := strings.ToLower(alias)
		if owner, taken := r.aliases[lower]; taken {
			return fmt.Errorf("adapter: alias %q claimed by both %q and %q", alias, owner, desc.ID)
		}
	}

	r.adapters[desc.ID] = registration{desc: desc, factory: factory}
	for _, alias := range desc.Aliases {
		r.aliases[strings.ToLower(alias)] = desc.ID
	}
	return nil
}

// Resolve finds an adapter factory by ID or alias, case-insensitively.
func (r *Registry) Resolve(name string) (Factory, Descriptor, bool) {
	lower := strings.ToLower(name)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if reg, ok := r.adapters[lower]; ok {
		return reg.factory, reg.desc, true
	}
	if id, ok := r.aliases[lower]; ok {
		reg := r.adapters[id]
		return reg.factory, reg.desc, true
	}
	return nil, Descriptor{}, false
}

// List returns all registered descriptors sorted by ID.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.adapters))
	for _, reg := range r.adapters {
		out = append(out, reg.desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Default returns a registry populated with the built-in adapters.
func Default() *Registry {
	r := NewRegistry()
	// Errors impossible here: the built-in set has disjoint ids/aliases.
	_ = r.Register(func() Adapter { return NewSynthetic(SyntheticConfig{}) })
	_ = r.Register(func() Adapter { return NewCoarseSynthetic() })
	_ = r.Register(func() Adapter { return NewEcho() })
	return r
}
