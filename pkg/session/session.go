// Package session holds the single active model capability. Rikugan
// is single-tenant: the capability owns exclusive acceleration
// hardware, so at most one instance is ever live system-wide.
package session

import (
	"sync"

	"github.com/rikugan-dev/rikugan/pkg/adapter"
)

// State is the single-slot registry of the active capability. It is
// constructed once at startup and passed into handlers explicitly.
type State struct {
	mu      sync.Mutex
	active  adapter.Adapter
	modelID string
}

// New creates an empty session state.
func New() *State {
	return &State{}
}

// Active returns the current capability and its identifier, or false
// when no capability is loaded.
func (s *State) Active() (adapter.Adapter, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil, "", false
	}
	return s.active, s.modelID, true
}

// Ready reports whether a capability with the given identifier is
// active and still reports usable. Used to make repeat loads of the
// same model a no-op without reallocation.
func (s *State) Ready(modelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil && s.modelID == modelID && s.active.Loaded()
}

// Set installs a capability as the active instance. A previously
// active capability with a different identifier is torn down first, so
// two instances never coexist. Setting the same identifier replaces
// the slot without tearing down the incoming instance.
func (s *State) Set(a adapter.Adapter, modelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil && s.modelID != modelID {
		s.active.Unload()
	}
	s.active = a
	s.modelID = modelID
}

// Clear tears down the active capability and empties the slot.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		s.active.Unload()
	}
	s.active = nil
	s.modelID = ""
}
