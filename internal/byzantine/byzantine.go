// Package byzantine holds the named test-mode behaviours exposed by
// /set-byz-behavior and /byz-behaviors (spec.md §6.4). These are test
// hooks only: per spec.md §1's Non-goal, no safety predicate consults
// this registry, only the transport send path does, to simulate drops,
// duplication, or delay of a node's outbound messages.
package byzantine

import "sync"

// Behavior names a test-mode misbehaviour for this process's outbound
// traffic.
type Behavior string

const (
	None       Behavior = "NONE"
	DropAll    Behavior = "DROP_ALL"
	Duplicate  Behavior = "DUPLICATE"
	Delay      Behavior = "DELAY"
	Equivocate Behavior = "EQUIVOCATE"
)

// All lists every recognised behaviour, in the order /byz-behaviors
// reports them.
var All = []Behavior{None, DropAll, Duplicate, Delay, Equivocate}

// IsValid reports whether b is a recognised behaviour name.
func IsValid(b Behavior) bool {
	for _, v := range All {
		if v == b {
			return true
		}
	}
	return false
}

// Registry holds the single current behaviour for this process.
type Registry struct {
	mu      sync.RWMutex
	current Behavior
}

// NewRegistry constructs a registry starting at None.
func NewRegistry() *Registry {
	return &Registry{current: None}
}

// Get returns the current behaviour.
func (r *Registry) Get() Behavior {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Set installs b as the current behaviour. Returns false without
// changing state if b is not recognised.
func (r *Registry) Set(b Behavior) bool {
	if !IsValid(b) {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = b
	return true
}
