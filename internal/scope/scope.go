// Package scope implements the ordered name→value mapping rooted at each
// loaded handle (spec.md §3). A Context wraps a Scope with the bookkeeping
// discovery needs to reject duplicate definitions.
package scope

import (
	"fmt"
	"sync"

	"github.com/metacall/core/internal/value"
)

// Scope is an ordered mapping from string names to values. Names within a
// single scope are unique (invariant 3, spec.md §3): defining a name twice
// is an error.
type Scope struct {
	mu    sync.RWMutex
	names []string
	vals  map[string]*value.Value
}

func New() *Scope {
	return &Scope{vals: make(map[string]*value.Value)}
}

// Define installs name→v, transferring ownership of v to the scope.
// Redefining an existing name is rejected (invariant 3).
func (s *Scope) Define(name string, v *value.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.vals[name]; exists {
		return fmt.Errorf("scope: duplicate definition of %q", name)
	}
	s.vals[name] = v
	s.names = append(s.names, name)
	return nil
}

// Get looks up name, returning the value by reference — callers that want
// an owned copy must call Value.Copy() themselves (Get borrows).
func (s *Scope) Get(name string) (*value.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vals[name]
	return v, ok
}

// Names returns the defined names in definition order.
func (s *Scope) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Destroy destroys every value owned by the scope and clears it. Clearing
// a handle destroys its scope (§4.2); values previously copied out by a
// caller are unaffected, since Copy produced an independent value.
func (s *Scope) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range s.names {
		if v, ok := s.vals[name]; ok {
			v.Destroy()
		}
	}
	s.vals = make(map[string]*value.Value)
	s.names = nil
}

// Snapshot returns a map-kind value capturing every name currently defined
// in the scope, used by metacall_handle_export (§4.6). Each entry is a
// fresh copy so the snapshot's lifetime is independent of the scope.
func (s *Scope) Snapshot() *value.Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]value.MapEntry, 0, len(s.names))
	for _, name := range s.names {
		entries = append(entries, value.MapEntry{Key: name, Val: s.vals[name].Copy()})
	}
	return value.NewMap(entries)
}

// Context is the container a loader writes into during discovery: a scope
// plus the handle/tag it belongs to, for error messages and dependency
// tracking.
type Context struct {
	Scope    *Scope
	Tag      string
	HandleID string
}

func NewContext(tag, handleID string) *Context {
	return &Context{Scope: New(), Tag: tag, HandleID: handleID}
}

// Define installs a top-level callable or class found during discovery.
// Nested/static methods are registered on their class value, not the
// scope (§4.3 discovery contract).
func (c *Context) Define(name string, v *value.Value) error {
	if err := c.Scope.Define(name, v); err != nil {
		return fmt.Errorf("discover %s/%s: %w", c.Tag, c.HandleID, err)
	}
	return nil
}
