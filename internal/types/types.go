// Package types implements the adapter-owned type descriptors and
// signatures used to annotate functions crossing the polyglot boundary.
package types

import (
	"fmt"
	"sync"

	"github.com/metacall/core/internal/kind"
)

// Type is an adapter-defined descriptor: a kind id plus a display name.
// Types are owned by a loader-impl's Registry and destroyed with it.
type Type struct {
	ID   kind.Kind
	Name string
}

func New(id kind.Kind, name string) *Type {
	return &Type{ID: id, Name: name}
}

func (t *Type) String() string {
	if t == nil {
		return "<untyped>"
	}
	return fmt.Sprintf("%s(%s)", t.Name, t.ID)
}

// Param is one entry of a Signature: a name plus an optional type.
// A nil Type means the parameter is untyped — discovery could not infer an
// annotation, and the caller must supply a concrete value whose kind the
// adapter uses for marshalling (§4.3).
type Param struct {
	Name string
	Type *Type
}

// Signature is an ordered list of parameters plus an optional return type
// and an async flag.
type Signature struct {
	Params []Param
	Return *Type
	Async  bool
}

// Arity returns the declared parameter count.
func (s Signature) Arity() int {
	return len(s.Params)
}

// Variadic reports whether the last parameter is declared as a variadic
// sink (conventionally named "..."), per invariant 4: variadic calls are
// only permitted for functions whose declared arity equals the actual
// argument count's lower bound.
func (s Signature) Variadic() bool {
	return len(s.Params) > 0 && s.Params[len(s.Params)-1].Name == "..."
}

// CheckArity validates invariant 4 of spec.md §3: signature argument count
// matches the declared arity, unless the signature is variadic, in which
// case argc must be at least the lower bound (arity - 1, to exclude the
// variadic sink itself).
func (s Signature) CheckArity(argc int) error {
	arity := s.Arity()
	if s.Variadic() {
		lower := arity - 1
		if argc < lower {
			return fmt.Errorf("types: variadic signature expects at least %d arguments, got %d", lower, argc)
		}
		return nil
	}
	if argc != arity {
		return fmt.Errorf("types: signature expects %d arguments, got %d", arity, argc)
	}
	return nil
}

// Registry owns the set of Type values created by one loader-impl. Types
// are destroyed in bulk when the owning loader-impl is destroyed.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*Type
}

func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*Type)}
}

// Create registers a named type, replacing any previous type of the same
// name (registries are adapter-private, so shadowing is allowed — only
// scope names enforce duplicate rejection).
func (r *Registry) Create(id kind.Kind, name string) *Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := New(id, name)
	r.types[name] = t
	return t
}

func (r *Registry) Lookup(name string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// Destroy releases every type owned by this registry.
func (r *Registry) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = make(map[string]*Type)
}

// Count returns the number of live types, used by Inspect and tests.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.types)
}
