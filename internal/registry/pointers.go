// Package registry implements the process-wide pointer-reference registry
// (spec.md §4.4, §5): the one coarse-locked mutable set that lets opaque
// native pointers cross runtimes without guests being able to fabricate
// unchecked ones.
package registry

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// entry pairs the opaque payload a pointer value carries with the
// deferred destructor that releases it.
type entry struct {
	native     any
	destructor func()
}

// Pointers is the process-wide registry. A single instance is shared by
// every adapter in the process (§5: "a process-wide mutable set ...
// mutations go through one coarse lock").
type Pointers struct {
	mu    sync.Mutex
	items map[string]*entry

	rejected int64 // dereferences of unknown ids, for metrics (SPEC_FULL §5)
}

func New() *Pointers {
	return &Pointers{items: make(map[string]*entry)}
}

// Reference registers native with an optional destructor and returns the
// id a pointer-kind value should carry.
func (p *Pointers) Reference(native any, destructor func()) string {
	id := uuid.New().String()
	p.mu.Lock()
	p.items[id] = &entry{native: native, destructor: destructor}
	p.mu.Unlock()
	return id
}

// Dereference resolves id back to its native payload. It fails closed: an
// id this registry never issued (or already released) is rejected rather
// than handed back, which is the whole point of routing pointers through
// a registry instead of raw conversion (§4.4).
func (p *Pointers) Dereference(id string) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.items[id]
	if !ok {
		p.rejected++
		return nil, fmt.Errorf("registry: unknown pointer id %q", id)
	}
	return e.native, nil
}

// Release runs the registered destructor (if any) and removes id from the
// registry. Releasing an unknown id is a no-op, matching "destroy is
// infallible" at the value layer.
func (p *Pointers) Release(id string) {
	p.mu.Lock()
	e, ok := p.items[id]
	if ok {
		delete(p.items, id)
	}
	p.mu.Unlock()
	if ok && e.destructor != nil {
		e.destructor()
	}
}

// Len reports the number of live registered pointers, for metrics/tests.
func (p *Pointers) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

// Rejected reports how many Dereference calls hit an unknown id.
func (p *Pointers) Rejected() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rejected
}
