package metacall

import (
	"fmt"
	"sync"

	"github.com/metacall/core/internal/marshal"
	"github.com/metacall/core/internal/value"
)

// Allocator scopes a set of pointer-registry entries (spec.md §6's
// allocator_create/allocator_free/allocator_destroy, and design note 7's
// RAII pattern): every pointer-kind value it produces is released when
// the allocator is destroyed, even if the caller never frees them
// individually.
type Allocator struct {
	mu  sync.Mutex
	ids []string
}

// AllocatorCreate returns a new, empty allocator. The spec's "kind"
// parameter (a stdlib-style {malloc, realloc, free} triple) has no
// analogue here: this module's only native-pointer source is the shared
// pointer registry, so every allocator is the same kind.
func AllocatorCreate() *Allocator {
	return &Allocator{}
}

// Alloc registers native with destructor and returns a pointer-kind value
// scoped to this allocator.
func (a *Allocator) Alloc(native any, destructor func()) *Value {
	id := marshal.Pointers().Reference(native, destructor)
	a.mu.Lock()
	a.ids = append(a.ids, id)
	a.mu.Unlock()
	return value.NewPointer(id)
}

// Free releases one pointer-kind value ahead of the allocator's own
// destruction (allocator_free).
func (a *Allocator) Free(v *Value) error {
	if v.Kind().String() != "pointer" {
		return fmt.Errorf("metacall: allocator free: %s is not a pointer value", v.Kind())
	}
	id := v.Pointer().ID
	marshal.Pointers().Release(id)

	a.mu.Lock()
	defer a.mu.Unlock()
	for i, existing := range a.ids {
		if existing == id {
			a.ids = append(a.ids[:i], a.ids[i+1:]...)
			break
		}
	}
	return nil
}

// Destroy releases every pointer this allocator still owns
// (allocator_destroy).
func (a *Allocator) Destroy() {
	a.mu.Lock()
	ids := a.ids
	a.ids = nil
	a.mu.Unlock()
	for _, id := range ids {
		marshal.Pointers().Release(id)
	}
}

// Scoped runs fn with a fresh allocator and guarantees Destroy runs on
// every exit path, including a panic raised by fn — the RAII discipline
// design note 7 calls for around allocators and handles.
func Scoped(fn func(a *Allocator) error) (err error) {
	a := AllocatorCreate()
	defer a.Destroy()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("metacall: panic in scoped allocator: %v", r)
		}
	}()
	return fn(a)
}
