// Package mock implements a trivial, dependency-free loader adapter used
// for the core test suite and as a template for new adapters. It mirrors
// the spirit of the upstream project's mock_loader_impl.c — a loader that
// doesn't embed a real language runtime — but, unlike that stub, actually
// executes its discovered functions (via internal/adapter/scriptlang) so
// the value/call machinery can be exercised end to end.
//
// This adapter runs in Profile C (spec.md §4.5): no event loop, no GIL.
// The adapter's mutex guards only its path and handle bookkeeping; function
// calls run in the caller's goroutine without taking it.
package mock

import (
	"fmt"
	"sync"
	"time"

	"github.com/metacall/core/internal/adapter"
	"github.com/metacall/core/internal/adapter/scriptlang"
	"github.com/metacall/core/internal/scope"
	"github.com/metacall/core/internal/types"
	"github.com/metacall/core/internal/value"
)

const Tag = "mock"

type Adapter struct {
	adapter.Tombstone

	mu      sync.Mutex
	paths   []string
	handles map[string]*adapter.Handle
}

func New() *Adapter {
	return &Adapter{handles: make(map[string]*adapter.Handle)}
}

func (a *Adapter) Tag() string { return Tag }

func (a *Adapter) Initialize(config map[string]any) error { return nil }

func (a *Adapter) ExecutionPath(path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.paths = append(a.paths, path)
	return nil
}

func (a *Adapter) load(funcs []scriptlang.Func) *adapter.Handle {
	h := adapter.NewHandle(Tag, funcs)
	a.mu.Lock()
	a.handles[h.ID] = h
	a.mu.Unlock()
	return h
}

// LoadFromFile treats each entry in paths as inline source, since the
// mock adapter has no filesystem of its own to resolve relative names
// against. The other adapters in this module do the same: none reads a
// file or consults the execution-path list.
func (a *Adapter) LoadFromFile(paths []string) (*adapter.Handle, error) {
	var all []scriptlang.Func
	for _, p := range paths {
		fns, err := scriptlang.Parse([]byte(p))
		if err != nil {
			return nil, fmt.Errorf("mock: load_from_file: %w", err)
		}
		all = append(all, fns...)
	}
	return a.load(all), nil
}

func (a *Adapter) LoadFromMemory(name string, buf []byte) (*adapter.Handle, error) {
	funcs, err := scriptlang.Parse(buf)
	if err != nil {
		return nil, fmt.Errorf("mock: load_from_memory(%s): %w", name, err)
	}
	return a.load(funcs), nil
}

func (a *Adapter) LoadFromPackage(path string) (*adapter.Handle, error) {
	return nil, fmt.Errorf("mock: load_from_package not supported")
}

func (a *Adapter) Clear(h *adapter.Handle) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if h.Ctx != nil {
		h.Ctx.Scope.Destroy()
	}
	delete(a.handles, h.ID)
	return nil
}

func (a *Adapter) Discover(h *adapter.Handle, ctx *scope.Context) error {
	funcs, ok := h.Data.([]scriptlang.Func)
	if !ok {
		return fmt.Errorf("mock: handle has no parsed functions")
	}
	for _, pf := range funcs {
		sig := types.Signature{Async: pf.Async}
		for _, p := range pf.Params {
			sig.Params = append(sig.Params, types.Param{Name: p})
		}
		fn := &value.Function{
			Name:   pf.Name,
			Sig:    sig,
			Async:  pf.Async,
			VTable: &fnImpl{a: a, behavior: pf.Behavior, async: pf.Async},
		}
		if err := ctx.Define(pf.Name, value.NewFunction(fn)); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) Destroy() error {
	a.MarkDestroyed()
	a.mu.Lock()
	handles := a.handles
	a.handles = make(map[string]*adapter.Handle)
	a.mu.Unlock()
	for _, h := range handles {
		if h.Ctx != nil {
			h.Ctx.Scope.Destroy()
		}
	}
	return nil
}

// fnImpl is the per-function vtable: evaluation is delegated to
// scriptlang.Eval; this type only adds Profile C's trivial concurrency
// story (calls run in the caller's goroutine with no lock, no loop, no
// GIL) and the once-per-destroy tombstone behavior.
type fnImpl struct {
	a        *Adapter
	behavior string
	async    bool
}

// Invoke never surfaces a Go error for a script-level failure: per
// spec.md §4.3, invocation failure is represented as a throwable-kind
// return value, not a raised error. A non-nil error here would mean the
// adapter itself malfunctioned.
func (f *fnImpl) Invoke(args []*value.Value) (*value.Value, error) {
	result, _ := scriptlang.Eval(f.behavior, args)
	return result, nil
}

func (f *fnImpl) Await(args []*value.Value, resolve, reject func(*value.Value), ctx any) error {
	if !f.async {
		// Non-async function: synthesize an immediate resolution. The
		// façade's metacall_await delegates here for that (§4.6).
		result, err := scriptlang.Eval(f.behavior, args)
		if err != nil {
			reject(result)
			return nil
		}
		resolve(result)
		return nil
	}
	go func() {
		time.Sleep(5 * time.Millisecond) // simulate real asynchrony
		f.a.Release(func() {
			result, err := scriptlang.Eval(f.behavior, args)
			if err != nil {
				reject(result)
				return
			}
			resolve(result)
		})
	}()
	return nil
}

func (f *fnImpl) Destroy() error { return nil }
