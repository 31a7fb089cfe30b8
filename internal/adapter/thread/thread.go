// Package thread implements a plain Profile C concurrency gate (spec.md
// §4.5): a classical mutex around native calls, with no event loop and no
// reentrancy guard. This is the simplest of the three scripting gating
// profiles — it models a runtime (MRI-style Ruby, with a real per-VM lock
// instead of a cooperative GIL) where every call just blocks on one lock.
package thread

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

const Tag = "rb"

type Adapter struct {
	adapter.Tombstone

	vm sync.Mutex

	mu      sync.Mutex
	paths   []string
	handles map[string]*adapter.Handle

	bgWG sync.WaitGroup
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

func (a *Adapter) LoadFromFile(paths []string) (*adapter.Handle, error) {
	var all []scriptlang.Func
	for _, p := range paths {
		fns, err := scriptlang.Parse([]byte(p))
		if err != nil {
			return nil, fmt.Errorf("thread: load_from_file: %w", err)
		}
		all = append(all, fns...)
	}
	return a.load(all), nil
}

func (a *Adapter) LoadFromMemory(name string, buf []byte) (*adapter.Handle, error) {
	funcs, err := scriptlang.Parse(buf)
	if err != nil {
		return nil, fmt.Errorf("thread: load_from_memory(%s): %w", name, err)
	}
	return a.load(funcs), nil
}

func (a *Adapter) LoadFromPackage(path string) (*adapter.Handle, error) {
	return nil, fmt.Errorf("thread: load_from_package not supported")
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
		return fmt.Errorf("thread: handle has no parsed functions")
	}
	for _, pf := range funcs {
		sig := types.Signature{Async: pf.Async}
		for _, p := range pf.Params {
			sig.Params = append(sig.Params, types.Param{Name: p})
		}
		fn := &value.Function{
			Name:  pf.Name,
			Sig:   sig,
			Async: pf.Async,
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
	a.bgWG.Wait()

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

type fnImpl struct {
	a        *Adapter
	behavior string
	async    bool
}

func (f *fnImpl) Invoke(args []*value.Value) (*value.Value, error) {
	f.a.vm.Lock()
	defer f.a.vm.Unlock()
	result, _ := scriptlang.Eval(f.behavior, args)
	return result, nil
}

func (f *fnImpl) Await(args []*value.Value, resolve, reject func(*value.Value), ctx any) error {
	if !f.async {
		result, invokeErr := f.Invoke(args)
		if invokeErr != nil {
			return invokeErr
		}
		if result.Kind().String() == "throwable" {
			reject(result)
			return nil
		}
		resolve(result)
		return nil
	}
	f.a.bgWG.Add(1)
	go func() {
		defer f.a.bgWG.Done()
		time.Sleep(5 * time.Millisecond)
		f.a.Release(func() {
			f.a.vm.Lock()
			result, err := scriptlang.Eval(f.behavior, args)
			f.a.vm.Unlock()
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
