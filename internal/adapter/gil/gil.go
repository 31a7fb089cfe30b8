// Package gil implements the Profile B concurrency gate (spec.md §4.5): a
// single global lock any thread may acquire, modeled on CPython's GIL.
// Unlike Profile A's event loop, there is no dedicated thread — any
// goroutine may run guest code, as long as it holds the lock first.
package gil

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

const Tag = "py"

type Adapter struct {
	adapter.Tombstone

	gil sync.Mutex

	mu      sync.Mutex
	paths   []string
	handles map[string]*adapter.Handle

	bgWG sync.WaitGroup
}

func New() *Adapter {
	return &Adapter{handles: make(map[string]*adapter.Handle)}
}

// acquire takes the GIL and returns a release function the caller must
// defer. A goroutine that already holds the lock (a callback invoked from
// within guest code re-entering the adapter, e.g. the "apply" behavior)
// and calls acquire again would self-deadlock; this module's adapters
// never do that, since every callback here crosses out to the caller's
// own value rather than back into the same adapter instance.
func (a *Adapter) acquire() func() {
	a.gil.Lock()
	drained := false
	return func() {
		if !drained {
			a.DrainDelayed()
			drained = true
		}
		a.gil.Unlock()
	}
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
			return nil, fmt.Errorf("gil: load_from_file: %w", err)
		}
		all = append(all, fns...)
	}
	return a.load(all), nil
}

func (a *Adapter) LoadFromMemory(name string, buf []byte) (*adapter.Handle, error) {
	funcs, err := scriptlang.Parse(buf)
	if err != nil {
		return nil, fmt.Errorf("gil: load_from_memory(%s): %w", name, err)
	}
	return a.load(funcs), nil
}

func (a *Adapter) LoadFromPackage(path string) (*adapter.Handle, error) {
	return nil, fmt.Errorf("gil: load_from_package not supported")
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
		return fmt.Errorf("gil: handle has no parsed functions")
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

// Destroy marks the adapter destroyed, waits for any background async
// tasks it spawned to finish (they'll enqueue onto the delayed queue
// instead of calling in, per Tombstone), then releases handles.
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
	release := f.a.acquire()
	defer release()
	result, _ := scriptlang.Eval(f.behavior, args)
	return result, nil
}

// Await runs synchronously under the GIL for non-async functions, exactly
// like Invoke. For async functions it spawns a background goroutine that
// acquires the GIL fresh once the simulated work completes — mirroring
// how a real Python adapter would release the GIL before a blocking
// operation and reacquire it to deliver the result.
func (f *fnImpl) Await(args []*value.Value, resolve, reject func(*value.Value), ctx any) error {
	if !f.async {
		release := f.a.acquire()
		defer release()
		result, err := scriptlang.Eval(f.behavior, args)
		if err != nil {
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
			release := f.a.acquire()
			defer release()
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
