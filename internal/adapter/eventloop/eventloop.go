// Package eventloop implements the Profile A concurrency gate (spec.md
// §4.5): a single dedicated OS thread processes every call serially, the
// way a JS engine's event loop does. Any goroutine already running on the
// loop's own thread executes inline; every other caller enqueues a job and
// blocks until it completes. Thread affinity is detected with the real OS
// thread id (golang.org/x/sys/unix.Gettid), not a goroutine id — Go has no
// such concept, and the spec's "same thread" check has to mean something
// real.
package eventloop

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/metacall/core/internal/adapter"
	"github.com/metacall/core/internal/adapter/scriptlang"
	"github.com/metacall/core/internal/scope"
	"github.com/metacall/core/internal/types"
	"github.com/metacall/core/internal/value"
)

const Tag = "node"

type job struct {
	fn   func()
	done chan struct{}
}

// Adapter owns one background goroutine locked to a single OS thread. All
// discovered functions execute on that thread; calls from any other thread
// are marshalled onto it through jobs.
type Adapter struct {
	adapter.Tombstone

	mu      sync.Mutex
	paths   []string
	handles map[string]*adapter.Handle

	loopTID int32 // set once the loop goroutine starts, read-only after
	jobs    chan job
	quit    chan struct{}
	wg      sync.WaitGroup

	active int32 // not updated anywhere; Destroy does not wait on a handle count
}

func New() *Adapter {
	a := &Adapter{
		handles: make(map[string]*adapter.Handle),
		jobs:    make(chan job),
		quit:    make(chan struct{}),
	}
	a.wg.Add(1)
	started := make(chan struct{})
	go a.run(started)
	<-started
	return a
}

func (a *Adapter) run(started chan struct{}) {
	defer a.wg.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	a.loopTID = int32(unix.Gettid())
	close(started)

	for {
		select {
		case j := <-a.jobs:
			j.fn()
			if j.done != nil {
				close(j.done)
			}
			a.DrainDelayed()
		case <-a.quit:
			a.DrainDelayed()
			return
		}
	}
}

// onLoopThread reports whether the calling goroutine is already pinned to
// the loop's OS thread. Only goroutines created with runtime.LockOSThread
// on that same thread (none, in this module — the loop goroutine is the
// only one) would ever satisfy this; every ordinary caller marshals in.
func (a *Adapter) onLoopThread() bool {
	return int32(unix.Gettid()) == a.loopTID
}

// submit submits fn to the loop thread. If the caller is already running on
// that thread, fn runs inline with no round trip — this is the re-entrancy
// rule every Profile A adapter needs (spec.md §4.5).
func (a *Adapter) submit(fn func()) {
	if a.onLoopThread() {
		fn()
		return
	}
	done := make(chan struct{})
	select {
	case a.jobs <- job{fn: fn, done: done}:
		<-done
	case <-a.quit:
		// Adapter shutting down: run synchronously rather than hang, then
		// let Destroy's delayed-queue draining catch any native release.
		fn()
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
			return nil, fmt.Errorf("eventloop: load_from_file: %w", err)
		}
		all = append(all, fns...)
	}
	return a.load(all), nil
}

func (a *Adapter) LoadFromMemory(name string, buf []byte) (*adapter.Handle, error) {
	funcs, err := scriptlang.Parse(buf)
	if err != nil {
		return nil, fmt.Errorf("eventloop: load_from_memory(%s): %w", name, err)
	}
	return a.load(funcs), nil
}

func (a *Adapter) LoadFromPackage(path string) (*adapter.Handle, error) {
	return nil, fmt.Errorf("eventloop: load_from_package not supported")
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
		return fmt.Errorf("eventloop: handle has no parsed functions")
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

// Destroy stops accepting jobs, drains the delayed-release queue one last
// time on the loop thread, then joins the loop goroutine. Per invariant 2
// (spec.md §3), after this returns any value still holding a reference to
// this adapter must short-circuit through Tombstone rather than call in.
func (a *Adapter) Destroy() error {
	a.MarkDestroyed()
	close(a.quit)
	a.wg.Wait()

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
	var result *value.Value
	f.a.submit(func() {
		result, _ = scriptlang.Eval(f.behavior, args)
	})
	return result, nil
}

// Await resolves on the loop thread, as every callback into guest code
// must (§4.5): a script engine's promise machinery only runs safely on its
// own thread, so resolve/reject fire from inside submit's job, never from
// an arbitrary caller goroutine.
func (f *fnImpl) Await(args []*value.Value, resolve, reject func(*value.Value), ctx any) error {
	fire := func() {
		result, err := scriptlang.Eval(f.behavior, args)
		if err != nil {
			reject(result)
			return
		}
		resolve(result)
	}
	if !f.async {
		f.a.submit(fire)
		return nil
	}
	go func() {
		time.Sleep(5 * time.Millisecond)
		f.a.submit(func() {
			f.a.Release(fire)
		})
	}()
	return nil
}

func (f *fnImpl) Destroy() error { return nil }
