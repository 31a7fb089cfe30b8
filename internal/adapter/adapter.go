// Package adapter defines the fixed per-language plug-in contract every
// loader implementation satisfies (spec.md §4.3), plus the tombstoning
// helper shared by all profiles for surviving out-of-order shutdown
// (spec.md §3 invariant 2, §4.5, §5).
package adapter

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/metacall/core/internal/scope"
)

// Handle is opaque adapter-private state representing one loaded unit
// (script, module, or aggregate of files). Owned by the loader manager;
// released by the adapter's Clear.
type Handle struct {
	ID   string
	Tag  string
	Ctx  *scope.Context
	Data any // adapter-private payload (parsed script, compiled table, ...)
}

func NewHandle(tag string, data any) *Handle {
	id := uuid.New().String()
	return &Handle{ID: id, Tag: tag, Ctx: scope.NewContext(tag, id), Data: data}
}

// LoaderImpl is the fixed interface every language adapter implements
// (spec.md §4.3):
//
//	initialize, execution_path, load_from_file, load_from_memory,
//	load_from_package, clear, discover, destroy
type LoaderImpl interface {
	// Tag returns the short adapter identifier ("py", "node", "rb", ...).
	Tag() string

	// Initialize starts the adapter. Failure here is fatal for that
	// adapter — the caller (loader.Manager) reports and removes it.
	Initialize(config map[string]any) error

	// ExecutionPath prepends path to the adapter's relative-resolution
	// search list.
	ExecutionPath(path string) error

	// LoadFromFile loads the entries of paths. Every adapter in this module
	// treats each entry as inline script source: no file is read and the
	// execution-path list is not consulted.
	LoadFromFile(paths []string) (*Handle, error)

	// LoadFromMemory loads a synthetic module named name from a text
	// buffer.
	LoadFromMemory(name string, buf []byte) (*Handle, error)

	// LoadFromPackage loads an adapter-defined binary/package form.
	LoadFromPackage(path string) (*Handle, error)

	// Clear destroys the handle's scope and releases adapter state.
	// Best-effort: errors are logged but don't prevent other clears.
	Clear(h *Handle) error

	// Discover walks a loaded handle and defines one value per top-level
	// callable/class found, under its source-language name (§4.3).
	Discover(h *Handle, ctx *scope.Context) error

	// Destroy tears down the adapter: flags itself destroyed so trailing
	// finalizers short-circuit, drains its concurrency gate, releases
	// remaining handles, releases the runtime (§4.5).
	Destroy() error
}

// Tombstone is embedded by every adapter to implement the destroyed-flag
// short-circuit required by invariant 2 (spec.md §3): once an adapter is
// destroyed, values it originated must not attempt native destruction —
// the release is queued instead and drained on the adapter's next tick,
// or dropped if the adapter (and thus the queue) is gone.
type Tombstone struct {
	mu        sync.Mutex
	destroyed bool
	delayed   []func()
}

// MarkDestroyed flags the adapter destroyed. Idempotent.
func (t *Tombstone) MarkDestroyed() {
	t.mu.Lock()
	t.destroyed = true
	t.mu.Unlock()
}

// Destroyed reports whether MarkDestroyed has run.
func (t *Tombstone) Destroyed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.destroyed
}

// Release runs fn immediately if the adapter is alive, or enqueues it for
// the next DrainDelayed call if the adapter has been destroyed. This is
// the short-circuit described in invariant 2: a destroyed adapter's own
// thread/GIL/loop is gone, so native release can't run synchronously —
// it's queued instead.
func (t *Tombstone) Release(fn func()) {
	t.mu.Lock()
	if !t.destroyed {
		t.mu.Unlock()
		fn()
		return
	}
	t.delayed = append(t.delayed, fn)
	t.mu.Unlock()
}

// DrainDelayed runs and clears every queued release. Adapters call this
// on their next runtime-thread tick (event-loop iteration, GIL
// acquisition, or mutex-protected call) while they're still alive; at
// process exit with no further ticks, the queue is simply dropped.
func (t *Tombstone) DrainDelayed() {
	t.mu.Lock()
	pending := t.delayed
	t.delayed = nil
	t.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

// PendingDelayed reports the queue depth, for metrics/tests.
func (t *Tombstone) PendingDelayed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.delayed)
}

// ErrNotApplicable is returned by a vtable's Await when the adapter's
// callable kind has no async form at all (open question 2, spec.md §9:
// whether every callable must support async, or may signal "not
// applicable", is left to the adapter — the native loader chooses the
// latter, see DESIGN.md).
var ErrNotApplicable = fmt.Errorf("adapter: await not applicable to this callable")
