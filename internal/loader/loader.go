// Package loader implements the loader manager (spec.md §4.2): the
// tag→loader-impl registry, dependency tracking between loaders that
// share values, the flattened cross-loader name scope metacall dispatches
// against, and destruction in reverse dependency order.
package loader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/metacall/core/internal/adapter"
	"github.com/metacall/core/internal/marshal"
	"github.com/metacall/core/internal/metrics"
	"github.com/metacall/core/internal/value"
)

// delayedQueueReporter is implemented by any loader-impl that embeds
// adapter.Tombstone, letting the manager read its delayed-release queue
// depth for metrics without widening the LoaderImpl interface itself.
type delayedQueueReporter interface {
	PendingDelayed() int
}

// Factory constructs a fresh, uninitialized loader-impl for one tag.
type Factory func() adapter.LoaderImpl

// flatEntry is one name's current binding in the flattened cross-loader
// scope, plus enough provenance to remove it again on Clear.
type flatEntry struct {
	val      *value.Value
	tag      string
	handleID string
}

// Manager owns every bootstrapped adapter, every handle any of them has
// produced, and the flattened name→value scope metacall/metacall_await
// dispatch against.
type Manager struct {
	mu sync.Mutex

	factories map[string]Factory
	impls     map[string]adapter.LoaderImpl
	order     []string // tags in first-bootstrap order, for reverse-order Destroy

	handles map[string]*adapter.Handle // handle id -> handle
	flat    map[string]*flatEntry      // discovered name -> binding

	// deps[parent] is the set of child tags that must be destroyed before
	// parent (parent's loader was bootstrapped to serve a call originating
	// from a value owned by one of the children, per §4.2's "parent/child
	// dependency between loaders that share values").
	deps map[string]map[string]bool

	metrics      *metrics.Metrics
	cache        *DiscoveryCache
	lastRejected int64 // last observed registry.Pointers().Rejected(), for the counter delta
}

// SetDiscoveryCache wires an optional discovery cache (§4.7); nil (the
// default) leaves discovery uncached.
func (m *Manager) SetDiscoveryCache(c *DiscoveryCache) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = c
}

// NewManager creates an empty manager. factories maps tag → constructor
// for that tag's loader-impl; adapters are bootstrapped lazily on first
// reference, per §4.2.
func NewManager(factories map[string]Factory, m *metrics.Metrics) *Manager {
	return &Manager{
		factories: factories,
		impls:     make(map[string]adapter.LoaderImpl),
		handles:   make(map[string]*adapter.Handle),
		flat:      make(map[string]*flatEntry),
		deps:      make(map[string]map[string]bool),
		metrics:   m,
	}
}

// RegisterDependency records that childTag's loader must be destroyed
// before parentTag's, because a value crossing from child into parent
// keeps the child's runtime alive for parent's sake.
func (m *Manager) RegisterDependency(parentTag, childTag string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deps[parentTag] == nil {
		m.deps[parentTag] = make(map[string]bool)
	}
	m.deps[parentTag][childTag] = true
}

func (m *Manager) getOrCreate(tag string, config map[string]any, execPaths []string) (adapter.LoaderImpl, error) {
	m.mu.Lock()
	if impl, ok := m.impls[tag]; ok {
		m.mu.Unlock()
		return impl, nil
	}
	factory, ok := m.factories[tag]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("loader: unknown tag %q", tag)
	}

	impl := factory()
	if err := impl.Initialize(config); err != nil {
		return nil, fmt.Errorf("loader: initialize %q: %w", tag, err)
	}
	for _, p := range execPaths {
		if err := impl.ExecutionPath(p); err != nil {
			return nil, fmt.Errorf("loader: execution_path %q on %q: %w", p, tag, err)
		}
	}

	m.mu.Lock()
	m.impls[tag] = impl
	m.order = append(m.order, tag)
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.SetActiveAdapters(len(m.order))
	}
	return impl, nil
}

// LoadFromFile bootstraps tag's adapter if needed, loads paths, runs
// discovery, and merges discovered names into the flattened scope.
func (m *Manager) LoadFromFile(tag string, paths []string, config map[string]any, execPaths []string) (*adapter.Handle, error) {
	impl, err := m.getOrCreate(tag, config, execPaths)
	if err != nil {
		return nil, err
	}
	h, err := impl.LoadFromFile(paths)
	if err != nil {
		return nil, err
	}
	var joined []byte
	for _, p := range paths {
		joined = append(joined, p...)
	}
	m.noteDiscoveryCache(tag, joined)
	return m.finishLoad(impl, h)
}

// LoadFromMemory bootstraps tag's adapter if needed, loads buf as a
// synthetic module named name, and merges discovered names.
func (m *Manager) LoadFromMemory(tag, name string, buf []byte, config map[string]any, execPaths []string) (*adapter.Handle, error) {
	impl, err := m.getOrCreate(tag, config, execPaths)
	if err != nil {
		return nil, err
	}
	h, err := impl.LoadFromMemory(name, buf)
	if err != nil {
		return nil, err
	}
	m.noteDiscoveryCache(tag, buf)
	return m.finishLoad(impl, h)
}

// noteDiscoveryCache records the hash of a load's source bytes against
// the optional discovery cache: a hit means this exact (tag, source) has
// discovered successfully before, anywhere this process or an L2 peer
// has seen it. Recorded for observability even though this module's
// adapters re-run discovery unconditionally either way — see §4.7.
func (m *Manager) noteDiscoveryCache(tag string, source []byte) {
	m.mu.Lock()
	c := m.cache
	m.mu.Unlock()
	if c == nil {
		return
	}
	hash := Hash(source)
	ctx := context.Background()
	if !c.Seen(ctx, tag, hash) {
		c.MarkSeen(ctx, tag, hash)
	}
}

// LoadFromPackage bootstraps tag's adapter if needed and loads an
// adapter-defined binary/package form.
func (m *Manager) LoadFromPackage(tag, path string, config map[string]any, execPaths []string) (*adapter.Handle, error) {
	impl, err := m.getOrCreate(tag, config, execPaths)
	if err != nil {
		return nil, err
	}
	h, err := impl.LoadFromPackage(path)
	if err != nil {
		return nil, err
	}
	return m.finishLoad(impl, h)
}

func (m *Manager) finishLoad(impl adapter.LoaderImpl, h *adapter.Handle) (*adapter.Handle, error) {
	if err := impl.Discover(h, h.Ctx); err != nil {
		// Discovery failure (§8 seed scenario 5/6): the handle remains
		// loadable but its scope may be incomplete; the handle is still
		// registered so Clear can release it.
		m.mu.Lock()
		m.handles[h.ID] = h
		m.mu.Unlock()
		return h, fmt.Errorf("loader: discover: %w", err)
	}

	m.mu.Lock()
	m.handles[h.ID] = h
	for _, name := range h.Ctx.Scope.Names() {
		v, _ := h.Ctx.Scope.Get(name)
		m.flat[name] = &flatEntry{val: v, tag: h.Tag, handleID: h.ID}
	}
	count := 0
	for _, x := range m.handles {
		if x.Tag == h.Tag {
			count++
		}
	}
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.SetActiveHandles(h.Tag, count)
	}
	m.syncRegistryMetrics()
	m.syncDelayedQueueMetrics()
	return h, nil
}

// Resolve looks up name in the flattened cross-loader scope (§4.6:
// "resolves name in the flattened scope across all loaders"). Borrows —
// callers that want an owned copy call Value.Copy themselves.
func (m *Manager) Resolve(name string) (*value.Value, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.flat[name]
	if !ok {
		return nil, false
	}
	return e.val, true
}

// ResolveTag reports which adapter tag defined name in the flattened
// scope, for callers that need it for logging/metrics labels.
func (m *Manager) ResolveTag(name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.flat[name]
	if !ok {
		return "", false
	}
	return e.tag, true
}

// Handle returns a previously loaded handle by id.
func (m *Manager) Handle(id string) (*adapter.Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handles[id]
	return h, ok
}

// Clear destroys a handle's scope via its owning adapter and removes its
// names from the flattened scope. Per §4.2, values previously copied out
// of the handle's scope by a caller remain valid.
func (m *Manager) Clear(h *adapter.Handle) error {
	m.mu.Lock()
	impl, ok := m.impls[h.Tag]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("loader: clear: unknown tag %q", h.Tag)
	}

	var names []string
	if h.Ctx != nil {
		names = h.Ctx.Scope.Names()
	}
	err := impl.Clear(h)

	m.mu.Lock()
	delete(m.handles, h.ID)
	for _, name := range names {
		if e, ok := m.flat[name]; ok && e.handleID == h.ID {
			delete(m.flat, name)
		}
	}
	count := 0
	for _, x := range m.handles {
		if x.Tag == h.Tag {
			count++
		}
	}
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.SetActiveHandles(h.Tag, count)
	}
	m.syncRegistryMetrics()
	m.syncDelayedQueueMetrics()
	return err
}

// Tags returns every bootstrapped adapter tag, in bootstrap order.
func (m *Manager) Tags() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// HandlesByTag returns the loaded handles belonging to tag, for Inspect.
func (m *Manager) HandlesByTag(tag string) []*adapter.Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*adapter.Handle
	for _, h := range m.handles {
		if h.Tag == tag {
			out = append(out, h)
		}
	}
	return out
}

// Destroy tears down every bootstrapped adapter in reverse dependency
// order (§4.2, §4.5 shutdown rule): a loader with registered children is
// destroyed only after all its children. Ties (no recorded dependency)
// fall back to reverse bootstrap order.
func (m *Manager) Destroy() error {
	m.syncDelayedQueueMetrics()
	m.syncRegistryMetrics()
	m.mu.Lock()
	order := destroyOrder(m.order, m.deps)
	impls := m.impls
	m.impls = make(map[string]adapter.LoaderImpl)
	m.handles = make(map[string]*adapter.Handle)
	m.flat = make(map[string]*flatEntry)
	m.order = nil
	m.mu.Unlock()

	var firstErr error
	for _, tag := range order {
		impl, ok := impls[tag]
		if !ok {
			continue
		}
		if err := impl.Destroy(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("loader: destroy %q: %w", tag, err)
		}
	}
	if m.metrics != nil {
		m.metrics.SetActiveAdapters(0)
	}
	return firstErr
}

// destroyOrder topologically sorts tags so every tag in deps[parent] (its
// children) precedes parent, falling back to reverse bootstrap order
// among tags with no dependency relationship.
func destroyOrder(bootstrapped []string, deps map[string]map[string]bool) []string {
	visited := make(map[string]bool)
	var out []string

	var visit func(tag string)
	visit = func(tag string) {
		if visited[tag] {
			return
		}
		visited[tag] = true
		for child := range deps[tag] {
			visit(child)
		}
		out = append(out, tag)
	}

	for i := len(bootstrapped) - 1; i >= 0; i-- {
		visit(bootstrapped[i])
	}
	return out
}

// dispatchTimer is a small helper invocations use to time a call for
// metrics without importing time at every call site.
func dispatchTimer() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start)) / float64(time.Millisecond)
	}
}

// Elapsed exposes dispatchTimer for callers outside this package (the
// façade's metacall/metacall_await dispatch).
func Elapsed() func() float64 { return dispatchTimer() }

// syncRegistryMetrics refreshes the pointer-registry gauge/counter pair
// against the shared registry's current state (SPEC_FULL §5 expansion: the
// registry's coarse lock is instrumented with live-entry count and a
// counter of rejected dereferences).
func (m *Manager) syncRegistryMetrics() {
	if m.metrics == nil {
		return
	}
	p := marshal.Pointers()
	m.metrics.SetPointerRegistrySize(p.Len())

	m.mu.Lock()
	delta := p.Rejected() - m.lastRejected
	if delta > 0 {
		m.lastRejected = p.Rejected()
	}
	m.mu.Unlock()
	for ; delta > 0; delta-- {
		m.metrics.IncRejectedDereference()
	}
}

// syncDelayedQueueMetrics refreshes the delayed-destroy queue depth gauge
// for every adapter that reports one via adapter.Tombstone.
func (m *Manager) syncDelayedQueueMetrics() {
	if m.metrics == nil {
		return
	}
	m.mu.Lock()
	snapshot := make(map[string]adapter.LoaderImpl, len(m.impls))
	for tag, impl := range m.impls {
		snapshot[tag] = impl
	}
	m.mu.Unlock()
	for tag, impl := range snapshot {
		if r, ok := impl.(delayedQueueReporter); ok {
			m.metrics.SetDelayedQueueDepth(tag, r.PendingDelayed())
		}
	}
}
