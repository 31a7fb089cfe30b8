// Package value implements the polyglot value model: a heap-owned,
// reference-free tagged union over a closed set of kinds (spec.md §3).
// Every value created or received by an adapter is a *Value; ownership
// transfers on every API boundary unless the API is documented as
// borrowing.
package value

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/metacall/core/internal/kind"
	"github.com/metacall/core/internal/types"
)

// Kind re-exports kind.Kind so callers of this package never need to
// import internal/kind directly.
type Kind = kind.Kind

// Finalizer runs when a value is destroyed, before its payload is freed.
// Installing a new finalizer replaces any prior one (§4.1).
type Finalizer func(v *Value, ctx any)

// Value is the universal currency of the runtime: a kind tag, a payload,
// a byte size where relevant, and an optional finalizer.
type Value struct {
	id  uuid.UUID
	kd  kind.Kind
	pl  any
	sz  int
	fin Finalizer
	fctx any

	mu        sync.Mutex
	destroyed bool
}

func newValue(k kind.Kind, payload any, size int) *Value {
	return &Value{id: uuid.New(), kd: k, pl: payload, sz: size}
}

// ID returns the value's internal correlation id (not part of the
// language-neutral kind/payload contract — used only for log correlation
// and pointer-registry bookkeeping, per SPEC_FULL §3).
func (v *Value) ID() string { return v.id.String() }

// Kind returns the value's type tag (type_id in spec.md §4.1).
func (v *Value) Kind() kind.Kind { return v.kd }

// Size returns the payload's byte size where relevant (strings include
// the terminator, per §3); zero for kinds without an intrinsic size.
func (v *Value) Size() int { return v.sz }

// Count returns the number of elements for container kinds (array, map),
// zero otherwise.
func (v *Value) Count() int {
	switch v.kd {
	case kind.Array:
		return len(v.pl.([]*Value))
	case kind.Map:
		return len(v.pl.([]MapEntry))
	default:
		return 0
	}
}

// Finalizer installs fn, replacing any previously installed finalizer.
func (v *Value) Finalizer(fn Finalizer, ctx any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fin = fn
	v.fctx = ctx
}

// ---- scalar constructors -------------------------------------------------

func NewBool(b bool) *Value   { return newValue(kind.Bool, b, 1) }
func NewChar(c byte) *Value   { return newValue(kind.Char, c, 1) }
func NewShort(s int16) *Value { return newValue(kind.Short, s, 2) }
func NewInt(i int32) *Value   { return newValue(kind.Int, i, 4) }
func NewLong(l int64) *Value  { return newValue(kind.Long, l, 8) }
func NewFloat(f float32) *Value  { return newValue(kind.Float, f, 4) }
func NewDouble(d float64) *Value { return newValue(kind.Double, d, 8) }
func NewNull() *Value            { return newValue(kind.Null, nil, 0) }

// NewString creates a string value. Size includes the trailing terminator,
// matching the C-ABI convention in spec.md §3/§4.4.
func NewString(s string) *Value {
	return newValue(kind.String, s, len(s)+1)
}

// NewBuffer creates a binary-blob value; buffers never carry an implicit
// terminator (strings do, buffers don't — that split is the whole reason
// the kind exists).
func NewBuffer(b []byte) *Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return newValue(kind.Buffer, cp, len(cp))
}

// ---- container constructors ---------------------------------------------

// NewArray creates an array value. Ownership of each element transfers to
// the array.
func NewArray(elems []*Value) *Value {
	cp := make([]*Value, len(elems))
	copy(cp, elems)
	return newValue(kind.Array, cp, 0)
}

// MapEntry is one key/value pair of a map value. The spec models a map as
// a sequence of two-element arrays whose element 0 is a string key; this
// struct is the ergonomic Go-side view of that same invariant.
type MapEntry struct {
	Key string
	Val *Value
}

// NewMap creates a map value from key/value pairs. Map keys are always
// strings: MapEntry.Key is typed string, so a non-string key cannot be
// passed in.
func NewMap(entries []MapEntry) *Value {
	cp := make([]MapEntry, len(entries))
	copy(cp, entries)
	return newValue(kind.Map, cp, 0)
}

// Array returns the element slice of an array value. Panics if v is not
// an array — callers must check Kind() first, matching the "trust the
// caller at this layer" contract of the rest of the value API.
func (v *Value) Array() []*Value {
	return v.pl.([]*Value)
}

// Map returns the entry slice of a map value.
func (v *Value) Map() []MapEntry {
	return v.pl.([]MapEntry)
}

// MapGet looks up a key in a map value.
func (v *Value) MapGet(key string) (*Value, bool) {
	for _, e := range v.pl.([]MapEntry) {
		if e.Key == key {
			return e.Val, true
		}
	}
	return nil, false
}

// ---- scalar accessors -----------------------------------------------------

func (v *Value) Bool() bool       { return v.pl.(bool) }
func (v *Value) Char() byte       { return v.pl.(byte) }
func (v *Value) Short() int16     { return v.pl.(int16) }
func (v *Value) Int() int32       { return v.pl.(int32) }
func (v *Value) Long() int64      { return v.pl.(int64) }
func (v *Value) Float() float32   { return v.pl.(float32) }
func (v *Value) Double() float64  { return v.pl.(float64) }
func (v *Value) String() string   { return v.pl.(string) }
func (v *Value) Buffer() []byte   { return v.pl.([]byte) }

// ---- copy -----------------------------------------------------------------

// RefCounter is implemented by the reference-semantic payloads function,
// class and object, so Copy can increment the adapter-side reference and
// Destroy can decrement it (§3, §4.1). Future and pointer payloads do not
// implement it.
type RefCounter interface {
	Retain()
	Release()
}

// Copy produces an independent value for any kind. For scalars,
// containers, and strings/buffers this is a deep copy; for
// function/class/object it increments the adapter-visible reference and
// registers a matching decrement in the copy's finalizer, satisfying
// invariant 1 of spec.md §8: destroy(copy(v)) leaves v valid. A copy of a
// future or pointer shares the same payload and no reference is counted.
func (v *Value) Copy() *Value {
	switch p := v.pl.(type) {
	case []*Value:
		elems := make([]*Value, len(p))
		for i, e := range p {
			elems[i] = e.Copy()
		}
		return NewArray(elems)
	case []MapEntry:
		entries := make([]MapEntry, len(p))
		for i, e := range p {
			entries[i] = MapEntry{Key: e.Key, Val: e.Val.Copy()}
		}
		return NewMap(entries)
	case []byte:
		return NewBuffer(p)
	case *Throwable:
		var wrapped *Value
		if p.Wrapped != nil {
			wrapped = p.Wrapped.Copy()
		}
		return NewThrowable(wrapped)
	default:
		if rc, ok := p.(RefCounter); ok {
			rc.Retain()
			cp := newValue(v.kd, p, v.sz)
			cp.Finalizer(func(cv *Value, _ any) { rc.Release() }, nil)
			return cp
		}
		// Plain scalar: payload is copied by value through the interface
		// assignment itself.
		return newValue(v.kd, p, v.sz)
	}
}

// Move transfers src's finalizer to dst and neutralizes src's, so that a
// value's payload handed to another owner doesn't double-run cleanup.
func Move(src, dst *Value) {
	src.mu.Lock()
	dst.mu.Lock()
	defer src.mu.Unlock()
	defer dst.mu.Unlock()
	dst.fin, dst.fctx = src.fin, src.fctx
	src.fin, src.fctx = nil, nil
}

// Destroy runs the finalizer (if any), then recursively destroys any
// contained values, then frees the payload. Destroy is infallible and
// idempotent: a second call on an already-destroyed value is a no-op,
// matching the "destroy is infallible" contract of §4.1.
func (v *Value) Destroy() {
	v.mu.Lock()
	if v.destroyed {
		v.mu.Unlock()
		return
	}
	v.destroyed = true
	fin, fctx := v.fin, v.fctx
	v.fin, v.fctx = nil, nil
	v.mu.Unlock()

	if fin != nil {
		fin(v, fctx)
	}

	switch p := v.pl.(type) {
	case []*Value:
		for _, e := range p {
			e.Destroy()
		}
	case []MapEntry:
		for _, e := range p {
			e.Val.Destroy()
		}
	case *Exception:
		// Strings embedded in the exception have no independent owner;
		// nothing further to release beyond the struct itself.
	case *Throwable:
		if p.Wrapped != nil {
			p.Wrapped.Destroy()
		}
	}
}

// Destroyed reports whether Destroy has already run. Exposed for tests
// exercising invariant 1 (destroy(copy(v)) leaves v valid).
func (v *Value) Destroyed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.destroyed
}

// ---- function / class / object / exception / throwable -------------------

// FunctionVTable is the fixed set of operations a loader-impl supplies for
// a function value: create, invoke, await, destroy (spec.md §3).
type FunctionVTable interface {
	Invoke(args []*Value) (*Value, error)
	// Await registers resolve/reject against an async invocation. Exactly
	// one of resolve or reject fires, exactly once (invariant 4, §8).
	Await(args []*Value, resolve, reject func(*Value), ctx any) error
	Destroy() error
}

// Function is a (name, signature, vtable, async flag) tuple. Functions are
// owned by their enclosing scope or by the caller that received them as a
// value; destruction is ref-counted via the value's finalizer.
type Function struct {
	Name   string
	Sig    types.Signature
	VTable FunctionVTable
	Async  bool

	refs int32
	mu   sync.Mutex
}

func (f *Function) Retain() {
	f.mu.Lock()
	f.refs++
	f.mu.Unlock()
}

func (f *Function) Release() {
	f.mu.Lock()
	f.refs--
	last := f.refs <= 0
	f.mu.Unlock()
	if last && f.VTable != nil {
		_ = f.VTable.Destroy()
	}
}

// NewFunction wraps a Function in a value. The returned value owns one
// reference; further references are taken via Value.Copy. A finalizer
// releases this first reference on Destroy, mirroring the finalizer Copy
// installs on every subsequent reference — without it, destroying the
// original (never-copied) value would never run VTable.Destroy.
func NewFunction(f *Function) *Value {
	f.refs = 1
	v := newValue(kind.Function, f, 0)
	v.Finalizer(func(*Value, any) { f.Release() }, nil)
	return v
}

func (v *Value) Function() *Function { return v.pl.(*Function) }

// AccessorStyle distinguishes how a class/object's attribute set is
// discovered: up front (static) or lazily at access time (dynamic), per
// spec.md §3.
type AccessorStyle int

const (
	AccessorStatic AccessorStyle = iota
	AccessorDynamic
)

// ClassVTable is the fixed set of operations for a class value:
// constructing instances, invoking static methods, and attribute access.
type ClassVTable interface {
	Construct(args []*Value) (*Value, error)
	StaticMethod(name string, args []*Value) (*Value, error)
	StaticGet(name string) (*Value, error)
	StaticSet(name string, v *Value) error
	Destroy() error
}

type Class struct {
	Name   string
	Style  AccessorStyle
	VTable ClassVTable

	refs int32
	mu   sync.Mutex
}

func (c *Class) Retain() {
	c.mu.Lock()
	c.refs++
	c.mu.Unlock()
}

func (c *Class) Release() {
	c.mu.Lock()
	c.refs--
	last := c.refs <= 0
	c.mu.Unlock()
	if last && c.VTable != nil {
		_ = c.VTable.Destroy()
	}
}

// NewClass wraps a Class in a value, installing a finalizer that releases
// its own first reference on Destroy (see NewFunction).
func NewClass(c *Class) *Value {
	c.refs = 1
	v := newValue(kind.Class, c, 0)
	v.Finalizer(func(*Value, any) { c.Release() }, nil)
	return v
}

func (v *Value) Class() *Class { return v.pl.(*Class) }

// ObjectVTable is the fixed set of operations for an object value:
// instance methods and attribute access.
type ObjectVTable interface {
	Method(name string, args []*Value) (*Value, error)
	Get(name string) (*Value, error)
	Set(name string, v *Value) error
	Destroy() error
}

// Object is an instance of a class. The ClassRef keeps the describing
// class alive for the object's lifetime (§3).
type Object struct {
	Name     string
	Style    AccessorStyle
	VTable   ObjectVTable
	ClassRef *Value // kind == Class, retained

	refs int32
	mu   sync.Mutex
}

func (o *Object) Retain() {
	o.mu.Lock()
	o.refs++
	o.mu.Unlock()
}

func (o *Object) Release() {
	o.mu.Lock()
	o.refs--
	last := o.refs <= 0
	o.mu.Unlock()
	if last {
		if o.VTable != nil {
			_ = o.VTable.Destroy()
		}
		if o.ClassRef != nil {
			o.ClassRef.Destroy()
		}
	}
}

// NewObject wraps an Object in a value, retaining a reference to classRef
// for the object's lifetime, and installing a finalizer that releases its
// own first reference on Destroy (see NewFunction).
func NewObject(o *Object, classRef *Value) *Value {
	o.refs = 1
	o.ClassRef = classRef.Copy()
	v := newValue(kind.Object, o, 0)
	v.Finalizer(func(*Value, any) { o.Release() }, nil)
	return v
}

func (v *Value) Object() *Object { return v.pl.(*Object) }

// Exception is a structured error: message, label/code, numeric code, and
// a stack trace.
type Exception struct {
	Message    string
	Label      string
	Code       int
	Stacktrace string
}

func NewException(e *Exception) *Value {
	return newValue(kind.Exception, e, 0)
}

func (v *Value) Exception() *Exception { return v.pl.(*Exception) }

// Throwable wraps any value (usually an exception, but not necessarily —
// dynamic languages can throw arbitrary objects) so it survives the
// crossing, per spec.md §3.
type Throwable struct {
	Wrapped *Value
}

func NewThrowable(wrapped *Value) *Value {
	return newValue(kind.Throwable, &Throwable{Wrapped: wrapped}, 0)
}

func (v *Value) Throwable() *Throwable { return v.pl.(*Throwable) }

// NewExceptionThrowable is a convenience for the common case: wrap a
// freshly built Exception directly in a throwable.
func NewExceptionThrowable(message, label string, code int, stack string) *Value {
	exc := NewException(&Exception{Message: message, Label: label, Code: code, Stacktrace: stack})
	return NewThrowable(exc)
}

// ---- pointer ---------------------------------------------------------------

// PointerHandle is the payload of a pointer-kind value: an opaque id
// assigned by the process-wide pointer registry (internal/registry), not
// a raw Go pointer — guests cross only through the registry so they can't
// fabricate unchecked native pointers (spec.md §4.4).
type PointerHandle struct {
	ID string
}

func NewPointer(id string) *Value {
	return newValue(kind.Pointer, &PointerHandle{ID: id}, 0)
}

func (v *Value) Pointer() *PointerHandle { return v.pl.(*PointerHandle) }

// ---- future -----------------------------------------------------------------

// FutureVTable exposes Await: registering resolve/reject callbacks is the
// only operation a future's owning adapter needs to implement (spec.md
// §3, §4.5).
type FutureVTable interface {
	Await(resolve, reject func(*Value), ctx any) error
}

type Future struct {
	VTable FutureVTable

	mu       sync.Mutex
	awaited  bool
}

// Await enforces invariant 5 of spec.md §3: a future may be awaited at
// most once per resolve path.
func (f *Future) Await(resolve, reject func(*Value), ctx any) error {
	f.mu.Lock()
	if f.awaited {
		f.mu.Unlock()
		return fmt.Errorf("value: future already awaited")
	}
	f.awaited = true
	f.mu.Unlock()
	return f.VTable.Await(resolve, reject, ctx)
}

func NewFuture(f *Future) *Value {
	return newValue(kind.Future, f, 0)
}

func (v *Value) Future() *Future { return v.pl.(*Future) }
