// Package marshal implements the two direction converters every adapter
// needs (spec.md §4.4): ToNative and FromNative. Each adapter in this
// module simulates its guest runtime with plain Go values instead of a
// real embedded interpreter, so "native" here means the Go-side
// representation a guest closure actually receives and returns:
//
//	bool, int64, float64, string, []byte, []any, map[string]any,
//	Callable (a guest-visible function), error (maps to throwable)
//
// Kind inference on FromNative follows the "richest representation"
// rule of §4.4: maps only ever get string keys, unknown callables become
// variadic functions, and anything else unrecognized becomes a
// registry-backed opaque pointer rather than failing outright.
package marshal

import (
	"fmt"
	"sync"

	"github.com/metacall/core/internal/registry"
	"github.com/metacall/core/internal/types"
	"github.com/metacall/core/internal/value"
)

// Callable is the native shape of a function crossing into or out of a
// guest: a plain Go closure taking native arguments and returning a
// native result or an error.
type Callable func(args []any) (any, error)

// ToNative converts a value down to its native Go representation.
// Function-kind values become a Callable trampoline that re-enters the
// value's own Invoke, for the "functions crossing IN" rule of §4.4. A new
// closure is built on each call; it checks v.Destroyed() before every
// invocation, so it stops working once the originating value is destroyed.
func ToNative(v *value.Value) (any, error) {
	switch k := v.Kind(); {
	case k.Scalar():
		switch {
		case isKind(v, "bool"):
			return v.Bool(), nil
		case isKind(v, "char"):
			return v.Char(), nil
		case isKind(v, "short"):
			return v.Short(), nil
		case isKind(v, "int"):
			return v.Int(), nil
		case isKind(v, "long"):
			return v.Long(), nil
		case isKind(v, "float"):
			return v.Float(), nil
		case isKind(v, "double"):
			return v.Double(), nil
		case isKind(v, "null"):
			return nil, nil
		}
	case isKind(v, "string"):
		return v.String(), nil
	case isKind(v, "buffer"):
		return v.Buffer(), nil
	case isKind(v, "array"):
		elems := v.Array()
		out := make([]any, len(elems))
		for i, e := range elems {
			n, err := ToNative(e)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case isKind(v, "map"):
		out := make(map[string]any, v.Count())
		for _, e := range v.Map() {
			n, err := ToNative(e.Val)
			if err != nil {
				return nil, err
			}
			out[e.Key] = n
		}
		return out, nil
	case isKind(v, "function"):
		fn := v.Function()
		return Callable(func(args []any) (any, error) {
			if v.Destroyed() {
				return nil, fmt.Errorf("marshal: function value has already been destroyed")
			}
			vargs := make([]*value.Value, len(args))
			for i, a := range args {
				vargs[i] = FromNative(a)
			}
			result, err := fn.VTable.Invoke(vargs)
			if err != nil {
				return nil, err
			}
			if result != nil && isKind(result, "throwable") {
				return nil, ThrowableError{Value: result}
			}
			return ToNative(result)
		}), nil
	case isKind(v, "pointer"):
		return v.Pointer().ID, nil
	}
	return nil, fmt.Errorf("marshal: unsupported kind %v for to_native", v.Kind())
}

// ThrowableError adapts a throwable value to the Go error interface so
// guest-side trampolines can propagate it idiomatically.
type ThrowableError struct {
	Value *value.Value
}

func (e ThrowableError) Error() string {
	if exc := e.Value.Throwable().Wrapped; exc != nil && isKind(exc, "exception") {
		return exc.Exception().Message
	}
	return "throwable"
}

// FromNative infers the richest representation of a native Go value,
// per §4.4's kind-inference rules.
func FromNative(n any) *value.Value {
	switch x := n.(type) {
	case nil:
		return value.NewNull()
	case bool:
		return value.NewBool(x)
	case byte:
		return value.NewChar(x)
	case int16:
		return value.NewShort(x)
	case int32:
		return value.NewInt(x)
	case int:
		return value.NewLong(int64(x))
	case int64:
		return value.NewLong(x)
	case float32:
		return value.NewFloat(x)
	case float64:
		return value.NewDouble(x)
	case string:
		return value.NewString(x)
	case []byte:
		return value.NewBuffer(x)
	case []any:
		elems := make([]*value.Value, len(x))
		for i, e := range x {
			elems[i] = FromNative(e)
		}
		return value.NewArray(elems)
	case map[string]any:
		entries := make([]value.MapEntry, 0, len(x))
		for k, v := range x {
			entries = append(entries, value.MapEntry{Key: k, Val: FromNative(v)})
		}
		return value.NewMap(entries)
	case Callable:
		return value.NewFunction(&value.Function{
			Name:  "<native>",
			Sig:   types.Signature{Params: []types.Param{{Name: "..."}}},
			Async: false,
			VTable: &trampoline{fn: x},
		})
	case error:
		return value.NewExceptionThrowable(x.Error(), "Error", 0, "")
	default:
		// Unrecognized native shape: carry it as an opaque pointer via
		// the shared registry, never as a raw conversion (§4.4, §9).
		id := sharedPointers.Reference(x, nil)
		return value.NewPointer(id)
	}
}

// sharedPointers is the process-wide registry backing opaque-pointer
// inference in FromNative, matching the "one coarse lock" rule of §5.
var sharedPointers = registry.New()

// Pointers exposes the shared registry so the façade and adapters can
// register/release pointers explicitly (value_create_ptr, value_reference,
// value_dereference — §4.4, §6).
func Pointers() *registry.Pointers { return sharedPointers }

// trampoline wraps a native Callable as a function vtable for values
// crossing OUT (guest → host): invoking it re-enters the guest closure
// directly, since in this module's simulated runtimes "re-entering the
// guest" and "calling a Go closure" are the same operation.
type trampoline struct {
	fn Callable

	mu        sync.Mutex
	destroyed bool
}

func (t *trampoline) Invoke(args []*value.Value) (*value.Value, error) {
	t.mu.Lock()
	destroyed := t.destroyed
	t.mu.Unlock()
	if destroyed {
		return nil, fmt.Errorf("marshal: callback has already been destroyed")
	}
	native := make([]any, len(args))
	for i, a := range args {
		n, err := ToNative(a)
		if err != nil {
			return nil, err
		}
		native[i] = n
	}
	result, err := t.fn(native)
	if err != nil {
		if te, ok := err.(ThrowableError); ok {
			return te.Value, nil
		}
		return value.NewExceptionThrowable(err.Error(), "Error", 0, ""), nil
	}
	return FromNative(result), nil
}

func (t *trampoline) Await(args []*value.Value, resolve, reject func(*value.Value), ctx any) error {
	result, err := t.Invoke(args)
	if err != nil {
		return err
	}
	if isKind(result, "throwable") {
		reject(result)
		return nil
	}
	resolve(result)
	return nil
}

func (t *trampoline) Destroy() error {
	t.mu.Lock()
	t.destroyed = true
	t.mu.Unlock()
	return nil
}

func isKind(v *value.Value, name string) bool {
	return v.Kind().String() == name
}
