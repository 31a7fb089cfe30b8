package metacall

import (
	"github.com/metacall/core/internal/marshal"
	"github.com/metacall/core/internal/value"
)

// Value is the universal currency of the runtime, re-exported from
// internal/value so embedders never need that import path directly
// (spec.md §3).
type Value = value.Value

// MapEntry is one key/value pair of a map value.
type MapEntry = value.MapEntry

// Exception is a structured error: message, label/code, stack trace.
type Exception = value.Exception

// Throwable wraps any value that crossed a guest's throw/raise.
type Throwable = value.Throwable

// Scalar and container constructors (the C-ABI's value_create_<kind>).
var (
	NewBool   = value.NewBool
	NewChar   = value.NewChar
	NewShort  = value.NewShort
	NewInt    = value.NewInt
	NewLong   = value.NewLong
	NewFloat  = value.NewFloat
	NewDouble = value.NewDouble
	NewNull   = value.NewNull
	NewString = value.NewString
	NewBuffer = value.NewBuffer
	NewArray  = value.NewArray
	NewMap    = value.NewMap
)

// NewCallback wraps a native Go closure as a function-kind value that can
// be passed as a callback argument into a loaded script (seed scenario 4,
// spec.md §8): the script invokes it through the normal function vtable,
// and invoking it here re-enters fn directly.
func NewCallback(fn func(args []any) (any, error)) *Value {
	return marshal.FromNative(marshal.Callable(fn))
}

// ToNative converts a value down to its native Go representation (the
// C-ABI's value_to_<kind> family, generalized: the richest native shape
// for the value's kind).
func ToNative(v *Value) (any, error) {
	return marshal.ToNative(v)
}

// FromNative infers the richest value kind for a native Go value (spec.md
// §4.4's "richest representation" rule).
func FromNative(n any) *Value {
	return marshal.FromNative(n)
}
