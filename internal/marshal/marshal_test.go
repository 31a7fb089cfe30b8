package marshal

import (
	"errors"
	"testing"

	"github.com/metacall/core/internal/value"
)

func TestToNativeScalarKinds(t *testing.T) {
	cases := []struct {
		name string
		v    *value.Value
		want any
	}{
		{"bool", value.NewBool(true), true},
		{"int", value.NewInt(7), int32(7)},
		{"long", value.NewLong(9), int64(9)},
		{"double", value.NewDouble(1.5), 1.5},
		{"string", value.NewString("hi"), "hi"},
		{"null", value.NewNull(), nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := ToNative(c.v)
			if err != nil {
				t.Fatalf("to_native: %v", err)
			}
			if got != c.want {
				t.Fatalf("to_native(%s) = %v, want %v", c.name, got, c.want)
			}
		})
	}
}

func TestFromNativeRichestRepresentation(t *testing.T) {
	if k := FromNative(int64(3)).Kind().String(); k != "long" {
		t.Fatalf("int64 -> %s, want long", k)
	}
	if k := FromNative(3.14).Kind().String(); k != "double" {
		t.Fatalf("float64 -> %s, want double", k)
	}
	if k := FromNative([]any{int64(1), int64(2)}).Kind().String(); k != "array" {
		t.Fatalf("[]any -> %s, want array", k)
	}
	if k := FromNative(map[string]any{"a": int64(1)}).Kind().String(); k != "map" {
		t.Fatalf("map[string]any -> %s, want map", k)
	}
}

func TestFromNativeUnrecognizedBecomesPointer(t *testing.T) {
	type custom struct{ n int }
	v := FromNative(custom{n: 1})
	if v.Kind().String() != "pointer" {
		t.Fatalf("kind = %s, want pointer", v.Kind())
	}
	if _, err := Pointers().Dereference(v.Pointer().ID); err != nil {
		t.Fatalf("pointer not registered in shared registry")
	}
}

func TestArrayRoundTrip(t *testing.T) {
	original := []any{int64(1), "two", true}
	v := FromNative(original)
	back, err := ToNative(v)
	if err != nil {
		t.Fatalf("to_native: %v", err)
	}
	got, ok := back.([]any)
	if !ok || len(got) != 3 {
		t.Fatalf("round trip = %v", back)
	}
}

func TestCallableRoundTripInvokesOriginalClosure(t *testing.T) {
	calls := 0
	fn := FromNative(Callable(func(args []any) (any, error) {
		calls++
		n, _ := args[0].(int64)
		return n + 1, nil
	}))
	if fn.Kind().String() != "function" {
		t.Fatalf("kind = %s, want function", fn.Kind())
	}
	result, err := fn.Function().VTable.Invoke([]*value.Value{value.NewLong(41)})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if result.Long() != 42 {
		t.Fatalf("result = %d, want 42", result.Long())
	}
	if calls != 1 {
		t.Fatalf("native closure invoked %d times, want 1", calls)
	}
}

func TestCallableErrorBecomesThrowable(t *testing.T) {
	fn := FromNative(Callable(func(args []any) (any, error) {
		return nil, errors.New("bad input")
	}))
	result, err := fn.Function().VTable.Invoke(nil)
	if err != nil {
		t.Fatalf("invoke should surface errors as a throwable value, got err: %v", err)
	}
	if result.Kind().String() != "throwable" {
		t.Fatalf("kind = %s, want throwable", result.Kind())
	}
	if result.Throwable().Wrapped.Exception().Message != "bad input" {
		t.Fatalf("message = %q", result.Throwable().Wrapped.Exception().Message)
	}
}

func TestToNativeFunctionTrampolineReenters(t *testing.T) {
	v := value.NewFunction(&value.Function{
		Name: "double",
		VTable: callableVTable(func(args []*value.Value) (*value.Value, error) {
			return value.NewLong(args[0].Long() * 2), nil
		}),
	})
	native, err := ToNative(v)
	if err != nil {
		t.Fatalf("to_native: %v", err)
	}
	fn, ok := native.(Callable)
	if !ok {
		t.Fatalf("to_native of a function value should yield a Callable")
	}
	out, err := fn([]any{int64(21)})
	if err != nil {
		t.Fatalf("callable: %v", err)
	}
	if out.(int64) != 42 {
		t.Fatalf("result = %v, want 42", out)
	}
}

// callableVTable adapts a plain invoke func to value.FunctionVTable for
// tests that don't need Await/Destroy behavior.
type callableVTable func(args []*value.Value) (*value.Value, error)

func (f callableVTable) Invoke(args []*value.Value) (*value.Value, error) { return f(args) }
func (f callableVTable) Await(args []*value.Value, resolve, reject func(*value.Value), ctx any) error {
	result, err := f(args)
	if err != nil {
		return err
	}
	resolve(result)
	return nil
}
func (f callableVTable) Destroy() error { return nil }
