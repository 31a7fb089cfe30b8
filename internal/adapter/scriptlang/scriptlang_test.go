package scriptlang

import (
	"testing"

	"github.com/metacall/core/internal/value"
)

func TestParseRejectsMissingEquals(t *testing.T) {
	if _, err := Parse([]byte("not_a_definition\n")); err == nil {
		t.Fatalf("expected error for a line with no '='")
	}
}

func TestParseAsyncPrefixSetsFlag(t *testing.T) {
	funcs, err := Parse([]byte("delayed(x) = async:echo\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(funcs) != 1 || !funcs[0].Async || funcs[0].Behavior != "echo" {
		t.Fatalf("parsed = %+v", funcs)
	}
}

func TestEvalConcatAndAdd(t *testing.T) {
	result, err := Eval("concat", []*value.Value{value.NewString("a"), value.NewString("b")})
	if err != nil || result.String() != "ab" {
		t.Fatalf("concat = %v, %v", result, err)
	}
	result, err = Eval("add", []*value.Value{value.NewInt(2), value.NewInt(3)})
	if err != nil || result.Double() != 5 {
		t.Fatalf("add = %v, %v", result, err)
	}
}

func TestEvalThrowProducesThrowableAndError(t *testing.T) {
	result, err := Eval("throw:RuntimeError:boom", nil)
	if err == nil {
		t.Fatalf("expected error from throw behavior")
	}
	if result.Kind().String() != "throwable" {
		t.Fatalf("kind = %s, want throwable", result.Kind())
	}
	if result.Throwable().Wrapped.Exception().Message != "boom" {
		t.Fatalf("message = %q", result.Throwable().Wrapped.Exception().Message)
	}
}

func TestEvalApplyInvokesCallbackArgument(t *testing.T) {
	called := false
	fn := value.NewFunction(&value.Function{
		Name: "cb",
		VTable: fakeVTable(func(args []*value.Value) (*value.Value, error) {
			called = true
			return value.NewLong(args[0].Long() * 2), nil
		}),
	})

	result, err := Eval("apply", []*value.Value{fn, value.NewLong(21)})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !called {
		t.Fatalf("apply did not invoke the callback argument")
	}
	if result.Long() != 42 {
		t.Fatalf("result = %v, want 42", result.Long())
	}
}

func TestEvalApplyRejectsNonFunctionFirstArgument(t *testing.T) {
	result, err := Eval("apply", []*value.Value{value.NewInt(1)})
	if err == nil {
		t.Fatalf("expected error for non-function first argument")
	}
	if result.Kind().String() != "throwable" {
		t.Fatalf("kind = %s, want throwable", result.Kind())
	}
}

func TestEvalApplyRejectsDestroyedCallback(t *testing.T) {
	fn := value.NewFunction(&value.Function{
		Name: "cb",
		VTable: fakeVTable(func(args []*value.Value) (*value.Value, error) {
			t.Fatalf("destroyed callback must not be invoked")
			return nil, nil
		}),
	})
	fn.Destroy()

	result, err := Eval("apply", []*value.Value{fn, value.NewLong(1)})
	if err == nil {
		t.Fatalf("expected error applying a destroyed callback")
	}
	if result.Kind().String() != "throwable" {
		t.Fatalf("kind = %s, want throwable", result.Kind())
	}
}

type fakeVTable func(args []*value.Value) (*value.Value, error)

func (f fakeVTable) Invoke(args []*value.Value) (*value.Value, error) { return f(args) }
func (f fakeVTable) Await(args []*value.Value, resolve, reject func(*value.Value), ctx any) error {
	result, err := f(args)
	if err != nil {
		return err
	}
	resolve(result)
	return nil
}
func (f fakeVTable) Destroy() error { return nil }
