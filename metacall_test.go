package metacall

import (
	"testing"

	"github.com/metacall/core/internal/adapter/mock"
	"github.com/metacall/core/internal/config"
	"github.com/metacall/core/internal/marshal"
)

func resetForTest(t *testing.T) {
	t.Helper()
	if err := InitializeWithConfig(config.Config{
		Logging: config.LoggingConfig{Level: "error", Format: "text"},
		Metrics: config.MetricsConfig{Enabled: false},
	}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	t.Cleanup(func() {
		if err := Destroy(); err != nil {
			t.Fatalf("destroy: %v", err)
		}
	})
}

func TestInitializeDestroyNesting(t *testing.T) {
	if IsInitialized() {
		t.Fatalf("not initialized yet")
	}
	if err := Initialize(); err != nil {
		t.Fatalf("initialize 1: %v", err)
	}
	if err := Initialize(); err != nil {
		t.Fatalf("initialize 2: %v", err)
	}
	if !IsInitialized() {
		t.Fatalf("should be initialized")
	}
	if err := Destroy(); err != nil {
		t.Fatalf("destroy 1: %v", err)
	}
	if !IsInitialized() {
		t.Fatalf("nested initialize should keep runtime alive")
	}
	if err := Destroy(); err != nil {
		t.Fatalf("destroy 2: %v", err)
	}
	if IsInitialized() {
		t.Fatalf("should be torn down")
	}
}

func TestInitializeArgsRecordsArgv(t *testing.T) {
	if err := InitializeArgs([]string{"metacall", "--verbose"}); err != nil {
		t.Fatalf("initialize_args: %v", err)
	}
	defer Destroy()
	if Argc() != 2 {
		t.Fatalf("argc = %d, want 2", Argc())
	}
	if got := Argv(); got[0] != "metacall" || got[1] != "--verbose" {
		t.Fatalf("argv = %v", got)
	}
}

func TestCallResolvesFlattenedScope(t *testing.T) {
	resetForTest(t)
	if _, err := LoadFromMemory(mock.Tag, "concat.mock", []byte("concat(a,b) = concat\n")); err != nil {
		t.Fatalf("load: %v", err)
	}
	result, err := Call("concat", NewString("hello "), NewString("world"))
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if result.String() != "hello world" {
		t.Fatalf("result = %q, want %q", result.String(), "hello world")
	}
}

func TestCallThrowableOnScriptError(t *testing.T) {
	resetForTest(t)
	if _, err := LoadFromMemory(mock.Tag, "boom.mock", []byte("boom() = throw:RuntimeError:boom\n")); err != nil {
		t.Fatalf("load: %v", err)
	}
	result, err := Call("boom")
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if result.Kind().String() != "throwable" {
		t.Fatalf("kind = %s, want throwable", result.Kind())
	}
	if result.Throwable().Wrapped.Exception().Message != "boom" {
		t.Fatalf("message = %q", result.Throwable().Wrapped.Exception().Message)
	}
}

func TestCallUnknownNameFails(t *testing.T) {
	resetForTest(t)
	if _, err := Call("does_not_exist"); err == nil {
		t.Fatalf("expected error for unresolved name")
	}
}

func TestAwaitSResolvesNonAsyncImmediately(t *testing.T) {
	resetForTest(t)
	if _, err := LoadFromMemory(mock.Tag, "echo.mock", []byte("echo(x) = echo\n")); err != nil {
		t.Fatalf("load: %v", err)
	}
	resolved := make(chan *Value, 1)
	err := AwaitS("echo", []*Value{NewInt(7)}, func(v *Value) {
		resolved <- v
	}, func(v *Value) {
		t.Errorf("unexpected reject: %v", v)
	}, nil)
	if err != nil {
		t.Fatalf("await_s: %v", err)
	}
	select {
	case v := <-resolved:
		if v.Int() != 7 {
			t.Fatalf("resolved value = %d, want 7", v.Int())
		}
	default:
		t.Fatalf("resolve was not called")
	}
}

func TestAwaitSAsyncResolvesInBackground(t *testing.T) {
	resetForTest(t)
	if _, err := LoadFromMemory(mock.Tag, "delayed.mock", []byte("delayed(x) = async:echo\n")); err != nil {
		t.Fatalf("load: %v", err)
	}
	resolved := make(chan *Value, 1)
	err := AwaitS("delayed", []*Value{NewInt(3)}, func(v *Value) {
		resolved <- v
	}, func(v *Value) {
		t.Errorf("unexpected reject: %v", v)
	}, nil)
	if err != nil {
		t.Fatalf("await_s: %v", err)
	}
	v := <-resolved
	if v.Int() != 3 {
		t.Fatalf("resolved value = %d, want 3", v.Int())
	}
}

func TestCallHandleUsesHandleScopeNotFlattened(t *testing.T) {
	resetForTest(t)
	h, err := LoadFromMemory(mock.Tag, "add.mock", []byte("add(a,b) = add\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	result, err := CallHandle(h, "add", NewDouble(2), NewDouble(3))
	if err != nil {
		t.Fatalf("call_handle: %v", err)
	}
	if result.Double() != 5 {
		t.Fatalf("result = %v, want 5", result.Double())
	}
}

func TestClearRemovesNameButHandleExportStillWorks(t *testing.T) {
	resetForTest(t)
	h, err := LoadFromMemory(mock.Tag, "echo.mock", []byte("echo(x) = echo\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	snapshot, err := HandleExport(h)
	if err != nil {
		t.Fatalf("handle_export: %v", err)
	}
	if _, ok := snapshot.MapGet("echo"); !ok {
		t.Fatalf("handle export missing echo")
	}
	if err := Clear(h); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := Call("echo"); err == nil {
		t.Fatalf("echo should not resolve after clear")
	}
}

func TestFunctionMetaStringRoundTrips(t *testing.T) {
	resetForTest(t)
	if _, err := LoadFromMemory(mock.Tag, "add.mock", []byte("add(a,b) = add\n")); err != nil {
		t.Fatalf("load: %v", err)
	}
	out, err := FunctionMetaString("add", `[1, 2, 3]`)
	if err != nil {
		t.Fatalf("fms: %v", err)
	}
	if out != "6" {
		t.Fatalf("fms result = %q, want %q", out, "6")
	}
}

func TestInspectStableAcrossCalls(t *testing.T) {
	resetForTest(t)
	if _, err := LoadFromMemory(mock.Tag, "add.mock", []byte("add(a,b) = add\n")); err != nil {
		t.Fatalf("load: %v", err)
	}
	first, err := Inspect()
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	second, err := Inspect()
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if string(first) != string(second) {
		t.Fatalf("inspect output changed between calls")
	}
}

func TestNewCallbackInvokedFromHostSide(t *testing.T) {
	resetForTest(t)
	doubled := NewCallback(func(args []any) (any, error) {
		n, _ := args[0].(int64)
		return n * 2, nil
	})
	native, err := ToNative(doubled)
	if err != nil {
		t.Fatalf("to_native: %v", err)
	}
	fn, ok := native.(marshal.Callable)
	if !ok {
		t.Fatalf("to_native of a callback should yield a marshal.Callable")
	}
	result, err := fn([]any{int64(21)})
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	if result.(int64) != 42 {
		t.Fatalf("result = %v, want 42", result)
	}
}

func TestAllocatorScopedReleasesOnPanic(t *testing.T) {
	released := false
	err := Scoped(func(a *Allocator) error {
		a.Alloc("native-payload", func() { released = true })
		panic("boom")
	})
	if err == nil {
		t.Fatalf("expected error recovered from panic")
	}
	if !released {
		t.Fatalf("allocator should release its entries even after a panic")
	}
}

// TestDestroyedCallbackValueCannotBeReinvoked exercises seed scenario 4
// (spec.md §8): a host callback crosses into a loaded script as an
// argument, is invoked successfully, then destroyed — a second invocation
// through the same script must fail instead of silently re-running the
// native closure.
func TestDestroyedCallbackValueCannotBeReinvoked(t *testing.T) {
	resetForTest(t)
	if _, err := LoadFromMemory(mock.Tag, "caller.mock", []byte("caller(fn,x) = apply\n")); err != nil {
		t.Fatalf("load: %v", err)
	}

	cb := NewCallback(func(args []any) (any, error) {
		n, _ := args[0].(int64)
		return n * 2, nil
	})

	result, err := Call("caller", cb, NewLong(21))
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if result.Long() != 42 {
		t.Fatalf("result = %v, want 42", result.Long())
	}

	cb.Destroy()

	result, err = Call("caller", cb, NewLong(21))
	if err != nil {
		t.Fatalf("call after destroy: %v", err)
	}
	if result.Kind().String() != "throwable" {
		t.Fatalf("kind = %s, want throwable after re-invoking a destroyed callback", result.Kind())
	}
}

func TestHandleByNameAndFunctionLookup(t *testing.T) {
	resetForTest(t)
	h, err := LoadFromMemory(mock.Tag, "echo.mock", []byte("echo(x) = echo\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	found, err := HandleByName(mock.Tag, "echo")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if found.ID != h.ID {
		t.Fatalf("handle id = %s, want %s", found.ID, h.ID)
	}
	fv, err := Function("echo")
	if err != nil {
		t.Fatalf("function: %v", err)
	}
	if fv.Kind().String() != "function" {
		t.Fatalf("kind = %s", fv.Kind())
	}
}
