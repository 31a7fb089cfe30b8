package eventloop

import (
	"sync"
	"testing"
	"time"

	"github.com/metacall/core/internal/kind"
	"github.com/metacall/core/internal/value"
)

func TestInvokeFromForeignGoroutineMarshalsOntoLoop(t *testing.T) {
	a := New()
	defer a.Destroy()

	h, err := a.LoadFromMemory("concat.js", []byte("concat(a,b) = concat\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := a.Discover(h, h.Ctx); err != nil {
		t.Fatalf("discover: %v", err)
	}
	fnVal, _ := h.Ctx.Scope.Get("concat")

	result, err := fnVal.Function().VTable.Invoke([]*value.Value{value.NewString("foo"), value.NewString("bar")})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if result.Kind() != kind.String || result.String() != "foobar" {
		t.Fatalf("result = %v", result)
	}
}

func TestInvokeFromLoopThreadRunsInline(t *testing.T) {
	a := New()
	defer a.Destroy()

	h, _ := a.LoadFromMemory("double.js", []byte("double(x) = double\n"))
	_ = a.Discover(h, h.Ctx)
	fnVal, _ := h.Ctx.Scope.Get("double")

	var result *value.Value
	var invokeErr error
	a.submit(func() {
		result, invokeErr = fnVal.Function().VTable.Invoke([]*value.Value{value.NewInt(21)})
	})
	if invokeErr != nil {
		t.Fatalf("invoke: %v", invokeErr)
	}
	if result.Double() != 42 {
		t.Fatalf("result = %v, want 42", result.Double())
	}
}

func TestAwaitResolvesExactlyOnce(t *testing.T) {
	a := New()
	defer a.Destroy()

	h, _ := a.LoadFromMemory("echo.js", []byte("echo_async(x) = async:echo\n"))
	_ = a.Discover(h, h.Ctx)
	fnVal, _ := h.Ctx.Scope.Get("echo_async")

	var mu sync.Mutex
	var resolved, rejected int
	done := make(chan struct{})

	err := fnVal.Function().VTable.Await([]*value.Value{value.NewInt(7)},
		func(v *value.Value) {
			mu.Lock()
			resolved++
			mu.Unlock()
			close(done)
		},
		func(v *value.Value) {
			mu.Lock()
			rejected++
			mu.Unlock()
			close(done)
		}, nil)
	if err != nil {
		t.Fatalf("await: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("resolve/reject never fired")
	}

	mu.Lock()
	defer mu.Unlock()
	if resolved != 1 || rejected != 0 {
		t.Fatalf("resolved=%d rejected=%d, want 1/0", resolved, rejected)
	}
}

func TestDestroyJoinsLoopAndClearsHandles(t *testing.T) {
	a := New()
	h, _ := a.LoadFromMemory("noop.js", []byte("noop() = echo\n"))
	_ = a.Discover(h, h.Ctx)

	if err := a.Destroy(); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if !a.Destroyed() {
		t.Fatalf("adapter should report destroyed")
	}
	if len(a.handles) != 0 {
		t.Fatalf("handles not cleared on destroy")
	}
}
