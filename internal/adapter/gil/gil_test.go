package gil

import (
	"sync"
	"testing"
	"time"

	"github.com/metacall/core/internal/kind"
	"github.com/metacall/core/internal/value"
)

func TestInvokeSerializesUnderGIL(t *testing.T) {
	a := New()
	defer a.Destroy()

	h, err := a.LoadFromMemory("add.py", []byte("add(a,b) = add\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := a.Discover(h, h.Ctx); err != nil {
		t.Fatalf("discover: %v", err)
	}
	fnVal, _ := h.Ctx.Scope.Get("add")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := fnVal.Function().VTable.Invoke([]*value.Value{value.NewInt(1), value.NewInt(2)})
			if err != nil {
				t.Errorf("invoke: %v", err)
				return
			}
			if result.Double() != 3 {
				t.Errorf("result = %v, want 3", result.Double())
			}
		}()
	}
	wg.Wait()
}

func TestAwaitAsyncResolvesOnce(t *testing.T) {
	a := New()
	defer a.Destroy()

	h, _ := a.LoadFromMemory("sleep.py", []byte("work(x) = async:double\n"))
	_ = a.Discover(h, h.Ctx)
	fnVal, _ := h.Ctx.Scope.Get("work")

	var mu sync.Mutex
	var resolved, rejected int
	done := make(chan struct{})

	err := fnVal.Function().VTable.Await([]*value.Value{value.NewInt(10)},
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

func TestDestroyWaitsForBackgroundTasks(t *testing.T) {
	a := New()
	h, _ := a.LoadFromMemory("slow.py", []byte("slow(x) = async:echo\n"))
	_ = a.Discover(h, h.Ctx)
	fnVal, _ := h.Ctx.Scope.Get("slow")

	_ = fnVal.Function().VTable.Await([]*value.Value{value.NewInt(1)},
		func(v *value.Value) {}, func(v *value.Value) {}, nil)

	if err := a.Destroy(); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if !a.Destroyed() {
		t.Fatalf("adapter should report destroyed")
	}
}

func TestThrowingFunctionReturnsThrowable(t *testing.T) {
	a := New()
	defer a.Destroy()
	h, _ := a.LoadFromMemory("boom.py", []byte("boom() = throw:ValueError:bad\n"))
	_ = a.Discover(h, h.Ctx)
	fnVal, _ := h.Ctx.Scope.Get("boom")

	result, err := fnVal.Function().VTable.Invoke(nil)
	if err != nil {
		t.Fatalf("invoke must not return a Go error: %v", err)
	}
	if result.Kind() != kind.Throwable {
		t.Fatalf("kind = %v, want throwable", result.Kind())
	}
}
