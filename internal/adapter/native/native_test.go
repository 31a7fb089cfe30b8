package native

import (
	"context"
	"errors"
	"testing"

	"github.com/metacall/core/internal/adapter"
	"github.com/metacall/core/internal/value"
)

type fakeFetcher struct {
	byURI map[string][]byte
}

func (f *fakeFetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	if buf, ok := f.byURI[source]; ok {
		return buf, nil
	}
	return nil, errors.New("not found")
}

func TestLoadFromMemoryAndInvoke(t *testing.T) {
	a := New()
	defer a.Destroy()

	h, err := a.LoadFromMemory("lib.c", []byte("add(a,b) = add\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := a.Discover(h, h.Ctx); err != nil {
		t.Fatalf("discover: %v", err)
	}
	fnVal, _ := h.Ctx.Scope.Get("add")

	result, err := fnVal.Function().VTable.Invoke([]*value.Value{value.NewInt(2), value.NewInt(3)})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if result.Double() != 5 {
		t.Fatalf("result = %v, want 5", result.Double())
	}
}

func TestLoadFromPackageViaS3(t *testing.T) {
	a := New().WithFetcher(&fakeFetcher{byURI: map[string][]byte{
		"s3://mypkg/lib.manifest": []byte("greet(name) = echo\n"),
	}})
	defer a.Destroy()

	h, err := a.LoadFromPackage("s3://mypkg/lib.manifest")
	if err != nil {
		t.Fatalf("load_from_package: %v", err)
	}
	if err := a.Discover(h, h.Ctx); err != nil {
		t.Fatalf("discover: %v", err)
	}
	if _, ok := h.Ctx.Scope.Get("greet"); !ok {
		t.Fatalf("greet not discovered")
	}
}

func TestLoadFromPackageMissingSourceFails(t *testing.T) {
	a := New().WithFetcher(&fakeFetcher{byURI: map[string][]byte{}})
	defer a.Destroy()

	if _, err := a.LoadFromPackage("s3://nope/nope.manifest"); err == nil {
		t.Fatalf("expected fetch failure")
	}
}

func TestAwaitNotApplicable(t *testing.T) {
	a := New()
	defer a.Destroy()
	h, _ := a.LoadFromMemory("lib.c", []byte("noop() = echo\n"))
	_ = a.Discover(h, h.Ctx)
	fnVal, _ := h.Ctx.Scope.Get("noop")

	err := fnVal.Function().VTable.Await(nil, func(*value.Value) {}, func(*value.Value) {}, nil)
	if !errors.Is(err, adapter.ErrNotApplicable) {
		t.Fatalf("err = %v, want ErrNotApplicable", err)
	}
}
