// Package native implements the Profile C "ahead of time compiled"
// adapter (tag "c", spec.md §4.5): no event loop, no GIL, just a mutex
// around the link step. What sets this adapter apart from mock/thread is
// load_from_package: a compiled native module can be fetched from local
// disk or from an S3 bucket (s3://bucket/key), following the object-store
// retrieval pattern of the pack's lode/quarry data-access layer, so the
// spec's "package form" loading path has a real, wired-up remote source
// instead of being a stub.
//
// Native functions have no async form at all — invoking metacall_await on
// one returns adapter.ErrNotApplicable rather than simulating a promise,
// resolving open question 2 of spec.md §9 (see DESIGN.md).
package native

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/metacall/core/internal/adapter"
	"github.com/metacall/core/internal/adapter/scriptlang"
	"github.com/metacall/core/internal/scope"
	"github.com/metacall/core/internal/types"
	"github.com/metacall/core/internal/value"
)

const Tag = "c"

// PackageFetcher retrieves a compiled package's bytes given its source
// string (a local path, or an s3://bucket/key URI). Swappable for tests.
type PackageFetcher interface {
	Fetch(ctx context.Context, source string) ([]byte, error)
}

type Adapter struct {
	adapter.Tombstone

	link sync.Mutex

	mu      sync.Mutex
	paths   []string
	handles map[string]*adapter.Handle

	fetcher PackageFetcher
}

func New() *Adapter {
	return &Adapter{handles: make(map[string]*adapter.Handle), fetcher: &defaultFetcher{}}
}

// WithFetcher overrides the package fetcher, e.g. with a fake in tests or
// a fetcher pointed at an S3-compatible endpoint in production.
func (a *Adapter) WithFetcher(f PackageFetcher) *Adapter {
	a.fetcher = f
	return a
}

func (a *Adapter) Tag() string { return Tag }

func (a *Adapter) Initialize(config map[string]any) error { return nil }

func (a *Adapter) ExecutionPath(path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.paths = append(a.paths, path)
	return nil
}

func (a *Adapter) load(funcs []scriptlang.Func) *adapter.Handle {
	h := adapter.NewHandle(Tag, funcs)
	a.mu.Lock()
	a.handles[h.ID] = h
	a.mu.Unlock()
	return h
}

func (a *Adapter) LoadFromFile(paths []string) (*adapter.Handle, error) {
	a.link.Lock()
	defer a.link.Unlock()
	var all []scriptlang.Func
	for _, p := range paths {
		fns, err := scriptlang.Parse([]byte(p))
		if err != nil {
			return nil, fmt.Errorf("native: load_from_file: %w", err)
		}
		all = append(all, fns...)
	}
	return a.load(all), nil
}

func (a *Adapter) LoadFromMemory(name string, buf []byte) (*adapter.Handle, error) {
	a.link.Lock()
	defer a.link.Unlock()
	funcs, err := scriptlang.Parse(buf)
	if err != nil {
		return nil, fmt.Errorf("native: load_from_memory(%s): %w", name, err)
	}
	return a.load(funcs), nil
}

// LoadFromPackage resolves path through the fetcher (local file or
// s3://bucket/key), then links the compiled-module descriptor it fetches
// the same way the other load paths parse source: a small text manifest
// listing exported functions. This keeps the adapter self-contained
// without a real linker while still exercising a genuine remote fetch.
func (a *Adapter) LoadFromPackage(path string) (*adapter.Handle, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	buf, err := a.fetcher.Fetch(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("native: load_from_package(%s): %w", path, err)
	}

	a.link.Lock()
	defer a.link.Unlock()
	funcs, err := scriptlang.Parse(buf)
	if err != nil {
		return nil, fmt.Errorf("native: load_from_package(%s): malformed package manifest: %w", path, err)
	}
	return a.load(funcs), nil
}

func (a *Adapter) Clear(h *adapter.Handle) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if h.Ctx != nil {
		h.Ctx.Scope.Destroy()
	}
	delete(a.handles, h.ID)
	return nil
}

func (a *Adapter) Discover(h *adapter.Handle, ctx *scope.Context) error {
	funcs, ok := h.Data.([]scriptlang.Func)
	if !ok {
		return fmt.Errorf("native: handle has no parsed functions")
	}
	for _, pf := range funcs {
		sig := types.Signature{}
		for _, p := range pf.Params {
			sig.Params = append(sig.Params, types.Param{Name: p})
		}
		fn := &value.Function{
			Name:   pf.Name,
			Sig:    sig,
			Async:  false,
			VTable: &fnImpl{a: a, behavior: pf.Behavior},
		}
		if err := ctx.Define(pf.Name, value.NewFunction(fn)); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) Destroy() error {
	a.MarkDestroyed()
	a.mu.Lock()
	handles := a.handles
	a.handles = make(map[string]*adapter.Handle)
	a.mu.Unlock()
	for _, h := range handles {
		if h.Ctx != nil {
			h.Ctx.Scope.Destroy()
		}
	}
	return nil
}

type fnImpl struct {
	a        *Adapter
	behavior string
}

func (f *fnImpl) Invoke(args []*value.Value) (*value.Value, error) {
	f.a.link.Lock()
	defer f.a.link.Unlock()
	result, _ := scriptlang.Eval(f.behavior, args)
	return result, nil
}

// Await always fails with ErrNotApplicable: native compiled functions run
// to completion on the calling thread and have no async form to bridge.
func (f *fnImpl) Await(args []*value.Value, resolve, reject func(*value.Value), ctx any) error {
	return adapter.ErrNotApplicable
}

func (f *fnImpl) Destroy() error { return nil }

// defaultFetcher resolves a local path directly, or an s3://bucket/key URI
// via the AWS SDK's default credential chain, matching the pack's
// lode/quarry S3-backed store pattern.
type defaultFetcher struct {
	mu     sync.Mutex
	client *s3.Client
}

func (f *defaultFetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	if !strings.HasPrefix(source, "s3://") {
		return os.ReadFile(source)
	}

	rest := strings.TrimPrefix(source, "s3://")
	parts := strings.SplitN(rest, "/", 2)
	bucket := parts[0]
	key := ""
	if len(parts) > 1 {
		key = parts[1]
	}

	client, err := f.s3Client(ctx)
	if err != nil {
		return nil, err
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("native: s3 fetch %s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, out.Body); err != nil {
		return nil, fmt.Errorf("native: s3 read %s/%s: %w", bucket, key, err)
	}
	return buf.Bytes(), nil
}

func (f *defaultFetcher) s3Client(ctx context.Context) (*s3.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client != nil {
		return f.client, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("native: load aws config: %w", err)
	}
	f.client = s3.NewFromConfig(cfg)
	return f.client, nil
}
