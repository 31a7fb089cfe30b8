// Package metacall is the public façade of the runtime: lifecycle
// (initialize/destroy), loading, invocation, and introspection, wired
// against the ambient stack (logging, metrics, tracing, the discovery
// cache) described in SPEC_FULL.md §2.
//
// The façade enforces single-initialization via a counter (spec.md §9,
// "Global mutable runtime state"): nested Initialize/Destroy pairs are
// safe, and only the outermost pair actually stands up or tears down the
// adapters.
package metacall

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/metacall/core/internal/adapter"
	"github.com/metacall/core/internal/adapter/eventloop"
	"github.com/metacall/core/internal/adapter/gil"
	"github.com/metacall/core/internal/adapter/mock"
	"github.com/metacall/core/internal/adapter/native"
	"github.com/metacall/core/internal/adapter/thread"
	"github.com/metacall/core/internal/cache"
	"github.com/metacall/core/internal/config"
	"github.com/metacall/core/internal/loader"
	"github.com/metacall/core/internal/logging"
	"github.com/metacall/core/internal/metrics"
	"github.com/metacall/core/internal/tracing"
)

// runtime is the process-wide façade state. There is exactly one: the
// spec's C-ABI has no notion of multiple independent runtimes in one
// process.
type runtime struct {
	mu        sync.Mutex
	initCount int
	mgr       *loader.Manager
	cfg       config.Config
	argv      []string
}

var global = &runtime{}

func factories() map[string]loader.Factory {
	return map[string]loader.Factory{
		mock.Tag:      func() adapter.LoaderImpl { return mock.New() },
		eventloop.Tag: func() adapter.LoaderImpl { return eventloop.New() },
		gil.Tag:       func() adapter.LoaderImpl { return gil.New() },
		thread.Tag:    func() adapter.LoaderImpl { return thread.New() },
		native.Tag:    func() adapter.LoaderImpl { return native.New() },
	}
}

// Initialize starts the runtime with default configuration. Safe to call
// more than once; each call must be matched by a Destroy.
func Initialize() error {
	return InitializeWithConfig(config.Default())
}

// InitializeWithConfig starts the runtime with an explicit configuration
// tree (SPEC_FULL §2 expansion): logging level/format, metrics namespace,
// tracing endpoint, and the optional Redis-backed L2 discovery cache.
func InitializeWithConfig(cfg config.Config) error {
	global.mu.Lock()
	defer global.mu.Unlock()

	global.initCount++
	if global.initCount > 1 {
		return nil
	}

	logging.Configure(cfg.Logging.Format, cfg.Logging.Level)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.InitPrometheus(cfg.Metrics.Namespace, cfg.Metrics.HistogramBuckets)
	}

	if err := tracing.Init(context.Background(), tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRate:  cfg.Tracing.SampleRate,
	}); err != nil {
		global.initCount--
		return fmt.Errorf("metacall: initialize tracing: %w", err)
	}

	mgr := loader.NewManager(factories(), m)
	if dc := buildDiscoveryCache(cfg.Cache, m); dc != nil {
		mgr.SetDiscoveryCache(dc)
	}

	global.mgr = mgr
	global.cfg = cfg
	logging.Runtime().Info("metacall initialized", "metrics", cfg.Metrics.Enabled, "tracing", cfg.Tracing.Enabled)
	return nil
}

func buildDiscoveryCache(cc config.CacheConfig, m *metrics.Metrics) *loader.DiscoveryCache {
	if cc.RedisAddr == "" {
		return nil
	}
	l1 := cache.NewLocalStore(5 * time.Second)
	l2 := cache.NewRemoteStore(cache.RemoteStoreConfig{
		Addr:      cc.RedisAddr,
		Password:  cc.RedisPassword,
		DB:        cc.RedisDB,
		KeyPrefix: cc.KeyPrefix,
	})
	layered := cache.NewLayeredStore(l1, l2, time.Minute)
	return loader.NewDiscoveryCache(layered, 10*time.Minute, m)
}

// IsInitialized reports whether the runtime currently has at least one
// outstanding Initialize not yet matched by Destroy.
func IsInitialized() bool {
	global.mu.Lock()
	defer global.mu.Unlock()
	return global.initCount > 0
}

// InitializeArgs records argv before initializing, mirroring the C-ABI's
// initialize_args(argc, argv).
func InitializeArgs(args []string) error {
	global.mu.Lock()
	global.argv = append([]string(nil), args...)
	global.mu.Unlock()
	return Initialize()
}

// Argc returns the argument count recorded by InitializeArgs.
func Argc() int {
	global.mu.Lock()
	defer global.mu.Unlock()
	return len(global.argv)
}

// Argv returns a copy of the arguments recorded by InitializeArgs.
func Argv() []string {
	global.mu.Lock()
	defer global.mu.Unlock()
	out := make([]string, len(global.argv))
	copy(out, global.argv)
	return out
}

// Destroy reverses one Initialize/InitializeWithConfig call. Only the
// call that brings the counter back to zero actually tears down every
// bootstrapped adapter, in reverse dependency order (spec.md §4.2/§4.5).
func Destroy() error {
	global.mu.Lock()
	if global.initCount == 0 {
		global.mu.Unlock()
		return nil
	}
	global.initCount--
	if global.initCount > 0 {
		global.mu.Unlock()
		return nil
	}
	mgr := global.mgr
	global.mgr = nil
	global.argv = nil
	global.mu.Unlock()

	if mgr == nil {
		return nil
	}
	if err := tracing.Shutdown(context.Background()); err != nil {
		logging.Runtime().Warn("tracing shutdown failed", "error", err)
	}
	return mgr.Destroy()
}

// RegisterDependency records that a value crossing from childTag's loader
// into parentTag's loader keeps the child alive for the parent's sake, so
// Destroy tears childTag down before parentTag (spec.md §4.2, §8 invariant
// 6). Callers that bridge a callable across two adapters (seed scenario 5)
// call this once per pairing they observe.
func RegisterDependency(parentTag, childTag string) error {
	mgr, err := currentManager()
	if err != nil {
		return err
	}
	mgr.RegisterDependency(parentTag, childTag)
	return nil
}

func currentManager() (*loader.Manager, error) {
	global.mu.Lock()
	defer global.mu.Unlock()
	if global.mgr == nil {
		return nil, fmt.Errorf("metacall: not initialized")
	}
	return global.mgr, nil
}
