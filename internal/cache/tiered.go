package cache

import (
	"context"
	"time"
)

// LayeredStore composes a fast local Store in front of a shared remote
// Store: reads check local first and populate it on a remote hit; writes
// go to both layers. Pair with InvalidationBus to keep the local layer
// from serving a value the remote layer no longer has.
type LayeredStore struct {
	local    Store
	remote   Store
	localTTL time.Duration
}

// NewLayeredStore builds a two-level store. localTTL bounds how long an
// entry survives in the local layer (10s if non-positive) — it should be
// shorter than whatever TTL callers pass to Put, so a stale local hit
// self-heals quickly even without an explicit invalidation.
func NewLayeredStore(local, remote Store, localTTL time.Duration) *LayeredStore {
	if localTTL <= 0 {
		localTTL = 10 * time.Second
	}
	return &LayeredStore{local: local, remote: remote, localTTL: localTTL}
}

func (l *LayeredStore) Fetch(ctx context.Context, key string) ([]byte, error) {
	if val, err := l.local.Fetch(ctx, key); err == nil {
		return val, nil
	}
	val, err := l.remote.Fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	_ = l.local.Put(ctx, key, val, l.localTTL)
	return val, nil
}

func (l *LayeredStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_ = l.local.Put(ctx, key, value, l.localTTL)
	return l.remote.Put(ctx, key, value, ttl)
}

func (l *LayeredStore) Evict(ctx context.Context, key string) error {
	_ = l.local.Evict(ctx, key)
	return l.remote.Evict(ctx, key)
}

func (l *LayeredStore) Contains(ctx context.Context, key string) (bool, error) {
	if ok, err := l.local.Contains(ctx, key); err == nil && ok {
		return true, nil
	}
	return l.remote.Contains(ctx, key)
}

func (l *LayeredStore) Healthy(ctx context.Context) error {
	if err := l.local.Healthy(ctx); err != nil {
		return err
	}
	return l.remote.Healthy(ctx)
}

func (l *LayeredStore) Shutdown() error {
	_ = l.local.Shutdown()
	return l.remote.Shutdown()
}
