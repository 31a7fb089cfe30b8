package cache

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// invalidationChannel is the Redis Pub/Sub channel discovery-cache
// invalidation signals travel over: whichever process first detects a
// (tag, hash) entry went stale publishes the key here, and every peer
// sharing the remote layer evicts it from its own local layer instead of
// waiting out the local TTL.
const invalidationChannel = "metacall:discovery:invalidate"

// InvalidationBus evicts keys from a local Store as invalidation signals
// for them arrive over Redis Pub/Sub.
type InvalidationBus struct {
	local  Store
	client *redis.Client

	mu     sync.Mutex
	cancel context.CancelFunc
	closed bool
}

// NewInvalidationBus builds a bus that evicts from local on signal.
func NewInvalidationBus(local Store, client *redis.Client) *InvalidationBus {
	return &InvalidationBus{local: local, client: client}
}

// Listen subscribes and evicts until ctx is cancelled or Close runs.
func (b *InvalidationBus) Listen(ctx context.Context) {
	subCtx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()

	sub := b.client.Subscribe(subCtx, invalidationChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-subCtx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_ = b.local.Evict(subCtx, msg.Payload)
		}
	}
}

// Publish signals every listening peer to evict key.
func (b *InvalidationBus) Publish(ctx context.Context, key string) error {
	return b.client.Publish(ctx, invalidationChannel, key).Err()
}

// Close stops Listen.
func (b *InvalidationBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.cancel != nil {
		b.cancel()
	}
	return nil
}
