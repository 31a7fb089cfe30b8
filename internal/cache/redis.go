package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RemoteStoreConfig configures a Redis-backed Store.
type RemoteStoreConfig struct {
	Addr      string // Redis address (e.g. "localhost:6379")
	Password  string
	DB        int
	KeyPrefix string // namespace prefix; defaults to "metacall:discovery:"
}

// RemoteStore is a Store backed by Redis, the L2 layer shared across every
// process discovering against the same source.
type RemoteStore struct {
	client *redis.Client
	prefix string
}

// NewRemoteStore dials cfg.Addr and returns a Store over it.
func NewRemoteStore(cfg RemoteStoreConfig) *RemoteStore {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "metacall:discovery:"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RemoteStore{client: client, prefix: prefix}
}

// NewRemoteStoreFromClient wraps an already-constructed client, for callers
// that manage their own connection pool.
func NewRemoteStoreFromClient(client *redis.Client, prefix string) *RemoteStore {
	if prefix == "" {
		prefix = "metacall:discovery:"
	}
	return &RemoteStore{client: client, prefix: prefix}
}

func (r *RemoteStore) namespaced(key string) string { return r.prefix + key }

func (r *RemoteStore) Fetch(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.namespaced(key)).Bytes()
	if err == redis.Nil {
		return nil, ErrMiss
	}
	return val, err
}

func (r *RemoteStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.namespaced(key), value, ttl).Err()
}

func (r *RemoteStore) Evict(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.namespaced(key)).Err()
}

func (r *RemoteStore) Contains(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.namespaced(key)).Result()
	return n > 0, err
}

func (r *RemoteStore) Healthy(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RemoteStore) Shutdown() error { return r.client.Close() }
