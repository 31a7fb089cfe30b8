package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/metacall/core/internal/cache"
	"github.com/metacall/core/internal/metrics"
)

// DiscoveryCache hashes load_from_file/load_from_memory source bytes and
// records them in an L1 (in-process) plus optional L2 (Redis) cache
// (SPEC_FULL §4.7). It only records which (tag, hash) pairs have been
// seen and counts hits and misses; adapter discovery runs on every load
// whether or not the pair was seen before, and every load produces fresh
// values through the normal load path.
//
// It is observational only: it changes nothing observable under §3/§8,
// and is inert (always a miss) when no backing Store is wired in.
type DiscoveryCache struct {
	backing cache.Store
	ttl     time.Duration
	metrics *metrics.Metrics
}

// NewDiscoveryCache wraps backing (nil disables caching entirely).
func NewDiscoveryCache(backing cache.Store, ttl time.Duration, m *metrics.Metrics) *DiscoveryCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &DiscoveryCache{backing: backing, ttl: ttl, metrics: m}
}

// Hash returns the hex SHA-256 digest of source, the key this cache
// indexes on.
func Hash(source []byte) string {
	sum := sha256.Sum256(source)
	return hex.EncodeToString(sum[:])
}

// Seen reports whether (tag, hash) has already been discovered
// successfully, recording a hit/miss metric either way.
func (d *DiscoveryCache) Seen(ctx context.Context, tag, hash string) bool {
	if d == nil || d.backing == nil {
		return false
	}
	_, err := d.backing.Fetch(ctx, tag+":"+hash)
	hit := err == nil
	if d.metrics != nil {
		d.metrics.RecordDiscoveryCache(hit)
	}
	return hit
}

// MarkSeen records that (tag, hash) discovered successfully.
func (d *DiscoveryCache) MarkSeen(ctx context.Context, tag, hash string) {
	if d == nil || d.backing == nil {
		return
	}
	_ = d.backing.Put(ctx, tag+":"+hash, []byte{1}, d.ttl)
}
