package cache

import (
	"context"
	"testing"
	"time"
)

func TestLayeredStore_LocalHit(t *testing.T) {
	local := NewLocalStore(time.Minute)
	remote := NewLocalStore(time.Minute)
	defer local.Shutdown()
	defer remote.Shutdown()

	ls := NewLayeredStore(local, remote, 10*time.Second)
	defer ls.Shutdown()

	ctx := context.Background()

	if err := ls.Put(ctx, "key1", []byte("value1"), time.Minute); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	val, err := ls.Fetch(ctx, "key1")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(val) != "value1" {
		t.Fatalf("expected 'value1', got '%s'", string(val))
	}
}

func TestLayeredStore_RemoteFallthroughPopulatesLocal(t *testing.T) {
	local := NewLocalStore(time.Minute)
	remote := NewLocalStore(time.Minute)
	defer local.Shutdown()
	defer remote.Shutdown()

	ls := NewLayeredStore(local, remote, 10*time.Second)
	defer ls.Shutdown()

	ctx := context.Background()

	if err := remote.Put(ctx, "key2", []byte("value2"), time.Minute); err != nil {
		t.Fatalf("remote Put failed: %v", err)
	}

	val, err := ls.Fetch(ctx, "key2")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(val) != "value2" {
		t.Fatalf("expected 'value2', got '%s'", string(val))
	}

	val, err = local.Fetch(ctx, "key2")
	if err != nil {
		t.Fatalf("local Fetch after fallthrough failed: %v", err)
	}
	if string(val) != "value2" {
		t.Fatalf("expected 'value2' in local layer, got '%s'", string(val))
	}
}

func TestLayeredStore_BothMiss(t *testing.T) {
	local := NewLocalStore(time.Minute)
	remote := NewLocalStore(time.Minute)
	defer local.Shutdown()
	defer remote.Shutdown()

	ls := NewLayeredStore(local, remote, 10*time.Second)
	defer ls.Shutdown()

	_, err := ls.Fetch(context.Background(), "missing")
	if err != ErrMiss {
		t.Fatalf("expected ErrMiss, got: %v", err)
	}
}

func TestLayeredStore_EvictRemovesFromBothLayers(t *testing.T) {
	local := NewLocalStore(time.Minute)
	remote := NewLocalStore(time.Minute)
	defer local.Shutdown()
	defer remote.Shutdown()

	ls := NewLayeredStore(local, remote, 10*time.Second)
	defer ls.Shutdown()

	ctx := context.Background()

	ls.Put(ctx, "del-key", []byte("value"), time.Minute)

	if err := ls.Evict(ctx, "del-key"); err != nil {
		t.Fatalf("Evict failed: %v", err)
	}

	if _, err := local.Fetch(ctx, "del-key"); err != ErrMiss {
		t.Fatalf("expected ErrMiss in local layer after evict, got: %v", err)
	}
	if _, err := remote.Fetch(ctx, "del-key"); err != ErrMiss {
		t.Fatalf("expected ErrMiss in remote layer after evict, got: %v", err)
	}
}

func TestLayeredStore_Contains(t *testing.T) {
	local := NewLocalStore(time.Minute)
	remote := NewLocalStore(time.Minute)
	defer local.Shutdown()
	defer remote.Shutdown()

	ls := NewLayeredStore(local, remote, 10*time.Second)
	defer ls.Shutdown()

	ctx := context.Background()

	exists, err := ls.Contains(ctx, "missing")
	if err != nil {
		t.Fatalf("Contains failed: %v", err)
	}
	if exists {
		t.Fatal("expected missing key to not be present")
	}

	ls.Put(ctx, "present", []byte("value"), time.Minute)
	exists, err = ls.Contains(ctx, "present")
	if err != nil {
		t.Fatalf("Contains failed: %v", err)
	}
	if !exists {
		t.Fatal("expected present key to be present")
	}
}

func TestLayeredStore_Healthy(t *testing.T) {
	local := NewLocalStore(time.Minute)
	remote := NewLocalStore(time.Minute)
	defer local.Shutdown()
	defer remote.Shutdown()

	ls := NewLayeredStore(local, remote, 10*time.Second)
	defer ls.Shutdown()

	if err := ls.Healthy(context.Background()); err != nil {
		t.Fatalf("Healthy failed: %v", err)
	}
}

func TestLayeredStore_DefaultLocalTTL(t *testing.T) {
	local := NewLocalStore(time.Minute)
	remote := NewLocalStore(time.Minute)
	defer local.Shutdown()
	defer remote.Shutdown()

	ls := NewLayeredStore(local, remote, 0)
	defer ls.Shutdown()

	if ls.localTTL != 10*time.Second {
		t.Fatalf("expected default localTTL of 10s, got %v", ls.localTTL)
	}

	ctx := context.Background()
	ls.Put(ctx, "key", []byte("val"), time.Minute)

	val, err := ls.Fetch(ctx, "key")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(val) != "val" {
		t.Fatalf("expected 'val', got '%s'", string(val))
	}
}
