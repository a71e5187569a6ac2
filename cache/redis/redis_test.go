package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c, err := New(Config{Client: client, KeyPrefix: "test:"})
	if err != nil {
		t.Fatalf("Failed to create Redis cache: %v", err)
	}
	return c, mr
}

func TestNewRequiresClient(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error without a client")
	}
}

func TestRedisCache(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		if err := c.Put(ctx, "get_course:1", []byte(`{"id":1}`), time.Minute); err != nil {
			t.Fatalf("Put() failed: %v", err)
		}
		got, ok, err := c.Get(ctx, "get_course:1")
		if err != nil || !ok {
			t.Fatalf("Get() = %v, %v", ok, err)
		}
		if string(got) != `{"id":1}` {
			t.Fatalf("Get() returned wrong data: %s", got)
		}
		if !mr.Exists("test:get_course:1") {
			t.Fatal("key prefix not applied")
		}
	})

	t.Run("GetNonExistent", func(t *testing.T) {
		_, ok, err := c.Get(ctx, "missing")
		if err != nil || ok {
			t.Fatalf("Get() = %v, %v", ok, err)
		}
	})

	t.Run("TTL", func(t *testing.T) {
		_ = c.Put(ctx, "short", []byte("v"), 2*time.Second)
		mr.FastForward(3 * time.Second)
		if _, ok, _ := c.Get(ctx, "short"); ok {
			t.Fatal("entry visible after ttl")
		}
	})

	t.Run("ZeroTTL", func(t *testing.T) {
		_ = c.Put(ctx, "never", []byte("v"), 0)
		if mr.Exists("test:never") {
			t.Fatal("zero ttl entry was stored")
		}
	})

	t.Run("BackendFailure", func(t *testing.T) {
		mr.SetError("ERR simulated failure")
		defer mr.SetError("")
		if _, _, err := c.Get(ctx, "get_course:1"); err == nil {
			t.Fatal("expected backend error")
		}
	})
}
