package memory

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(t *testing.T, size int) (*Cache, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	c, err := New(size, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, clock
}

func TestNewRejectsZeroSize(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatal("expected an error for a zero-sized cache")
	}
}

func TestPutGet(t *testing.T) {
	c, _ := newTestCache(t, 4)
	ctx := context.Background()

	if err := c.Put(ctx, "k", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	got, ok, err := c.Get(ctx, "k")
	if err != nil || !ok || string(got) != "v1" {
		t.Fatalf("Get() = %q, %v, %v", got, ok, err)
	}

	if err := c.Put(ctx, "k", []byte("v2"), time.Minute); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	got, _, _ = c.Get(ctx, "k")
	if string(got) != "v2" {
		t.Fatalf("overwrite not visible, got %q", got)
	}
}

func TestPutCopiesValue(t *testing.T) {
	c, _ := newTestCache(t, 4)
	ctx := context.Background()
	buf := []byte("abc")
	_ = c.Put(ctx, "k", buf, time.Minute)
	buf[0] = 'x'
	got, _, _ := c.Get(ctx, "k")
	if string(got) != "abc" {
		t.Fatalf("cache aliased caller buffer: %q", got)
	}
}

func TestNonPositiveTTLIsNotStored(t *testing.T) {
	c, _ := newTestCache(t, 4)
	ctx := context.Background()
	_ = c.Put(ctx, "k", []byte("v"), 0)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("zero ttl entry should not be stored")
	}
}

func TestExpiredEntriesArePurgedOnRead(t *testing.T) {
	c, clock := newTestCache(t, 4)
	ctx := context.Background()
	_ = c.Put(ctx, "k", []byte("v"), time.Minute)

	clock.Advance(59 * time.Second)
	if _, ok, _ := c.Get(ctx, "k"); !ok {
		t.Fatal("entry missing before ttl")
	}

	clock.Advance(time.Second)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("entry visible after ttl")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry not purged, len=%d", c.Len())
	}
}

func TestEvictionPrefersSoonestExpired(t *testing.T) {
	c, clock := newTestCache(t, 3)
	ctx := context.Background()

	_ = c.Put(ctx, "lru", []byte("1"), time.Hour)
	_ = c.Put(ctx, "late", []byte("2"), 2*time.Minute)
	_ = c.Put(ctx, "soon", []byte("3"), time.Minute)

	// Both "late" and "soon" are now expired; "lru" is the least recently used.
	clock.Advance(3 * time.Minute)
	_ = c.Put(ctx, "new", []byte("4"), time.Hour)

	if _, ok, _ := c.Get(ctx, "lru"); !ok {
		t.Fatal("live LRU entry evicted while expired entries existed")
	}
	if _, ok, _ := c.Get(ctx, "new"); !ok {
		t.Fatal("new entry missing")
	}
	if c.Len() != 3 {
		t.Fatalf("len = %d, want 3", c.Len())
	}
	// "soon" had the earliest deadline so it went first; "late" survives
	// until read.
	c.mu.Lock()
	_, soon := c.lru.Peek("soon")
	_, late := c.lru.Peek("late")
	c.mu.Unlock()
	if soon || !late {
		t.Fatalf("soon present=%v late present=%v", soon, late)
	}
}

func TestEvictionFallsBackToLRU(t *testing.T) {
	c, _ := newTestCache(t, 2)
	ctx := context.Background()

	_ = c.Put(ctx, "a", []byte("1"), time.Hour)
	_ = c.Put(ctx, "b", []byte("2"), time.Hour)
	// Touch "a" so "b" becomes least recently used.
	if _, ok, _ := c.Get(ctx, "a"); !ok {
		t.Fatal("a missing")
	}
	_ = c.Put(ctx, "c", []byte("3"), time.Hour)

	if _, ok, _ := c.Get(ctx, "b"); ok {
		t.Fatal("least recently used entry should have been evicted")
	}
	for _, k := range []string{"a", "c"} {
		if _, ok, _ := c.Get(ctx, k); !ok {
			t.Fatalf("%s missing", k)
		}
	}
}

func TestConcurrentAccess(t *testing.T) {
	c, _ := newTestCache(t, 16)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i))
			for j := 0; j < 100; j++ {
				_ = c.Put(ctx, key, []byte{byte(j)}, time.Minute)
				_, _, _ = c.Get(ctx, key)
			}
		}(i)
	}
	wg.Wait()
	if c.Len() != 8 {
		t.Fatalf("len = %d, want 8", c.Len())
	}
}
