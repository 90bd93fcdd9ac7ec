package cache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func newTestCache(size int, ttl time.Duration) (*LRUCache[int], *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](size, ttl)
	c.now = clock.now
	return c, clock
}

func TestLRUCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should be cached")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	for _, key := range []string{"a", "c"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("%s should still be cached", key)
		}
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
}

func TestLRUCacheExpiry(t *testing.T) {
	c, clock := newTestCache(10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	clock.t = clock.t.Add(30 * time.Second)
	c.Set("b", 3)
	clock.t = clock.t.Add(45 * time.Second)

	if _, ok := c.Get("a"); ok {
		t.Error("a should have expired")
	}
	v, ok := c.Get("b")
	if !ok || v != 3 {
		t.Errorf("Get(b) = %d, %v; want 3, true", v, ok)
	}

	clock.t = clock.t.Add(time.Hour)
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired() = %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0", c.Size())
	}
}

func TestLRUCacheDeletePrefix(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("owner-1|summary|%d", i), i)
	}
	c.Set("owner-10|summary|0", 9)
	c.Set("owner-2|summary|0", 7)

	if n := c.DeletePrefix("owner-1|"); n != 3 {
		t.Errorf("DeletePrefix() = %d, want 3", n)
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
	c.Delete("owner-2|summary|0")
	if _, ok := c.Get("owner-2|summary|0"); ok {
		t.Error("deleted key still cached")
	}
}

func TestJanitorStopsWithContext(t *testing.T) {
	c, _ := newTestCache(10, time.Nanosecond)
	j := NewJanitor(c)
	ctx, cancel := context.WithCancel(context.Background())
	go j.Run(ctx, time.Millisecond)
	cancel()

	select {
	case <-j.Done():
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
