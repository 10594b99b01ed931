package counter

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestMemoryIncrementAndExpiry(t *testing.T) {
	ctx := context.Background()
	clock := &manualClock{now: time.Unix(1_700_000_000, 0)}
	m := NewMemory(clock.Now)

	for i := int64(1); i <= 3; i++ {
		n, err := m.Increment(ctx, "k")
		if err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
		if n != i {
			t.Fatalf("expected %d, got %d", i, n)
		}
	}

	if err := m.SetExpiry(ctx, "k", time.Minute); err != nil {
		t.Fatalf("SetExpiry failed: %v", err)
	}
	if ttl, _ := m.TTL(ctx, "k"); ttl != time.Minute {
		t.Fatalf("expected ttl 1m, got %v", ttl)
	}

	clock.Advance(59 * time.Second)
	if n, _ := m.Get(ctx, "k"); n != 3 {
		t.Fatalf("expected 3 before expiry, got %d", n)
	}

	clock.Advance(time.Second)
	if n, _ := m.Get(ctx, "k"); n != 0 {
		t.Fatalf("expected key to expire, got %d", n)
	}
	if n, _ := m.Increment(ctx, "k"); n != 1 {
		t.Fatalf("expected fresh counter after expiry, got %d", n)
	}
	if ttl, _ := m.TTL(ctx, "k"); ttl != 0 {
		t.Fatalf("fresh counter should have no expiry, got %v", ttl)
	}
}

func TestMemorySetExpiryMissingKeyIsNoop(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)

	if err := m.SetExpiry(ctx, "missing", time.Minute); err != nil {
		t.Fatalf("SetExpiry failed: %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("SetExpiry must not create keys, have %d", m.Len())
	}
}

func TestMemorySweep(t *testing.T) {
	ctx := context.Background()
	clock := &manualClock{now: time.Unix(1_700_000_000, 0)}
	m := NewMemory(clock.Now)

	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("k%d", i)
		_, _ = m.Increment(ctx, key)
		if i%2 == 0 {
			_ = m.SetExpiry(ctx, key, time.Second)
		}
	}

	clock.Advance(2 * time.Second)
	removed, err := m.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if removed != 50 {
		t.Fatalf("expected 50 removed, got %d", removed)
	}
	if m.Len() != 50 {
		t.Fatalf("expected 50 remaining, got %d", m.Len())
	}
}

func TestMemoryConcurrentIncrement(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = m.Increment(ctx, "shared")
			}
		}()
	}
	wg.Wait()

	if n, _ := m.Get(ctx, "shared"); n != 6400 {
		t.Fatalf("expected 6400, got %d", n)
	}
}

func TestRedisCounter(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	r := NewRedis(client, "test")

	if n, _ := r.Get(ctx, "k"); n != 0 {
		t.Fatalf("missing key should read 0, got %d", n)
	}
	if n, _ := r.Increment(ctx, "k"); n != 1 {
		t.Fatalf("expected 1, got %d", n)
	}
	if ttl, _ := r.TTL(ctx, "k"); ttl != 0 {
		t.Fatalf("expected no ttl, got %v", ttl)
	}
	if err := r.SetExpiry(ctx, "k", time.Minute); err != nil {
		t.Fatalf("SetExpiry failed: %v", err)
	}
	if !mr.Exists("test:k") {
		t.Fatal("expected prefixed key in redis")
	}
	if ttl, _ := r.TTL(ctx, "k"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	mr.FastForward(time.Minute)
	if n, _ := r.Get(ctx, "k"); n != 0 {
		t.Fatalf("expected expiry, got %d", n)
	}

	_, _ = r.Increment(ctx, "d")
	if err := r.Delete(ctx, "d"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if n, _ := r.Get(ctx, "d"); n != 0 {
		t.Fatalf("expected delete, got %d", n)
	}
}

func TestRedisCounterUnavailable(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	r := NewRedis(client, "")
	mr.Close()

	if _, err := r.Increment(ctx, "k"); err == nil {
		t.Fatal("expected error with redis down")
	}
}
