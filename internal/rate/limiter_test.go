package rate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/authsvc/counter"
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

func TestBucketCapacityThenRefill(t *testing.T) {
	ctx := context.Background()
	clock := &manualClock{now: time.Unix(1_700_000_000, 0)}
	l := New(counter.NewMemory(clock.Now), Config{Capacity: 5, Interval: time.Minute})

	for i := 0; i < 5; i++ {
		d, err := l.TryConsume(ctx, "10.0.0.1")
		if err != nil {
			t.Fatalf("TryConsume failed: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
		if d.Remaining != 4-i {
			t.Fatalf("expected remaining %d, got %d", 4-i, d.Remaining)
		}
	}

	clock.Advance(20 * time.Second)
	d, err := l.TryConsume(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("TryConsume failed: %v", err)
	}
	if d.Allowed {
		t.Fatal("sixth attempt should be rejected")
	}
	if d.RetryAfter != 40*time.Second {
		t.Fatalf("expected retry after 40s, got %v", d.RetryAfter)
	}

	clock.Advance(40 * time.Second)
	if left, _ := l.Remaining(ctx, "10.0.0.1"); left != 5 {
		t.Fatalf("expected full bucket after interval, got %d", left)
	}
	if err := l.Consume(ctx, "10.0.0.1"); err != nil {
		t.Fatalf("expected permit after refill, got %v", err)
	}
}

func TestBucketPerIdentity(t *testing.T) {
	ctx := context.Background()
	l := New(counter.NewMemory(nil), Config{Capacity: 1, Interval: time.Minute})

	if err := l.Consume(ctx, "a"); err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if err := l.Consume(ctx, "a"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.Consume(ctx, "b"); err != nil {
		t.Fatalf("other identity must have its own bucket, got %v", err)
	}
}

func TestBucketConcurrentAdmitsExactlyCapacity(t *testing.T) {
	ctx := context.Background()
	l := New(counter.NewMemory(nil), Config{Capacity: 5, Interval: time.Minute})

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.TryConsume(ctx, "burst")
			if err == nil && d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if allowed.Load() != 5 {
		t.Fatalf("expected 5 admitted, got %d", allowed.Load())
	}
}

func TestBucketRedisBackend(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	l := New(counter.NewRedis(client, "auth"), Config{Capacity: 2, Interval: time.Minute})
	for i := 0; i < 2; i++ {
		if err := l.Consume(ctx, "ip"); err != nil {
			t.Fatalf("Consume failed: %v", err)
		}
	}
	d, err := l.TryConsume(ctx, "ip")
	if err != nil {
		t.Fatalf("TryConsume failed: %v", err)
	}
	if d.Allowed || d.RetryAfter <= 0 {
		t.Fatalf("expected rejection with retry hint, got %+v", d)
	}

	mr.FastForward(time.Minute)
	if err := l.Consume(ctx, "ip"); err != nil {
		t.Fatalf("expected refill, got %v", err)
	}
}
