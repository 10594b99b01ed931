package counter

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const defaultShards = 32

type entry struct {
	value     int64
	expiresAt time.Time
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// Memory is a sharded in-process Store. Keys hash onto independent shards so
// unrelated keys never contend on the same lock. Expired entries are dropped
// lazily on access and in bulk by Sweep.
type Memory struct {
	now    func() time.Time
	shards []shard
}

// NewMemory returns an empty Memory store. A nil now uses time.Now.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	m := &Memory{
		now:    now,
		shards: make([]shard, defaultShards),
	}
	for i := range m.shards {
		m.shards[i].entries = make(map[string]*entry)
	}
	return m
}

func (m *Memory) shardFor(key string) *shard {
	return &m.shards[xxhash.Sum64String(key)%uint64(len(m.shards))]
}

// live returns the entry for key, removing it first if it has expired.
// Callers hold the shard lock.
func (s *shard) live(key string, now time.Time) *entry {
	e, ok := s.entries[key]
	if !ok {
		return nil
	}
	if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
		delete(s.entries, key)
		return nil
	}
	return e
}

func (m *Memory) Get(_ context.Context, key string) (int64, error) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if e := s.live(key, m.now()); e != nil {
		return e.value, nil
	}
	return 0, nil
}

func (m *Memory) Increment(_ context.Context, key string) (int64, error) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key, m.now())
	if e == nil {
		e = &entry{}
		s.entries[key] = e
	}
	e.value++
	return e.value, nil
}

func (m *Memory) SetExpiry(_ context.Context, key string, ttl time.Duration) error {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := m.now()
	e := s.live(key, now)
	if e == nil {
		return nil
	}
	if ttl <= 0 {
		delete(s.entries, key)
		return nil
	}
	e.expiresAt = now.Add(ttl)
	return nil
}

func (m *Memory) TTL(_ context.Context, key string) (time.Duration, error) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := m.now()
	e := s.live(key, now)
	if e == nil || e.expiresAt.IsZero() {
		return 0, nil
	}
	return e.expiresAt.Sub(now), nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	s := m.shardFor(key)
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Sweep removes every expired entry, one shard at a time.
func (m *Memory) Sweep(ctx context.Context) (int, error) {
	removed := 0
	for i := range m.shards {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		s := &m.shards[i]
		now := m.now()

		s.mu.Lock()
		for key, e := range s.entries {
			if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
				delete(s.entries, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed, nil
}

// Len returns the number of stored keys, expired or not.
func (m *Memory) Len() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}

var (
	_ Store   = (*Memory)(nil)
	_ Sweeper = (*Memory)(nil)
)
