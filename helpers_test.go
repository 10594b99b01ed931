package authsvc

import (
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authsvc/password"
	"github.com/MrEthical07/authsvc/store/memory"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
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

func newTestHasher(t *testing.T) *password.Argon2 {
	t.Helper()

	h, err := password.NewArgon2(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	return h
}

type testEnv struct {
	engine  *Engine
	clock   *fakeClock
	users   *memory.Users
	refresh *memory.RefreshTokens
	resets  *memory.ResetTokens
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = testSecret
	cfg.Purge.Interval = 0
	cfg.Audit.Enabled = false
	return cfg
}

func newTestEngine(t *testing.T, mutate func(*Config), opts ...func(*Builder)) *testEnv {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	env := &testEnv{
		clock:   newFakeClock(),
		users:   memory.NewUsers(),
		refresh: memory.NewRefreshTokens(),
		resets:  memory.NewResetTokens(),
	}

	b := New().
		WithConfig(cfg).
		WithUserStore(env.users).
		WithRefreshStore(env.refresh).
		WithResetStore(env.resets).
		WithClock(env.clock).
		WithHasher(newTestHasher(t))
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}
