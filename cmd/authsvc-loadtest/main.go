package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrEthical07/authsvc"
	"github.com/MrEthical07/authsvc/counter"
	"github.com/MrEthical07/authsvc/password"
	"github.com/MrEthical07/authsvc/store/memory"
	"github.com/MrEthical07/authsvc/store/redisstore"
)

type userState struct {
	username string
	access   string
	refresh  string
	mu       sync.Mutex
}

func main() {
	var (
		users       = flag.Int("users", 2000, "number of accounts to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 50000, "operations per phase (validate + refresh)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "lt", "redis key prefix")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	client, cleanup, err := connect(*redisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	engine, err := newEngine(client, *prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	states := make([]userState, *users)
	fmt.Printf("seeding %d accounts...\n", *users)
	startSeed := time.Now()
	for i := range states {
		name := fmt.Sprintf("load%06d", i)
		_, err := engine.Signup(ctx, authsvc.SignupRequest{
			Username: name,
			Email:    name + "@example.com",
			Password: "password1",
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "signup failed: %v\n", err)
			os.Exit(1)
		}
		pair, err := engine.Login(ctx, name, "password1")
		if err != nil {
			fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
			os.Exit(1)
		}
		states[i].username = name
		states[i].access, states[i].refresh = pair.AccessToken, pair.RefreshToken
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validateStats := runPhase(states, *ops, *concurrency, 7919, func(s *userState) error {
		s.mu.Lock()
		token := s.access
		s.mu.Unlock()
		_, err := engine.ValidateAccess(token)
		return err
	})
	refreshStats := runPhase(states, *ops, *concurrency, 6151, func(s *userState) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		pair, err := engine.Refresh(ctx, s.refresh)
		if err != nil {
			return err
		}
		s.access, s.refresh = pair.AccessToken, pair.RefreshToken
		return nil
	})

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("refresh", refreshStats)
}

// newEngine keeps users in memory and puts refresh and reset tokens in
// Redis, the layout several instances share in production. Hashing runs
// at the minimum bcrypt cost so seeding stays fast.
func newEngine(client redis.UniversalClient, prefix string) (*authsvc.Engine, error) {
	hasher, err := password.NewBcrypt(bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	cfg := authsvc.DefaultConfig()
	cfg.JWT.Secret = []byte("loadtest-secret-0123456789abcdef")
	cfg.Purge.Interval = 0
	cfg.Audit.Enabled = false

	return authsvc.New().
		WithConfig(cfg).
		WithHasher(hasher).
		WithUserStore(memory.NewUsers()).
		WithRefreshStore(redisstore.NewRefreshTokens(client, prefix)).
		WithResetStore(redisstore.NewResetTokens(client, prefix)).
		WithCounterStore(counter.NewRedis(client, prefix+":ctr")).
		Build()
}

func runPhase(states []userState, ops, concurrency int, seed int64, op func(*userState) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				state := &states[r.Intn(len(states))]
				t0 := time.Now()
				err := op(state)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

// connect dials addr, falling back to REDIS_ADDR and then to an embedded
// miniredis.
func connect(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

type phaseStats struct {
	elapsed  time.Duration
	samples  []time.Duration
	failures int64
}

func computeStats(elapsed time.Duration, samples []time.Duration, failures int64) phaseStats {
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{elapsed: elapsed, samples: samples, failures: failures}
}

// quantile reads the q-th quantile (0..1) from the sorted samples.
func (s phaseStats) quantile(q float64) time.Duration {
	if len(s.samples) == 0 {
		return 0
	}
	return s.samples[int(q*float64(len(s.samples)-1))]
}

func (s phaseStats) rate() float64 {
	if s.elapsed <= 0 {
		return 0
	}
	return float64(len(s.samples)) / s.elapsed.Seconds()
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%-8s ops=%d failures=%d elapsed=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		len(s.samples),
		s.failures,
		s.elapsed.Round(time.Millisecond),
		s.rate(),
		s.quantile(0.50).Round(time.Microsecond),
		s.quantile(0.95).Round(time.Microsecond),
		s.quantile(0.99).Round(time.Microsecond),
	)
}
