package authsvc

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricLoginSuccess)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 {
		t.Fatalf("disabled snapshot should be empty, got %v", snap.Counters)
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 16
	const perG = 2000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricRefreshSuccess)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricRefreshSuccess); got != goroutines*perG {
		t.Fatalf("expected %d, got %d", goroutines*perG, got)
	}
}

func TestMetricsHistogramBuckets(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	for _, d := range []time.Duration{
		5 * time.Millisecond,
		10 * time.Millisecond,
		25 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
		500 * time.Millisecond,
		700 * time.Millisecond,
	} {
		m.Observe(MetricLoginLatency, d)
	}
	// Counters do not take observations.
	m.Observe(MetricLoginSuccess, time.Millisecond)

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricLoginLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("expected %d buckets, got %d", histBucketCount, len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d: expected 1, got %d", i, v)
		}
	}
	if _, ok := snap.Counters[MetricLoginLatency]; ok {
		t.Fatal("histogram IDs must not appear as counters")
	}
}

func TestEngineMetricsFlow(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := context.Background()
	seedUser(t, env, "alice5")

	_, _ = env.engine.Signup(ctx, SignupRequest{Username: "alice5", Email: "x@example.com", Password: "password1"})
	_, _ = env.engine.Signup(ctx, SignupRequest{Username: "al", Email: "x@example.com", Password: "password1"})
	_, _ = env.engine.Login(ctx, "alice5", "wrongpw")
	pair, _ := env.engine.Login(ctx, "alice5", "password1")
	_, _ = env.engine.Refresh(ctx, pair.RefreshToken)
	_, _ = env.engine.Refresh(ctx, pair.RefreshToken)

	snap := env.engine.MetricsSnapshot()
	want := map[MetricID]uint64{
		MetricSignupSuccess:   1,
		MetricSignupDuplicate: 1,
		MetricSignupInvalid:   1,
		MetricLoginFailure:    1,
		MetricLoginSuccess:    1,
		MetricRefreshSuccess:  1,
		MetricRefreshFailure:  1,
	}
	for id, v := range want {
		if snap.Counters[id] != v {
			t.Fatalf("metric %d: expected %d, got %d", id, v, snap.Counters[id])
		}
	}
}
