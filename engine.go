package authsvc

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/MrEthical07/authsvc/counter"
	"github.com/MrEthical07/authsvc/internal/audit"
	"github.com/MrEthical07/authsvc/internal/limiters"
	"github.com/MrEthical07/authsvc/internal/rate"
	"github.com/MrEthical07/authsvc/jwt"
	"github.com/MrEthical07/authsvc/password"
	"github.com/MrEthical07/authsvc/store"
	"github.com/go-logr/logr"
)

// Engine implements signup, login, token rotation and password reset on
// top of the configured stores. Engine methods are safe for concurrent use.
type Engine struct {
	config Config

	users    store.UserStore
	refresh  store.RefreshTokenStore
	resets   store.ResetTokenStore
	counters counter.Store

	guard   *limiters.Guard
	limiter *rate.Limiter
	signer  *jwt.Manager
	hasher  password.Hasher

	// maxPasswordBytes is Password.MaxLength capped by the hasher's limit.
	maxPasswordBytes int

	clock    Clock
	random   io.Reader
	logger   logr.Logger
	notifier ResetNotifier
	audit    *audit.Dispatcher
	metrics  *Metrics

	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Close stops the purge loop and flushes pending audit events. It is safe
// to call more than once.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		close(e.stop)
		e.wg.Wait()
		if e.audit != nil {
			e.audit.Close()
		}
	})
}

// AuditDropped reports audit events lost to a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters and
// latency histograms. It is safe to call from any goroutine.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the engine configuration without key material.
func (e *Engine) Config() Config {
	cfg := e.config
	cfg.JWT.Secret = nil
	cfg.JWT.PrivateKey = nil
	return cfg
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observe(id MetricID, start time.Time) {
	if e == nil || !e.metrics.LatencyEnabled() {
		return
	}
	e.metrics.Observe(id, time.Since(start))
}

// internalError logs err and hides it behind ErrInternal.
func (e *Engine) internalError(op string, err error, kv ...any) error {
	e.metricInc(MetricInternalError)
	e.logger.Error(err, op+" failed", kv...)
	return ErrInternal
}

// AllowRequest takes one permit from the bucket of identity. An empty bucket
// yields a *RateLimitError; lockout counters are never touched.
func (e *Engine) AllowRequest(ctx context.Context, identity string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	decision, err := e.limiter.TryConsume(ctx, identity)
	if err != nil {
		return e.internalError("rate limit", err, "identity", identity)
	}
	if decision.Allowed {
		return nil
	}

	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", ErrRateLimited, func() map[string]string {
		return map[string]string{"identity": identity}
	})
	return &RateLimitError{RetryAfter: decision.RetryAfter}
}
