package authsvc

import (
	"errors"
	"io"
	"strings"

	"github.com/MrEthical07/authsvc/counter"
	"github.com/MrEthical07/authsvc/internal/audit"
	"github.com/MrEthical07/authsvc/internal/limiters"
	"github.com/MrEthical07/authsvc/internal/rate"
	"github.com/MrEthical07/authsvc/jwt"
	"github.com/MrEthical07/authsvc/password"
	"github.com/MrEthical07/authsvc/store"
	"github.com/go-logr/logr"
)

// Builder assembles an Engine. A Builder can be used for one Build only.
type Builder struct {
	config Config

	users    store.UserStore
	refresh  store.RefreshTokenStore
	resets   store.ResetTokenStore
	counters counter.Store

	clock    Clock
	random   io.Reader
	logger   *logr.Logger
	hasher   password.Hasher
	notifier ResetNotifier

	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

func (b *Builder) WithUserStore(s store.UserStore) *Builder {
	b.users = s
	return b
}

func (b *Builder) WithRefreshStore(s store.RefreshTokenStore) *Builder {
	b.refresh = s
	return b
}

func (b *Builder) WithResetStore(s store.ResetTokenStore) *Builder {
	b.resets = s
	return b
}

// WithCounterStore sets the backend shared by the lockout guard and the rate
// limiter. Without one the engine keeps counters in process memory.
func (b *Builder) WithCounterStore(s counter.Store) *Builder {
	b.counters = s
	return b
}

func (b *Builder) WithClock(c Clock) *Builder {
	b.clock = c
	return b
}

// WithRandom overrides the entropy source for refresh and reset tokens.
func (b *Builder) WithRandom(r io.Reader) *Builder {
	b.random = r
	return b
}

func (b *Builder) WithLogger(l logr.Logger) *Builder {
	b.logger = &l
	return b
}

// WithHasher replaces the hasher selected by Config.Password.
func (b *Builder) WithHasher(h password.Hasher) *Builder {
	b.hasher = h
	return b
}

func (b *Builder) WithResetNotifier(n ResetNotifier) *Builder {
	b.notifier = n
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a running Engine. An
// undersized signing secret is reported as ErrConfiguration.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.users == nil {
		return nil, configError("user store required")
	}
	if b.refresh == nil {
		return nil, configError("refresh token store required")
	}
	if b.resets == nil {
		return nil, configError("reset token store required")
	}

	clock := b.clock
	if clock == nil {
		clock = SystemClock()
	}
	logger := logr.Discard()
	if b.logger != nil {
		logger = *b.logger
	}

	counters := b.counters
	if counters == nil {
		counters = counter.NewMemory(clock.Now)
	}

	hasher := b.hasher
	if hasher == nil {
		h, err := newHasher(cfg.Password)
		if err != nil {
			return nil, configError(err.Error())
		}
		hasher = h
	}

	signer, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(strings.ToLower(cfg.JWT.SigningMethod)),
		Secret:        cloneBytes(cfg.JWT.Secret),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		Now:           clock.Now,
	})
	if err != nil {
		return nil, configError(err.Error())
	}

	engine := &Engine{
		config:   cfg,
		users:    b.users,
		refresh:  b.refresh,
		resets:   b.resets,
		counters: counters,
		guard: limiters.NewGuard(counters, limiters.LockoutConfig{
			MaxAttempts:   cfg.Lockout.MaxAttempts,
			Duration:      cfg.Lockout.Duration,
			AttemptWindow: cfg.Lockout.AttemptWindow,
		}),
		limiter: rate.New(counters, rate.Config{
			Capacity: cfg.RateLimit.Capacity,
			Interval: cfg.RateLimit.Interval,
		}),
		signer:   signer,
		hasher:   hasher,
		clock:    clock,
		random:   b.random,
		logger:   logger,
		notifier: b.notifier,
		metrics:  NewMetrics(cfg.Metrics),
		stop:     make(chan struct{}),
	}
	engine.maxPasswordBytes = passwordLimit(cfg.Password.MaxLength, hasher)
	if cfg.Audit.Enabled {
		engine.audit = audit.NewDispatcher(audit.Config{
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink)
	}
	if cfg.Purge.Interval > 0 {
		engine.startPurgeLoop(cfg.Purge.Interval)
	}

	b.built = true
	return engine, nil
}

func newHasher(cfg PasswordConfig) (password.Hasher, error) {
	switch strings.ToLower(cfg.Algorithm) {
	case password.AlgorithmBcrypt:
		return password.NewBcrypt(cfg.BcryptCost)
	default:
		return password.NewArgon2(password.Config{
			Memory:      cfg.Memory,
			Time:        cfg.Time,
			Parallelism: cfg.Parallelism,
			SaltLength:  cfg.SaltLength,
			KeyLength:   cfg.KeyLength,
		})
	}
}

func passwordLimit(configured int, h password.Hasher) int {
	if b, ok := h.(password.Bounded); ok && b.MaxBytes() < configured {
		return b.MaxBytes()
	}
	return configured
}
