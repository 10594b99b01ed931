package authsvc

import (
	"strings"
	"time"

	"github.com/MrEthical07/authsvc/jwt"
	"github.com/MrEthical07/authsvc/password"
)

// Config is the complete engine configuration. Start from DefaultConfig and
// override what you need; Build calls Validate.
type Config struct {
	JWT       JWTConfig
	Refresh   RefreshConfig
	Reset     ResetConfig
	Lockout   LockoutConfig
	RateLimit RateLimitConfig
	Purge     PurgeConfig
	Password  PasswordConfig
	Signup    SignupConfig
	Metrics   MetricsConfig
	Audit     AuditConfig
}

// JWTConfig controls access-token issuance and validation.
type JWTConfig struct {
	AccessTTL time.Duration
	// SigningMethod is "hs256" (default) or "ed25519".
	SigningMethod string
	// Secret is the HS256 key. It must be at least 32 bytes.
	Secret []byte
	// PrivateKey and PublicKey are Ed25519 keys, raw or PEM.
	PrivateKey []byte
	PublicKey  []byte
	KeyID      string
	// Issuer and Audience are written to tokens and enforced on validation
	// when non-blank.
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// RefreshConfig controls refresh-token lifetime.
type RefreshConfig struct {
	TTL time.Duration
}

// ResetConfig controls password-reset tokens.
type ResetConfig struct {
	TTL time.Duration
}

// LockoutConfig controls the failed-login guard.
type LockoutConfig struct {
	MaxAttempts int
	Duration    time.Duration
	// AttemptWindow forgets a partial failure streak after this long. Zero
	// keeps it until the next success or lock.
	AttemptWindow time.Duration
}

// RateLimitConfig sizes the per-client bucket.
type RateLimitConfig struct {
	Capacity int
	Interval time.Duration
}

// PurgeConfig schedules the expired-token sweep. A zero Interval disables
// the background loop; Purge can still be called directly.
type PurgeConfig struct {
	Interval time.Duration
}

// PasswordConfig selects the hasher and the password policy.
type PasswordConfig struct {
	Algorithm   string
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	BcryptCost  int
	MinLength   int
	// MaxLength caps input in bytes. A hasher with a lower hard limit
	// (bcrypt stops at 72) lowers it further.
	MaxLength int
}

// SignupConfig holds the username policy.
type SignupConfig struct {
	MinUsernameLength int
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// DefaultConfig returns the documented defaults. The signing secret is left
// empty and must be supplied.
func DefaultConfig() Config {
	argon := password.DefaultConfig()
	return Config{
		JWT: JWTConfig{
			AccessTTL:     time.Hour,
			SigningMethod: string(jwt.MethodHS256),
		},
		Refresh: RefreshConfig{
			TTL: 7 * 24 * time.Hour,
		},
		Reset: ResetConfig{
			TTL: 15 * time.Minute,
		},
		Lockout: LockoutConfig{
			MaxAttempts: 5,
			Duration:    5 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Capacity: 5,
			Interval: time.Minute,
		},
		Purge: PurgeConfig{
			Interval: time.Hour,
		},
		Password: PasswordConfig{
			Algorithm:   password.AlgorithmArgon2id,
			Memory:      argon.Memory,
			Time:        argon.Time,
			Parallelism: argon.Parallelism,
			SaltLength:  argon.SaltLength,
			KeyLength:   argon.KeyLength,
			MinLength:   8,
			MaxLength:   1024,
		},
		Signup: SignupConfig{
			MinUsernameLength: 5,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate checks cfg. Every error wraps ErrConfiguration.
func (c *Config) Validate() error {
	if c.JWT.AccessTTL <= 0 {
		return configError("JWT AccessTTL must be > 0")
	}
	switch strings.ToLower(c.JWT.SigningMethod) {
	case "", string(jwt.MethodHS256):
		if len(c.JWT.Secret) < jwt.MinSecretBytes {
			return configError("JWT secret must be at least 32 bytes")
		}
	case string(jwt.MethodEd25519):
		if len(c.JWT.PrivateKey) == 0 {
			return configError("ed25519 requires PrivateKey")
		}
	default:
		return configError("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return configError("JWT Leeway must be within [0, 2m]")
	}

	if c.Refresh.TTL <= 0 {
		return configError("Refresh TTL must be > 0")
	}
	if c.Refresh.TTL <= c.JWT.AccessTTL {
		return configError("Refresh TTL must exceed JWT AccessTTL")
	}
	if c.Reset.TTL <= 0 {
		return configError("Reset TTL must be > 0")
	}

	if c.Lockout.MaxAttempts <= 0 {
		return configError("Lockout MaxAttempts must be > 0")
	}
	if c.Lockout.Duration <= 0 {
		return configError("Lockout Duration must be > 0")
	}
	if c.Lockout.AttemptWindow < 0 {
		return configError("Lockout AttemptWindow must be >= 0")
	}

	if c.RateLimit.Capacity <= 0 {
		return configError("RateLimit Capacity must be > 0")
	}
	if c.RateLimit.Interval <= 0 {
		return configError("RateLimit Interval must be > 0")
	}
	if c.Purge.Interval < 0 {
		return configError("Purge Interval must be >= 0")
	}

	switch strings.ToLower(c.Password.Algorithm) {
	case "", password.AlgorithmArgon2id, password.AlgorithmBcrypt:
	default:
		return configError("unsupported password algorithm")
	}
	if c.Password.MinLength < 8 {
		return configError("Password MinLength must be >= 8")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return configError("Password MaxLength must be >= MinLength")
	}
	if c.Signup.MinUsernameLength < 1 {
		return configError("Signup MinUsernameLength must be >= 1")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return configError("Audit BufferSize must be > 0 when enabled")
	}
	return nil
}
