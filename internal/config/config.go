// Package config reads the server's process configuration from the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/MrEthical07/authsvc"
)

// Server is the environment of cmd/authsvc. Every variable is prefixed
// AUTHSVC_.
type Server struct {
	Addr        string `env:"ADDR" envDefault:":8080"`
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	Environment string `env:"ENV" envDefault:"development"`
	TrustProxy  bool   `env:"TRUST_PROXY" envDefault:"false"`

	JWTSecret   string        `env:"JWT_SECRET,required,notEmpty,unset"`
	JWTIssuer   string        `env:"JWT_ISSUER"`
	JWTAudience string        `env:"JWT_AUDIENCE"`
	AccessTTL   time.Duration `env:"ACCESS_TTL" envDefault:"1h"`
	RefreshTTL  time.Duration `env:"REFRESH_TTL" envDefault:"168h"`
	ResetTTL    time.Duration `env:"RESET_TTL" envDefault:"15m"`

	LockoutMaxAttempts int           `env:"LOCKOUT_MAX_ATTEMPTS" envDefault:"5"`
	LockoutDuration    time.Duration `env:"LOCKOUT_DURATION" envDefault:"5m"`
	RateCapacity       int           `env:"RATE_CAPACITY" envDefault:"5"`
	RateInterval       time.Duration `env:"RATE_INTERVAL" envDefault:"1m"`
	PurgeInterval      time.Duration `env:"PURGE_INTERVAL" envDefault:"1h"`

	PasswordHasher string `env:"PASSWORD_HASHER" envDefault:"argon2id"`

	DBDriver    string `env:"DB_DRIVER" envDefault:"memory"`
	DBDSN       string `env:"DB_DSN,unset"`
	RedisAddr   string `env:"REDIS_ADDR"`
	RedisPrefix string `env:"REDIS_PREFIX" envDefault:"authsvc"`

	LogLevel       int  `env:"LOG_LEVEL" envDefault:"0"`
	LogDevelopment bool `env:"LOG_DEVELOPMENT" envDefault:"false"`

	SentryDSN       string `env:"SENTRY_DSN"`
	RecaptchaSecret string `env:"RECAPTCHA_SECRET,unset"`
	MetricsEnabled  bool   `env:"METRICS_ENABLED" envDefault:"true"`
	AuditEnabled    bool   `env:"AUDIT_ENABLED" envDefault:"true"`
}

const prefix = "AUTHSVC_"

// Load reads an optional .env file from the working directory and then
// parses the environment. A missing .env is not an error.
func Load(files ...string) (Server, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Server{}, fmt.Errorf("load dotenv: %w", err)
	}
	return Parse()
}

// Parse reads the environment only.
func Parse() (Server, error) {
	var s Server
	if err := env.ParseWithOptions(&s, env.Options{Prefix: prefix}); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	switch s.DBDriver {
	case "memory", "pgx", "sqlite":
	default:
		return Server{}, fmt.Errorf("parse env: %sDB_DRIVER must be memory, pgx or sqlite, got %q", prefix, s.DBDriver)
	}
	if s.DBDriver != "memory" && s.DBDSN == "" {
		return Server{}, fmt.Errorf("parse env: %sDB_DSN is required for driver %s", prefix, s.DBDriver)
	}
	return s, nil
}

// Engine maps the environment onto the engine configuration. Validation of
// the result is left to authsvc.Builder.
func (s Server) Engine() authsvc.Config {
	cfg := authsvc.DefaultConfig()
	cfg.JWT.Secret = []byte(s.JWTSecret)
	cfg.JWT.Issuer = s.JWTIssuer
	cfg.JWT.Audience = s.JWTAudience
	cfg.JWT.AccessTTL = s.AccessTTL
	cfg.Refresh.TTL = s.RefreshTTL
	cfg.Reset.TTL = s.ResetTTL
	cfg.Lockout.MaxAttempts = s.LockoutMaxAttempts
	cfg.Lockout.Duration = s.LockoutDuration
	cfg.RateLimit.Capacity = s.RateCapacity
	cfg.RateLimit.Interval = s.RateInterval
	cfg.Purge.Interval = s.PurgeInterval
	cfg.Password.Algorithm = s.PasswordHasher
	cfg.Metrics.Enabled = s.MetricsEnabled
	cfg.Audit.Enabled = s.AuditEnabled
	return cfg
}
