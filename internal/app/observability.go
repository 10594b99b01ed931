package app

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/MrEthical07/authsvc/internal/config"
)

// NewLogger builds the process logger. LogLevel is a logr verbosity:
// 0 logs Info and above, 1 and higher enable V(n) debug output.
func NewLogger(cfg config.Server) (logr.Logger, func(), error) {
	zc := zap.NewProductionConfig()
	if cfg.LogDevelopment {
		zc = zap.NewDevelopmentConfig()
	}
	level := cfg.LogLevel
	if level < 0 {
		level = 0
	}
	zc.Level = zap.NewAtomicLevelAt(zapcore.Level(-level))

	zl, err := zc.Build()
	if err != nil {
		return logr.Discard(), func() {}, fmt.Errorf("build logger: %w", err)
	}
	zl = zl.With(zap.String("env", cfg.Environment))
	return zapr.NewLogger(zl), func() { _ = zl.Sync() }, nil
}

// InitSentry enables error reporting when a DSN is configured.
func InitSentry(dsn, environment string) error {
	if dsn == "" {
		return nil
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
	})
}

func FlushSentry() {
	sentry.Flush(2 * time.Second)
}
