package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-logr/logr"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authsvc/counter"
	"github.com/MrEthical07/authsvc/internal/config"
	"github.com/MrEthical07/authsvc/store"
	"github.com/MrEthical07/authsvc/store/memory"
	"github.com/MrEthical07/authsvc/store/redisstore"
	"github.com/MrEthical07/authsvc/store/sqlstore"
)

// connectTimeout bounds the total time spent retrying the database and
// Redis at startup.
const connectTimeout = 30 * time.Second

// Stores is the persistence selected by the server configuration.
type Stores struct {
	Users    store.UserStore
	Refresh  store.RefreshTokenStore
	Resets   store.ResetTokenStore
	Counters counter.Store

	closers []func() error
}

// Close releases every connection opened by OpenStores.
func (s *Stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OpenStores wires the user and token stores for cfg. Users and tokens
// live in the configured database; when a Redis address is set, tokens
// and counters move to Redis so that several instances share them.
// SQL schemas are migrated before use.
func OpenStores(ctx context.Context, cfg config.Server, logger logr.Logger) (*Stores, error) {
	s := &Stores{}

	switch cfg.DBDriver {
	case "memory":
		s.Users = memory.NewUsers()
		s.Refresh = memory.NewRefreshTokens()
		s.Resets = memory.NewResetTokens()
		logger.Info("using in-memory stores")
	default:
		db, err := openDB(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db.Close)
		if err := db.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		s.Users = db.Users()
		s.Refresh = db.RefreshTokens()
		s.Resets = db.ResetTokens()
		logger.Info("using sql stores", "driver", cfg.DBDriver)
	}

	if cfg.RedisAddr == "" {
		s.Counters = counter.NewMemory(time.Now)
		return s, nil
	}

	client, err := openRedis(ctx, cfg, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.closers = append(s.closers, client.Close)
	s.Refresh = redisstore.NewRefreshTokens(client, cfg.RedisPrefix)
	s.Resets = redisstore.NewResetTokens(client, cfg.RedisPrefix)
	s.Counters = counter.NewRedis(client, cfg.RedisPrefix+":ctr")
	logger.Info("using redis for tokens and counters", "addr", cfg.RedisAddr)
	return s, nil
}

// Migrate applies pending schema migrations to the configured database.
func Migrate(ctx context.Context, cfg config.Server, logger logr.Logger) error {
	if cfg.DBDriver == "memory" {
		return errors.New("migrate: the memory driver has no schema")
	}
	db, err := openDB(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("migrations applied", "driver", cfg.DBDriver)
	return nil
}

func openDB(ctx context.Context, cfg config.Server, logger logr.Logger) (*sqlstore.DB, error) {
	db, err := backoff.Retry(ctx, func() (*sqlstore.DB, error) {
		return sqlstore.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	}, retryOptions(logger, "database")...)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return db, nil
}

func openRedis(ctx context.Context, cfg config.Server, logger logr.Logger) (redis.UniversalClient, error) {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{cfg.RedisAddr},
	})
	_, err := backoff.Retry(ctx, func() (string, error) {
		return client.Ping(ctx).Result()
	}, retryOptions(logger, "redis")...)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}

func retryOptions(logger logr.Logger, target string) []backoff.RetryOption {
	return []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(connectTimeout),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Info("connection failed, retrying", "target", target, "error", err.Error(), "retry_in", next.String())
		}),
	}
}
