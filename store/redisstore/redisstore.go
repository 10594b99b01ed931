// Package redisstore keeps refresh and reset tokens in Redis. Each token is a
// hash that expires natively at its ExpiresAt, so DeleteExpiredBefore has
// nothing left to remove and always reports zero.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authsvc/store"
)

const maxRetries = 4

const (
	fieldUser    = "u"
	fieldExpires = "e"
	fieldCreated = "c"
	fieldFlag    = "f"
)

// RefreshTokens is a store.RefreshTokenStore on Redis. Besides the token
// hash, each user has an index key naming their current token.
type RefreshTokens struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRefreshTokens returns a refresh token store namespaced under prefix.
func NewRefreshTokens(client redis.UniversalClient, prefix string) *RefreshTokens {
	if prefix == "" {
		prefix = "auth"
	}
	return &RefreshTokens{redis: client, prefix: prefix}
}

func (s *RefreshTokens) tokenKey(hash string) string { return s.prefix + ":rt:" + hash }
func (s *RefreshTokens) userKey(name string) string  { return s.prefix + ":rtu:" + name }

// Save drops the user's previous token and stores token in one MULTI/EXEC,
// retried while the index key changes underneath it.
func (s *RefreshTokens) Save(ctx context.Context, token store.RefreshToken) error {
	userKey := s.userKey(token.Username)
	newKey := s.tokenKey(token.TokenHash)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			prev, err := tx.Get(ctx, userKey).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if prev != "" {
					pipe.Del(ctx, s.tokenKey(prev))
				}
				pipe.HSet(ctx, newKey, encode(token.Username, token.ExpiresAt, token.CreatedAt, token.Revoked))
				pipe.PExpireAt(ctx, newKey, token.ExpiresAt)
				pipe.Set(ctx, userKey, token.TokenHash, 0)
				pipe.PExpireAt(ctx, userKey, token.ExpiresAt)
				return nil
			})
			return err
		}, userKey)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
		}
		return nil
	}
	return fmt.Errorf("%w: save refresh token: too much contention", store.ErrUnavailable)
}

func (s *RefreshTokens) FindByHash(ctx context.Context, tokenHash string) (store.RefreshToken, error) {
	fields, err := s.redis.HGetAll(ctx, s.tokenKey(tokenHash)).Result()
	if err != nil {
		return store.RefreshToken{}, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return decodeRefresh(tokenHash, fields)
}

func (s *RefreshTokens) Revoke(ctx context.Context, tokenHash string, now time.Time) (store.RefreshToken, error) {
	var out store.RefreshToken
	err := setFlag(ctx, s.redis, s.tokenKey(tokenHash), func(fields map[string]string) error {
		tok, err := decodeRefresh(tokenHash, fields)
		if err != nil {
			return err
		}
		if !tok.Valid(now) {
			return store.ErrInactive
		}
		tok.Revoked = true
		out = tok
		return nil
	})
	if err != nil {
		return store.RefreshToken{}, err
	}
	return out, nil
}

func (s *RefreshTokens) DeleteByUsername(ctx context.Context, username string) (int64, error) {
	userKey := s.userKey(username)
	var n int64

	for i := 0; i < maxRetries; i++ {
		n = 0
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			hash, err := tx.Get(ctx, userKey).Result()
			if errors.Is(err, redis.Nil) {
				return nil
			}
			if err != nil {
				return err
			}

			var del *redis.IntCmd
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				del = pipe.Del(ctx, s.tokenKey(hash))
				pipe.Del(ctx, userKey)
				return nil
			})
			if err != nil {
				return err
			}
			n = del.Val()
			return nil
		}, userKey)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
		}
		return n, nil
	}
	return 0, fmt.Errorf("%w: delete refresh tokens: too much contention", store.ErrUnavailable)
}

func (s *RefreshTokens) DeleteExpiredBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// ResetTokens is a store.ResetTokenStore on Redis.
type ResetTokens struct {
	redis  redis.UniversalClient
	prefix string
}

// NewResetTokens returns a reset token store namespaced under prefix.
func NewResetTokens(client redis.UniversalClient, prefix string) *ResetTokens {
	if prefix == "" {
		prefix = "auth"
	}
	return &ResetTokens{redis: client, prefix: prefix}
}

func (s *ResetTokens) tokenKey(hash string) string { return s.prefix + ":rst:" + hash }

func (s *ResetTokens) Save(ctx context.Context, token store.ResetToken) error {
	key := s.tokenKey(token.TokenHash)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, encode(token.Username, token.ExpiresAt, token.CreatedAt, token.Used))
		pipe.PExpireAt(ctx, key, token.ExpiresAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}

func (s *ResetTokens) FindByHash(ctx context.Context, tokenHash string) (store.ResetToken, error) {
	fields, err := s.redis.HGetAll(ctx, s.tokenKey(tokenHash)).Result()
	if err != nil {
		return store.ResetToken{}, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return decodeReset(tokenHash, fields)
}

func (s *ResetTokens) MarkUsed(ctx context.Context, tokenHash string, now time.Time) (store.ResetToken, error) {
	var out store.ResetToken
	err := setFlag(ctx, s.redis, s.tokenKey(tokenHash), func(fields map[string]string) error {
		tok, err := decodeReset(tokenHash, fields)
		if err != nil {
			return err
		}
		if !tok.Redeemable(now) {
			return store.ErrInactive
		}
		tok.Used = true
		out = tok
		return nil
	})
	if err != nil {
		return store.ResetToken{}, err
	}
	return out, nil
}

func (s *ResetTokens) DeleteExpiredBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// setFlag sets the flag field of key to 1 when check accepts the current
// fields. WATCH makes the read and the write one compare-and-set.
func setFlag(ctx context.Context, client redis.UniversalClient, key string, check func(map[string]string) error) error {
	for i := 0; i < maxRetries; i++ {
		err := client.Watch(ctx, func(tx *redis.Tx) error {
			fields, err := tx.HGetAll(ctx, key).Result()
			if err != nil {
				return err
			}
			if err := check(fields); err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, key, fieldFlag, "1")
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInactive) {
				return err
			}
			return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
		}
		return nil
	}
	// Every retry lost the race, so another caller flipped the flag.
	return store.ErrInactive
}

func encode(user string, expires, created time.Time, flag bool) map[string]any {
	f := "0"
	if flag {
		f = "1"
	}
	return map[string]any{
		fieldUser:    user,
		fieldExpires: strconv.FormatInt(expires.UnixMilli(), 10),
		fieldCreated: strconv.FormatInt(created.UnixMilli(), 10),
		fieldFlag:    f,
	}
}

type decoded struct {
	user             string
	expires, created time.Time
	flag             bool
}

func decode(fields map[string]string) (decoded, error) {
	if len(fields) == 0 {
		return decoded{}, store.ErrNotFound
	}
	exp, err := strconv.ParseInt(fields[fieldExpires], 10, 64)
	if err != nil {
		return decoded{}, fmt.Errorf("%w: corrupt token record: %v", store.ErrUnavailable, err)
	}
	created, err := strconv.ParseInt(fields[fieldCreated], 10, 64)
	if err != nil {
		return decoded{}, fmt.Errorf("%w: corrupt token record: %v", store.ErrUnavailable, err)
	}
	return decoded{
		user:    fields[fieldUser],
		expires: time.UnixMilli(exp).UTC(),
		created: time.UnixMilli(created).UTC(),
		flag:    fields[fieldFlag] == "1",
	}, nil
}

func decodeRefresh(hash string, fields map[string]string) (store.RefreshToken, error) {
	d, err := decode(fields)
	if err != nil {
		return store.RefreshToken{}, err
	}
	return store.RefreshToken{TokenHash: hash, Username: d.user, ExpiresAt: d.expires, Revoked: d.flag, CreatedAt: d.created}, nil
}

func decodeReset(hash string, fields map[string]string) (store.ResetToken, error) {
	d, err := decode(fields)
	if err != nil {
		return store.ResetToken{}, err
	}
	return store.ResetToken{TokenHash: hash, Username: d.user, ExpiresAt: d.expires, Used: d.flag, CreatedAt: d.created}, nil
}

var (
	_ store.RefreshTokenStore = (*RefreshTokens)(nil)
	_ store.ResetTokenStore   = (*ResetTokens)(nil)
)
