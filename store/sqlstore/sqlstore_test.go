package sqlstore

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authsvc/store"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "auth.db") + "?_pragma=busy_timeout(5000)"
	db, err := Open(ctx, DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(ctx))
	return db
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "")
	require.Error(t, err)
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Migrate(context.Background()))

	var n int
	require.NoError(t, db.sql.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
	require.Equal(t, 1, n)
}

func TestRebind(t *testing.T) {
	pg := &DB{driver: DriverPostgres}
	require.Equal(t, "a = $1 AND b = $2", pg.rebind("a = ? AND b = ?"))

	lite := &DB{driver: DriverSQLite}
	require.Equal(t, "a = ? AND b = ?", lite.rebind("a = ? AND b = ?"))
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	users := openTestDB(t).Users()
	now := time.UnixMilli(time.Now().UnixMilli()).UTC()

	alice := store.User{
		ID: "1", Username: "alice5", Email: "a@example.com",
		PasswordHash: "hash", Role: store.RoleUser, CreatedAt: now, UpdatedAt: now,
	}
	_, err := users.Save(ctx, alice)
	require.NoError(t, err)

	_, err = users.Save(ctx, store.User{ID: "2", Username: "alice5", Email: "b@example.com", Role: store.RoleUser})
	require.ErrorIs(t, err, store.ErrConflict)
	_, err = users.Save(ctx, store.User{ID: "3", Username: "bobby5", Email: "a@example.com", Role: store.RoleUser})
	require.ErrorIs(t, err, store.ErrConflict)

	got, err := users.FindByUsername(ctx, "alice5")
	require.NoError(t, err)
	require.Equal(t, alice, got)

	ok, err := users.ExistsByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = users.ExistsByUsername(ctx, "nobody")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = users.FindByEmail(ctx, "missing@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)

	later := now.Add(time.Minute)
	require.NoError(t, users.UpdatePassword(ctx, "alice5", "hash2", later))
	require.NoError(t, users.UpdateEmail(ctx, "alice5", "a2@example.com", later))
	require.ErrorIs(t, users.UpdatePassword(ctx, "ghost5", "x", later), store.ErrNotFound)

	got, err = users.FindByEmail(ctx, "a2@example.com")
	require.NoError(t, err)
	require.Equal(t, "hash2", got.PasswordHash)
	require.Equal(t, later, got.UpdatedAt)

	_, err = users.Save(ctx, store.User{ID: "4", Username: "carol5", Email: "c@example.com", Role: store.RoleAdmin})
	require.NoError(t, err)
	require.ErrorIs(t, users.UpdateEmail(ctx, "carol5", "a2@example.com", later), store.ErrConflict)
}

func TestRefreshTokensSaveReplacesUserTokens(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t).RefreshTokens()
	exp := time.Now().Add(time.Hour)

	require.NoError(t, s.Save(ctx, store.RefreshToken{TokenHash: "h1", Username: "alice5", ExpiresAt: exp}))
	require.NoError(t, s.Save(ctx, store.RefreshToken{TokenHash: "h2", Username: "alice5", ExpiresAt: exp}))
	require.NoError(t, s.Save(ctx, store.RefreshToken{TokenHash: "h3", Username: "bobby5", ExpiresAt: exp}))

	_, err := s.FindByHash(ctx, "h1")
	require.ErrorIs(t, err, store.ErrNotFound)
	tok, err := s.FindByHash(ctx, "h2")
	require.NoError(t, err)
	require.Equal(t, "alice5", tok.Username)

	n, err := s.DeleteByUsername(ctx, "alice5")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestRefreshTokensConcurrentSaveKeepsOneRow(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	s := db.RefreshTokens()
	exp := time.Now().Add(time.Hour)

	hashes := []string{"c0", "c1", "c2", "c3", "c4", "c5", "c6", "c7"}
	errs := make(chan error, len(hashes))
	var wg sync.WaitGroup
	for _, h := range hashes {
		wg.Add(1)
		go func(h string) {
			defer wg.Done()
			errs <- s.Save(ctx, store.RefreshToken{TokenHash: h, Username: "alice5", ExpiresAt: exp})
		}(h)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var rows int
	require.NoError(t, db.sql.QueryRow(`SELECT COUNT(*) FROM refresh_tokens WHERE username = 'alice5'`).Scan(&rows))
	require.Equal(t, 1, rows)

	live := 0
	for _, h := range hashes {
		if _, err := s.Revoke(ctx, h, time.Now()); err == nil {
			live++
		}
	}
	require.Equal(t, 1, live)
}

func TestRefreshTokensSchemaRejectsSecondRowPerUser(t *testing.T) {
	db := openTestDB(t)
	insert := `INSERT INTO refresh_tokens (token_hash, username, expires_at, revoked, created_at) VALUES (?, ?, 0, 0, 0)`

	_, err := db.sql.Exec(insert, "h1", "alice5")
	require.NoError(t, err)
	_, err = db.sql.Exec(insert, "h2", "alice5")
	require.Error(t, err)
	require.True(t, isUniqueViolation(err))
}

func TestRefreshTokensRevoke(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t).RefreshTokens()
	now := time.Now()

	require.NoError(t, s.Save(ctx, store.RefreshToken{TokenHash: "live", Username: "alice5", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, s.Save(ctx, store.RefreshToken{TokenHash: "old", Username: "bobby5", ExpiresAt: now.Add(-time.Second)}))

	tok, err := s.Revoke(ctx, "live", now)
	require.NoError(t, err)
	require.True(t, tok.Revoked)

	_, err = s.Revoke(ctx, "live", now)
	require.ErrorIs(t, err, store.ErrInactive)
	_, err = s.Revoke(ctx, "old", now)
	require.ErrorIs(t, err, store.ErrInactive)
	_, err = s.Revoke(ctx, "missing", now)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRefreshTokensConcurrentRevokeSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t).RefreshTokens()
	now := time.Now()
	require.NoError(t, s.Save(ctx, store.RefreshToken{TokenHash: "h", Username: "alice5", ExpiresAt: now.Add(time.Hour)}))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Revoke(ctx, "h", now); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, wins.Load())
}

func TestResetTokensMarkUsed(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t).ResetTokens()
	now := time.Now()

	require.NoError(t, s.Save(ctx, store.ResetToken{TokenHash: "r1", Username: "alice5", ExpiresAt: now.Add(15 * time.Minute)}))
	require.ErrorIs(t, s.Save(ctx, store.ResetToken{TokenHash: "r1", Username: "alice5", ExpiresAt: now}), store.ErrConflict)

	tok, err := s.MarkUsed(ctx, "r1", now)
	require.NoError(t, err)
	require.True(t, tok.Used)

	_, err = s.MarkUsed(ctx, "r1", now)
	require.ErrorIs(t, err, store.ErrInactive)

	require.NoError(t, s.Save(ctx, store.ResetToken{TokenHash: "r2", Username: "alice5", ExpiresAt: now.Add(15 * time.Minute)}))
	_, err = s.MarkUsed(ctx, "r2", now.Add(16*time.Minute))
	require.ErrorIs(t, err, store.ErrInactive)
}

func TestDeleteExpiredBefore(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	refresh, resets := db.RefreshTokens(), db.ResetTokens()
	now := time.Now()

	require.NoError(t, refresh.Save(ctx, store.RefreshToken{TokenHash: "a", Username: "alice5", ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, refresh.Save(ctx, store.RefreshToken{TokenHash: "b", Username: "bobby5", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, resets.Save(ctx, store.ResetToken{TokenHash: "c", Username: "alice5", ExpiresAt: now.Add(-time.Minute)}))

	n, err := refresh.DeleteExpiredBefore(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	n, err = resets.DeleteExpiredBefore(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = refresh.FindByHash(ctx, "b")
	require.NoError(t, err)
}

func TestResetTokensRedeem(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	users, resets := db.Users(), db.ResetTokens()
	now := time.UnixMilli(time.Now().UnixMilli()).UTC()

	_, err := users.Save(ctx, store.User{ID: "1", Username: "alice5", Email: "a@example.com", PasswordHash: "old", Role: store.RoleUser})
	require.NoError(t, err)
	require.NoError(t, resets.Save(ctx, store.ResetToken{TokenHash: "r1", Username: "alice5", ExpiresAt: now.Add(15 * time.Minute)}))

	tok, err := resets.Redeem(ctx, "r1", "new", now)
	require.NoError(t, err)
	require.Equal(t, "alice5", tok.Username)
	require.True(t, tok.Used)

	got, err := users.FindByUsername(ctx, "alice5")
	require.NoError(t, err)
	require.Equal(t, "new", got.PasswordHash)

	_, err = resets.Redeem(ctx, "r1", "newer", now)
	require.ErrorIs(t, err, store.ErrInactive)
	_, err = resets.Redeem(ctx, "missing", "newer", now)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestResetTokensRedeemRollsBackWithoutUser(t *testing.T) {
	ctx := context.Background()
	resets := openTestDB(t).ResetTokens()
	now := time.Now()

	require.NoError(t, resets.Save(ctx, store.ResetToken{TokenHash: "r1", Username: "ghost5", ExpiresAt: now.Add(15 * time.Minute)}))

	_, err := resets.Redeem(ctx, "r1", "new", now)
	require.ErrorIs(t, err, store.ErrNotFound)

	tok, err := resets.FindByHash(ctx, "r1")
	require.NoError(t, err)
	require.False(t, tok.Used, "a failed password write must leave the token redeemable")
}
