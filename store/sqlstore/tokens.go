package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/MrEthical07/authsvc/store"
)

// RefreshTokens is a store.RefreshTokenStore on a SQL database.
type RefreshTokens struct {
	db *DB
}

// Save makes token the only row owned by token.Username. The unique
// username column turns concurrent saves for one user into a single upsert
// target, so the last writer wins and no second row survives.
func (s *RefreshTokens) Save(ctx context.Context, token store.RefreshToken) error {
	_, err := s.db.sql.ExecContext(ctx, s.db.rebind(`
		INSERT INTO refresh_tokens (token_hash, username, expires_at, revoked, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (username) DO UPDATE SET
			token_hash = excluded.token_hash,
			expires_at = excluded.expires_at,
			revoked    = excluded.revoked,
			created_at = excluded.created_at
	`), token.TokenHash, token.Username, toMillis(token.ExpiresAt), boolInt(token.Revoked), toMillis(token.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return unavailable("upsert refresh token", err)
	}
	return nil
}

func (s *RefreshTokens) FindByHash(ctx context.Context, tokenHash string) (store.RefreshToken, error) {
	return scanRefresh(s.db.sql.QueryRowContext(ctx, s.db.rebind(refreshByHash), tokenHash))
}

// Revoke flips revoked only while the row is still valid at now. The
// conditional UPDATE is the compare-and-set; RowsAffected tells the winner.
func (s *RefreshTokens) Revoke(ctx context.Context, tokenHash string, now time.Time) (store.RefreshToken, error) {
	var out store.RefreshToken
	err := s.db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.db.rebind(`
			UPDATE refresh_tokens SET revoked = 1
			WHERE token_hash = ? AND revoked = 0 AND expires_at > ?
		`), tokenHash, toMillis(now))
		if err != nil {
			return unavailable("revoke refresh token", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return unavailable("rows affected", err)
		}

		tok, err := scanRefresh(tx.QueryRowContext(ctx, s.db.rebind(refreshByHash), tokenHash))
		if err != nil {
			return err
		}
		if n == 0 {
			return store.ErrInactive
		}
		out = tok
		return nil
	})
	if err != nil {
		return store.RefreshToken{}, err
	}
	return out, nil
}

func (s *RefreshTokens) DeleteByUsername(ctx context.Context, username string) (int64, error) {
	return deleteWhere(ctx, s.db, `DELETE FROM refresh_tokens WHERE username = ?`, username)
}

func (s *RefreshTokens) DeleteExpiredBefore(ctx context.Context, t time.Time) (int64, error) {
	return deleteWhere(ctx, s.db, `DELETE FROM refresh_tokens WHERE expires_at < ?`, toMillis(t))
}

const refreshByHash = `
	SELECT token_hash, username, expires_at, revoked, created_at
	FROM refresh_tokens
	WHERE token_hash = ?
`

func scanRefresh(row *sql.Row) (store.RefreshToken, error) {
	var (
		t                store.RefreshToken
		expires, created int64
		revoked          int
	)
	if err := row.Scan(&t.TokenHash, &t.Username, &expires, &revoked, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.RefreshToken{}, store.ErrNotFound
		}
		return store.RefreshToken{}, unavailable("query refresh token", err)
	}
	t.ExpiresAt = fromMillis(expires)
	t.CreatedAt = fromMillis(created)
	t.Revoked = revoked != 0
	return t, nil
}

// ResetTokens is a store.ResetTokenStore on a SQL database.
type ResetTokens struct {
	db *DB
}

func (s *ResetTokens) Save(ctx context.Context, token store.ResetToken) error {
	_, err := s.db.sql.ExecContext(ctx, s.db.rebind(`
		INSERT INTO reset_tokens (token_hash, username, expires_at, used, created_at)
		VALUES (?, ?, ?, ?, ?)
	`), token.TokenHash, token.Username, toMillis(token.ExpiresAt), boolInt(token.Used), toMillis(token.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return unavailable("insert reset token", err)
	}
	return nil
}

func (s *ResetTokens) FindByHash(ctx context.Context, tokenHash string) (store.ResetToken, error) {
	return scanReset(s.db.sql.QueryRowContext(ctx, s.db.rebind(resetByHash), tokenHash))
}

func (s *ResetTokens) MarkUsed(ctx context.Context, tokenHash string, now time.Time) (store.ResetToken, error) {
	var out store.ResetToken
	err := s.db.withTx(ctx, func(tx *sql.Tx) error {
		tok, err := markResetUsed(ctx, s.db, tx, tokenHash, now)
		out = tok
		return err
	})
	if err != nil {
		return store.ResetToken{}, err
	}
	return out, nil
}

func markResetUsed(ctx context.Context, db *DB, tx *sql.Tx, tokenHash string, now time.Time) (store.ResetToken, error) {
	res, err := tx.ExecContext(ctx, db.rebind(`
		UPDATE reset_tokens SET used = 1
		WHERE token_hash = ? AND used = 0 AND expires_at > ?
	`), tokenHash, toMillis(now))
	if err != nil {
		return store.ResetToken{}, unavailable("mark reset token used", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return store.ResetToken{}, unavailable("rows affected", err)
	}

	tok, err := scanReset(tx.QueryRowContext(ctx, db.rebind(resetByHash), tokenHash))
	if err != nil {
		return store.ResetToken{}, err
	}
	if n == 0 {
		return store.ResetToken{}, store.ErrInactive
	}
	return tok, nil
}

// Redeem runs the MarkUsed compare-and-set and the password update of the
// token's owner in a single transaction.
func (s *ResetTokens) Redeem(ctx context.Context, tokenHash, passwordHash string, now time.Time) (store.ResetToken, error) {
	var out store.ResetToken
	err := s.db.withTx(ctx, func(tx *sql.Tx) error {
		tok, err := markResetUsed(ctx, s.db, tx, tokenHash, now)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, s.db.rebind(`
			UPDATE users SET password_hash = ?, updated_at = ? WHERE username = ?
		`), passwordHash, toMillis(now), tok.Username)
		if err != nil {
			return unavailable("update password", err)
		}
		if err := requireRow(res); err != nil {
			return err
		}
		out = tok
		return nil
	})
	if err != nil {
		return store.ResetToken{}, err
	}
	return out, nil
}

func (s *ResetTokens) DeleteExpiredBefore(ctx context.Context, t time.Time) (int64, error) {
	return deleteWhere(ctx, s.db, `DELETE FROM reset_tokens WHERE expires_at < ?`, toMillis(t))
}

const resetByHash = `
	SELECT token_hash, username, expires_at, used, created_at
	FROM reset_tokens
	WHERE token_hash = ?
`

func scanReset(row *sql.Row) (store.ResetToken, error) {
	var (
		t                store.ResetToken
		expires, created int64
		used             int
	)
	if err := row.Scan(&t.TokenHash, &t.Username, &expires, &used, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ResetToken{}, store.ErrNotFound
		}
		return store.ResetToken{}, unavailable("query reset token", err)
	}
	t.ExpiresAt = fromMillis(expires)
	t.CreatedAt = fromMillis(created)
	t.Used = used != 0
	return t, nil
}

func deleteWhere(ctx context.Context, db *DB, query string, arg any) (int64, error) {
	res, err := db.sql.ExecContext(ctx, db.rebind(query), arg)
	if err != nil {
		return 0, unavailable("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable("rows affected", err)
	}
	return n, nil
}

var (
	_ store.RefreshTokenStore = (*RefreshTokens)(nil)
	_ store.ResetTokenStore   = (*ResetTokens)(nil)
)

var (
	_ store.RefreshTokenStore = (*RefreshTokens)(nil)
	_ store.ResetTokenStore   = (*ResetTokens)(nil)
	_ store.ResetRedeemer     = (*ResetTokens)(nil)
)
