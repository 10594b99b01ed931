package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/MrEthical07/authsvc/store"
)

// Users is a store.UserStore on a SQL database.
type Users struct {
	db *DB
}

const userColumns = `id, username, email, password_hash, role, created_at, updated_at`

func (s *Users) FindByUsername(ctx context.Context, username string) (store.User, error) {
	return s.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

func (s *Users) FindByEmail(ctx context.Context, email string) (store.User, error) {
	return s.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (s *Users) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return s.exists(ctx, `SELECT COUNT(*) FROM users WHERE username = ?`, username)
}

func (s *Users) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, `SELECT COUNT(*) FROM users WHERE email = ?`, email)
}

// Save inserts user. The unique indexes on username and email turn a
// concurrent duplicate into store.ErrConflict.
func (s *Users) Save(ctx context.Context, user store.User) (store.User, error) {
	_, err := s.db.sql.ExecContext(ctx, s.db.rebind(`
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), user.ID, user.Username, user.Email, user.PasswordHash, string(user.Role),
		toMillis(user.CreatedAt), toMillis(user.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return store.User{}, store.ErrConflict
		}
		return store.User{}, unavailable("insert user", err)
	}
	return user, nil
}

func (s *Users) UpdatePassword(ctx context.Context, username, passwordHash string, at time.Time) error {
	res, err := s.db.sql.ExecContext(ctx, s.db.rebind(`
		UPDATE users SET password_hash = ?, updated_at = ? WHERE username = ?
	`), passwordHash, toMillis(at), username)
	if err != nil {
		return unavailable("update password", err)
	}
	return requireRow(res)
}

func (s *Users) UpdateEmail(ctx context.Context, username, email string, at time.Time) error {
	res, err := s.db.sql.ExecContext(ctx, s.db.rebind(`
		UPDATE users SET email = ?, updated_at = ? WHERE username = ?
	`), email, toMillis(at), username)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return unavailable("update email", err)
	}
	return requireRow(res)
}

func (s *Users) findOne(ctx context.Context, query string, arg string) (store.User, error) {
	var (
		u                store.User
		role             string
		created, updated int64
	)
	err := s.db.sql.QueryRowContext(ctx, s.db.rebind(query), arg).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.User{}, store.ErrNotFound
		}
		return store.User{}, unavailable("query user", err)
	}
	u.Role = store.Role(role)
	u.CreatedAt = fromMillis(created)
	u.UpdatedAt = fromMillis(updated)
	return u, nil
}

func (s *Users) exists(ctx context.Context, query string, arg string) (bool, error) {
	var n int
	if err := s.db.sql.QueryRowContext(ctx, s.db.rebind(query), arg).Scan(&n); err != nil {
		return false, unavailable("count users", err)
	}
	return n > 0, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("rows affected", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

var _ store.UserStore = (*Users)(nil)
