package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write would violate a uniqueness constraint.
	ErrConflict = errors.New("record conflict")
	// ErrInactive is returned by compare-and-set operations when the token is
	// already revoked, already used, or expired.
	ErrInactive = errors.New("token inactive")
	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("store unavailable")
)

// Role is the closed set of roles a user can hold.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is the persisted credential record.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RefreshToken is a persisted refresh token. TokenHash is the digest of the
// value handed to the client; the raw value is never stored.
type RefreshToken struct {
	TokenHash string
	Username  string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// Valid reports whether the token is neither revoked nor expired at now.
func (t RefreshToken) Valid(now time.Time) bool {
	return !t.Revoked && t.ExpiresAt.After(now)
}

// ResetToken is a persisted one-time password reset token.
type ResetToken struct {
	TokenHash string
	Username  string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// Redeemable reports whether the token is unused and unexpired at now.
func (t ResetToken) Redeemable(now time.Time) bool {
	return !t.Used && t.ExpiresAt.After(now)
}

// UserStore owns user rows. Username and email are unique; Save and
// UpdateEmail return ErrConflict when a write would break that.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Save(ctx context.Context, user User) (User, error)
	UpdatePassword(ctx context.Context, username, passwordHash string, at time.Time) error
	UpdateEmail(ctx context.Context, username, email string, at time.Time) error
}

// RefreshTokenStore owns refresh token rows.
//
// Save replaces every token owned by token.Username in one atomic step, so at
// most one token per user exists after it returns. Revoke flips the revoked
// flag only when the token is still valid at now and returns ErrInactive
// otherwise; of two concurrent Revoke calls on the same hash exactly one
// succeeds.
type RefreshTokenStore interface {
	Save(ctx context.Context, token RefreshToken) error
	FindByHash(ctx context.Context, tokenHash string) (RefreshToken, error)
	Revoke(ctx context.Context, tokenHash string, now time.Time) (RefreshToken, error)
	DeleteByUsername(ctx context.Context, username string) (int64, error)
	DeleteExpiredBefore(ctx context.Context, t time.Time) (int64, error)
}

// ResetTokenStore owns password reset token rows. MarkUsed is a
// compare-and-set with the same guarantees as RefreshTokenStore.Revoke.
type ResetTokenStore interface {
	Save(ctx context.Context, token ResetToken) error
	FindByHash(ctx context.Context, tokenHash string) (ResetToken, error)
	MarkUsed(ctx context.Context, tokenHash string, now time.Time) (ResetToken, error)
	DeleteExpiredBefore(ctx context.Context, t time.Time) (int64, error)
}

// ResetRedeemer is implemented by reset stores that share a transaction
// with the user table. Redeem marks the token used and stores passwordHash
// for its owner in one step; if either write fails neither is kept.
type ResetRedeemer interface {
	Redeem(ctx context.Context, tokenHash, passwordHash string, now time.Time) (ResetToken, error)
}
