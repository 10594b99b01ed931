package authsvc

import (
	"context"
	"time"

	"github.com/MrEthical07/authsvc/store"
)

type (
	// User is the stored credential record. PasswordHash is never serialized.
	User = store.User
	// Role is the closed set of roles: RoleUser and RoleAdmin.
	Role = store.Role
)

const (
	RoleUser  = store.RoleUser
	RoleAdmin = store.RoleAdmin
)

// SignupRequest carries the fields accepted by Engine.Signup.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	// Role defaults to RoleUser when empty. It is never read from JSON.
	Role Role `json:"-"`
}

// TokenPair is returned by Login and Refresh.
type TokenPair struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	TokenType    string    `json:"tokenType"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Claims is the verified content of an access token.
type Claims struct {
	Subject   string
	Role      Role
	Issuer    string
	Audience  []string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ResetNotifier delivers a freshly issued reset token to its owner.
// Delivery failures are logged; the token stays valid.
type ResetNotifier interface {
	NotifyPasswordReset(ctx context.Context, user User, token string, expiresAt time.Time) error
}

// ResetNotifierFunc adapts a function to ResetNotifier.
type ResetNotifierFunc func(ctx context.Context, user User, token string, expiresAt time.Time) error

func (f ResetNotifierFunc) NotifyPasswordReset(ctx context.Context, user User, token string, expiresAt time.Time) error {
	return f(ctx, user, token, expiresAt)
}

// PurgeResult reports one purge pass.
type PurgeResult struct {
	RefreshTokens int64
	ResetTokens   int64
	Counters      int
}
