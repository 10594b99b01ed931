// Package memory provides process-local implementations of the store
// interfaces. State is lost on restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/authsvc/store"
)

// Users is an in-memory store.UserStore.
type Users struct {
	mu      sync.RWMutex
	byName  map[string]store.User
	byEmail map[string]string
}

// NewUsers returns an empty user store.
func NewUsers() *Users {
	return &Users{
		byName:  make(map[string]store.User),
		byEmail: make(map[string]string),
	}
}

// FindByUsername returns store.ErrNotFound for unknown names.
func (s *Users) FindByUsername(_ context.Context, username string) (store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byName[username]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

// FindByEmail returns store.ErrNotFound for unknown addresses.
func (s *Users) FindByEmail(_ context.Context, email string) (store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	name, ok := s.byEmail[email]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return s.byName[name], nil
}

// ExistsByUsername reports whether username is taken.
func (s *Users) ExistsByUsername(_ context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.byName[username]
	return ok, nil
}

// ExistsByEmail reports whether email is taken.
func (s *Users) ExistsByEmail(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.byEmail[email]
	return ok, nil
}

// Save inserts a new user. Both uniqueness checks and the insert happen
// under one lock.
func (s *Users) Save(_ context.Context, user store.User) (store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[user.Username]; ok {
		return store.User{}, store.ErrConflict
	}
	if _, ok := s.byEmail[user.Email]; ok {
		return store.User{}, store.ErrConflict
	}

	s.byName[user.Username] = user
	s.byEmail[user.Email] = user.Username
	return user, nil
}

// UpdatePassword replaces the stored hash of username.
func (s *Users) UpdatePassword(_ context.Context, username, passwordHash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byName[username]
	if !ok {
		return store.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = at
	s.byName[username] = u
	return nil
}

// UpdateEmail moves username to email, or returns store.ErrConflict if
// another user holds it.
func (s *Users) UpdateEmail(_ context.Context, username, email string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byName[username]
	if !ok {
		return store.ErrNotFound
	}
	if owner, taken := s.byEmail[email]; taken && owner != username {
		return store.ErrConflict
	}

	delete(s.byEmail, u.Email)
	u.Email = email
	u.UpdatedAt = at
	s.byName[username] = u
	s.byEmail[email] = username
	return nil
}

// RefreshTokens is an in-memory store.RefreshTokenStore.
type RefreshTokens struct {
	mu     sync.Mutex
	byHash map[string]store.RefreshToken
	byUser map[string]map[string]struct{}
}

// NewRefreshTokens returns an empty refresh token store.
func NewRefreshTokens() *RefreshTokens {
	return &RefreshTokens{
		byHash: make(map[string]store.RefreshToken),
		byUser: make(map[string]map[string]struct{}),
	}
}

// Save drops every token of token.Username and stores token.
func (s *RefreshTokens) Save(_ context.Context, token store.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteUserLocked(token.Username)
	s.byHash[token.TokenHash] = token
	s.byUser[token.Username] = map[string]struct{}{token.TokenHash: {}}
	return nil
}

// FindByHash returns the token stored under tokenHash.
func (s *RefreshTokens) FindByHash(_ context.Context, tokenHash string) (store.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byHash[tokenHash]
	if !ok {
		return store.RefreshToken{}, store.ErrNotFound
	}
	return t, nil
}

// Revoke marks a live token revoked under the store lock.
func (s *RefreshTokens) Revoke(_ context.Context, tokenHash string, now time.Time) (store.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byHash[tokenHash]
	if !ok {
		return store.RefreshToken{}, store.ErrNotFound
	}
	if !t.Valid(now) {
		return store.RefreshToken{}, store.ErrInactive
	}
	t.Revoked = true
	s.byHash[tokenHash] = t
	return t, nil
}

// DeleteByUsername removes every token of username.
func (s *RefreshTokens) DeleteByUsername(_ context.Context, username string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.deleteUserLocked(username), nil
}

// DeleteExpiredBefore removes tokens that expired before t.
func (s *RefreshTokens) DeleteExpiredBefore(_ context.Context, t time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for hash, tok := range s.byHash {
		if tok.ExpiresAt.Before(t) {
			delete(s.byHash, hash)
			if set, ok := s.byUser[tok.Username]; ok {
				delete(set, hash)
				if len(set) == 0 {
					delete(s.byUser, tok.Username)
				}
			}
			n++
		}
	}
	return n, nil
}

func (s *RefreshTokens) deleteUserLocked(username string) int64 {
	set, ok := s.byUser[username]
	if !ok {
		return 0
	}
	for hash := range set {
		delete(s.byHash, hash)
	}
	delete(s.byUser, username)
	return int64(len(set))
}

// ResetTokens is an in-memory store.ResetTokenStore.
type ResetTokens struct {
	mu     sync.Mutex
	byHash map[string]store.ResetToken
}

// NewResetTokens returns an empty reset token store.
func NewResetTokens() *ResetTokens {
	return &ResetTokens{byHash: make(map[string]store.ResetToken)}
}

// Save stores token under its hash.
func (s *ResetTokens) Save(_ context.Context, token store.ResetToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byHash[token.TokenHash] = token
	return nil
}

// FindByHash returns the token stored under tokenHash.
func (s *ResetTokens) FindByHash(_ context.Context, tokenHash string) (store.ResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byHash[tokenHash]
	if !ok {
		return store.ResetToken{}, store.ErrNotFound
	}
	return t, nil
}

// MarkUsed consumes a redeemable token under the store lock.
func (s *ResetTokens) MarkUsed(_ context.Context, tokenHash string, now time.Time) (store.ResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byHash[tokenHash]
	if !ok {
		return store.ResetToken{}, store.ErrNotFound
	}
	if !t.Redeemable(now) {
		return store.ResetToken{}, store.ErrInactive
	}
	t.Used = true
	s.byHash[tokenHash] = t
	return t, nil
}

// DeleteExpiredBefore removes tokens that expired before t.
func (s *ResetTokens) DeleteExpiredBefore(_ context.Context, t time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for hash, tok := range s.byHash {
		if tok.ExpiresAt.Before(t) {
			delete(s.byHash, hash)
			n++
		}
	}
	return n, nil
}

var (
	_ store.UserStore         = (*Users)(nil)
	_ store.RefreshTokenStore = (*RefreshTokens)(nil)
	_ store.ResetTokenStore   = (*ResetTokens)(nil)
)
