package authsvc

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authsvc/internal"
	"github.com/MrEthical07/authsvc/store"
)

// Login verifies the credentials and returns a fresh access/refresh token
// pair. Any refresh token previously issued to the user stops working.
func (e *Engine) Login(ctx context.Context, username, password string) (TokenPair, error) {
	if e == nil {
		return TokenPair{}, ErrEngineNotReady
	}
	start := time.Now()
	defer e.observe(MetricLoginLatency, start)

	user, err := e.Authenticate(ctx, username, password)
	if err != nil {
		return TokenPair{}, err
	}

	pair, err := e.issuePair(ctx, user)
	if err != nil {
		return TokenPair{}, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.Username, nil, nil)
	return pair, nil
}

// Authenticate checks username and password against the user store while
// enforcing the lockout policy. Unknown users and wrong passwords both
// yield ErrInvalidCredentials; a locked username yields ErrAccountLocked
// without the store being consulted.
func (e *Engine) Authenticate(ctx context.Context, username, password string) (User, error) {
	if e == nil {
		return User{}, ErrEngineNotReady
	}
	username = normalizeUsername(username)

	blocked, err := e.guard.IsBlocked(ctx, username)
	if err != nil {
		return User{}, e.internalError("lockout check", err, "username", username)
	}
	if blocked {
		e.metricInc(MetricLoginLocked)
		e.emitAudit(ctx, auditEventLoginLocked, false, username, ErrAccountLocked, nil)
		return User{}, ErrAccountLocked
	}

	user, err := e.users.FindByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return User{}, e.internalError("find user", err, "username", username)
		}
		return User{}, e.loginFailed(ctx, username)
	}

	ok, err := e.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return User{}, e.internalError("verify password", err, "username", username)
	}
	if !ok {
		return User{}, e.loginFailed(ctx, username)
	}

	if err := e.guard.Reset(ctx, username); err != nil {
		return User{}, e.internalError("lockout reset", err, "username", username)
	}
	return user, nil
}

func (e *Engine) loginFailed(ctx context.Context, username string) error {
	locked, err := e.guard.RegisterFailure(ctx, username)
	if err != nil {
		return e.internalError("lockout register", err, "username", username)
	}

	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, username, ErrInvalidCredentials, nil)
	if locked {
		e.metricInc(MetricAccountLocked)
		e.logger.Info("account locked", "username", username, "duration", e.config.Lockout.Duration)
		e.emitAudit(ctx, auditEventAccountLocked, true, username, nil, func() map[string]string {
			return map[string]string{"duration": e.config.Lockout.Duration.String()}
		})
	}
	return ErrInvalidCredentials
}

// issuePair signs an access token for user and replaces the user's refresh
// token with a new one.
func (e *Engine) issuePair(ctx context.Context, user User) (TokenPair, error) {
	access, err := e.signer.CreateAccess(user.Username, string(user.Role))
	if err != nil {
		return TokenPair{}, e.internalError("sign access token", err, "username", user.Username)
	}

	refresh, err := e.createRefreshToken(ctx, user.Username)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresAt:    e.clock.Now().Add(e.config.JWT.AccessTTL).UTC(),
	}, nil
}

func (e *Engine) createRefreshToken(ctx context.Context, username string) (string, error) {
	value, err := internal.NewToken(e.random, internal.RefreshTokenSize)
	if err != nil {
		return "", e.internalError("generate refresh token", err)
	}

	now := e.clock.Now().UTC()
	err = e.refresh.Save(ctx, store.RefreshToken{
		TokenHash: internal.HashToken(value),
		Username:  username,
		ExpiresAt: now.Add(e.config.Refresh.TTL),
		CreatedAt: now,
	})
	if err != nil {
		return "", e.internalError("save refresh token", err, "username", username)
	}
	return value, nil
}
