package authsvc

import (
	"context"
	"errors"

	"github.com/MrEthical07/authsvc/internal"
	"github.com/MrEthical07/authsvc/store"
)

// Refresh redeems a refresh token for a new token pair. The presented token
// is revoked first, so of two concurrent calls with the same value exactly
// one succeeds. The role in the new access token is re-read from the user
// store.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if e == nil {
		return TokenPair{}, ErrEngineNotReady
	}

	pair, username, err := e.rotate(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrInvalidRefreshToken) {
			e.metricInc(MetricRefreshFailure)
		}
		e.emitAudit(ctx, auditEventRefreshInvalid, false, username, err, nil)
		return TokenPair{}, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, username, nil, nil)
	return pair, nil
}

func (e *Engine) rotate(ctx context.Context, value string) (TokenPair, string, error) {
	if value == "" {
		return TokenPair{}, "", ErrInvalidRefreshToken
	}

	old, err := e.refresh.Revoke(ctx, internal.HashToken(value), e.clock.Now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInactive) {
			return TokenPair{}, "", ErrInvalidRefreshToken
		}
		return TokenPair{}, "", e.internalError("revoke refresh token", err)
	}

	user, err := e.users.FindByUsername(ctx, old.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return TokenPair{}, old.Username, ErrInvalidRefreshToken
		}
		return TokenPair{}, old.Username, e.internalError("find user", err, "username", old.Username)
	}

	pair, err := e.issuePair(ctx, user)
	return pair, user.Username, err
}

// Logout deletes every refresh token of the user owning refreshToken.
// Unknown or already revoked tokens are not an error.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if refreshToken == "" {
		return nil
	}

	token, err := e.refresh.FindByHash(ctx, internal.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return e.internalError("find refresh token", err)
	}

	n, err := e.refresh.DeleteByUsername(ctx, token.Username)
	if err != nil {
		return e.internalError("delete refresh tokens", err, "username", token.Username)
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, token.Username, nil, func() map[string]string {
		if n == 0 {
			return nil
		}
		return map[string]string{"revoked": "true"}
	})
	return nil
}
