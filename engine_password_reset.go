package authsvc

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authsvc/internal"
	"github.com/MrEthical07/authsvc/store"
)

// ForgotPassword issues a one-time reset token for username and hands it to
// the configured ResetNotifier. Unknown usernames return an empty token and
// a nil error so callers cannot probe for accounts.
func (e *Engine) ForgotPassword(ctx context.Context, username string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	e.metricInc(MetricPasswordResetRequest)
	username = normalizeUsername(username)

	now := e.clock.Now().UTC()
	if _, err := e.resets.DeleteExpiredBefore(ctx, now); err != nil {
		e.logger.Error(err, "purge expired reset tokens")
	}

	user, err := e.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.emitAudit(ctx, auditEventPasswordResetRequest, false, username, nil, nil)
			return "", nil
		}
		return "", e.internalError("find user", err, "username", username)
	}

	value, err := internal.NewToken(e.random, internal.ResetTokenSize)
	if err != nil {
		return "", e.internalError("generate reset token", err)
	}
	expiresAt := now.Add(e.config.Reset.TTL)
	err = e.resets.Save(ctx, store.ResetToken{
		TokenHash: internal.HashToken(value),
		Username:  user.Username,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	})
	if err != nil {
		return "", e.internalError("save reset token", err, "username", user.Username)
	}

	if e.notifier != nil {
		if err := e.notifier.NotifyPasswordReset(ctx, user, value, expiresAt); err != nil {
			e.logger.Error(err, "deliver reset token", "username", user.Username)
		}
	}

	e.emitAudit(ctx, auditEventPasswordResetRequest, true, user.Username, nil, nil)
	return value, nil
}

// ResetPassword redeems a reset token and sets a new password. It reports
// false for unknown, used and expired tokens alike. A new password that
// violates the policy is returned as a *ValidationError and leaves the
// token redeemable. On success all of the user's refresh tokens are
// deleted.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) (bool, error) {
	if e == nil {
		return false, ErrEngineNotReady
	}

	username, err := e.resetPassword(ctx, token, newPassword)
	switch {
	case err == nil:
		e.metricInc(MetricPasswordResetConfirmSuccess)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, true, username, nil, nil)
		return true, nil
	case errors.Is(err, ErrInvalidResetToken):
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetReplay, false, username, err, nil)
		return false, nil
	default:
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, username, err, nil)
		return false, err
	}
}

func (e *Engine) resetPassword(ctx context.Context, value, newPassword string) (string, error) {
	if value == "" {
		return "", ErrInvalidResetToken
	}
	hash := internal.HashToken(value)
	now := e.clock.Now().UTC()

	token, err := e.resets.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidResetToken
		}
		return "", e.internalError("find reset token", err)
	}
	if !token.Redeemable(now) {
		return token.Username, ErrInvalidResetToken
	}

	if err := e.checkPassword(newPassword); err != nil {
		return token.Username, err
	}
	passwordHash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return token.Username, e.internalError("hash password", err)
	}

	if err := e.redeemReset(ctx, hash, passwordHash, token.Username, now); err != nil {
		return token.Username, err
	}

	if _, err := e.refresh.DeleteByUsername(ctx, token.Username); err != nil {
		e.logger.Error(err, "revoke refresh tokens after reset", "username", token.Username)
	}
	if err := e.guard.Reset(ctx, token.Username); err != nil {
		e.logger.Error(err, "clear lockout streak after reset", "username", token.Username)
	}
	return token.Username, nil
}

// redeemReset consumes the token and stores the new hash. Stores that
// implement store.ResetRedeemer do both in one transaction. Elsewhere the
// compare-and-set runs first, so a failed password write leaves the token
// spent and the old password in place.
func (e *Engine) redeemReset(ctx context.Context, hash, passwordHash, username string, now time.Time) error {
	if r, ok := e.resets.(store.ResetRedeemer); ok {
		if _, err := r.Redeem(ctx, hash, passwordHash, now); err != nil {
			if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInactive) {
				return ErrInvalidResetToken
			}
			return e.internalError("redeem reset token", err, "username", username)
		}
		return nil
	}

	if _, err := e.resets.MarkUsed(ctx, hash, now); err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInactive) {
			return ErrInvalidResetToken
		}
		return e.internalError("mark reset token used", err)
	}
	if err := e.users.UpdatePassword(ctx, username, passwordHash, now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return e.internalError("update password", err, "username", username)
	}
	return nil
}
