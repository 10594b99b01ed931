package authsvc

import (
	"context"
	"errors"
)

const (
	auditEventSignupSuccess        = "signup_success"
	auditEventSignupFailure        = "signup_failure"
	auditEventEmailChange          = "email_change"
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventLoginLocked          = "login_locked"
	auditEventAccountLocked        = "account_locked"
	auditEventRefreshSuccess       = "refresh_success"
	auditEventRefreshInvalid       = "refresh_invalid"
	auditEventLogout               = "logout"
	auditEventPasswordResetRequest = "password_reset_request"
	auditEventPasswordResetConfirm = "password_reset_confirm"
	auditEventPasswordResetReplay  = "password_reset_replay"
	auditEventRateLimitTriggered   = "rate_limit_triggered"
)

// AuditReason is the short machine-readable failure code on audit events.
type AuditReason string

const (
	auditErrInvalidCredentials AuditReason = "invalid_credentials"
	auditErrAccountLocked      AuditReason = "account_locked"
	auditErrInvalidToken       AuditReason = "invalid_token"
	auditErrValidation         AuditReason = "validation"
	auditErrRateLimited        AuditReason = "rate_limited"
	auditErrInternal           AuditReason = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	username string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.clock.Now().UTC(),
		Type:      eventType,
		Username:  username,
		IP:        ClientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditReason(err); code != "" {
		event.Reason = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditReason(err error) AuditReason {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrInvalidRefreshToken),
		errors.Is(err, ErrInvalidResetToken),
		errors.Is(err, ErrInvalidAccessToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrInvalidUsername),
		errors.Is(err, ErrInvalidEmail),
		errors.Is(err, ErrInvalidPassword):
		return auditErrValidation
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	default:
		return auditErrInternal
	}
}
