package authsvc

import (
	"time"

	"github.com/MrEthical07/authsvc/jwt"
)

// ValidateAccess verifies an access token and returns its claims. Every
// rejection, whether malformed, expired, foreign or carrying an unknown
// role, is reported as ErrInvalidAccessToken.
func (e *Engine) ValidateAccess(token string) (Claims, error) {
	if e == nil {
		return Claims{}, ErrEngineNotReady
	}
	start := time.Now()
	defer e.observe(MetricValidateLatency, start)

	parsed, err := e.signer.ParseAccess(token)
	if err != nil {
		e.metricInc(MetricValidateFailure)
		return Claims{}, ErrInvalidAccessToken
	}
	role := Role(parsed.Role)
	if !role.Valid() {
		e.metricInc(MetricValidateFailure)
		return Claims{}, ErrInvalidAccessToken
	}

	e.metricInc(MetricValidateSuccess)
	return claimsFrom(parsed, role), nil
}

func claimsFrom(c *jwt.AccessClaims, role Role) Claims {
	out := Claims{
		Subject:  c.Subject,
		Role:     role,
		Issuer:   c.Issuer,
		Audience: []string(c.Audience),
		TokenID:  c.ID,
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out
}

// Authorize reports whether role satisfies required. ADMIN satisfies USER;
// nothing else crosses roles.
func Authorize(role, required Role) bool {
	if !role.Valid() || !required.Valid() {
		return false
	}
	return role == required || role == RoleAdmin
}
