package internaldefs

import (
	"strconv"

	"github.com/MrEthical07/authsvc"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   authsvc.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for exporters.
type HistogramDef struct {
	ID   authsvc.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "authsvc_audit_dropped_total"

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: authsvc.MetricSignupSuccess, Name: "authsvc_signup_success_total", Help: "Successful signups."},
	{ID: authsvc.MetricSignupDuplicate, Name: "authsvc_signup_duplicate_total", Help: "Signups rejected because the username or email is taken."},
	{ID: authsvc.MetricSignupInvalid, Name: "authsvc_signup_invalid_total", Help: "Signups rejected by input validation."},
	{ID: authsvc.MetricLoginSuccess, Name: "authsvc_login_success_total", Help: "Successful logins."},
	{ID: authsvc.MetricLoginFailure, Name: "authsvc_login_failure_total", Help: "Logins rejected for bad credentials."},
	{ID: authsvc.MetricLoginLocked, Name: "authsvc_login_locked_total", Help: "Logins rejected because the account is locked."},
	{ID: authsvc.MetricAccountLocked, Name: "authsvc_account_locked_total", Help: "Accounts that reached the failure threshold."},
	{ID: authsvc.MetricRateLimitHit, Name: "authsvc_rate_limit_hit_total", Help: "Requests denied by the rate limiter."},
	{ID: authsvc.MetricRefreshSuccess, Name: "authsvc_refresh_success_total", Help: "Successful refresh token rotations."},
	{ID: authsvc.MetricRefreshFailure, Name: "authsvc_refresh_failure_total", Help: "Rejected refresh tokens."},
	{ID: authsvc.MetricLogout, Name: "authsvc_logout_total", Help: "Logout operations."},
	{ID: authsvc.MetricEmailChange, Name: "authsvc_email_change_total", Help: "Email address changes."},
	{ID: authsvc.MetricPasswordResetRequest, Name: "authsvc_password_reset_request_total", Help: "Password reset requests."},
	{ID: authsvc.MetricPasswordResetConfirmSuccess, Name: "authsvc_password_reset_confirm_success_total", Help: "Successful password resets."},
	{ID: authsvc.MetricPasswordResetConfirmFailure, Name: "authsvc_password_reset_confirm_failure_total", Help: "Rejected password reset confirmations."},
	{ID: authsvc.MetricValidateSuccess, Name: "authsvc_validate_success_total", Help: "Access tokens accepted."},
	{ID: authsvc.MetricValidateFailure, Name: "authsvc_validate_failure_total", Help: "Access tokens rejected."},
	{ID: authsvc.MetricPurgeRun, Name: "authsvc_purge_run_total", Help: "Expired-token purge runs."},
	{ID: authsvc.MetricPurgedTokens, Name: "authsvc_purged_tokens_total", Help: "Expired tokens deleted by purge runs."},
	{ID: authsvc.MetricInternalError, Name: "authsvc_internal_error_total", Help: "Operations that failed with an internal error."},
}

// HistogramDefs lists the exported latency histograms.
var HistogramDefs = []HistogramDef{
	{ID: authsvc.MetricLoginLatency, Name: "authsvc_login_latency_seconds", Help: "Login latency."},
	{ID: authsvc.MetricValidateLatency, Name: "authsvc_validate_latency_seconds", Help: "Access token validation latency."},
}

// BucketCount is the number of histogram buckets including +Inf.
const BucketCount = len(authsvc.HistogramBounds) + 1

// UpperBounds returns the finite bucket bounds in seconds.
func UpperBounds() []float64 {
	out := make([]float64, len(authsvc.HistogramBounds))
	for i, d := range authsvc.HistogramBounds {
		out[i] = d.Seconds()
	}
	return out
}

// BoundLabels returns the "le" value of each bucket, "+Inf" last.
func BoundLabels() []string {
	out := make([]string, 0, BucketCount)
	for _, s := range UpperBounds() {
		out = append(out, strconv.FormatFloat(s, 'f', -1, 64))
	}
	return append(out, "+Inf")
}

// NormalizeBuckets copies raw into a slice of exactly BucketCount entries.
func NormalizeBuckets(raw []uint64) []uint64 {
	out := make([]uint64, BucketCount)
	copy(out, raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw []uint64) []uint64 {
	out := make([]uint64, len(raw))
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
