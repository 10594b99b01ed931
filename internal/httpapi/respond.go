package httpapi

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/getsentry/sentry-go"

	"github.com/MrEthical07/authsvc"
)

const maxBodyBytes = 1 << 20

func (s *server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request body")
		return false
	}
	return true
}

// fail maps engine errors to responses. Anything outside the known taxonomy
// is reported to Sentry and answered with a generic 500.
func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *authsvc.ValidationError
		rerr *authsvc.RateLimitError
	)
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message)
	case errors.As(err, &rerr):
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Max(1, math.Ceil(rerr.RetryAfter.Seconds())))))
		writeError(w, http.StatusTooManyRequests, "Too Many Requests")
	case errors.Is(err, authsvc.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
	case errors.Is(err, authsvc.ErrAccountLocked):
		writeError(w, http.StatusUnauthorized, "Account temporarily blocked due to multiple failed login attempts")
	case errors.Is(err, authsvc.ErrInvalidRefreshToken):
		writeError(w, http.StatusUnauthorized, "Invalid or expired refresh token")
	case errors.Is(err, authsvc.ErrInvalidResetToken):
		writeError(w, http.StatusBadRequest, "Invalid or expired token")
	default:
		hub := sentry.GetHubFromContext(r.Context())
		if hub == nil {
			hub = sentry.CurrentHub()
		}
		hub.CaptureException(err)
		s.logger.Error(err, "request failed", "method", r.Method, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
