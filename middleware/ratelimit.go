package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrEthical07/authsvc"
)

// Limiter admits or rejects a request for an identity. *authsvc.Engine
// implements it.
type Limiter interface {
	AllowRequest(ctx context.Context, identity string) error
}

// RateLimitedPaths are the path fragments that consume a token. Any path
// containing one of them is limited.
var RateLimitedPaths = []string{"/login", "/signup"}

// RateLimit records the client address on every request and, for paths
// matching RateLimitedPaths, consumes one token for that address. Rejected
// requests get 429 with a Retry-After header in whole seconds.
//
// When trustProxy is set the first X-Forwarded-For entry is used as the
// client address.
func RateLimit(l Limiter, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r, trustProxy)
			r = r.WithContext(authsvc.WithClientIP(r.Context(), ip))

			if l != nil && limitedPath(r.URL.Path) {
				if err := l.AllowRequest(r.Context(), ip); err != nil {
					var rl *authsvc.RateLimitError
					if errors.As(err, &rl) {
						w.Header().Set("Retry-After", strconv.Itoa(retrySeconds(rl)))
						writeError(w, http.StatusTooManyRequests, "Too Many Requests")
						return
					}
					writeError(w, http.StatusInternalServerError, "Internal server error")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the address used to key rate limits.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}

	if r.RemoteAddr == "" {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func limitedPath(path string) bool {
	for _, p := range RateLimitedPaths {
		if strings.Contains(path, p) {
			return true
		}
	}
	return false
}

func retrySeconds(rl *authsvc.RateLimitError) int {
	s := int(math.Ceil(rl.RetryAfter.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
