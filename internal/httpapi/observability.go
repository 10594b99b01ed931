package httpapi

import (
	"net/http"
	"runtime/debug"

	"github.com/felixge/httpsnoop"
	"github.com/getsentry/sentry-go"
	"github.com/go-logr/logr"

	"github.com/MrEthical07/authsvc/middleware"
)

// RequestLogging logs one line per request after it completes.
func RequestLogging(logger logr.Logger, trustProxy bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)

		logger.Info("http_request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", m.Code,
			"duration_ms", m.Duration.Milliseconds(),
			"bytes", m.Written,
			"ip", middleware.ClientIP(r, trustProxy),
		)
	})
}

// Recover turns a panic into a 500 and reports it to Sentry.
func Recover(logger logr.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				sentry.WithScope(func(scope *sentry.Scope) {
					scope.SetExtra("panic", rec)
					scope.SetExtra("stack", string(debug.Stack()))
					sentry.CaptureMessage("panic in request")
				})

				logger.Error(nil, "panic_recovered",
					"path", r.URL.Path,
					"method", r.Method,
					"panic", rec,
				)

				writeError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}
