// Package httpapi serves the authsvc engine over HTTP/JSON.
package httpapi

import (
	"net/http"

	"github.com/go-logr/logr"

	"github.com/MrEthical07/authsvc"
	"github.com/MrEthical07/authsvc/middleware"
)

// Route paths. The /auth/V1 prefix keeps the casing clients already use.
const (
	PathSignup         = "/auth/V1/signup"
	PathLogin          = "/auth/V1/login"
	PathRefresh        = "/auth/V1/refresh"
	PathLogout         = "/auth/V1/logout"
	PathForgotPassword = "/auth/V1/forgot-password"
	PathResetPassword  = "/auth/V1/reset-password"
	PathAdminHello     = "/admin/hello"
	PathHealth         = "/healthz"
	PathMetrics        = "/metrics"
)

// Options configures NewHandler. Engine is required.
type Options struct {
	Engine *authsvc.Engine
	Logger logr.Logger
	// Captcha gates signup when set.
	Captcha CaptchaVerifier
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// BaseURL is advertised in the OpenID metadata when no issuer is
	// configured.
	BaseURL string
	// TrustProxy keys rate limits on X-Forwarded-For.
	TrustProxy bool
}

type server struct {
	engine  *authsvc.Engine
	logger  logr.Logger
	captcha CaptchaVerifier
	baseURL string
}

// NewHandler returns the complete HTTP surface: routes, rate limiting,
// request logging and panic recovery.
func NewHandler(opts Options) http.Handler {
	logger := opts.Logger
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}
	s := &server{
		engine:  opts.Engine,
		logger:  logger,
		captcha: opts.Captcha,
		baseURL: opts.BaseURL,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+PathSignup, s.signup)
	mux.HandleFunc("POST "+PathLogin, s.login)
	mux.HandleFunc("POST "+PathRefresh, s.refresh)
	mux.HandleFunc("POST "+PathLogout, s.logout)
	mux.HandleFunc("POST "+PathForgotPassword, s.forgotPassword)
	mux.HandleFunc("POST "+PathResetPassword, s.resetPassword)
	mux.HandleFunc("GET "+authsvc.JWKSPath, s.jwks)
	mux.HandleFunc("GET "+authsvc.OpenIDConfigPath, s.openIDConfiguration)
	mux.HandleFunc("GET "+PathHealth, s.health)

	admin := middleware.Guard(opts.Engine)(middleware.RequireRole(authsvc.RoleAdmin)(http.HandlerFunc(s.adminHello)))
	mux.Handle("GET "+PathAdminHello, admin)

	if opts.Metrics != nil {
		mux.Handle("GET "+PathMetrics, opts.Metrics)
	}

	var h http.Handler = mux
	h = middleware.RateLimit(opts.Engine, opts.TrustProxy)(h)
	h = RequestLogging(logger, opts.TrustProxy, h)
	h = Recover(logger, h)
	return h
}
