// Package app assembles the authsvc server from its environment
// configuration: stores, engine, HTTP surface and lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/MrEthical07/authsvc"
	"github.com/MrEthical07/authsvc/internal/config"
	"github.com/MrEthical07/authsvc/internal/httpapi"
	promexport "github.com/MrEthical07/authsvc/metrics/export/prometheus"
)

const shutdownTimeout = 10 * time.Second

// NewEngine builds an engine over stores configured from cfg.
func NewEngine(cfg config.Server, stores *Stores, logger logr.Logger) (*authsvc.Engine, error) {
	b := authsvc.New().
		WithConfig(cfg.Engine()).
		WithUserStore(stores.Users).
		WithRefreshStore(stores.Refresh).
		WithResetStore(stores.Resets).
		WithLogger(logger.WithName("engine")).
		WithResetNotifier(logNotifier(cfg, logger.WithName("reset"))).
		WithLatencyHistograms(cfg.MetricsEnabled)
	if stores.Counters != nil {
		b.WithCounterStore(stores.Counters)
	}
	if cfg.AuditEnabled {
		b.WithAuditSink(authsvc.NewLogSink(logger.WithName("audit")))
	}
	return b.Build()
}

// logNotifier records reset issuance. Outside development the token
// itself is never logged; delivery is left to an external mailer.
func logNotifier(cfg config.Server, logger logr.Logger) authsvc.ResetNotifier {
	return authsvc.ResetNotifierFunc(func(_ context.Context, user authsvc.User, token string, expiresAt time.Time) error {
		kv := []any{"username", user.Username, "expires_at", expiresAt.UTC().Format(time.RFC3339)}
		if cfg.Environment == "development" {
			kv = append(kv, "token", token)
		}
		logger.Info("password reset issued", kv...)
		return nil
	})
}

// NewHandler returns the HTTP surface for engine.
func NewHandler(cfg config.Server, engine *authsvc.Engine, logger logr.Logger) http.Handler {
	opts := httpapi.Options{
		Engine:     engine,
		Logger:     logger.WithName("http"),
		BaseURL:    cfg.BaseURL,
		TrustProxy: cfg.TrustProxy,
	}
	if cfg.RecaptchaSecret != "" {
		opts.Captcha = httpapi.NewRecaptcha(cfg.RecaptchaSecret)
	}
	if cfg.MetricsEnabled {
		opts.Metrics = promexport.Handler(engine)
	}
	return httpapi.NewHandler(opts)
}

// Run serves the API until ctx is cancelled, then drains in-flight
// requests and stops the engine.
func Run(ctx context.Context, cfg config.Server, logger logr.Logger) error {
	stores, err := OpenStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := stores.Close(); err != nil {
			logger.Error(err, "close stores")
		}
	}()

	engine, err := NewEngine(cfg, stores, logger)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(cfg, engine, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return serve(ctx, srv, logger)
}

func serve(ctx context.Context, srv *http.Server, logger logr.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http: %w", err)
		}
		logger.Info("server stopped")
		return nil
	})
	return g.Wait()
}
