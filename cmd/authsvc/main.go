package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/authsvc/internal/app"
	"github.com/MrEthical07/authsvc/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:          "authsvc",
		Short:        "Username/password authentication service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file read before the environment")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the HTTP API",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withRuntime(envFile, func(cfg config.Server, logger logr.Logger) error {
					return app.Run(cmd.Context(), cfg, logger)
				})
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations and exit",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withRuntime(envFile, func(cfg config.Server, logger logr.Logger) error {
					return app.Migrate(cmd.Context(), cfg, logger)
				})
			},
		},
	)
	return root
}

func withRuntime(envFile string, fn func(config.Server, logr.Logger) error) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}

	logger, sync, err := app.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer sync()

	if err := app.InitSentry(cfg.SentryDSN, cfg.Environment); err != nil {
		logger.Error(err, "sentry disabled")
	}
	defer app.FlushSentry()

	return fn(cfg, logger)
}
