package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"listing_governance/internal/server"
	"listing_governance/pkg/config"
)

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the governance API and metrics servers",
		Long: `Serve starts the HTTP API and the Prometheus metrics endpoint. Settings are
read from GOVERNOR_* environment variables.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return WrapExitError(ExitCommandError, "load config", err)
			}
			if err := cfg.Validate(); err != nil {
				return WrapExitError(ExitCommandError, "invalid config", err)
			}

			level, err := config.ParseLevel(cfg.App.LogLevel)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid config", err)
			}
			if rootOpts.Verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)

			logger.Info("Starting application", slog.String("name", "listing_governance"))

			srv, err := server.New(cfg, logger)
			if err != nil {
				return WrapExitError(ExitCommandError, "start server", err)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			return srv.Run(ctx)
		},
	}
}
