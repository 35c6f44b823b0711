package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"bureausocial/internal/app/bootstrap"
	"bureausocial/internal/app/cli"

	"github.com/spf13/cobra"
)

const programName = "bureausocial-worker"

// Worker process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring.
// 3) Start the notification consumer and the outbox relay.
func main() {
	var flags cli.Flags
	var once bool
	rootCmd := &cobra.Command{
		Use:          programName,
		Short:        "Relay assembly events and deliver member notifications",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := flags.Setup(programName)
			if err != nil {
				return err
			}
			app, err := bootstrap.BuildWorker(cfg, logger)
			if err != nil {
				return fmt.Errorf("bootstrap worker: %w", err)
			}
			defer func() {
				if err := app.Close(); err != nil {
					logger.Error("worker shutdown close failed", "error", err.Error())
				}
			}()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if once {
				published, err := app.RunOnce(ctx)
				if err != nil {
					return err
				}
				logger.Info("outbox drained", "published_count", published)
				return nil
			}
			return app.Run(ctx)
		},
	}
	flags.Register(rootCmd)
	rootCmd.Flags().BoolVar(&once, "once", false, "relay one outbox batch and exit")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}
