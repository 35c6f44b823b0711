package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bureausocial/internal/app/bootstrap"
	"bureausocial/internal/app/cli"
	"bureausocial/internal/platform/identity"

	"github.com/spf13/cobra"
)

const programName = "bureausocial-api"

// API process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring (ports + adapters + use cases).
// 3) Start HTTP server until SIGINT/SIGTERM.
func main() {
	var flags cli.Flags
	rootCmd := &cobra.Command{
		Use:          programName,
		Short:        "Serve the assembly voting API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := flags.Setup(programName)
			if err != nil {
				return err
			}
			app, err := bootstrap.BuildAPI(cfg, logger)
			if err != nil {
				return fmt.Errorf("bootstrap api: %w", err)
			}
			defer func() {
				if err := app.Close(); err != nil {
					logger.Error("api shutdown close failed", "error", err.Error())
				}
			}()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.Run(ctx)
		},
	}
	flags.Register(rootCmd)
	rootCmd.AddCommand(seedAdminCommand(&flags), tokenCommand(&flags))

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func seedAdminCommand(flags *cli.Flags) *cobra.Command {
	var name, email string
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the first administrator member",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := flags.Setup(programName)
			if err != nil {
				return err
			}
			member, err := bootstrap.SeedAdmin(cmd.Context(), cfg, logger, name, email)
			if err != nil {
				return fmt.Errorf("seed admin: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), member.MemberID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "administrator name")
	cmd.Flags().StringVar(&email, "email", "", "administrator email")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func tokenCommand(flags *cli.Flags) *cobra.Command {
	var (
		principal identity.Principal
		ttl       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed bearer token for a member",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := flags.Setup(programName)
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return errors.New("jwtSecret is not configured")
			}
			token, err := identity.NewVerifier(cfg.JWTSecret, cfg.ServiceName).Issue(principal, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&principal.MemberID, "member", "", "member id")
	cmd.Flags().BoolVar(&principal.IsAdmin, "admin", false, "grant administrator rights")
	cmd.Flags().BoolVar(&principal.IsBoard, "board", false, "grant board rights")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("member")
	return cmd
}
