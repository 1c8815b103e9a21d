// Package cmd provides the ledgerctl commands.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"ledger/internal/cli"
	"ledger/internal/config"
	"ledger/internal/log"
)

var (
	debug   bool
	timeout time.Duration

	// app is built by the root command before any subcommand runs.
	app *cli.App

	// buildApp is replaced in tests.
	buildApp = func(ctx context.Context, cfg *config.Config, logger *log.Logger) (*cli.App, error) {
		return cli.Build(ctx, cfg, logger, false)
	}
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operate the ledger from the command line",
		Long: `ledgerctl runs maintenance tasks against the configured ledger backend.

It reads the same environment as the server (DATA_BACKEND, SQLITE_DB_PATH,
rate provider URLs) and never publishes events.

Example:
  ledgerctl rates refresh
  ledgerctl convert 100 USD EUR
  ledgerctl accounts
  ledgerctl reconcile --repair`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if debug {
				level = slog.LevelDebug
			}
			logger := log.New(log.Config{
				Level:     level,
				Component: log.ComponentApp,
				Output:    cmd.ErrOrStderr(),
			})
			log.SetDefault(logger)

			if err := cli.LoadEnvFile(); err != nil {
				logger.Warn("Failed to load .env file", "error", err)
			}
			cfg, err := cli.LoadAndValidateConfig()
			if err != nil {
				return err
			}
			// AMQP stays off so commands do not emit events.
			cfg.AMQPURL = ""

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			app, err = buildApp(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("initialize ledger: %w", err)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if app == nil {
				return nil
			}
			err := app.Close()
			app = nil
			return err
		},
	}

	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "timeout for each command")

	root.AddCommand(newRatesCmd())
	root.AddCommand(newConvertCmd())
	root.AddCommand(newAccountsCmd())
	root.AddCommand(newReconcileCmd())
	return root
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}
