// Package cli holds the operator commands behind seriosityctl.
package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"seriosity/internal/bootstrap"
	"seriosity/internal/platform/config"
	"seriosity/internal/platform/logger"
)

// NewRootCmd assembles the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "seriosityctl",
		Short:         "Operator tooling for the Seriosity trust and matching engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		MigrateCmd(),
		ReconcileCmd(),
		RecomputeCmd(),
		ReprocessCmd(),
		SyncOutcomeCmd(),
		RegisterPropertyCmd(),
		TokenCmd(),
	)
	return root
}

// loadApp parses configuration and builds the services for one command.
func loadApp(ctx context.Context) (*bootstrap.App, *slog.Logger, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(cfg.LogLevel)
	app, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return app, log, nil
}
