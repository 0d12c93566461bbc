package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"consentbroker/internal/platform/config"
	"consentbroker/internal/platform/logger"
)

const (
	tokenIssuer     = "consentbroker"
	defaultTokenTTL = 15 * time.Minute
)

// app carries what every subcommand needs once the root has loaded it.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "consentbroker",
		Short:        "Consent-gated access to protected items",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			a.cfg = cfg
			a.logger = logger.New(cfg.LogLevel)
			slog.SetDefault(a.logger)
			return nil
		},
	}
	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newReconcileCmd(a),
		newSeedCmd(a),
		newTokenCmd(a),
	)
	return root
}
