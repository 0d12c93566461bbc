package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"consentbroker/internal/platform/database"
	"consentbroker/migrations"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.DatabaseURL == "" {
				return errors.New("migrate needs DATABASE_URL")
			}
			pool, err := database.New(cmd.Context(), database.DefaultConfig(a.cfg.DatabaseURL))
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := migrations.Up(cmd.Context(), pool.DB())
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			a.logger.Info("migrations applied", "count", len(applied), "files", applied)
			return nil
		},
	}
}
