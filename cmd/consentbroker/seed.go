package main

import (
	"errors"

	"github.com/spf13/cobra"

	"consentbroker/internal/directory"
	"consentbroker/internal/platform/database"
)

func newSeedCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert directory parties and items from a YAML file into Postgres",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.DatabaseURL == "" {
				return errors.New("seed needs DATABASE_URL; the in-memory directory loads DIRECTORY_SEED_FILE at startup")
			}
			pool, err := database.New(cmd.Context(), database.DefaultConfig(a.cfg.DatabaseURL))
			if err != nil {
				return err
			}
			defer pool.Close()

			parties, items, err := directory.ParseSeedFile(file)
			if err != nil {
				return err
			}
			if err := directory.NewPostgresStore(pool.DB()).Upsert(cmd.Context(), parties, items); err != nil {
				return err
			}
			a.logger.Info("directory seeded", "parties", len(parties), "items", len(items))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML seed file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
