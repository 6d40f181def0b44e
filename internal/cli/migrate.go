package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/findirfin/ringil/internal/adapters/storage/sqlite"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the SQLite schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			storage, err := sqlite.NewAdapter(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer storage.Close()

			ctx := cmd.Context()
			if err := storage.Migrate(ctx); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			applied, err := storage.AppliedMigrations(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, version := range applied {
				fmt.Fprintf(out, "applied %s\n", version)
			}
			fmt.Fprintf(out, "Database %s is up to date\n", cfg.Database.Path)
			return nil
		},
	}
}
