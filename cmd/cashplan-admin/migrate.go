package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cashplan/internal/storage"
)

func (a *app) migrateCmd() *cobra.Command {
	var status bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !status {
				a.logger.Info("Running database migrations", "path", a.cfg.SQLiteDBPath)
				if err := storage.RunMigrations(a.cfg.SQLiteDBPath); err != nil {
					return err
				}
			}
			version, dirty, err := storage.MigrationVersion(a.cfg.SQLiteDBPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", version, dirty)
			return nil
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "show the applied version without migrating")
	return cmd
}
