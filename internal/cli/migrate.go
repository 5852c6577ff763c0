package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Messijah/PedagogiskDialog/internal/database"
)

func newMigrateCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := database.RunMigrations(a.cfg.Database); err != nil {
					return err
				}
				return printVersion(cmd, a)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := database.RollbackMigration(a.cfg.Database); err != nil {
					return err
				}
				return printVersion(cmd, a)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			RunE: func(cmd *cobra.Command, args []string) error {
				return printVersion(cmd, a)
			},
		},
	)
	return cmd
}

func printVersion(cmd *cobra.Command, a *app) error {
	version, dirty, err := database.MigrationVersion(a.cfg.Database)
	if err != nil {
		return err
	}
	if dirty {
		fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty)\n", version)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
	return nil
}
