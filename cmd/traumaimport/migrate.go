package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/traumaregistry/intake/internal/database"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or revert the registry schema",
		ValidArgs: []string{string(database.Up), string(database.Down)},
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs)(cmd, args); err != nil {
				return withCode(exitUsage, err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := database.Up
			if len(args) == 1 {
				dir = database.Direction(args[0])
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDatabase(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.Migrate(db, cfg.Database.Dialect(), dir); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "SUCCESS: schema migrated %s\n", dir)
			return nil
		},
	}
}
