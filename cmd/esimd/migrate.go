package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"esim-payments/internal/config"
	"esim-payments/internal/database"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			cfg := config.Load()
			db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.Migrate(ctx, db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}
