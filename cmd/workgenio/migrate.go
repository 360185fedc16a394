package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"workgenio/internal/infrastructure/storage/postgres"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema (idempotent)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			if a.txm == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "memory store: nothing to migrate")
				return nil
			}
			if err := postgres.Migrate(cmd.Context(), a.txm); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}
