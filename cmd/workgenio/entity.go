package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"workgenio/internal/core/apperror"
	core "workgenio/internal/core/integrity"
)

func parseEntity(args []string) (core.EntityType, int64, error) {
	t, err := core.ParseEntityType(args[0])
	if err != nil {
		return "", 0, apperror.NewValidation(err.Error())
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || id <= 0 {
		return "", 0, apperror.NewValidation("id must be a positive integer").WithDetail("id", args[1])
	}
	return t, id, nil
}

func newDepsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deps <customer|product|supplier> <id>",
		Short: "Report which dependent records exist",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, id, err := parseEntity(args)
			if err != nil {
				return err
			}
			report, err := appFrom(cmd).guard.CheckDependents(cmd.Context(), t, id)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CATEGORY\tTABLE\tPRESENT\tROWS")
			for _, c := range report.Categories {
				fmt.Fprintf(w, "%s\t%s\t%t\t%d\n", c.Category, c.Table, c.Count > 0, c.Count)
			}
			return w.Flush()
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <customer|product|supplier> <id>",
		Short: "Delete a record that nothing references",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, id, err := parseEntity(args)
			if err != nil {
				return err
			}
			if err := appFrom(cmd).purger.Delete(cmd.Context(), t, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d deleted\n", t, id)
			return nil
		},
	}
}

func newPurgeCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "purge <customer|product|supplier> <id>",
		Short: "Delete a record together with every dependent record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, id, err := parseEntity(args)
			if err != nil {
				return err
			}
			result, err := appFrom(cmd).purger.Purge(cmd.Context(), t, id, yes)
			if err != nil {
				if apperror.HasCode(err, apperror.CodeConfirmationRequired) {
					return fmt.Errorf("%w (pass --yes to confirm)", err)
				}
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STEP\tTABLE\tPOLICY\tROWS")
			for i, s := range result.Steps {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", i+1, s.Table, s.Policy, s.Rows)
			}
			_ = w.Flush()
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d purged, %d rows affected\n", t, id, result.RowsAffected())
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the cascading delete")
	return cmd
}
