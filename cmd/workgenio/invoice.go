package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"workgenio/internal/core/apperror"
	"workgenio/internal/core/numerator"
)

func newInvoiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoice",
		Short: "Manage invoice numbering",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "next <year>",
			Short: "Allocate the next invoice number of a year",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				year, err := parseYear(args[0])
				if err != nil {
					return err
				}
				number, err := appFrom(cmd).numbering.Next(cmd.Context(), year)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), number)
				return nil
			},
		},
		&cobra.Command{
			Use:   "peek <year>",
			Short: "Print the number the next allocation would issue, without reserving it",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				year, err := parseYear(args[0])
				if err != nil {
					return err
				}
				number, err := appFrom(cmd).numbering.Peek(cmd.Context(), year)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), number)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show <year>",
			Short: "Show the counter of a year and the next number",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				year, err := parseYear(args[0])
				if err != nil {
					return err
				}
				c, err := appFrom(cmd).numbering.Current(cmd.Context(), year)
				if err != nil {
					return err
				}
				printCounters(cmd, []numerator.Counter{c})
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <year> <last-number>",
			Short: "Move a counter forward, e.g. after importing invoices",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				year, err := parseYear(args[0])
				if err != nil {
					return err
				}
				last, err := strconv.ParseInt(args[1], 10, 64)
				if err != nil {
					return apperror.NewValidation("last number must be an integer").WithDetail("last_number", args[1])
				}
				if err := appFrom(cmd).numbering.SetLast(cmd.Context(), year, last); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "next number: %s\n", numerator.Counter{Year: year, LastNumber: last}.NextNumber())
				return nil
			},
		},
		&cobra.Command{
			Use:   "import <last-issued-number>",
			Short: "Continue an existing numbering after its last invoice, e.g. 2024/0137",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := appFrom(cmd).numbering.Import(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "next number: %s\n", c.NextNumber())
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List all counters",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				counters, err := appFrom(cmd).numbering.List(cmd.Context())
				if err != nil {
					return err
				}
				printCounters(cmd, counters)
				return nil
			},
		},
	)
	return cmd
}

func parseYear(s string) (int, error) {
	year, err := strconv.Atoi(s)
	if err != nil || year <= 0 {
		return 0, apperror.NewValidation("year must be a positive integer").WithDetail("year", s)
	}
	return year, nil
}

func printCounters(cmd *cobra.Command, counters []numerator.Counter) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "YEAR\tLAST\tNEXT")
	for _, c := range counters {
		fmt.Fprintf(w, "%d\t%d\t%s\n", c.Year, c.LastNumber, c.NextNumber())
	}
	_ = w.Flush()
}
