package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/tally/internal/id"
	"github.com/cleared-dev/tally/internal/ledger"
	"github.com/cleared-dev/tally/internal/model"
)

func newLedgerCommand(repo repoFunc) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect posted ledger entries",
	}
	ledgerCmd.AddCommand(newLedgerShowCommand(repo))
	return ledgerCmd
}

func newLedgerShowCommand(repo repoFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "show <YYYY-MM>",
		Short: "List a month's ledger entries with income and expense totals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := id.ParseMonth(args[0]); err != nil {
				return err
			}
			return withApp(cmd, repo, func(ctx context.Context, a *app) error {
				entries, err := a.ledger.ReadMonth(ctx, a.owner(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintf(out, "No entries for %s.\n", args[0])
					return nil
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ENTRY\tDATE\tCATEGORY\tAMOUNT\tDESCRIPTION")
				for _, e := range entries {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
						e.ID, e.Date.Format(model.DateFormat), e.Category, e.Amount.StringFixed(2), e.Description)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				income, expense := ledger.Totals(entries)
				fmt.Fprintf(out, "\nIncome:  %s\nExpense: %s\nNet:     %s\n",
					income.StringFixed(2), expense.StringFixed(2), income.Sub(expense).StringFixed(2))
				return nil
			})
		},
	}
}
