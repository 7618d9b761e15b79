package commands

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/store"
)

func newStatementsCommand(repo repoFunc) *cobra.Command {
	stmtCmd := &cobra.Command{
		Use:   "statements",
		Short: "Inspect and delete imported statements",
	}
	stmtCmd.AddCommand(
		newStatementsListCommand(repo),
		newStatementsShowCommand(repo),
		newStatementsDeleteCommand(repo),
	)
	return stmtCmd
}

func newStatementsListCommand(repo repoFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List imported statements, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, repo, func(ctx context.Context, a *app) error {
				stmts, err := a.statements.List(ctx, a.owner())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(stmts) == 0 {
					fmt.Fprintln(out, "No statements.")
					return nil
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tINSTITUTION\tACCOUNT\tDATE\tBALANCE\tFILE")
				for _, s := range stmts {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
						s.ID, s.InstitutionName, s.AccountID,
						s.StatementDate.Format(model.DateFormat), s.Balance.StringFixed(2), s.SourceFileName)
				}
				return tw.Flush()
			})
		},
	}
}

func newStatementsShowCommand(repo repoFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "show <statement-id>",
		Short: "List the transactions of one statement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, repo, func(ctx context.Context, a *app) error {
				txns, err := a.statements.Transactions(ctx, a.owner(), args[0])
				if err != nil {
					return err
				}
				printTransactions(cmd, txns)
				return nil
			})
		},
	}
}

func newStatementsDeleteCommand(repo repoFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <statement-id>",
		Short: "Delete a statement and its transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, repo, func(ctx context.Context, a *app) error {
				if err := a.statements.Delete(ctx, a.owner(), args[0]); err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return fmt.Errorf("statement %s not found", args[0])
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted statement %s\n", args[0])
				return nil
			})
		},
	}
}

func newPendingCommand(repo repoFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List unconsumed transactions and their totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, repo, func(ctx context.Context, a *app) error {
				txns, err := a.statements.Unconsumed(ctx, a.owner())
				if err != nil {
					return err
				}
				totals, err := a.statements.PendingTotals(ctx, a.owner())
				if err != nil {
					return err
				}
				printTransactions(cmd, txns)
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "\nCredits: %s (%d)\n", totals.Credits.StringFixed(2), totals.CreditCount)
				fmt.Fprintf(out, "Debits:  %s (%d)\n", totals.Debits.StringFixed(2), totals.DebitCount)
				fmt.Fprintf(out, "Net:     %s\n", totals.Net().StringFixed(2))
				return nil
			})
		},
	}
}

func newResetCommand(repo repoFunc) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every statement and transaction of the owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("reset deletes all statements and transactions; pass --yes to confirm")
			}
			return withApp(cmd, repo, func(ctx context.Context, a *app) error {
				if err := a.statements.Reset(ctx, a.owner()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "All statements deleted. Rules and ledger were kept.")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}

func printTransactions(cmd *cobra.Command, txns []model.BankTransaction) {
	out := cmd.OutOrStdout()
	if len(txns) == 0 {
		fmt.Fprintln(out, "No transactions.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tPOLARITY\tAMOUNT\tDESCRIPTION\tLEDGER")
	for _, t := range txns {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Date.Format(model.DateFormat), t.Polarity, t.Amount.StringFixed(2), t.Description, t.PostedLedgerEntryID)
	}
	tw.Flush()
}
