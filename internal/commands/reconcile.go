package commands

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cleared-dev/tally/internal/gitops"
	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/reconcile"
	"github.com/cleared-dev/tally/internal/runlog"
)

func newReconcileCommand(repo repoFunc) *cobra.Command {
	var selected []string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Post pending transactions to the ledger using the owner's rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, repo, func(ctx context.Context, a *app) error {
				return runReconcile(ctx, cmd, a, selected, dryRun)
			})
		},
	}
	cmd.Flags().StringSliceVar(&selected, "select", nil, "only reconcile these transaction IDs")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show which rule each transaction would use without posting")
	return cmd
}

func runReconcile(ctx context.Context, cmd *cobra.Command, a *app, selected []string, dryRun bool) error {
	out := cmd.OutOrStdout()

	var txns []model.BankTransaction
	var err error
	if len(selected) > 0 {
		txns, err = a.statements.Lookup(ctx, a.owner(), selected)
	} else {
		txns, err = a.statements.Unconsumed(ctx, a.owner())
	}
	if err != nil {
		return err
	}
	// Oldest first, so ledger sequences follow transaction dates.
	slices.SortStableFunc(txns, func(x, y model.BankTransaction) int {
		return x.Date.Compare(y.Date)
	})

	if len(txns) == 0 {
		fmt.Fprintln(out, "Nothing to reconcile.")
		return nil
	}

	if dryRun {
		res, err := a.engine.Preview(ctx, a.owner(), txns)
		if err != nil {
			return err
		}
		printPreview(cmd, res)
		return nil
	}

	var res *reconcile.Result
	if len(selected) > 0 {
		res, err = a.engine.ReconcileSelected(ctx, a.owner(), selected, txns)
	} else {
		res, err = a.engine.Reconcile(ctx, a.owner(), txns)
	}
	if res == nil {
		return err
	}

	reconcile.WriteSummary(out, res)

	runID := uuid.NewString()
	if lerr := runlog.Append(a.root, runlog.FromResult(a.owner(), runID, time.Now(), res)); lerr != nil {
		a.logger.Error("writing reconcile log", zap.Error(lerr))
	}
	if merr := a.flushMetrics(); merr != nil {
		a.logger.Warn("flushing metrics", zap.Error(merr))
	}
	if cerr := commitRun(ctx, a, res); cerr != nil {
		a.logger.Warn("committing reconcile run", zap.Error(cerr))
	}

	if errors.Is(err, reconcile.ErrNoRelevantRules) {
		return fmt.Errorf("%w: check rules with 'tally rules list'", err)
	}
	return err
}

func commitRun(ctx context.Context, a *app, res *reconcile.Result) error {
	if !a.cfg.Git.AutoCommit || !gitops.IsRepo(a.root) {
		return nil
	}
	msg := fmt.Sprintf("reconcile: post %d entries (%d consumed)", res.PostedCount, res.ConsumedCount)
	hash, err := gitops.CommitAll(ctx, a.root, msg, gitAuthor(a.cfg))
	if err != nil {
		return err
	}
	if hash != "" {
		a.logger.Info("committed reconcile run", zap.String("commit", hash))
	}
	return nil
}

func printPreview(cmd *cobra.Command, res *reconcile.Result) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TRANSACTION\tSTATUS\tSOURCE\tRULE\tPOSTED AS")
	for _, o := range res.Outcomes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", o.TransactionID, o.Status, o.SourceDescription, o.MatchedRule, o.PostedDescription)
	}
	tw.Flush()
}
