package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/tally/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var repoDir string

	rootCmd := &cobra.Command{
		Use:     "tally",
		Short:   "Bank statement reconciliation",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&repoDir, "repo", ".", "project directory")

	repo := func() (string, error) {
		abs, err := filepath.Abs(repoDir)
		if err != nil {
			return "", fmt.Errorf("resolving path: %w", err)
		}
		return abs, nil
	}

	rootCmd.AddCommand(
		newInitCommand(),
		newImportCommand(repo),
		newStatementsCommand(repo),
		newPendingCommand(repo),
		newResetCommand(repo),
		newReconcileCommand(repo),
		newRulesCommand(repo),
		newLedgerCommand(repo),
	)

	return rootCmd
}

// repoFunc resolves the --repo flag.
type repoFunc func() (string, error)

// withApp opens the project, runs fn and closes the project.
func withApp(cmd *cobra.Command, repo repoFunc, fn func(ctx context.Context, a *app) error) (err error) {
	root, err := repo()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := openApp(ctx, root)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing: %w", cerr)
		}
	}()
	return fn(ctx, a)
}
