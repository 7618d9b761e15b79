package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cleared-dev/tally/internal/importer"
)

func newImportCommand(repo repoFunc) *cobra.Command {
	var keep bool

	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import OFX statements (default: every file in import/)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, repo, func(ctx context.Context, a *app) error {
				return runImport(ctx, cmd, a, args, keep)
			})
		},
	}
	cmd.Flags().BoolVar(&keep, "keep", false, "leave files in import/ after importing")
	return cmd
}

func runImport(ctx context.Context, cmd *cobra.Command, a *app, args []string, keep bool) error {
	out := cmd.OutOrStdout()

	// Files named on the command line are read in place; scanned files are
	// moved to import/processed afterwards.
	var files []importer.FileInfo
	scanned := len(args) == 0
	if scanned {
		found, err := importer.Scan(a.root)
		if err != nil {
			return err
		}
		files = found
	} else {
		for _, arg := range args {
			abs, err := filepath.Abs(arg)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			info, err := os.Stat(abs)
			if err != nil {
				return fmt.Errorf("reading %s: %w", arg, err)
			}
			files = append(files, importer.FileInfo{Name: info.Name(), Path: abs, Size: info.Size()})
		}
	}

	if len(files) == 0 {
		fmt.Fprintln(out, "No statement files to import.")
		return nil
	}

	imported := 0
	for _, f := range files {
		parsed, err := a.registry.ParseFile(f.Path)
		if err != nil {
			return err
		}
		res, err := a.statements.Import(ctx, a.owner(), parsed, f.Name)
		if err != nil {
			return fmt.Errorf("importing %s: %w", f.Name, err)
		}
		a.logger.Info("imported statement",
			zap.String("file", f.Name),
			zap.String("statement", res.Statement.ID),
			zap.Int("transactions", len(res.Transactions)),
		)
		fmt.Fprintf(out, "%s: %s %s, %d transactions (statement %s)\n",
			f.Name, res.Statement.InstitutionName, res.Statement.AccountID, len(res.Transactions), res.Statement.ID)
		imported++

		if scanned && !keep {
			if err := importer.MarkProcessed(a.root, f.Name); err != nil {
				return err
			}
		}
	}
	fmt.Fprintf(out, "Imported %d statement(s)\n", imported)
	return nil
}
