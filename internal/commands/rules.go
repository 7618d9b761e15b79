package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/rules"
)

func newRulesCommand(repo repoFunc) *cobra.Command {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage reconciliation rules",
	}
	rulesCmd.AddCommand(
		newRulesListCommand(repo),
		newRulesSeedCommand(repo),
		newRulesExportCommand(repo),
		newRulesImportCommand(repo),
	)
	return rulesCmd
}

func newRulesListCommand(repo repoFunc) *cobra.Command {
	var onlyActive bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the owner's rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, repo, func(ctx context.Context, a *app) error {
				list := a.rules.List
				if onlyActive {
					list = a.rules.ListActive
				}
				rs, err := list(ctx, a.owner())
				if err != nil {
					return err
				}
				printRules(cmd, rs)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&onlyActive, "active", false, "only list active rules")
	return cmd
}

func printRules(cmd *cobra.Command, rs []model.Rule) {
	out := cmd.OutOrStdout()
	if len(rs) == 0 {
		fmt.Fprintln(out, "No rules.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCATEGORY\tPATTERN\tDESCRIPTION\tAUTO\tACTIVE")
	for _, r := range rs {
		desc := r.TargetDescription
		if r.UseOriginalDescription {
			desc = "(original)"
		}
		pattern := r.MatchPattern
		if r.IsCatchAll() {
			pattern = "(any)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%t\n", r.Name, r.TargetCategory, pattern, desc, r.AutoApply, r.Active)
	}
	tw.Flush()
}

func newRulesSeedCommand(repo repoFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Install the default rule set for an owner without rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, repo, func(ctx context.Context, a *app) error {
				rs, err := a.rules.Seed(ctx, a.owner())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d rules\n", len(rs))
				return nil
			})
		},
	}
}

func newRulesExportCommand(repo repoFunc) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the owner's rules to a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, repo, func(ctx context.Context, a *app) error {
				rs, err := a.rules.List(ctx, a.owner())
				if err != nil {
					return err
				}
				path := a.path(file)
				if err := writeRulesFile(path, rs); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d rules to %s\n", len(rs), path)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", rules.DefaultPath, "rules file")
	return cmd
}

func newRulesImportCommand(repo repoFunc) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace the owner's rules with the contents of a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, repo, func(ctx context.Context, a *app) error {
				path := a.path(file)
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("opening rules file: %w", err)
				}
				defer f.Close()

				rs, err := rules.ReadRules(f)
				if err != nil {
					return err
				}
				if err := a.rules.Replace(ctx, a.owner(), rs); err != nil {
					return fmt.Errorf("replacing rules: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d rules from %s\n", len(rs), path)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", rules.DefaultPath, "rules file")
	return cmd
}

func writeRulesFile(path string, rs []model.Rule) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating rules dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating rules file: %w", err)
	}
	if err := rules.WriteRules(f, rs); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
