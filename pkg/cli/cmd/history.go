package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/rzbill/stencil/pkg/cli/format"
	"github.com/rzbill/stencil/pkg/propagate"
	"github.com/rzbill/stencil/pkg/store"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show past propagation runs",
		Long: `History lists the journaled runs, newest first. With a run ID it
prints that run's full per-row report.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			journal, err := store.Open(filepath.Join(cfg.DataDir, "journal"), logger)
			if err != nil {
				return err
			}
			defer journal.Close()

			if len(args) == 1 {
				report, err := journal.GetReport(args[0])
				if err != nil {
					return fmt.Errorf("run %s: %w", args[0], err)
				}
				propagate.PrintReport(cmd.OutOrStdout(), report)
				return nil
			}

			reports, err := journal.ListReports(limit)
			if err != nil {
				return err
			}
			if len(reports) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs journaled yet")
				return nil
			}

			rows := pterm.TableData{{"Run", "Started", "Rows", "Failed", "PRs", "Mode"}}
			for _, r := range reports {
				mode := "apply"
				if r.DryRun {
					mode = "dry-run"
				}
				failed := fmt.Sprintf("%d", r.FailureCount())
				if r.FailureCount() > 0 {
					failed = format.Error("%d", r.FailureCount())
				}
				rows = append(rows, []string{
					r.RunID,
					r.StartedAt.Format("2006-01-02 15:04:05"),
					fmt.Sprintf("%d", len(r.Results)),
					failed,
					fmt.Sprintf("%d", r.PRCount),
					mode,
				})
			}

			table, err := pterm.DefaultTable.WithHasHeader().WithData(rows).Srender()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs to list")
	return cmd
}
