package propagate

import (
	"fmt"
	"io"

	"github.com/pterm/pterm"

	"github.com/rzbill/stencil/pkg/cli/format"
	"github.com/rzbill/stencil/pkg/types"
)

// PrintReport renders a finished run report for the terminal.
func PrintReport(w io.Writer, report *types.Report) {
	if report.DryRun {
		fmt.Fprintln(w, "\n🔍 Stencil Dry Run")
	} else {
		fmt.Fprintln(w, "\n📐 Stencil Propagation")
	}

	total := len(report.Results)
	for i, res := range report.Results {
		mark := "✓"
		if !res.Success {
			mark = "❌"
		}
		fmt.Fprintf(w, "  [%d/%d] %s %-24s %s\n", i+1, total, mark, res.App, res.Message)
	}

	rows := pterm.TableData{{"App", "Repository", "Status", "Pull Request", "Duration"}}
	for _, res := range report.Results {
		status := format.StatusLabel("ok")
		if !res.Success {
			status = format.StatusLabel("failed")
		} else if report.DryRun {
			status = format.StatusLabel("dry-run")
		}
		pr := res.PRURL
		if pr == "" {
			pr = "-"
		}
		rows = append(rows, []string{res.App, res.RepoURL, status, pr, res.Duration.Round(1e7).String()})
	}

	table, err := pterm.DefaultTable.WithHasHeader().WithData(rows).Srender()
	if err == nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, table)
	}

	elapsed := report.FinishedAt.Sub(report.StartedAt).Seconds()
	if report.FailureCount() == 0 {
		fmt.Fprintf(w, "🏁 %d/%d rows succeeded, %d pull requests, done in %.1fs\n",
			report.SuccessCount, total, report.PRCount, elapsed)
	} else {
		fmt.Fprintf(w, "🏁 %d/%d rows succeeded, %d failed, %d pull requests, done in %.1fs\n",
			report.SuccessCount, total, report.FailureCount(), report.PRCount, elapsed)
	}
}
