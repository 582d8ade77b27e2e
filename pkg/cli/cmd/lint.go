package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rzbill/stencil/pkg/cli/format"
	"github.com/rzbill/stencil/pkg/input"
	"github.com/rzbill/stencil/pkg/template"
	"github.com/rzbill/stencil/pkg/tokens"
	"github.com/rzbill/stencil/pkg/types"
	"github.com/rzbill/stencil/pkg/validate"
)

func newLintCmd() *cobra.Command {
	var (
		profileFlag  string
		templatesDir string
		outputFormat string
	)

	cmd := &cobra.Command{
		Use:   "lint <rows.csv>",
		Short: "Validate every row's artifact set without touching any repository",
		Long: `Lint resolves and renders each row in memory and runs the guardrail
checks: mandatory columns, placeholder leakage and YAML structure. The
exit code is non-zero when any row fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			newLogger(cfg)

			profile, err := resolveProfile(cfg, profileFlag)
			if err != nil {
				return err
			}
			library, err := resolveLibrary(cfg, templatesDir)
			if err != nil {
				return err
			}

			rows, err := input.ReadRows(args[0])
			if err != nil {
				return err
			}

			resolver := tokens.NewResolver(profile, tokens.Defaults{
				CPURequest:    cfg.Resources.CPURequest,
				CPULimit:      cfg.Resources.CPULimit,
				MemoryRequest: cfg.Resources.MemoryRequest,
				MemoryLimit:   cfg.Resources.MemoryLimit,
			})
			renderer := template.NewRenderer()
			printer := format.NewLintPrinter(cmd.OutOrStdout(), outputFormat)

			failures := 0
			for _, row := range rows {
				app := row.AppName()
				if app == "" {
					app = row.RepoURL()
				}

				tokenMap, err := resolver.Resolve(row)
				if err != nil {
					failures += printer.Print(app, []types.ValidationResult{
						{Artifact: "row", Message: err.Error()},
					})
					continue
				}

				agentEnabled := tokenMap[types.TokenAgentEnabled] == "true"
				plans := template.PlanFor(app, profile, row.Lang(), agentEnabled)
				artifacts, err := template.RenderAll(library, renderer, plans, tokenMap)
				if err != nil {
					return err
				}

				failures += printer.Print(app, validate.All(plans, artifacts))
			}

			if failures > 0 {
				return fmt.Errorf("%d check(s) failed", failures)
			}
			fmt.Fprintln(cmd.OutOrStdout(), format.Success("All %d row(s) passed", len(rows)))
			return nil
		},
	}

	cmd.Flags().StringVar(&profileFlag, "profile", "", "pipeline profile: standard or extended")
	cmd.Flags().StringVar(&templatesDir, "templates", "", "directory overriding the embedded templates")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "output format: text or json")
	return cmd
}
