package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rzbill/stencil/pkg/input"
	"github.com/rzbill/stencil/pkg/template"
	"github.com/rzbill/stencil/pkg/tokens"
	"github.com/rzbill/stencil/pkg/types"
)

func newRenderCmd() *cobra.Command {
	var (
		app          string
		outDir       string
		profileFlag  string
		templatesDir string
	)

	cmd := &cobra.Command{
		Use:   "render <rows.csv>",
		Short: "Render artifact sets to a local directory",
		Long: `Render resolves each row and writes its artifact set under
<out>/<app>/ without cloning, committing or opening pull requests.
Useful for inspecting what apply would publish.`,
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

			rendered := 0
			for _, row := range rows {
				if app != "" && row.AppName() != app {
					continue
				}

				tokenMap, err := resolver.Resolve(row)
				if err != nil {
					return err
				}

				agentEnabled := tokenMap[types.TokenAgentEnabled] == "true"
				plans := template.PlanFor(row.AppName(), profile, row.Lang(), agentEnabled)
				artifacts, err := template.RenderAll(library, renderer, plans, tokenMap)
				if err != nil {
					return err
				}

				for _, a := range artifacts {
					target := filepath.Join(outDir, row.AppName(), filepath.FromSlash(a.Path))
					if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
						return err
					}
					if err := os.WriteFile(target, []byte(a.Content), 0o644); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "- %s\n", target)
				}
				rendered++
			}

			if rendered == 0 {
				return fmt.Errorf("no rows matched")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rendered %d artifact set(s) under %s\n", rendered, outDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&app, "app", "", "render only the row with this appName")
	cmd.Flags().StringVarP(&outDir, "out", "o", "rendered", "output directory")
	cmd.Flags().StringVar(&profileFlag, "profile", "", "pipeline profile: standard or extended")
	cmd.Flags().StringVar(&templatesDir, "templates", "", "directory overriding the embedded templates")
	return cmd
}
