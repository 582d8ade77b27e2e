package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/docker/client"
	"github.com/spf13/cobra"

	"github.com/rzbill/stencil/internal/config"
	"github.com/rzbill/stencil/pkg/build"
	"github.com/rzbill/stencil/pkg/exec"
	"github.com/rzbill/stencil/pkg/input"
	"github.com/rzbill/stencil/pkg/log"
	"github.com/rzbill/stencil/pkg/propagate"
	"github.com/rzbill/stencil/pkg/repo"
	"github.com/rzbill/stencil/pkg/scm"
	"github.com/rzbill/stencil/pkg/store"
	"github.com/rzbill/stencil/pkg/template"
	"github.com/rzbill/stencil/pkg/tokens"
	"github.com/rzbill/stencil/pkg/types"
)

type applyOptions struct {
	dryRun       bool
	skipBuild    bool
	profile      string
	workDir      string
	templatesDir string
	timeout      time.Duration
	apiBase      string
	token        string
	branchPrefix string
}

func newApplyCmd() *cobra.Command {
	opts := &applyOptions{}

	cmd := &cobra.Command{
		Use:   "apply <rows.csv>",
		Short: "Propagate templates to every repository in the row file",
		Long: `Apply runs the full pipeline for each row: resolve tokens, render
and validate the artifact set, reconcile the change branch, commit, push
and open the pull request. Rows fail independently; the run continues.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return runApply(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "render and validate only, touch nothing")
	cmd.Flags().BoolVar(&opts.skipBuild, "skip-build", false, "skip local docker/maven/helm verification")
	cmd.Flags().StringVar(&opts.profile, "profile", "", "pipeline profile: standard or extended")
	cmd.Flags().StringVar(&opts.workDir, "workdir", "", "directory for repository clones")
	cmd.Flags().StringVar(&opts.templatesDir, "templates", "", "directory overriding the embedded templates")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "per-command timeout for git/build subprocesses")
	cmd.Flags().StringVar(&opts.apiBase, "api-base", "", "SCM REST API base URL")
	cmd.Flags().StringVar(&opts.token, "token", "", "SCM API token (prefer STENCIL_SCM_TOKEN)")
	cmd.Flags().StringVar(&opts.branchPrefix, "branch-prefix", "", "change branch prefix")
	return cmd
}

func runApply(cmd *cobra.Command, rowsPath string, opts *applyOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyOverrides(cfg, opts)
	logger := newLogger(cfg)

	profile, err := resolveProfile(cfg, opts.profile)
	if err != nil {
		return err
	}

	rows, err := input.ReadRows(rowsPath)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("%s contains no rows", rowsPath)
	}

	library, err := resolveLibrary(cfg, opts.templatesDir)
	if err != nil {
		return err
	}

	resolver := tokens.NewResolver(profile, tokens.Defaults{
		CPURequest:    cfg.Resources.CPURequest,
		CPULimit:      cfg.Resources.CPULimit,
		MemoryRequest: cfg.Resources.MemoryRequest,
		MemoryLimit:   cfg.Resources.MemoryLimit,
	})

	workRoot := cfg.Workspace.Root
	if workRoot == "" && !opts.dryRun {
		workRoot, err = os.MkdirTemp("", "stencil-*")
		if err != nil {
			return fmt.Errorf("create workspace: %w", err)
		}
		logger.Info("Using workspace", log.Str("dir", workRoot))
	}

	executor := exec.NewOSExecutor(cfg.Exec.Timeout, logger)
	repos := repo.NewManager(executor, workRoot, cfg.Git.BranchPrefix, logger)
	committer := repo.NewCommitter(executor, cfg.Git.CommitMessage, logger)

	var verifier propagate.LocalVerifier
	if !opts.dryRun && !opts.skipBuild && !cfg.Build.Skip {
		verifier = buildVerifier(cfg, executor, logger)
	}

	var journal store.Store
	if opts.dryRun {
		journal = store.NewMemoryStore()
	} else {
		journal, err = store.Open(filepath.Join(cfg.DataDir, "journal"), logger)
		if err != nil {
			logger.Warn("Run journal unavailable", log.Err(err))
			journal = store.NewMemoryStore()
		}
		defer journal.Close()
	}

	orchestrator := propagate.New(
		propagate.Options{
			Profile:   profile,
			DryRun:    opts.dryRun,
			SkipBuild: opts.skipBuild || cfg.Build.Skip,
		},
		resolver,
		library,
		repos,
		committer,
		verifier,
		scm.NewClient(cfg.SCM.APIBase, cfg.SCM.Token, logger),
		journal,
		logger,
	)

	report := orchestrator.Run(cmd.Context(), rows)
	propagate.PrintReport(cmd.OutOrStdout(), report)

	// Row failures are reported in the table; only batch-level problems
	// fail the process.
	return nil
}

// applyOverrides layers explicit flags over the file/env configuration.
func applyOverrides(cfg *config.Config, opts *applyOptions) {
	if opts.workDir != "" {
		cfg.Workspace.Root = opts.workDir
	}
	if opts.timeout > 0 {
		cfg.Exec.Timeout = opts.timeout
	}
	if opts.apiBase != "" {
		cfg.SCM.APIBase = opts.apiBase
	}
	if opts.token != "" {
		cfg.SCM.Token = opts.token
	}
	if opts.branchPrefix != "" {
		cfg.Git.BranchPrefix = opts.branchPrefix
	}
}

// buildVerifier wires the Docker builder when a daemon is reachable and
// degrades to command-only verification when it is not.
func buildVerifier(cfg *config.Config, executor exec.Executor, logger log.Logger) *build.Verifier {
	var ops []client.Opt
	if cfg.Build.DockerAPIVersion != "" {
		ops = append(ops, client.WithVersion(cfg.Build.DockerAPIVersion))
	}

	docker, err := build.NewDocker(logger, ops...)
	if err != nil {
		logger.Warn("Docker unavailable, image builds will be skipped", log.Err(err))
		docker = nil
	}
	return build.NewVerifier(docker, executor, logger)
}

func resolveProfile(cfg *config.Config, flag string) (types.Profile, error) {
	name := flag
	if name == "" {
		name = cfg.Profile
	}
	switch types.Profile(name) {
	case types.ProfileStandard, "":
		return types.ProfileStandard, nil
	case types.ProfileExtended:
		return types.ProfileExtended, nil
	default:
		return "", fmt.Errorf("unknown profile %q (expected standard or extended)", name)
	}
}

func resolveLibrary(cfg *config.Config, flag string) (*template.Library, error) {
	dir := flag
	if dir == "" {
		dir = cfg.TemplatesDir
	}
	if dir == "" {
		return template.NewLibrary(), nil
	}
	return template.NewLibraryFromDir(dir)
}
