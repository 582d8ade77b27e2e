package repo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rzbill/stencil/pkg/exec"
	"github.com/rzbill/stencil/pkg/log"
	"github.com/rzbill/stencil/pkg/types"
)

// Committer writes rendered artifacts into a working copy, stages exactly
// those paths and publishes the commit. A working copy whose staged paths
// carry no diff produces no commit and no push, which keeps repeated runs
// from stacking empty commits on the change branch.
type Committer struct {
	exec       exec.Executor
	messageFmt string
	logger     log.Logger
}

// NewCommitter creates a committer. messageFmt receives the application
// name as its single formatting argument.
func NewCommitter(executor exec.Executor, messageFmt string, logger log.Logger) *Committer {
	return &Committer{
		exec:       executor,
		messageFmt: messageFmt,
		logger:     logger.WithComponent("repo"),
	}
}

// WriteArtifacts materializes rendered artifacts under the working copy,
// creating intermediate directories as needed.
func (c *Committer) WriteArtifacts(workDir string, artifacts []types.RenderedArtifact) error {
	for _, a := range artifacts {
		target := filepath.Join(workDir, filepath.FromSlash(a.Path))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("create directory for %s: %w", a.Path, err)
		}
		if err := os.WriteFile(target, []byte(a.Content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", a.Path, err)
		}
	}
	return nil
}

// CommitAndPush stages the given paths, commits and pushes the change
// branch. It returns false when the staged paths carry no diff against
// HEAD, in which case nothing is committed or pushed.
func (c *Committer) CommitAndPush(ctx context.Context, rc *types.RepoContext, app string, paths []string) (bool, error) {
	addArgs := append([]string{"git", "add", "--"}, paths...)
	res, err := c.exec.Run(ctx, rc.WorkDir, addArgs...)
	if err != nil {
		return false, fmt.Errorf("git add: %w", err)
	}
	if res.ExitCode != 0 {
		return false, fmt.Errorf("git add exited %d: %s", res.ExitCode, strings.TrimSpace(res.Output))
	}

	changed, err := c.hasStagedChanges(ctx, rc.WorkDir)
	if err != nil {
		return false, err
	}
	if !changed {
		c.logger.Info("Working copy already up to date", log.Str("app", app), log.Str("branch", rc.ChangeBranch))
		return false, nil
	}

	message := fmt.Sprintf(c.messageFmt, app)
	res, err = c.exec.Run(ctx, rc.WorkDir, "git", "commit", "-m", message)
	if err != nil {
		return false, fmt.Errorf("git commit: %w", err)
	}
	if res.ExitCode != 0 {
		return false, fmt.Errorf("git commit exited %d: %s", res.ExitCode, strings.TrimSpace(res.Output))
	}

	res, err = c.exec.Run(ctx, rc.WorkDir, "git", "push", "-u", "origin", rc.ChangeBranch)
	if err != nil {
		return false, fmt.Errorf("git push: %w", err)
	}
	if res.ExitCode != 0 {
		return false, fmt.Errorf("git push exited %d: %s", res.ExitCode, strings.TrimSpace(res.Output))
	}

	c.logger.Info("Pushed change branch", log.Str("app", app), log.Str("branch", rc.ChangeBranch))
	return true, nil
}

// hasStagedChanges reports whether the index differs from HEAD.
func (c *Committer) hasStagedChanges(ctx context.Context, workDir string) (bool, error) {
	res, err := c.exec.Run(ctx, workDir, "git", "diff", "--cached", "--quiet")
	if err != nil {
		return false, fmt.Errorf("git diff: %w", err)
	}
	// --quiet exits 1 when there is a diff, 0 when clean.
	return res.ExitCode != 0, nil
}
