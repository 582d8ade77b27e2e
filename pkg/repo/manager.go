// Package repo prepares working copies and reconciles change branches.
// All git interaction goes through an exec.Executor so tests can run
// against a fake.
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

// Manager clones repositories and reconciles the per-application change
// branch. Reconciliation is idempotent: an existing remote branch is
// reused and fast-forwarded, never recreated or force-pushed.
type Manager struct {
	exec         exec.Executor
	workRoot     string
	branchPrefix string
	logger       log.Logger
}

// NewManager creates a manager that clones under workRoot and names
// change branches <branchPrefix>/<app>.
func NewManager(executor exec.Executor, workRoot, branchPrefix string, logger log.Logger) *Manager {
	return &Manager{
		exec:         executor,
		workRoot:     workRoot,
		branchPrefix: branchPrefix,
		logger:       logger.WithComponent("repo"),
	}
}

// ChangeBranch returns the change branch name for an application.
func (m *Manager) ChangeBranch(app string) string {
	return m.branchPrefix + "/" + app
}

// Prepare clones the repository fresh, checks out the base branch and
// leaves the working copy on the change branch, creating it locally or
// reusing the remote one.
func (m *Manager) Prepare(ctx context.Context, repoURL, baseBranch, app string) (*types.RepoContext, error) {
	workDir := filepath.Join(m.workRoot, app)

	// A stale working copy from an earlier run is discarded so every run
	// starts from the remote state.
	if err := os.RemoveAll(workDir); err != nil {
		return nil, fmt.Errorf("clean workspace %s: %w", workDir, err)
	}
	if err := os.MkdirAll(m.workRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}

	m.logger.Info("Cloning repository", log.Str("repo", repoURL), log.Str("app", app))
	if err := m.git(ctx, m.workRoot, "clone", repoURL, workDir); err != nil {
		return nil, err
	}
	if err := m.git(ctx, workDir, "checkout", baseBranch); err != nil {
		return nil, err
	}

	branch := m.ChangeBranch(app)
	exists, err := m.remoteBranchExists(ctx, workDir, branch)
	if err != nil {
		return nil, err
	}

	if exists {
		m.logger.Info("Reusing existing change branch", log.Str("branch", branch))
		if err := m.git(ctx, workDir, "checkout", branch); err != nil {
			return nil, err
		}
		if err := m.git(ctx, workDir, "pull", "--ff-only", "origin", branch); err != nil {
			return nil, fmt.Errorf("change branch %s has diverged from origin: %w", branch, err)
		}
	} else {
		m.logger.Info("Creating change branch", log.Str("branch", branch))
		if err := m.git(ctx, workDir, "checkout", "-b", branch); err != nil {
			return nil, err
		}
	}

	return &types.RepoContext{
		WorkDir:               workDir,
		BaseBranch:            baseBranch,
		ChangeBranch:          branch,
		BranchExistedRemotely: exists,
	}, nil
}

// remoteBranchExists asks origin whether the branch head is published.
func (m *Manager) remoteBranchExists(ctx context.Context, workDir, branch string) (bool, error) {
	res, err := m.exec.Run(ctx, workDir, "git", "ls-remote", "--heads", "origin", branch)
	if err != nil {
		return false, fmt.Errorf("git ls-remote: %w", err)
	}
	if res.ExitCode != 0 {
		return false, fmt.Errorf("git ls-remote exited %d: %s", res.ExitCode, strings.TrimSpace(res.Output))
	}
	return strings.TrimSpace(res.Output) != "", nil
}

func (m *Manager) git(ctx context.Context, dir string, args ...string) error {
	argv := append([]string{"git"}, args...)
	res, err := m.exec.Run(ctx, dir, argv...)
	if err != nil {
		return fmt.Errorf("git %s: %w", args[0], err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("git %s exited %d: %s", strings.Join(args, " "), res.ExitCode, strings.TrimSpace(res.Output))
	}
	return nil
}
