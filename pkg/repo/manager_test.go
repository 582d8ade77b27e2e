package repo

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzbill/stencil/pkg/exec"
	"github.com/rzbill/stencil/pkg/log"
	"github.com/rzbill/stencil/pkg/types"
)

func testLogger() log.Logger {
	return log.NewLogger(log.WithLevel(log.ErrorLevel))
}

func TestPrepareCreatesNewBranch(t *testing.T) {
	fake := exec.NewFakeExecutor()
	root := t.TempDir()
	m := NewManager(fake, root, "automation/stencil-templates", testLogger())

	rc, err := m.Prepare(context.Background(), "https://git.example.com/org/billing.git", "main", "billing")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "billing"), rc.WorkDir)
	assert.Equal(t, "main", rc.BaseBranch)
	assert.Equal(t, "automation/stencil-templates/billing", rc.ChangeBranch)
	assert.False(t, rc.BranchExistedRemotely)

	cmds := fake.Commands()
	require.Len(t, cmds, 4)
	assert.Equal(t, "git clone https://git.example.com/org/billing.git "+rc.WorkDir, cmds[0])
	assert.Equal(t, "git checkout main", cmds[1])
	assert.Equal(t, "git ls-remote --heads origin automation/stencil-templates/billing", cmds[2])
	assert.Equal(t, "git checkout -b automation/stencil-templates/billing", cmds[3])
}

func TestPrepareReusesRemoteBranch(t *testing.T) {
	fake := exec.NewFakeExecutor()
	fake.Stub("git ls-remote", exec.Result{Output: "abc123\trefs/heads/automation/stencil-templates/billing\n"}, nil)
	m := NewManager(fake, t.TempDir(), "automation/stencil-templates", testLogger())

	rc, err := m.Prepare(context.Background(), "https://git.example.com/org/billing.git", "main", "billing")
	require.NoError(t, err)
	assert.True(t, rc.BranchExistedRemotely)

	cmds := fake.Commands()
	require.Len(t, cmds, 5)
	assert.Equal(t, "git checkout automation/stencil-templates/billing", cmds[3])
	assert.Equal(t, "git pull --ff-only origin automation/stencil-templates/billing", cmds[4])
}

func TestPrepareDivergedBranchFails(t *testing.T) {
	fake := exec.NewFakeExecutor()
	fake.Stub("git ls-remote", exec.Result{Output: "abc123\trefs/heads/x\n"}, nil)
	fake.Stub("git pull --ff-only", exec.Result{ExitCode: 128, Output: "fatal: not possible to fast-forward"}, nil)
	m := NewManager(fake, t.TempDir(), "automation/stencil-templates", testLogger())

	_, err := m.Prepare(context.Background(), "https://git.example.com/org/billing.git", "main", "billing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "diverged")
	assert.Contains(t, err.Error(), "not possible to fast-forward")
}

func TestPrepareCloneFailure(t *testing.T) {
	fake := exec.NewFakeExecutor()
	fake.Stub("git clone", exec.Result{ExitCode: 128, Output: "fatal: repository not found"}, nil)
	m := NewManager(fake, t.TempDir(), "automation/stencil-templates", testLogger())

	_, err := m.Prepare(context.Background(), "https://git.example.com/org/gone.git", "main", "gone")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repository not found")
}

func TestCommitAndPushPublishes(t *testing.T) {
	fake := exec.NewFakeExecutor()
	// A staged diff is present.
	fake.Stub("git diff --cached --quiet", exec.Result{ExitCode: 1}, nil)
	c := NewCommitter(fake, "chore: add standardized CI/CD templates for %s", testLogger())

	rc := &types.RepoContext{WorkDir: t.TempDir(), ChangeBranch: "automation/stencil-templates/billing"}
	pushed, err := c.CommitAndPush(context.Background(), rc, "billing", []string{"ci-config.yaml", "Dockerfile"})
	require.NoError(t, err)
	assert.True(t, pushed)

	cmds := fake.Commands()
	require.Len(t, cmds, 4)
	assert.Equal(t, "git add -- ci-config.yaml Dockerfile", cmds[0])
	assert.Equal(t, "git commit -m chore: add standardized CI/CD templates for billing", cmds[2])
	assert.Equal(t, "git push -u origin automation/stencil-templates/billing", cmds[3])
}

func TestCommitAndPushNoChanges(t *testing.T) {
	fake := exec.NewFakeExecutor()
	c := NewCommitter(fake, "chore: templates for %s", testLogger())

	rc := &types.RepoContext{WorkDir: t.TempDir(), ChangeBranch: "automation/stencil-templates/billing"}
	pushed, err := c.CommitAndPush(context.Background(), rc, "billing", []string{"ci-config.yaml"})
	require.NoError(t, err)
	assert.False(t, pushed)

	for _, cmd := range fake.Commands() {
		assert.NotContains(t, cmd, "git commit")
		assert.NotContains(t, cmd, "git push")
	}
}

func TestCommitAndPushPushFailure(t *testing.T) {
	fake := exec.NewFakeExecutor()
	fake.Stub("git diff --cached --quiet", exec.Result{ExitCode: 1}, nil)
	fake.Stub("git push", exec.Result{ExitCode: 1, Output: "remote: permission denied"}, nil)
	c := NewCommitter(fake, "chore: templates for %s", testLogger())

	rc := &types.RepoContext{WorkDir: t.TempDir(), ChangeBranch: "b"}
	_, err := c.CommitAndPush(context.Background(), rc, "billing", []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestWriteArtifactsCreatesNestedPaths(t *testing.T) {
	c := NewCommitter(exec.NewFakeExecutor(), "%s", testLogger())
	dir := t.TempDir()

	err := c.WriteArtifacts(dir, []types.RenderedArtifact{
		{Path: "ci-config.yaml", Content: "a: b\n"},
		{Path: "helm-billing/values.yaml", Content: "c: d\n"},
	})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "ci-config.yaml"))
	assert.FileExists(t, filepath.Join(dir, "helm-billing", "values.yaml"))
}
