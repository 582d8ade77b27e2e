package propagate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzbill/stencil/pkg/build"
	"github.com/rzbill/stencil/pkg/log"
	"github.com/rzbill/stencil/pkg/scm"
	"github.com/rzbill/stencil/pkg/store"
	"github.com/rzbill/stencil/pkg/template"
	"github.com/rzbill/stencil/pkg/tokens"
	"github.com/rzbill/stencil/pkg/types"
)

type fakeRepos struct {
	prepared []string
	exists   bool
	err      error
	workRoot string
}

func (f *fakeRepos) Prepare(ctx context.Context, repoURL, baseBranch, app string) (*types.RepoContext, error) {
	f.prepared = append(f.prepared, app)
	if f.err != nil {
		return nil, f.err
	}
	return &types.RepoContext{
		WorkDir:               filepath.Join(f.workRoot, app),
		BaseBranch:            baseBranch,
		ChangeBranch:          "automation/stencil-templates/" + app,
		BranchExistedRemotely: f.exists,
	}, nil
}

type fakeCommitter struct {
	written   map[string]string
	committed [][]string
	pushed    bool
	pushErr   error
}

func newFakeCommitter(pushed bool) *fakeCommitter {
	return &fakeCommitter{written: make(map[string]string), pushed: pushed}
}

func (f *fakeCommitter) WriteArtifacts(workDir string, artifacts []types.RenderedArtifact) error {
	for _, a := range artifacts {
		f.written[a.Path] = a.Content
	}
	return nil
}

func (f *fakeCommitter) CommitAndPush(ctx context.Context, rc *types.RepoContext, app string, paths []string) (bool, error) {
	f.committed = append(f.committed, paths)
	return f.pushed, f.pushErr
}

type fakeVerifier struct {
	called  int
	results build.Results
}

func (f *fakeVerifier) Verify(ctx context.Context, workDir, chartDir, imageRef string, lang types.Language) build.Results {
	f.called++
	return f.results
}

type fakePRs struct {
	created []scm.PullRequest
	url     string
	exists  bool
	err     error
}

func (f *fakePRs) CreatePR(ctx context.Context, cloneURL string, pr scm.PullRequest) (string, bool, error) {
	f.created = append(f.created, pr)
	return f.url, f.exists, f.err
}

func goodRow(app string) types.Row {
	return types.Row{
		"repoUrl":    "https://git.example.com/org/" + app + ".git",
		"branch":     "main",
		"appName":    app,
		"imageRepo":  "registry.example.com/apps/" + app,
		"jar_file":   app + ".jar",
		"base_image": "registry.example.com/base/jdk:17",
	}
}

func newTestOrchestrator(t *testing.T, opts Options, repos RepoPreparer, committer ArtifactCommitter, verifier LocalVerifier, prs PRCreator) (*Orchestrator, *store.MemoryStore) {
	t.Helper()
	journal := store.NewMemoryStore()
	o := New(
		opts,
		tokens.NewResolver(opts.Profile, tokens.Defaults{}),
		template.NewLibrary(),
		repos,
		committer,
		verifier,
		prs,
		journal,
		log.NewLogger(log.WithLevel(log.ErrorLevel)),
	)
	return o, journal
}

func TestRunHappyPath(t *testing.T) {
	repos := &fakeRepos{workRoot: t.TempDir()}
	committer := newFakeCommitter(true)
	verifier := &fakeVerifier{results: build.Results{Docker: "PASS", Helm: "PASS", Tests: "PASS"}}
	prs := &fakePRs{url: "https://git.example.com/org/billing/pull/7"}

	o, journal := newTestOrchestrator(t, Options{Profile: types.ProfileStandard}, repos, committer, verifier, prs)
	report := o.Run(context.Background(), []types.Row{goodRow("billing")})

	require.Len(t, report.Results, 1)
	res := report.Results[0]
	assert.True(t, res.Success)
	assert.Equal(t, "https://git.example.com/org/billing/pull/7", res.PRURL)
	assert.Equal(t, 1, report.SuccessCount)
	assert.Equal(t, 1, report.PRCount)

	// Artifacts plus the PR body were written and committed.
	assert.Contains(t, committer.written, "ci-config.yaml")
	assert.Contains(t, committer.written, "Dockerfile")
	assert.Contains(t, committer.written, "helm-billing/values.yaml")
	assert.Contains(t, committer.written, "PR_BODY.md")
	require.Len(t, committer.committed, 1)
	assert.Contains(t, committer.committed[0], "PR_BODY.md")

	// Verification results landed in the PR body.
	assert.Contains(t, committer.written["PR_BODY.md"], "PASS")
	assert.NotContains(t, committer.written["PR_BODY.md"], "@")

	require.Len(t, prs.created, 1)
	assert.Equal(t, "automation/stencil-templates/billing", prs.created[0].Head)
	assert.Equal(t, "main", prs.created[0].Base)

	// The run was journaled.
	saved, err := journal.GetReport(report.RunID)
	require.NoError(t, err)
	assert.Equal(t, 1, saved.SuccessCount)
}

func TestRunRowFailureIsolation(t *testing.T) {
	repos := &fakeRepos{workRoot: t.TempDir()}
	committer := newFakeCommitter(true)
	prs := &fakePRs{url: "https://pr/1"}

	bad := goodRow("broken")
	delete(bad, "imageRepo")

	o, _ := newTestOrchestrator(t, Options{Profile: types.ProfileStandard}, repos, committer, nil, prs)
	report := o.Run(context.Background(), []types.Row{bad, goodRow("billing")})

	require.Len(t, report.Results, 2)
	assert.False(t, report.Results[0].Success)
	assert.Contains(t, report.Results[0].Message, "imageRepo")
	assert.True(t, report.Results[1].Success)
	assert.Equal(t, 1, report.FailureCount())

	// The bad row never reached the repository stage.
	assert.Equal(t, []string{"billing"}, repos.prepared)
}

func TestRunDryRunStopsAfterValidation(t *testing.T) {
	repos := &fakeRepos{workRoot: t.TempDir()}
	committer := newFakeCommitter(true)
	prs := &fakePRs{}

	o, _ := newTestOrchestrator(t, Options{Profile: types.ProfileStandard, DryRun: true}, repos, committer, nil, prs)
	report := o.Run(context.Background(), []types.Row{goodRow("billing")})

	assert.True(t, report.DryRun)
	require.Len(t, report.Results, 1)
	assert.True(t, report.Results[0].Success)
	assert.Contains(t, report.Results[0].Message, "dry run")

	assert.Empty(t, repos.prepared)
	assert.Empty(t, committer.written)
	assert.Empty(t, prs.created)
}

func TestRunNoChangesSkipsPR(t *testing.T) {
	repos := &fakeRepos{workRoot: t.TempDir()}
	committer := newFakeCommitter(false)
	prs := &fakePRs{}

	o, _ := newTestOrchestrator(t, Options{Profile: types.ProfileStandard}, repos, committer, nil, prs)
	report := o.Run(context.Background(), []types.Row{goodRow("billing")})

	res := report.Results[0]
	assert.True(t, res.Success)
	assert.Equal(t, "no changes to publish", res.Message)
	assert.Empty(t, prs.created)
}

func TestRunResumedBranchStillSubmitsPR(t *testing.T) {
	// Nothing new to commit, but the branch exists remotely from an
	// earlier run that died before submission.
	repos := &fakeRepos{workRoot: t.TempDir(), exists: true}
	committer := newFakeCommitter(false)
	prs := &fakePRs{exists: true}

	o, _ := newTestOrchestrator(t, Options{Profile: types.ProfileStandard}, repos, committer, nil, prs)
	report := o.Run(context.Background(), []types.Row{goodRow("billing")})

	res := report.Results[0]
	assert.True(t, res.Success)
	assert.Equal(t, "pull request already open", res.Message)
	assert.Len(t, prs.created, 1)
}

func TestRunNoTokenIsManualFollowUp(t *testing.T) {
	repos := &fakeRepos{workRoot: t.TempDir()}
	committer := newFakeCommitter(true)
	prs := &fakePRs{err: scm.ErrNoToken}

	o, _ := newTestOrchestrator(t, Options{Profile: types.ProfileStandard}, repos, committer, nil, prs)
	report := o.Run(context.Background(), []types.Row{goodRow("billing")})

	res := report.Results[0]
	assert.True(t, res.Success)
	assert.Contains(t, res.Message, "open the pull request manually")
	assert.Empty(t, res.PRURL)
}

func TestRunPRFailureKeepsRowSuccessful(t *testing.T) {
	repos := &fakeRepos{workRoot: t.TempDir()}
	committer := newFakeCommitter(true)
	prs := &fakePRs{err: errors.New("api returned 403")}

	o, _ := newTestOrchestrator(t, Options{Profile: types.ProfileStandard}, repos, committer, nil, prs)
	report := o.Run(context.Background(), []types.Row{goodRow("billing")})

	res := report.Results[0]
	assert.True(t, res.Success)
	assert.Contains(t, res.Message, "PR submission failed")
	assert.Contains(t, res.Message, "403")
}

func TestRunRepoFailureFailsRow(t *testing.T) {
	repos := &fakeRepos{workRoot: t.TempDir(), err: errors.New("branch has diverged")}
	committer := newFakeCommitter(true)

	o, _ := newTestOrchestrator(t, Options{Profile: types.ProfileStandard}, repos, committer, nil, nil)
	report := o.Run(context.Background(), []types.Row{goodRow("billing")})

	res := report.Results[0]
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "diverged")
}

func TestRunSkipBuildFlags(t *testing.T) {
	repos := &fakeRepos{workRoot: t.TempDir()}
	verifier := &fakeVerifier{results: build.Results{Docker: "PASS", Helm: "PASS", Tests: "PASS"}}

	// Global skip.
	o, _ := newTestOrchestrator(t, Options{Profile: types.ProfileStandard, SkipBuild: true}, repos, newFakeCommitter(true), verifier, nil)
	o.Run(context.Background(), []types.Row{goodRow("billing")})
	assert.Equal(t, 0, verifier.called)

	// Row-level skip.
	row := goodRow("billing")
	row["skipLocalBuild"] = "yes"
	o, _ = newTestOrchestrator(t, Options{Profile: types.ProfileStandard}, repos, newFakeCommitter(true), verifier, nil)
	o.Run(context.Background(), []types.Row{row})
	assert.Equal(t, 0, verifier.called)

	// No skip.
	o, _ = newTestOrchestrator(t, Options{Profile: types.ProfileStandard}, repos, newFakeCommitter(true), verifier, nil)
	o.Run(context.Background(), []types.Row{goodRow("billing")})
	assert.Equal(t, 1, verifier.called)
}

func TestRunSkippedVerificationInPRBody(t *testing.T) {
	repos := &fakeRepos{workRoot: t.TempDir()}
	committer := newFakeCommitter(true)

	o, _ := newTestOrchestrator(t, Options{Profile: types.ProfileStandard, SkipBuild: true}, repos, committer, &fakeVerifier{}, nil)
	o.Run(context.Background(), []types.Row{goodRow("billing")})

	assert.Contains(t, committer.written["PR_BODY.md"], "SKIPPED")
}

func TestRunCancelledContextAbortsRemainingRows(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o, _ := newTestOrchestrator(t, Options{Profile: types.ProfileStandard}, &fakeRepos{workRoot: t.TempDir()}, newFakeCommitter(true), nil, nil)
	report := o.Run(ctx, []types.Row{goodRow("a"), goodRow("b")})

	require.Len(t, report.Results, 2)
	for _, res := range report.Results {
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "aborted")
	}
}

func TestRunPRBodyLeakFailsRow(t *testing.T) {
	// An override template directory with a mistyped token in the PR body
	// template; every other template is the stock one.
	dir := t.TempDir()
	stock := template.NewLibrary()
	for _, name := range []string{
		"ci-config.jvm.yaml.tmpl",
		"dockerfile.jvm.tmpl",
		"chart.yaml.tmpl",
		"values.yaml.tmpl",
		"agent-config.yaml.tmpl",
	} {
		body, err := stock.Load(name)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pr-body.md.tmpl"),
		[]byte("## Checks\n\ndocker: @DOKER_RESULT@\n"), 0o644))

	library, err := template.NewLibraryFromDir(dir)
	require.NoError(t, err)

	repos := &fakeRepos{workRoot: t.TempDir()}
	committer := newFakeCommitter(true)
	o := New(
		Options{Profile: types.ProfileStandard},
		tokens.NewResolver(types.ProfileStandard, tokens.Defaults{}),
		library,
		repos,
		committer,
		nil,
		nil,
		store.NewMemoryStore(),
		log.NewLogger(log.WithLevel(log.ErrorLevel)),
	)

	report := o.Run(context.Background(), []types.Row{goodRow("billing")})

	require.Len(t, report.Results, 1)
	res := report.Results[0]
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "validation failed")
	assert.Contains(t, res.Message, "DOKER_RESULT")
	assert.NotContains(t, committer.written, "PR_BODY.md")
	assert.Empty(t, committer.committed)
}

type panickingRepos struct{ fakeRepos }

func (p *panickingRepos) Prepare(ctx context.Context, repoURL, baseBranch, app string) (*types.RepoContext, error) {
	panic("boom")
}

func TestRunPanicIsolatedToRow(t *testing.T) {
	o, _ := newTestOrchestrator(t, Options{Profile: types.ProfileStandard}, &panickingRepos{}, newFakeCommitter(true), nil, nil)
	report := o.Run(context.Background(), []types.Row{goodRow("a"), goodRow("b")})

	require.Len(t, report.Results, 2)
	for _, res := range report.Results {
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "panic")
	}
	assert.Equal(t, 2, report.FailureCount())
}

func TestPrintReport(t *testing.T) {
	report := &types.Report{RunID: "r"}
	report.Add(types.RowResult{App: "billing", RepoURL: "u", Success: true, PRURL: "https://pr/1", Message: "pull request opened"})
	report.Add(types.RowResult{App: "scorer", RepoURL: "u2", Success: false, Message: "validation failed"})
	report.FinishedAt = report.StartedAt

	var sb strings.Builder
	PrintReport(&sb, report)
	out := sb.String()

	assert.Contains(t, out, "billing")
	assert.Contains(t, out, "https://pr/1")
	assert.Contains(t, out, "validation failed")
	assert.Contains(t, out, fmt.Sprintf("%d/%d", 1, 2))
}
